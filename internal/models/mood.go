package models

type Mood string

const (
	MoodGreen  Mood = "green"
	MoodBlue   Mood = "blue"
	MoodYellow Mood = "yellow"
	MoodRed    Mood = "red"
)

// MoodMeta carries what the results pages display for a mood.
type MoodMeta struct {
	Mood  Mood
	Label string
	Color string
	Emoji string
}

// Moods lists every mood in display order. Ties on counts resolve to the first listed.
var Moods = []MoodMeta{
	{Mood: MoodGreen, Label: "Très bien", Color: "#22c55e", Emoji: "😄"},
	{Mood: MoodBlue, Label: "Neutre", Color: "#38bdf8", Emoji: "🙂"},
	{Mood: MoodYellow, Label: "Moyen", Color: "#f97316", Emoji: "😕"},
	{Mood: MoodRed, Label: "Pas bien", Color: "#ef4444", Emoji: "😠"},
}

func (m Mood) Valid() bool {
	switch m {
	case MoodGreen, MoodBlue, MoodYellow, MoodRed:
		return true
	}
	return false
}

// Meta returns the display metadata, ok is false for unknown moods.
func (m Mood) Meta() (MoodMeta, bool) {
	for _, meta := range Moods {
		if meta.Mood == m {
			return meta, true
		}
	}
	return MoodMeta{}, false
}

// Label returns the display label, "Inconnu" for unknown moods.
func (m Mood) Label() string {
	if meta, ok := m.Meta(); ok {
		return meta.Label
	}
	return "Inconnu"
}

// AllModels is the AutoMigrate order; referenced tables come first.
var AllModels = []interface{}{
	&User{},
	&Campaign{},
	&PollLink{},
	&Vote{},
	&VoteAttempt{},
}
