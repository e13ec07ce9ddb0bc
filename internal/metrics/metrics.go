package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Vote outcomes
const (
	OutcomeAccepted  = "accepted"
	OutcomeDuplicate = "duplicate"
	OutcomeRejected  = "rejected"
)

// Login outcomes
const (
	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
	OutcomeThrottled = "throttled"
)

type Metrics struct {
	votes            *prometheus.CounterVec
	logins           *prometheus.CounterVec
	campaignsCreated prometheus.Counter
	linksCreated     prometheus.Counter
	exports          prometheus.Counter
}

// New registers the application collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		votes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mood_votes_total",
			Help: "vote submissions by outcome",
		}, []string{"outcome"}),
		logins: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mood_logins_total",
			Help: "login attempts by outcome",
		}, []string{"outcome"}),
		campaignsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "mood_campaigns_created_total",
			Help: "number of campaigns created",
		}),
		linksCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "mood_poll_links_created_total",
			Help: "number of poll links generated",
		}),
		exports: factory.NewCounter(prometheus.CounterOpts{
			Name: "mood_csv_exports_total",
			Help: "number of CSV exports served",
		}),
	}
}

func (m *Metrics) Vote(outcome string) {
	m.votes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Login(outcome string) {
	m.logins.WithLabelValues(outcome).Inc()
}

func (m *Metrics) CampaignCreated(links int) {
	m.campaignsCreated.Inc()
	m.linksCreated.Add(float64(links))
}

func (m *Metrics) LinkCreated() {
	m.linksCreated.Inc()
}

func (m *Metrics) Export() {
	m.exports.Inc()
}
