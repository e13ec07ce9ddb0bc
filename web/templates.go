// Package web holds the server-rendered pages.
package web

import (
	"embed"
	"fmt"
	"html/template"
	"time"

	"mood/internal/models"

	"github.com/gin-contrib/multitemplate"
)

//go:embed templates
var templateFS embed.FS

// Views maps the names handlers render to their view file.
var Views = map[string]string{
	"auth/login.html":     "views/auth/login.html",
	"auth/register.html":  "views/auth/register.html",
	"admin/index.html":    "views/admin/index.html",
	"admin/campaign.html": "views/admin/campaign.html",
	"admin/results.html":  "views/admin/results.html",
	"poll/vote.html":      "views/poll/vote.html",
	"poll/closed.html":    "views/poll/closed.html",
	"poll/thanks.html":    "views/poll/thanks.html",
	"error.html":          "views/error.html",
}

var funcMap = template.FuncMap{
	"formatDate": func(t interface{}) string {
		switch v := t.(type) {
		case time.Time:
			return v.Local().Format("02/01/2006 15:04")
		case *time.Time:
			if v == nil {
				return ""
			}
			return v.Local().Format("02/01/2006 15:04")
		}
		return ""
	},
	"moodMeta": func(m models.Mood) models.MoodMeta {
		meta, _ := m.Meta()
		return meta
	},
	"percent": func(part, total int) int {
		if total <= 0 {
			return 0
		}
		return part * 100 / total
	},
}

// LoadTemplates parses every view together with the base layout.
func LoadTemplates() (multitemplate.Render, error) {
	r := multitemplate.New()
	for name, view := range Views {
		tmpl, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS,
			"templates/layouts/*.html",
			"templates/"+view,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		r.Add(name, tmpl)
	}
	return r, nil
}
