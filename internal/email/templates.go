package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

type baseEmailData struct {
	Title      string
	Heading    string
	Subheading string
}

type handoffEmailData struct {
	baseEmailData
	HandoffAlert
}

func renderEmailTemplate(name string, data any) (string, error) {
	templates := []string{"templates/base.html", "templates/" + name}
	tmpl, err := template.New("base.html").ParseFS(templateFS, templates...)
	if err != nil {
		return "", fmt.Errorf("parse email template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "email", data); err != nil {
		return "", fmt.Errorf("execute email template %s: %w", name, err)
	}
	return buf.String(), nil
}

func renderHandoffAlert(alert HandoffAlert) (subject, content string, err error) {
	subject = subjectHandoffFallback
	if alert.LeadName != "" {
		subject = fmt.Sprintf(subjectHandoffFmt, alert.LeadName)
	}
	content, err = renderEmailTemplate("handoff.html", handoffEmailData{
		baseEmailData: baseEmailData{
			Title:      subject,
			Heading:    "A conversation needs you",
			Subheading: alert.PersonaName,
		},
		HandoffAlert: alert,
	})
	return subject, content, err
}
