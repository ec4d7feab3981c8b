package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
)

//go:embed templates/*.html
var templateFS embed.FS

type baseEmailData struct {
	Title       string
	Heading     string
	ProgramName string
	CTALabel    string
	CTAURL      string
}

type messageEmailData struct {
	baseEmailData
	Paragraphs [][]string
}

// Layout describes the chrome around a plain-text message body.
type Layout struct {
	ProgramName string
	Heading     string
	CTALabel    string
	CTAURL      string
}

// RenderMessage wraps a plain-text body in the HTML layout. Blank lines
// separate paragraphs and single newlines become line breaks. The body is
// escaped, so rendered template variables cannot inject markup.
func RenderMessage(subject, body string, layout Layout) (string, error) {
	heading := layout.Heading
	if heading == "" {
		heading = subject
	}
	return renderEmailTemplate("message.html", messageEmailData{
		baseEmailData: baseEmailData{
			Title:       subject,
			Heading:     heading,
			ProgramName: layout.ProgramName,
			CTALabel:    layout.CTALabel,
			CTAURL:      layout.CTAURL,
		},
		Paragraphs: splitParagraphs(body),
	})
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

func splitParagraphs(body string) [][]string {
	body = strings.ReplaceAll(strings.TrimSpace(body), "\r\n", "\n")
	if body == "" {
		return nil
	}

	blocks := strings.Split(body, "\n\n")
	paragraphs := make([][]string, 0, len(blocks))
	for _, block := range blocks {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		paragraphs = append(paragraphs, strings.Split(block, "\n"))
	}
	return paragraphs
}
