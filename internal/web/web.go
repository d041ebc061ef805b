// Package web holds the server-rendered ticket desk page.
package web

import (
	"embed"
	"fmt"
	"html/template"

	"github.com/psds-microservice/ticket-desk/internal/model"
	"github.com/psds-microservice/ticket-desk/internal/service"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Templates parses the embedded page templates with the helper funcs they use.
func Templates() (*template.Template, error) {
	return template.New("").Funcs(template.FuncMap{
		"money": Money,
		"tag": func(t model.Ticket) string {
			return string(service.ClassifyForDisplay(&t))
		},
	}).ParseFS(templateFS, "templates/*.tmpl")
}

// Money formats a cost the way the table shows it.
func Money(v float64) string {
	return fmt.Sprintf("$ %.2f", v)
}
