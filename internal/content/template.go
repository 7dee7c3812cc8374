package content

import (
	"strings"
	"text/template"

	"PulseOutreach/internal/models"
)

// Render fills {{.Name}}, {{.Company}} and {{.Email}} in a user supplied
// template. Text that does not parse or execute is returned unchanged.
func Render(tmpl string, r models.Recipient) string {
	if !strings.Contains(tmpl, "{{") {
		return tmpl
	}

	t, err := template.New("outreach").Option("missingkey=zero").Parse(tmpl)
	if err != nil {
		return tmpl
	}

	var b strings.Builder
	if err := t.Execute(&b, r); err != nil {
		return tmpl
	}
	return b.String()
}
