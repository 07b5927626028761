package web

import (
	"io"
	"text/template"
)

// The plain-text part shown by mail clients that do not render HTML.
var textTemplate = template.Must(template.New("textTemplate").Parse(
	`{{ .Title }}

Please view this email in HTML format to see the printer status report.
{{ if .Alerts }}
Alerts:
{{- range .Alerts }}
- {{ . }}
{{- end }}
{{- else }}
No alerts. All printers are in good condition.
{{- end }}
{{- with .Unreachable }}

Unreachable printers:
{{- range . }}
- {{ .Printer }}: {{ .Err }}
{{- end }}
{{- end }}
`,
))

func RenderReportText(w io.Writer, c ReportContext) error {
	return textTemplate.Execute(w, c)
}
