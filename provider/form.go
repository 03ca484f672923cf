package provider

import (
	"fmt"
	"html/template"
	"sort"
	"strings"
)

// redirectFormTemplate renders a self-submitting POST form for browser-based
// 3D Secure hand-off. Every field value goes through html/template escaping.
var redirectFormTemplate = template.Must(template.New("redirectForm").Parse(
	`<form id="{{.FormID}}" method="post" action="{{.Action}}">` +
		`{{range .Fields}}<input type="hidden" name="{{.Name}}" value="{{.Value}}">{{end}}` +
		`</form>` +
		`<script>document.getElementById({{.FormID}}).submit();</script>`))

var iframeTemplate = template.Must(template.New("iframe").Parse(
	`<iframe src="{{.Src}}" width="100%" height="600" frameborder="0" scrolling="no"></iframe>`))

type formField struct {
	Name  string
	Value string
}

type redirectForm struct {
	FormID string
	Action string
	Fields []formField
}

// RenderRedirectForm builds the auto-submitting HTML form posting the given
// fields to action. Fields are emitted in ascending name order so the output
// is deterministic.
func RenderRedirectForm(formID, action string, fields map[string]string) (string, error) {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	form := redirectForm{
		FormID: formID,
		Action: action,
		Fields: make([]formField, 0, len(fields)),
	}
	for _, name := range names {
		form.Fields = append(form.Fields, formField{Name: name, Value: fields[name]})
	}

	var sb strings.Builder
	if err := redirectFormTemplate.Execute(&sb, form); err != nil {
		return "", fmt.Errorf("failed to render redirect form: %w", err)
	}
	return sb.String(), nil
}

// RenderIframe builds the embeddable iframe wrapper used by hosted payment
// pages.
func RenderIframe(src string) string {
	var sb strings.Builder
	if err := iframeTemplate.Execute(&sb, struct{ Src string }{Src: src}); err != nil {
		return ""
	}
	return sb.String()
}
