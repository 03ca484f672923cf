package provider

import (
	"strings"
	"testing"
)

func TestRenderRedirectForm(t *testing.T) {
	html, err := RenderRedirectForm("pos-form", "https://gate.example/3d", map[string]string{
		"clientid": "100",
		"amount":   "10.5",
	})
	if err != nil {
		t.Fatalf("RenderRedirectForm() error = %v", err)
	}

	for _, want := range []string{
		`<form id="pos-form" method="post" action="https://gate.example/3d">`,
		`<input type="hidden" name="clientid" value="100">`,
		`<input type="hidden" name="amount" value="10.5">`,
		`.submit();`,
	} {
		if !strings.Contains(html, want) {
			t.Errorf("RenderRedirectForm() missing %s in %s", want, html)
		}
	}

	// Deterministic field order: amount sorts before clientid.
	if strings.Index(html, "amount") > strings.Index(html, "clientid") {
		t.Error("RenderRedirectForm() fields not sorted by name")
	}
}

func TestRenderRedirectFormEscapes(t *testing.T) {
	html, err := RenderRedirectForm("pos-form", "https://gate.example/3d", map[string]string{
		"memo": `"><script>alert(1)</script>`,
	})
	if err != nil {
		t.Fatalf("RenderRedirectForm() error = %v", err)
	}
	if strings.Contains(html, "<script>alert(1)</script>") {
		t.Error("RenderRedirectForm() did not escape field value")
	}
}

func TestRenderIframe(t *testing.T) {
	html := RenderIframe("https://www.paytr.com/odeme/guvenli/tok")
	if !strings.Contains(html, `src="https://www.paytr.com/odeme/guvenli/tok"`) {
		t.Errorf("RenderIframe() = %s", html)
	}
	if !strings.Contains(html, `height="600"`) {
		t.Errorf("RenderIframe() = %s", html)
	}
}
