package content

import (
	"strings"
	"testing"
)

func TestSanitize(t *testing.T) {
	if got := Sanitize("hello <script>alert(1)</script>world"); got != "hello world" {
		t.Errorf("script not stripped: %q", got)
	}
	if got := Sanitize(`<a href="javascript:alert(1)">x</a>`); strings.Contains(got, "javascript") {
		t.Errorf("javascript href not stripped: %q", got)
	}
	if got := Sanitize("<b>bold</b>"); got != "<b>bold</b>" {
		t.Errorf("harmless formatting should survive: %q", got)
	}
}

func TestRenderMarkdown(t *testing.T) {
	html, err := RenderMarkdown("**bold** and ~~gone~~")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(html, "<strong>bold</strong>") {
		t.Errorf("bold not rendered: %q", html)
	}
	if !strings.Contains(html, "<del>gone</del>") {
		t.Errorf("strikethrough not rendered: %q", html)
	}

	html, err = RenderMarkdown("visit https://example.com now")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(html, `href="https://example.com"`) {
		t.Errorf("bare link not linkified: %q", html)
	}

	html, err = RenderMarkdown("hi <script>alert(1)</script>")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(html, "<script>") {
		t.Errorf("raw HTML must be sanitized: %q", html)
	}
}

func TestValidateUsername(t *testing.T) {
	for _, name := range []string{"alice", "bob.smith", "user_1", "a-b"} {
		if err := ValidateUsername(name); err != nil {
			t.Errorf("%q should be valid: %v", name, err)
		}
	}
	for _, name := range []string{"", "has space", "semi;colon", "слово", "a/b"} {
		if err := ValidateUsername(name); err == nil {
			t.Errorf("%q should be rejected", name)
		}
	}
}
