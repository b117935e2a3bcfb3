package htmlsanitize_test

import (
	"html/template"
	"strings"
	"testing"

	"github.com/dalemusser/learnhub/internal/app/system/htmlsanitize"
)

func TestSanitize_Empty(t *testing.T) {
	if result := htmlsanitize.Sanitize(""); result != "" {
		t.Errorf("expected empty string, got %q", result)
	}
}

func TestSanitize_PlainText(t *testing.T) {
	if result := htmlsanitize.Sanitize("Hello, World!"); result != "Hello, World!" {
		t.Errorf("expected plain text unchanged, got %q", result)
	}
}

func TestSanitize_SafeHTML(t *testing.T) {
	input := "<p><strong>Bold</strong> and <em>italic</em></p>"
	if result := htmlsanitize.Sanitize(input); result != input {
		t.Errorf("expected safe HTML preserved, got %q", result)
	}
}

func TestSanitize_RemovesScript(t *testing.T) {
	input := "<p>Hello</p><script>alert('xss')</script>"
	if result := htmlsanitize.Sanitize(input); result != "<p>Hello</p>" {
		t.Errorf("expected script removed, got %q", result)
	}
}

func TestSanitize_RemovesJavascriptHref(t *testing.T) {
	result := htmlsanitize.Sanitize(`<a href="javascript:alert('xss')">Click</a>`)
	if strings.Contains(result, "javascript:") {
		t.Errorf("expected javascript: href removed, got %q", result)
	}
}

func TestSanitize_AllowsSafeLinks(t *testing.T) {
	result := htmlsanitize.Sanitize(`<a href="https://example.com">Enrollment rules</a>`)
	if !strings.Contains(result, "https://example.com") || !strings.Contains(result, "nofollow") {
		t.Errorf("expected safe nofollow link, got %q", result)
	}
}

func TestSanitize_AllowsLists(t *testing.T) {
	input := "<ul><li>Item 1</li><li>Item 2</li></ul>"
	if result := htmlsanitize.Sanitize(input); result != input {
		t.Errorf("expected list preserved, got %q", result)
	}
}

func TestSanitize_RemovesIframe(t *testing.T) {
	result := htmlsanitize.Sanitize(`<p>Content</p><iframe src="https://evil.com"></iframe>`)
	if strings.Contains(result, "iframe") {
		t.Error("expected iframe to be removed")
	}
	if !strings.Contains(result, "Content") {
		t.Error("expected safe content to be preserved")
	}
}

func TestSanitize_RemovesOnError(t *testing.T) {
	result := htmlsanitize.Sanitize(`<img src="x" onerror="alert('xss')">`)
	if strings.Contains(result, "onerror") {
		t.Error("expected onerror attribute to be removed")
	}
}

func TestIsPlainText(t *testing.T) {
	cases := map[string]bool{
		"":              true,
		"Hello, World!": true,
		"5 < 10":        true,
		"5 > 3":         true,
		"<p>Hello</p>":  false,
	}
	for in, want := range cases {
		if got := htmlsanitize.IsPlainText(in); got != want {
			t.Errorf("IsPlainText(%q): expected %v, got %v", in, want, got)
		}
	}
}

func TestPlainTextToHTML(t *testing.T) {
	cases := map[string]string{
		"":                       "",
		"Hello, World!":          "<p>Hello, World!</p>",
		"Line 1\nLine 2\nLine 3": "<p>Line 1<br>Line 2<br>Line 3</p>",
		"A & B":                  "<p>A &amp; B</p>",
	}
	for in, want := range cases {
		if got := htmlsanitize.PlainTextToHTML(in); got != want {
			t.Errorf("PlainTextToHTML(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestPrepareForDisplay(t *testing.T) {
	cases := map[string]template.HTML{
		"":                                          "",
		"Hello, World!":                             "<p>Hello, World!</p>",
		"<p>Hello</p>":                              "<p>Hello</p>",
		"<p>Hello</p><script>alert('xss')</script>": "<p>Hello</p>",
		"Line 1\nLine 2":                            "<p>Line 1<br>Line 2</p>",
	}
	for in, want := range cases {
		if got := htmlsanitize.PrepareForDisplay(in); got != want {
			t.Errorf("PrepareForDisplay(%q): expected %q, got %q", in, want, got)
		}
	}
}
