package content

import (
	"net/url"
	"strings"
	"testing"
)

func TestUnwrapRedirectsStripsExpiresAndToken(t *testing.T) {
	inner := "https://attacker.example.com/path?keep=1&expires=999&token=secret"
	wrapped := "https://ywh.example.com/redirect?url=" +
		url.QueryEscape(url.QueryEscape(inner)) +
		"&expires=111&token=abc"

	out := UnwrapRedirects(wrapped, "ywh.example.com")

	want := "https://attacker.example.com/path?keep=1"
	if out != want {
		t.Fatalf("got %q, want %q", out, want)
	}
}

func TestUnwrapRedirectsInHTMLAttribute(t *testing.T) {
	inner := "https://example.com/x?token=shouldgo&keep=yes"
	wrapped := `<a href="https://ywh.example.com/redirect?url=` +
		url.QueryEscape(url.QueryEscape(inner)) + `">link</a>`

	out := UnwrapRedirects(wrapped, "ywh.example.com")

	if !strings.Contains(out, `href="https://example.com/x?keep=yes"`) {
		t.Fatalf("expected unwrapped href, got: %q", out)
	}
}

// P7: applying redirect-unwrapping twice is a fixed point.
func TestUnwrapRedirectsIdempotent(t *testing.T) {
	inner := "https://example.com/x?a=1"
	wrapped := "https://ywh.example.com/redirect?url=" + url.QueryEscape(url.QueryEscape(inner))

	once := UnwrapRedirects(wrapped, "ywh.example.com")
	twice := UnwrapRedirects(once, "ywh.example.com")

	if once != twice {
		t.Fatalf("not a fixed point: once=%q twice=%q", once, twice)
	}
}

func TestUnwrapRedirectsPreservesOtherParams(t *testing.T) {
	inner := "https://example.com/x?a=1&b=2&expires=9&token=t"
	wrapped := "https://ywh.example.com/redirect?url=" + url.QueryEscape(url.QueryEscape(inner))

	out := UnwrapRedirects(wrapped, "ywh.example.com")
	if !strings.Contains(out, "a=1") || !strings.Contains(out, "b=2") {
		t.Fatalf("expected other params preserved, got: %q", out)
	}
	if strings.Contains(out, "expires=") || strings.Contains(out, "token=") {
		t.Fatalf("expected expires/token stripped, got: %q", out)
	}
}
