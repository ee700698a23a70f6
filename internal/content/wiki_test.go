package content

import (
	"strings"
	"testing"
)

func TestHTMLToWikiBasics(t *testing.T) {
	in := `<h2>Section</h2><p>Hello <strong>world</strong></p>`
	out := HTMLToWiki(in)

	if !strings.Contains(out, "h2. Section") {
		t.Fatalf("expected wiki heading, got: %q", out)
	}
	if !strings.Contains(out, "*world*") {
		t.Fatalf("expected wiki bold, got: %q", out)
	}
}

func TestHTMLToWikiImage(t *testing.T) {
	in := `<img src="https://example.com/a.png" alt="pic">`
	out := HTMLToWiki(in)

	if out != "!pic|https://example.com/a.png!" {
		t.Fatalf("got %q", out)
	}
}

func TestHTMLToWikiCodeBlock(t *testing.T) {
	in := `<pre><code class="language-python">print("hi")</code></pre>`
	out := HTMLToWiki(in)

	want := "{code:python}\nprint(\"hi\")\n{code}"
	if out != want {
		t.Fatalf("got %q, want %q", out, want)
	}
}
