package content

import (
	"strings"
	"testing"
)

func TestWikiToMarkdownHeaderAndBold(t *testing.T) {
	out := WikiToMarkdown("h1. Title\n\nHello *world*")

	if !strings.Contains(out, "# Title") {
		t.Fatalf("expected markdown header, got: %q", out)
	}
	if !strings.Contains(out, "**world**") {
		t.Fatalf("expected bold conversion, got: %q", out)
	}
}

func TestWikiToMarkdownList(t *testing.T) {
	out := WikiToMarkdown("* one\n** nested\n* two")

	if !strings.Contains(out, "- one") {
		t.Fatalf("expected top-level bullet, got: %q", out)
	}
	if !strings.Contains(out, "  - nested") {
		t.Fatalf("expected nested bullet indented two spaces, got: %q", out)
	}
}

func TestWikiToMarkdownImage(t *testing.T) {
	out := WikiToMarkdown("!pic|https://example.com/a.png!")
	if out != "![pic](https://example.com/a.png)" {
		t.Fatalf("got %q", out)
	}
}

func TestWikiToMarkdownNamedLink(t *testing.T) {
	out := WikiToMarkdown("[site|https://example.com]")
	if out != "[site](https://example.com)" {
		t.Fatalf("got %q", out)
	}
}

func TestWikiToMarkdownCodeBlockPreservesContent(t *testing.T) {
	out := WikiToMarkdown("{code:go}\nfmt.Println(\"*not bold*\")\n{code}")

	want := "```go\nfmt.Println(\"*not bold*\")\n```"
	if out != want {
		t.Fatalf("got %q, want %q", out, want)
	}
}

func TestWikiToMarkdownNoformat(t *testing.T) {
	out := WikiToMarkdown("{noformat}\nraw *text*\n{noformat}")
	want := "```\nraw *text*\n```"
	if out != want {
		t.Fatalf("got %q, want %q", out, want)
	}
}

func TestWikiToMarkdownTableWithHeader(t *testing.T) {
	out := WikiToMarkdown("||A||B||\n|1|2|")

	lines := strings.Split(out, "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 table lines, got %d: %q", len(lines), out)
	}
	if lines[0] != "| A | B |" {
		t.Fatalf("unexpected header row: %q", lines[0])
	}
	if lines[1] != "| --- | --- |" {
		t.Fatalf("unexpected separator row: %q", lines[1])
	}
}

func TestWikiToMarkdownTableWithoutHeaderInjectsOne(t *testing.T) {
	out := WikiToMarkdown("|1|2|\n|3|4|")

	lines := strings.Split(out, "\n")
	if len(lines) != 4 {
		t.Fatalf("expected injected header + separator + 2 data rows, got %d: %q", len(lines), out)
	}
	if lines[0] != "|  |  |" {
		t.Fatalf("expected injected empty header row, got: %q", lines[0])
	}
}
