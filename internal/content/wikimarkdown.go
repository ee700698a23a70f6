package content

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// WikiToMarkdown converts Atlassian/JIRA wiki markup mirrored back from a
// tracker comment into the markdown the platform expects (spec §4.1
// "Wiki → markdown"), in this order: {code}/{noformat} extraction,
// {quote} panels, tables (with header synthesis for header-less tables),
// then per line headers or list markers followed by the inline
// conversions (colored spans, monospace, links, images, character
// styles); code-block placeholders are restored last.
func WikiToMarkdown(wiki string) string {
	codeBlocks, text := extractWikiCodeBlocks(wiki)
	text = convertWikiQuotes(text)
	text = convertWikiTables(text)

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = convertWikiLine(line)
	}
	text = strings.Join(lines, "\n")

	return restoreWikiCodeBlocks(text, codeBlocks)
}

var (
	wikiCodeBlockPattern     = regexp.MustCompile(`(?s)\{code(?::([a-zA-Z0-9_+-]*))?\}(.*?)\{code\}`)
	wikiNoformatBlockPattern = regexp.MustCompile(`(?s)\{noformat\}(.*?)\{noformat\}`)
	wikiPlaceholderPattern   = "\x00WIKICODE%d\x00"
)

// extractWikiCodeBlocks lifts {code}/{noformat} blocks out before any
// other conversion runs, so list/header/character-style regexes never see
// — and never mangle — literal code contents ("lift out, convert,
// reinsert verbatim"; HTMLToWiki needs no such step, see its doc).
func extractWikiCodeBlocks(text string) ([]string, string) {
	var blocks []string

	replace := func(lang, body string) string {
		body = strings.Trim(body, "\n")
		rendered := "```" + lang + "\n" + body + "\n```"
		idx := len(blocks)
		blocks = append(blocks, rendered)
		return fmt.Sprintf(wikiPlaceholderPattern, idx)
	}

	text = wikiCodeBlockPattern.ReplaceAllStringFunc(text, func(m string) string {
		sub := wikiCodeBlockPattern.FindStringSubmatch(m)
		return replace(sub[1], sub[2])
	})
	text = wikiNoformatBlockPattern.ReplaceAllStringFunc(text, func(m string) string {
		sub := wikiNoformatBlockPattern.FindStringSubmatch(m)
		return replace("", sub[1])
	})

	return blocks, text
}

func restoreWikiCodeBlocks(text string, blocks []string) string {
	for i, b := range blocks {
		text = strings.ReplaceAll(text, fmt.Sprintf(wikiPlaceholderPattern, i), b)
	}
	return text
}

var wikiQuotePattern = regexp.MustCompile(`(?s)\{quote\}(.*?)\{quote\}`)

// convertWikiQuotes renders {quote}…{quote} panels as markdown
// blockquotes, one "> " per contained line.
func convertWikiQuotes(text string) string {
	return wikiQuotePattern.ReplaceAllStringFunc(text, func(m string) string {
		sub := wikiQuotePattern.FindStringSubmatch(m)
		var out []string
		for _, line := range strings.Split(strings.Trim(sub[1], "\n"), "\n") {
			out = append(out, "> "+line)
		}
		return strings.Join(out, "\n")
	})
}

var (
	wikiHeaderPattern = regexp.MustCompile(`^h([1-6])\.\s*(.*)$`)
	wikiListPattern   = regexp.MustCompile(`^([*#]+)\s+(.*)$`)
)

// convertWikiLine applies the per-line structural and inline conversions:
// headers, list markers (bullet depth by asterisk count, two spaces per
// level; numbered lists likewise), then character-style and link/image
// inline substitutions.
func convertWikiLine(line string) string {
	if m := wikiHeaderPattern.FindStringSubmatch(line); m != nil {
		level, _ := strconv.Atoi(m[1])
		return strings.Repeat("#", level) + " " + convertWikiInline(m[2])
	}
	if m := wikiListPattern.FindStringSubmatch(line); m != nil {
		marker := m[1]
		depth := len(marker) - 1
		indent := strings.Repeat("  ", depth)
		bullet := "-"
		if marker[len(marker)-1] == '#' {
			bullet = "1."
		}
		return indent + bullet + " " + convertWikiInline(m[2])
	}
	return convertWikiInline(line)
}

var (
	wikiColorPattern  = regexp.MustCompile(`\{color:([^}]+)\}(.*?)\{color\}`)
	wikiMonoPattern   = regexp.MustCompile(`\{\{([^}]+)\}\}`)
	wikiImagePattern  = regexp.MustCompile(`!([^|!\s]+)(?:\|([^!]*))?!`)
	wikiNamedLink     = regexp.MustCompile(`\[([^|\]]+)\|([^\]]+)\]`)
	wikiSimpleLink    = regexp.MustCompile(`\[([a-zA-Z][a-zA-Z0-9+.-]*://[^\]]+)\]`)
	wikiBoldPattern   = regexp.MustCompile(`\*([^*\n]+)\*`)
	wikiStrikePattern = regexp.MustCompile(`(^|\s)-([^\s-][^-\n]*?)-(\s|$)`)
	wikiInsertPattern = regexp.MustCompile(`\+([^+\n]+)\+`)
	wikiSuperPattern  = regexp.MustCompile(`\^([^^\n]+)\^`)
	wikiSubPattern    = regexp.MustCompile(`~([^~\n]+)~`)
)

// convertWikiInline applies the character-style, image and link
// conversions listed in spec §4.1 to one line (or one header/list item's
// remainder) of wiki text. Monospace, links and images are converted
// before the bold/strike/insert/super/sub patterns; the text inside a
// converted monospace span is not protected from those later patterns,
// so `{{*foo*}}` becomes `**foo**` in backticks.
func convertWikiInline(s string) string {
	s = wikiColorPattern.ReplaceAllString(s, `<span style="color:$1">$2</span>`)
	s = wikiMonoPattern.ReplaceAllString(s, "`$1`")

	s = wikiNamedLink.ReplaceAllString(s, `[$1]($2)`)
	s = wikiSimpleLink.ReplaceAllString(s, `<$1>`)

	s = wikiImagePattern.ReplaceAllStringFunc(s, func(m string) string {
		sub := wikiImagePattern.FindStringSubmatch(m)
		alt, src := sub[1], sub[2]
		if src == "" {
			alt, src = "", alt
		}
		return "![" + alt + "](" + src + ")"
	})

	s = wikiBoldPattern.ReplaceAllString(s, `**$1**`)
	s = wikiStrikePattern.ReplaceAllString(s, `$1~~$2~~$3`)
	s = wikiInsertPattern.ReplaceAllString(s, `++$1++`)
	s = wikiSuperPattern.ReplaceAllString(s, `<sup>$1</sup>`)
	s = wikiSubPattern.ReplaceAllString(s, `<sub>$1</sub>`)

	return s
}

var wikiTableRowPattern = regexp.MustCompile(`^(\|\|?)(.*)\|?$`)

// convertWikiTables finds contiguous runs of `|`/`||`-prefixed lines and
// renders them as markdown tables. A table whose first row uses single
// bars (no header row) gets an injected empty header and separator row
// (spec §4.1).
func convertWikiTables(text string) string {
	lines := strings.Split(text, "\n")
	var out []string

	i := 0
	for i < len(lines) {
		if !isWikiTableRow(lines[i]) {
			out = append(out, lines[i])
			i++
			continue
		}

		start := i
		for i < len(lines) && isWikiTableRow(lines[i]) {
			i++
		}
		out = append(out, renderWikiTableBlock(lines[start:i])...)
	}

	return strings.Join(out, "\n")
}

func isWikiTableRow(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "|")
}

func renderWikiTableBlock(rows []string) []string {
	type row struct {
		cells  []string
		header bool
	}
	var parsed []row
	for _, r := range rows {
		trimmed := strings.TrimSpace(r)
		header := strings.HasPrefix(trimmed, "||")
		sep := "|"
		if header {
			sep = "||"
		}
		trimmed = strings.TrimPrefix(trimmed, sep)
		trimmed = strings.TrimSuffix(trimmed, sep)
		var cells []string
		for _, c := range strings.Split(trimmed, sep) {
			cells = append(cells, strings.TrimSpace(convertWikiInline(c)))
		}
		parsed = append(parsed, row{cells: cells, header: header})
	}

	if len(parsed) == 0 {
		return nil
	}

	var out []string
	width := len(parsed[0].cells)

	if !parsed[0].header {
		emptyHeader := make([]string, width)
		out = append(out, "| "+strings.Join(emptyHeader, " | ")+" |")
		out = append(out, separatorRow(width))
		for _, r := range parsed {
			out = append(out, "| "+strings.Join(r.cells, " | ")+" |")
		}
		return out
	}

	out = append(out, "| "+strings.Join(parsed[0].cells, " | ")+" |")
	out = append(out, separatorRow(width))
	for _, r := range parsed[1:] {
		out = append(out, "| "+strings.Join(r.cells, " | ")+" |")
	}
	return out
}

func separatorRow(width int) string {
	cells := make([]string, width)
	for i := range cells {
		cells[i] = "---"
	}
	return "| " + strings.Join(cells, " | ") + " |"
}
