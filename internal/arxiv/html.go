// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package arxiv

import "strings"

// htmlText strips markup from an HTML document and returns readable
// plain text: tags removed, script/style contents dropped, entities for
// the common escapes decoded, runs of blank lines collapsed. The output
// only feeds model prompts, so faithful structure is not required.
func htmlText(html string) string {
	var b strings.Builder
	b.Grow(len(html) / 2)

	inTag := false
	skipUntil := "" // closing tag whose contents are dropped

	i := 0
	for i < len(html) {
		c := html[i]

		if skipUntil != "" {
			if c == '<' && hasTagAt(html, i, skipUntil) {
				i += len(skipUntil) + 3 // "</" + name + ">"
				skipUntil = ""
				continue
			}
			i++
			continue
		}

		switch {
		case c == '<':
			lower := lowerTagAt(html, i)
			switch lower {
			case "script", "style":
				skipUntil = lower
				i = skipTag(html, i)
				continue
			case "p", "div", "br", "h1", "h2", "h3", "h4", "li", "tr":
				b.WriteByte('\n')
			}
			inTag = true
			i++
		case c == '>':
			inTag = false
			i++
		default:
			if !inTag {
				b.WriteByte(c)
			}
			i++
		}
	}

	text := b.String()
	for old, repl := range map[string]string{
		"&amp;": "&", "&lt;": "<", "&gt;": ">", "&quot;": `"`, "&#39;": "'", "&nbsp;": " ",
	} {
		text = strings.ReplaceAll(text, old, repl)
	}

	// Collapse whitespace: trim each line, drop runs of empty lines.
	var lines []string
	empty := 0
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			empty++
			if empty > 1 {
				continue
			}
		} else {
			empty = 0
		}
		lines = append(lines, line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// lowerTagAt returns the lowercase tag name starting at the '<' at i,
// or "" if none.
func lowerTagAt(html string, i int) string {
	i++ // past '<'
	start := i
	for i < len(html) {
		c := html[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			i++
			continue
		}
		break
	}
	return strings.ToLower(html[start:i])
}

// hasTagAt reports whether html[i:] begins with the closing tag </name>.
func hasTagAt(html string, i int, name string) bool {
	closing := "</" + name + ">"
	if len(html)-i < len(closing) {
		return false
	}
	return strings.EqualFold(html[i:i+len(closing)], closing)
}

// skipTag advances past the tag starting at the '<' at i.
func skipTag(html string, i int) int {
	for i < len(html) && html[i] != '>' {
		i++
	}
	if i < len(html) {
		i++
	}
	return i
}
