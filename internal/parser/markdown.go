// Package parser turns SOP documents into chunk records ready for
// ingestion: markdown-aware splitting plus extraction of step lines,
// safety notes and lexicon entities.
package parser

import (
	"bufio"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	h1Re      = regexp.MustCompile(`(?m)^#\s+(.+)$`)
	headingRe = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)
)

// MarkdownDoc is a parsed markdown document.
type MarkdownDoc struct {
	Frontmatter map[string]any
	Title       string // frontmatter title, else the first h1
	Content     string // body, frontmatter stripped
	Sections    []Section
}

// Section is one heading with the text below it, up to the next heading.
type Section struct {
	Level   int
	Heading string
	Path    string // heading trail, e.g. "## Setup > ### Jack placement"
	Content string
	Start   int // 1-based line of the heading
	End     int
}

// ParseMarkdown splits a document into frontmatter, title and sections.
// Malformed frontmatter is treated as absent rather than an error.
func ParseMarkdown(content string) *MarkdownDoc {
	doc := &MarkdownDoc{Frontmatter: make(map[string]any)}

	body := content
	if strings.HasPrefix(content, "---\n") {
		if end := strings.Index(content[4:], "\n---"); end > 0 {
			raw := content[4 : 4+end]
			body = strings.TrimPrefix(content[4+end+4:], "\n")
			if err := yaml.Unmarshal([]byte(raw), &doc.Frontmatter); err != nil {
				doc.Frontmatter = make(map[string]any)
			}
		}
	}

	doc.Content = body
	doc.Title = extractTitle(doc.Frontmatter, body)
	doc.Sections = parseSections(body)
	return doc
}

func extractTitle(fm map[string]any, body string) string {
	for _, key := range []string{"title", "name"} {
		if v, ok := fm[key].(string); ok && v != "" {
			return v
		}
	}
	if m := h1Re.FindStringSubmatch(body); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// parseSections walks the body line by line, opening a section at each
// heading and closing the previous one. The heading trail tracks the
// nesting so every section knows its full path.
func parseSections(body string) []Section {
	var (
		sections []Section
		trail    []string
		levels   []int
		open     *Section
		buf      strings.Builder
		line     int
	)

	flush := func(end int) {
		if open == nil {
			return
		}
		open.Content = strings.TrimSpace(buf.String())
		open.End = end
		sections = append(sections, *open)
		buf.Reset()
	}

	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		line++
		text := sc.Text()

		m := headingRe.FindStringSubmatch(text)
		if m == nil {
			if open != nil {
				buf.WriteString(text)
				buf.WriteByte('\n')
			}
			continue
		}
		flush(line - 1)

		level := len(m[1])
		heading := strings.TrimSpace(m[2])
		for len(levels) > 0 && levels[len(levels)-1] >= level {
			trail = trail[:len(trail)-1]
			levels = levels[:len(levels)-1]
		}
		trail = append(trail, m[1]+" "+heading)
		levels = append(levels, level)

		open = &Section{
			Level:   level,
			Heading: heading,
			Path:    strings.Join(trail, " > "),
			Start:   line,
		}
	}
	flush(line)
	return sections
}
