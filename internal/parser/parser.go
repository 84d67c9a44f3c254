// Package parser extracts frontmatter, wikilinks, and tags from Markdown
// content. Parsing is tolerant: a malformed frontmatter block or a single
// malformed wikilink downgrades to a warning on the result and never
// aborts extraction for the rest of the note.
package parser

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Warning kinds.
const (
	WarnFrontmatter   = "frontmatter"
	WarnMalformedLink = "malformed-link"
)

// Warning records a recovered parse problem.
type Warning struct {
	Kind   string
	Detail string
}

// Ref is one wikilink occurrence in document order.
type Ref struct {
	RawTarget   string
	DisplayText string
	Order       int
}

// Result holds the output of parsing a Markdown file. Tags are folded to
// lower case for indexing; TagsDisplay preserves the first-seen original
// casing at the same positions.
type Result struct {
	Frontmatter map[string]any
	Body        string
	Title       string
	Aliases     []string
	Tags        []string
	TagsDisplay []string
	Refs        []Ref
	Warnings    []Warning
}

// tagRe matches a '#' not preceded by an alphanumeric, followed by tag
// characters. Go's regexp has no lookbehind, so the preceding character is
// captured and checked by position instead.
var tagRe = regexp.MustCompile(`#([A-Za-z0-9/_-]+)`)

// Parse extracts frontmatter, body, wikilinks, and tags from raw Markdown
// bytes. Identical input always yields identical output, including the
// order of Refs (document order) and Tags (first occurrence).
func Parse(data []byte) *Result {
	res := &Result{}

	fm, body, fmWarn := splitFrontmatter(data)
	res.Frontmatter = fm
	res.Body = body
	if fmWarn != nil {
		res.Warnings = append(res.Warnings, *fmWarn)
	}

	res.Title = deriveTitle(fm, body)
	res.Aliases = stringList(fm, "aliases")

	res.Refs, res.Warnings = extractRefs(body, res.Warnings)
	res.Tags, res.TagsDisplay = extractTags(body, fm)

	return res
}

// splitFrontmatter separates a leading YAML frontmatter block (between ---
// delimiter lines) from the Markdown body. Malformed YAML yields empty
// metadata, the full content as body, and a frontmatter warning.
func splitFrontmatter(data []byte) (map[string]any, string, *Warning) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data), nil
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		// No closing delimiter: the whole file is body.
		return nil, string(data), nil
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	var fm map[string]any
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		return nil, string(data), &Warning{
			Kind:   WarnFrontmatter,
			Detail: fmt.Sprintf("invalid YAML frontmatter: %v", err),
		}
	}

	return fm, body, nil
}

// extractRefs scans body for [[Target]] and [[Target|Display]] links. A
// nested "[[" before the closing "]]" invalidates that occurrence only:
// a warning is recorded and scanning resumes at the nested opener, so the
// inner link still gets a chance to parse.
func extractRefs(body string, warnings []Warning) ([]Ref, []Warning) {
	var refs []Ref
	order := 0

	for i := 0; i < len(body); {
		open := strings.Index(body[i:], "[[")
		if open < 0 {
			break
		}
		start := i + open
		inner := start + 2

		closeOff := strings.Index(body[inner:], "]]")
		nestOff := strings.Index(body[inner:], "[[")

		if closeOff < 0 {
			// Unterminated link: the remainder is plain text.
			warnings = append(warnings, Warning{
				Kind:   WarnMalformedLink,
				Detail: fmt.Sprintf("unterminated wikilink at offset %d", start),
			})
			break
		}
		if nestOff >= 0 && nestOff < closeOff {
			// Nested opener inside this link: fail this occurrence and
			// resume at the nested one.
			warnings = append(warnings, Warning{
				Kind:   WarnMalformedLink,
				Detail: fmt.Sprintf("nested wikilink at offset %d", start),
			})
			i = inner + nestOff
			continue
		}

		raw := body[inner : inner+closeOff]
		target := raw
		display := ""
		if p := strings.Index(raw, "|"); p >= 0 {
			target = raw[:p]
			display = strings.TrimSpace(raw[p+1:])
		}
		target = strings.TrimSpace(target)
		if target != "" {
			refs = append(refs, Ref{RawTarget: target, DisplayText: display, Order: order})
			order++
		}
		i = inner + closeOff + 2
	}

	return refs, warnings
}

// extractTags collects tags from the frontmatter "tags" field and inline
// #tags from the body. Tags are folded to lower case and deduplicated in
// first-occurrence order; display casing is kept alongside.
func extractTags(body string, fm map[string]any) (tags, display []string) {
	seen := make(map[string]struct{})

	add := func(raw string) {
		raw = strings.TrimSpace(strings.TrimPrefix(raw, "#"))
		if raw == "" {
			return
		}
		folded := strings.ToLower(raw)
		if _, dup := seen[folded]; dup {
			return
		}
		seen[folded] = struct{}{}
		tags = append(tags, folded)
		display = append(display, raw)
	}

	for _, s := range stringList(fm, "tags") {
		add(s)
	}

	for _, m := range tagRe.FindAllStringSubmatchIndex(body, -1) {
		start := m[0]
		// Skip occurrences preceded by an alphanumeric (URL fragments,
		// "a#b" and the like) and tags with no letter (hex-ish numbers).
		if start > 0 && isAlnum(body[start-1]) {
			continue
		}
		tag := body[m[2]:m[3]]
		if !hasLetter(tag) {
			continue
		}
		add(tag)
	}

	return tags, display
}

func isAlnum(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

func hasLetter(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' {
			return true
		}
	}
	return false
}

// stringList reads a frontmatter key that may be a single string or a
// YAML sequence of strings.
func stringList(fm map[string]any, key string) []string {
	if fm == nil {
		return nil
	}
	raw, ok := fm[key]
	if !ok {
		return nil
	}
	var out []string
	switch v := raw.(type) {
	case string:
		if s := strings.TrimSpace(v); s != "" {
			out = append(out, s)
		}
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				if s = strings.TrimSpace(s); s != "" {
					out = append(out, s)
				}
			}
		}
	}
	return out
}

// deriveTitle returns the frontmatter "title" if present, otherwise the
// first H1 heading, otherwise empty string (callers fall back to the
// filename stem).
func deriveTitle(fm map[string]any, body string) string {
	if fm != nil {
		if t, ok := fm["title"]; ok {
			if s, ok := t.(string); ok && s != "" {
				return s
			}
		}
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}
