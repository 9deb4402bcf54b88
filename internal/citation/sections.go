// Package citation attaches map and code citations to resolution results.
//
// Code citations are backed by a flat JSON snippet cache keyed by source
// document and section number. Plain-text code documents can be indexed
// into the cache; other formats must be pre-extracted.
package citation

import (
	"regexp"
	"sort"
	"strings"
)

// sectionPattern matches municipal code section numbers such as §25-2-492.
var sectionPattern = regexp.MustCompile(`§\d+-\d+-\d+`)

// DefaultContextLines is how many lines after a section heading a snippet keeps.
const DefaultContextLines = 10

// FindSections returns the distinct section citations in text, sorted.
func FindSections(text string) []string {
	seen := make(map[string]struct{})
	for _, m := range sectionPattern.FindAllString(text, -1) {
		seen[m] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// ExtractSection returns the first line mentioning citation plus up to
// contextLines following lines.
func ExtractSection(text, citation string, contextLines int) (string, bool) {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if !strings.Contains(line, citation) {
			continue
		}
		end := min(i+1+contextLines, len(lines))
		return strings.Join(lines[i:end], "\n"), true
	}
	return "", false
}

// IndexText extracts a snippet for every section cited in text.
func IndexText(text string, contextLines int) map[string]string {
	sections := make(map[string]string)
	for _, c := range FindSections(text) {
		if snippet, ok := ExtractSection(text, c, contextLines); ok {
			sections[c] = snippet
		}
	}
	return sections
}
