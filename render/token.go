// Package render turns a business record and an HTML/CSS template into a
// finished document.
//
// Templates carry placeholders of the form {{name}} or {{name:opt:opt...}}.
// A small scanner splits the template into text and placeholder segments;
// anything that looks like a placeholder but does not parse is kept verbatim
// as a malformed segment so the surrounding markup is never altered.
package render

import (
	"strings"
)

const (
	openDelim  = "{{"
	closeDelim = "}}"
)

// SegmentKind classifies a piece of a parsed template.
type SegmentKind int

const (
	SegmentText SegmentKind = iota
	SegmentPlaceholder
	SegmentMalformed
)

// Segment is a run of template text or one placeholder.
type Segment struct {
	Kind    SegmentKind
	Raw     string
	Pos     int
	Name    string
	Options []string
	Reason  string
}

// Parse splits tmpl into segments. Concatenating the Raw field of every
// segment always reproduces tmpl exactly.
func Parse(tmpl string) []Segment {
	var segs []Segment
	pos := 0

	for pos < len(tmpl) {
		open := strings.Index(tmpl[pos:], openDelim)
		if open < 0 {
			segs = append(segs, Segment{Kind: SegmentText, Raw: tmpl[pos:], Pos: pos})
			break
		}
		open += pos
		if open > pos {
			segs = append(segs, Segment{Kind: SegmentText, Raw: tmpl[pos:open], Pos: pos})
		}

		bodyStart := open + len(openDelim)
		closeAt := strings.Index(tmpl[bodyStart:], closeDelim)
		reopen := strings.Index(tmpl[bodyStart:], openDelim)

		switch {
		case closeAt < 0:
			segs = append(segs, Segment{Kind: SegmentMalformed, Raw: tmpl[open:], Pos: open, Reason: "unterminated placeholder"})
			return segs
		case reopen >= 0 && reopen < closeAt:
			end := bodyStart + reopen
			segs = append(segs, Segment{Kind: SegmentMalformed, Raw: tmpl[open:end], Pos: open, Reason: "unterminated placeholder"})
			pos = end
			continue
		}

		end := bodyStart + closeAt + len(closeDelim)
		segs = append(segs, parsePlaceholder(tmpl[open:end], tmpl[bodyStart:bodyStart+closeAt], open))
		pos = end
	}

	return segs
}

func parsePlaceholder(raw, body string, pos int) Segment {
	parts := strings.Split(body, ":")
	name := strings.TrimSpace(parts[0])
	if !validName(name) {
		return Segment{Kind: SegmentMalformed, Raw: raw, Pos: pos, Reason: "invalid placeholder name"}
	}

	var opts []string
	for _, p := range parts[1:] {
		p = strings.TrimSpace(p)
		if strings.ContainsAny(p, "{}") {
			return Segment{Kind: SegmentMalformed, Raw: raw, Pos: pos, Reason: "invalid placeholder option"}
		}
		opts = append(opts, p)
	}

	return Segment{Kind: SegmentPlaceholder, Raw: raw, Pos: pos, Name: strings.ToLower(name), Options: opts}
}

func validName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
		case i > 0 && (r == '.' || (r >= '0' && r <= '9')):
		default:
			return false
		}
	}
	return true
}

// Placeholders returns the distinct placeholder names in tmpl in order of
// first appearance.
func Placeholders(tmpl string) []string {
	seen := map[string]bool{}
	var names []string
	for _, seg := range Parse(tmpl) {
		if seg.Kind == SegmentPlaceholder && !seen[seg.Name] {
			seen[seg.Name] = true
			names = append(names, seg.Name)
		}
	}
	return names
}
