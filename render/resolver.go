package render

import (
	"html"
	"strings"
)

// EntryStatus says how a placeholder was resolved.
type EntryStatus string

const (
	// StatusResolved is a static variable with a value.
	StatusResolved EntryStatus = "resolved"
	// StatusEmpty is a known optional variable that is legitimately empty.
	StatusEmpty EntryStatus = "empty"
	// StatusUnknown is a well-formed placeholder no variable answers to. It
	// resolves to the empty string but is reported separately.
	StatusUnknown EntryStatus = "unknown"
	// StatusDynamic is a block resolved later by the BlockFetcher.
	StatusDynamic EntryStatus = "dynamic"
	// StatusMalformed is left verbatim in the output.
	StatusMalformed EntryStatus = "malformed"
)

// Entry is one placeholder occurrence and its resolution.
type Entry struct {
	Segment Segment
	Status  EntryStatus
	Value   string
	Detail  string
}

// ResolvedContent is the parsed template with every placeholder resolved,
// except dynamic blocks which carry StatusDynamic until the renderer fills
// them.
type ResolvedContent struct {
	Segments []Segment
	Entries  map[int]*Entry
}

// Tokens returns the entries in template order.
func (rc ResolvedContent) Tokens() []*Entry {
	out := make([]*Entry, 0, len(rc.Entries))
	for i := range rc.Segments {
		if e, ok := rc.Entries[i]; ok {
			out = append(out, e)
		}
	}
	return out
}

// ByStatus returns the raw text of every entry with the given status.
func (rc ResolvedContent) ByStatus(status EntryStatus) []string {
	var out []string
	for _, e := range rc.Tokens() {
		if e.Status == status {
			out = append(out, e.Segment.Raw)
		}
	}
	return out
}

// Assemble writes the document body. Dynamic entries use the value stored on
// them; text and malformed segments are copied unchanged.
func (rc ResolvedContent) Assemble() string {
	var b strings.Builder
	for i, seg := range rc.Segments {
		e, ok := rc.Entries[i]
		if !ok {
			b.WriteString(seg.Raw)
			continue
		}
		switch e.Status {
		case StatusMalformed:
			b.WriteString(seg.Raw)
		default:
			b.WriteString(e.Value)
		}
	}
	return b.String()
}

// Resolver maps static placeholders to values. It is pure: the same template
// and source always resolve to the same content.
type Resolver struct {
	Format Formatter
}

// NewResolver returns a Resolver bound to f.
func NewResolver(f Formatter) Resolver {
	return Resolver{Format: f}
}

// Resolve parses tmpl and resolves every static placeholder against src.
func (r Resolver) Resolve(tmpl string, src Source) ResolvedContent {
	segs := Parse(tmpl)
	vars := src.Variables(r.Format)
	rc := ResolvedContent{Segments: segs, Entries: map[int]*Entry{}}

	for i, seg := range segs {
		switch seg.Kind {
		case SegmentText:
			continue
		case SegmentMalformed:
			rc.Entries[i] = &Entry{Segment: seg, Status: StatusMalformed, Detail: seg.Reason}
			continue
		}

		if IsBlock(seg.Name) {
			rc.Entries[i] = &Entry{Segment: seg, Status: StatusDynamic}
			continue
		}

		if seg.Name == calcToken {
			v, err := evalCalc(seg, src.Record(), r.Format)
			if err != nil {
				rc.Entries[i] = &Entry{Segment: seg, Status: StatusMalformed, Detail: err.Error()}
				continue
			}
			rc.Entries[i] = &Entry{Segment: seg, Status: StatusResolved, Value: html.EscapeString(v)}
			continue
		}

		v, ok := vars[seg.Name]
		switch {
		case !ok:
			rc.Entries[i] = &Entry{Segment: seg, Status: StatusUnknown}
		case v.Text == "" && v.Optional:
			rc.Entries[i] = &Entry{Segment: seg, Status: StatusEmpty}
		case v.Markup:
			rc.Entries[i] = &Entry{Segment: seg, Status: StatusResolved, Value: v.Text}
		default:
			rc.Entries[i] = &Entry{Segment: seg, Status: StatusResolved, Value: html.EscapeString(v.Text)}
		}
	}

	return rc
}
