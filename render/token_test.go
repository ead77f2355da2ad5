package render

import (
	"strings"
	"testing"
)

func joinRaw(segs []Segment) string {
	var b strings.Builder
	for _, s := range segs {
		b.WriteString(s.Raw)
	}
	return b.String()
}

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		kinds []SegmentKind
		names []string
	}{
		{"plain text", "<p>Olá</p>", []SegmentKind{SegmentText}, nil},
		{"single token", "<p>{{client_name}}</p>", []SegmentKind{SegmentText, SegmentPlaceholder, SegmentText}, []string{"client_name"}},
		{"spaces and case", "{{ Client_Name }}", []SegmentKind{SegmentPlaceholder}, []string{"client_name"}},
		{"adjacent tokens", "{{a}}{{b}}", []SegmentKind{SegmentPlaceholder, SegmentPlaceholder}, []string{"a", "b"}},
		{"options", "{{gallery:6:grid:3}}", []SegmentKind{SegmentPlaceholder}, []string{"gallery"}},
		{"unterminated at end", "<p>{{client_name</p>", []SegmentKind{SegmentText, SegmentMalformed}, nil},
		{"nested open", "{{client_name {{event_type}}", []SegmentKind{SegmentMalformed, SegmentPlaceholder}, []string{"event_type"}},
		{"invalid name", "{{client name}}", []SegmentKind{SegmentMalformed}, nil},
		{"empty body", "{{}}", []SegmentKind{SegmentMalformed}, nil},
		{"digit first", "{{1st}}", []SegmentKind{SegmentMalformed}, nil},
		{"lone close", "a }} b", []SegmentKind{SegmentText}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			segs := Parse(tt.input)
			if joinRaw(segs) != tt.input {
				t.Fatalf("Segments do not reproduce input: %q", joinRaw(segs))
			}
			if len(segs) != len(tt.kinds) {
				t.Fatalf("Expected %d segments, got %d: %+v", len(tt.kinds), len(segs), segs)
			}
			var names []string
			for i, s := range segs {
				if s.Kind != tt.kinds[i] {
					t.Errorf("Segment %d: expected kind %d, got %d", i, tt.kinds[i], s.Kind)
				}
				if s.Kind == SegmentPlaceholder {
					names = append(names, s.Name)
				}
			}
			if strings.Join(names, ",") != strings.Join(tt.names, ",") {
				t.Errorf("Expected names %v, got %v", tt.names, names)
			}
		})
	}
}

func TestParseOptions(t *testing.T) {
	segs := Parse("{{testimonials: 3 : carousel : notext}}")
	if len(segs) != 1 {
		t.Fatalf("Expected one segment, got %d", len(segs))
	}
	got := strings.Join(segs[0].Options, "|")
	if got != "3|carousel|notext" {
		t.Errorf("Expected trimmed options, got %q", got)
	}
}

func TestPlaceholders(t *testing.T) {
	got := Placeholders("{{client_name}} {{event_date}} {{client_name}} {{broken")
	if strings.Join(got, ",") != "client_name,event_date" {
		t.Errorf("Unexpected placeholders %v", got)
	}
}
