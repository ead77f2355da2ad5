package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const maxSlugBase = 60

// Slugify lowercases s, strips accents and joins the remaining letters and
// digits with single hyphens.
func Slugify(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	plain, _, err := transform.String(t, s)
	if err != nil {
		plain = s
	}

	var b strings.Builder
	hyphen := false
	for _, r := range strings.ToLower(plain) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
			hyphen = false
		case b.Len() > 0 && !hyphen:
			b.WriteByte('-')
			hyphen = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// SlugBase builds the human-readable part of a record slug from the client
// name and, when known, the event date.
func SlugBase(clientName string, eventDate *time.Time) string {
	base := Slugify(clientName)
	if len(base) > maxSlugBase {
		base = strings.TrimRight(base[:maxSlugBase], "-")
	}
	if base == "" {
		base = "documento"
	}
	if eventDate != nil && !eventDate.IsZero() {
		base += "-" + eventDate.Format("2006-01-02")
	}
	return base
}

// uniqueSlug returns base, or base-N for the smallest N >= 2 not in use.
func uniqueSlug(ctx context.Context, store RecordStore, base, exceptID string) (string, error) {
	candidate := base
	for n := 2; ; n++ {
		used, err := store.SlugInUse(ctx, candidate, exceptID)
		if err != nil {
			return "", fmt.Errorf("check slug %s: %w", candidate, err)
		}
		if !used {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, n)
	}
}
