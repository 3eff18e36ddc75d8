package ranking

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/barberfinder/internal/model"
)

// matcher tests providers against a text query. A nil matcher matches
// everything. Casers and transformers are stateful, so each Rank call builds
// its own matcher.
type matcher struct {
	needle string
	caser  cases.Caser
	strip  transform.Transformer
}

func newMatcher(query string, foldDiacritics bool) *matcher {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	m := &matcher{caser: cases.Fold()}
	if foldDiacritics {
		m.strip = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	}
	m.needle = m.normalize(query)
	return m
}

func (m *matcher) matches(p model.Provider) bool {
	if m == nil {
		return true
	}
	return strings.Contains(m.normalize(p.Name), m.needle) ||
		strings.Contains(m.normalize(p.Address), m.needle)
}

func (m *matcher) normalize(s string) string {
	s = m.caser.String(s)
	if m.strip != nil {
		if out, _, err := transform.String(m.strip, s); err == nil {
			s = out
		}
	}
	return s
}
