package services

import (
	"regexp"
	"strings"
	"sync"
)

// KeywordMatcher matches operator configured keywords against chat text.
// Keywords are literal: regex metacharacters in them carry no meaning.
type KeywordMatcher struct {
	mu    sync.RWMutex
	cache map[string]*regexp.Regexp
}

func NewKeywordMatcher() *KeywordMatcher {
	return &KeywordMatcher{cache: make(map[string]*regexp.Regexp)}
}

// Contains reports whether keyword occurs in text as a whole word, ignoring case.
// An empty keyword never matches.
func (m *KeywordMatcher) Contains(text, keyword string) bool {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return false
	}
	return m.pattern(keyword).MatchString(text)
}

// Equals reports whether text is exactly keyword, ignoring case and surrounding space
func (m *KeywordMatcher) Equals(text, keyword string) bool {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(text), keyword)
}

func (m *KeywordMatcher) pattern(keyword string) *regexp.Regexp {
	key := strings.ToLower(keyword)

	m.mu.RLock()
	re, ok := m.cache[key]
	m.mu.RUnlock()
	if ok {
		return re
	}

	// \b is ASCII only in RE2, so word edges are spelled out for unicode text
	re = regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{M}\p{N}_])` + regexp.QuoteMeta(keyword) + `(?:$|[^\p{L}\p{M}\p{N}_])`)

	m.mu.Lock()
	m.cache[key] = re
	m.mu.Unlock()
	return re
}

var quantityPattern = regexp.MustCompile(`\d+`)
var allWordPattern = regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{M}\p{N}_])all(?:$|[^\p{L}\p{M}\p{N}_])`)

// ExtractQuantity returns the first run of digits in text, else "all" when the
// word appears, else "".
func ExtractQuantity(text string) string {
	if q := quantityPattern.FindString(text); q != "" {
		if q = strings.TrimLeft(q, "0"); q == "" {
			return "0"
		}
		return q
	}
	if allWordPattern.MatchString(text) {
		return "all"
	}
	return ""
}
