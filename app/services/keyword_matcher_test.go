package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeywordMatcher_Contains(t *testing.T) {
	m := NewKeywordMatcher()

	tests := []struct {
		name    string
		text    string
		keyword string
		want    bool
	}{
		{"exact", "yes", "yes", true},
		{"case insensitive", "YES please", "yes", true},
		{"inside sentence", "ok, yes!", "yes", true},
		{"substring is not a word", "yesterday", "yes", false},
		{"empty keyword", "anything", "", false},
		{"blank keyword", "anything", "   ", false},
		{"metacharacters are literal", "will attend (+1)", "(+1)", true},
		{"dot is not a wildcard", "axb", "a.b", false},
		{"dot matches itself", "reply a.b now", "a.b", true},
		{"multi word keyword", "i will attend the party", "will attend", true},
		{"unicode word edge", "हाँ", "हाँ", true},
		{"unicode substring", "नहीं", "न", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Contains(tt.text, tt.keyword))
		})
	}
}

func TestKeywordMatcher_CachesPerKeyword(t *testing.T) {
	m := NewKeywordMatcher()
	assert.True(t, m.Contains("Yes", "YES"))
	assert.True(t, m.Contains("yes", "yes"))
	assert.Len(t, m.cache, 1)
}

func TestKeywordMatcher_Equals(t *testing.T) {
	m := NewKeywordMatcher()
	assert.True(t, m.Equals("  Hello Wedding ", "hello wedding"))
	assert.False(t, m.Equals("hello wedding please", "hello wedding"))
	assert.False(t, m.Equals("", ""))
}

func TestExtractQuantity(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"2", "2"},
		{"we are 3 people", "3"},
		{"02", "2"},
		{"0", "0"},
		{"All of us", "all"},
		{"ball", ""},
		{"yes", ""},
		{"4 or all", "4"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractQuantity(tt.text))
		})
	}
}
