// Package vocab provides fast multi-keyword scanning over cell text using
// the Aho-Corasick algorithm, so the sheet classifier, header locator, and
// row classifier can each test a cell against dozens of vocabulary tokens
// in a single pass instead of looping over substrings.
package vocab

import (
	"strings"
	"sync"

	"github.com/cloudflare/ahocorasick"
)

// Matcher scans normalized (uppercased) text for any of a fixed set of
// tokens and reports which ones hit.
type Matcher struct {
	mu      sync.RWMutex
	tokens  []string
	matcher *ahocorasick.Matcher
}

// NewMatcher builds a Matcher over tokens. Tokens are matched
// case-insensitively; duplicates and empty strings are dropped.
func NewMatcher(tokens []string) *Matcher {
	m := &Matcher{}
	m.Build(tokens)
	return m
}

// Build (re)constructs the underlying trie. Safe to call again if the
// vocabulary changes at runtime (e.g. after loading a user's config).
func (m *Matcher) Build(tokens []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[string]bool, len(tokens))
	clean := make([]string, 0, len(tokens))
	for _, t := range tokens {
		up := strings.ToUpper(strings.TrimSpace(t))
		if up == "" || seen[up] {
			continue
		}
		seen[up] = true
		clean = append(clean, up)
	}

	m.tokens = clean
	if len(clean) == 0 {
		m.matcher = nil
		return
	}

	patterns := make([][]byte, len(clean))
	for i, t := range clean {
		patterns[i] = []byte(t)
	}
	m.matcher = ahocorasick.NewMatcher(patterns)
}

// MatchAny reports whether any vocabulary token appears in text.
func (m *Matcher) MatchAny(text string) bool {
	return len(m.Matches(text)) > 0
}

// Matches returns every vocabulary token found in text, in token order
// (not position order — Aho-Corasick reports one hit per matched
// pattern, not per occurrence).
func (m *Matcher) Matches(text string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.matcher == nil {
		return nil
	}

	hits := m.matcher.Match([]byte(strings.ToUpper(text)))
	if len(hits) == 0 {
		return nil
	}

	out := make([]string, 0, len(hits))
	for _, idx := range hits {
		if idx >= 0 && idx < len(m.tokens) {
			out = append(out, m.tokens[idx])
		}
	}
	return out
}

// Count returns the number of distinct tokens matched in text.
func (m *Matcher) Count(text string) int {
	return len(m.Matches(text))
}
