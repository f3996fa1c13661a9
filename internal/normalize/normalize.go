// Package normalize derives stable problem identities from free-text titles.
// Titles that differ only in case, punctuation or incidental whitespace map
// to the same identity key ("slug"). All functions are pure.
package normalize

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	nonSlugChars = regexp.MustCompile(`[^\p{L}\p{N}_ -]+`)
	hyphenRuns   = regexp.MustCompile(`-{2,}`)
)

// ForComparison lower-cases and trims title and collapses internal
// whitespace runs to a single space.
func ForComparison(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), " ")
}

// IdentityKey converts a title to its identity key: lower-cased, stripped of
// everything but word characters, whitespace and hyphens, with whitespace
// runs turned into hyphens, hyphen runs collapsed and edge hyphens trimmed.
// Any Unicode space separates words, the same as in ForComparison.
func IdentityKey(title string) string {
	if title == "" {
		return ""
	}
	key := nonSlugChars.ReplaceAllString(ForComparison(title), "")
	return hyphenate(key)
}

// CanonicalKey applies the hyphen rules of IdentityKey to a caller-supplied
// key without stripping other punctuation.
func CanonicalKey(rawKey string) string {
	if rawKey == "" {
		return ""
	}
	return hyphenate(strings.ToLower(rawKey))
}

func hyphenate(s string) string {
	s = strings.Join(strings.Fields(s), "-")
	s = hyphenRuns.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// DisplayTitle rebuilds a human-readable title from an identity key by
// capitalizing every hyphen-separated token. Mid-word casing from the
// original title cannot be recovered.
func DisplayTitle(key string) string {
	tokens := strings.Split(key, "-")
	words := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if tok == "" {
			continue
		}
		r, size := utf8.DecodeRuneInString(tok)
		words = append(words, string(unicode.ToUpper(r))+tok[size:])
	}
	return strings.Join(words, " ")
}

// BestMatch resolves input that may be either a slug-like key or a free-text
// title. It tries the canonicalized input as a key, then the
// comparison-normalized input against titles, then the identity-key form of
// the input. has reports whether a key exists in the index.
func BestMatch(input string, titles map[string]string, has func(key string) bool) (string, bool) {
	if key := CanonicalKey(input); key != "" && has(key) {
		return key, true
	}
	if key, ok := titles[ForComparison(input)]; ok && has(key) {
		return key, true
	}
	if key := IdentityKey(input); key != "" && has(key) {
		return key, true
	}
	return "", false
}
