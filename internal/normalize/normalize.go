package normalize

import (
	"sort"
	"strings"
)

// Email returns a normalized form of an email address suitable for
// storage and comparisons. Normalization currently trims surrounding
// whitespace and lower-cases the address.
func Email(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}

// ID returns a user identity in its stored form. Identities are opaque
// hex strings, so only surrounding whitespace is removed and the value is
// lower-cased to match ObjectID.Hex output.
func ID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// Pair returns both identities normalized and sorted so that (a, b) and
// (b, a) produce the same slice.
func Pair(a, b string) []string {
	p := []string{ID(a), ID(b)}
	sort.Strings(p)
	return p
}

// PairKey is the canonical key of an unordered participant pair.
func PairKey(a, b string) string {
	return strings.Join(Pair(a, b), ":")
}
