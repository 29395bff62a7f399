// Package idgen produces the short human-presentable punishment codes
// (PBRB-TM-7Q2XK) that moderators quote in appeals.
//
// Codes carry 36^5 (about 60 million) combinations per tag. Uniqueness is not
// guaranteed here; the store's primary key is the backstop.
package idgen

import (
	"crypto/rand"
	"math/big"
	"strings"
)

const (
	alphabet   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	prefix     = "PBRB"
	randomSize = 5
)

// Tag hints at the punishment category inside the code.
type Tag string

const (
	TagNoReason   Tag = "NNR" // reason hidden from the punished player
	TagIndefinite Tag = "NV"
	TagTimed      Tag = "TM"
)

var alphabetSize = big.NewInt(int64(len(alphabet)))

// Generate returns PBRB-<tag>-XXXXX.
func Generate(tag Tag) string {
	var b strings.Builder
	b.Grow(len(prefix) + len(tag) + randomSize + 2)
	b.WriteString(prefix)
	b.WriteByte('-')
	b.WriteString(string(tag))
	b.WriteByte('-')
	for range randomSize {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			// crypto/rand does not fail on supported platforms
			panic("idgen: read random: " + err.Error())
		}
		b.WriteByte(alphabet[n.Int64()])
	}
	return b.String()
}

// TagFor picks the tag the way the issuer does: hidden reason first, then
// permanent versus timed.
func TagFor(noReason, permanent bool) Tag {
	switch {
	case noReason:
		return TagNoReason
	case permanent:
		return TagIndefinite
	default:
		return TagTimed
	}
}

// TagOf extracts the tag from a generated code, or "" for foreign ids.
func TagOf(code string) Tag {
	parts := strings.Split(code, "-")
	if len(parts) != 3 || parts[0] != prefix {
		return ""
	}
	return Tag(parts[1])
}
