// Package iphash turns a raw network address into a stable correlation token
// so punishments can be matched by address without keeping the address itself.
//
// The token is a plain SHA-256 digest. Anyone able to enumerate candidate
// addresses can recover the input; it is a correlation key, not a secret.
package iphash

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Hash returns the lowercase hex SHA-256 of the trimmed address.
// Blank input yields ("", false).
func Hash(ip string) (string, bool) {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return "", false
	}
	sum := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(sum[:]), true
}

// Of is Hash without the presence flag, for struct literals.
func Of(ip string) string {
	h, _ := Hash(ip)
	return h
}
