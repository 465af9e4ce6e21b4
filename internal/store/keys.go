package store

import "strings"

// Key joins parts with "/" into a key: Key("acct", id) -> "acct/<id>".
func Key(parts ...string) []byte {
	return []byte(strings.Join(parts, "/"))
}

// Prefix is Key with a trailing separator, so Prefix("acct") does not match
// keys of a sibling table such as "acctnum/...".
func Prefix(parts ...string) []byte {
	return []byte(strings.Join(parts, "/") + "/")
}

// LastPart returns the segment after the final "/" of key.
func LastPart(key []byte) string {
	s := string(key)
	if i := strings.LastIndexByte(s, '/'); i >= 0 {
		return s[i+1:]
	}
	return s
}
