package redis

import "strings"

// DefaultPrefix keeps every key in one cluster hash slot, which multi-key
// scripts require.
const DefaultPrefix = "{creditgate}:"

// memberSep separates email and id in index members. It sorts before any
// printable byte, so members order by email, then id.
const memberSep = "\x00"

type keys struct {
	prefix string
}

func (k keys) principal(id string) string { return k.prefix + "principal:" + id }
func (k keys) email(email string) string  { return k.prefix + "principal:email:" + email }
func (k keys) balance(id string) string   { return k.prefix + "balance:" + id }
func (k keys) index() string              { return k.prefix + "principals" }

func indexMember(email, id string) string { return email + memberSep + id }

func parseMember(m string) (email, id string, ok bool) {
	return strings.Cut(m, memberSep)
}
