// Copyright (c) 2024 The Flex Authors
// released under the MIT license

// Package masks implements wildcard client address masks of the form
// nick!ident@host.
package masks

import (
	"strings"
	"sync"

	"github.com/ergochat/irc-go/ircmsg"
	"github.com/gobwas/glob"
)

const (
	// Wildcard stands in for any omitted segment.
	Wildcard = "*"
)

// Mask is a parsed nick!ident@host pattern. Every segment is non-empty;
// omitted segments are Wildcard.
type Mask struct {
	Nick  string
	Ident string
	Host  string

	compiled *compiledMask
}

type compiledMask struct {
	once    sync.Once
	matcher glob.Glob
}

// All is the mask matching every address.
var All = Parse(Wildcard)

// Parse parses a full or partial mask. It never fails: missing or empty
// segments become wildcards, so `*`, `!`, `@`, `!@`, `@!` and the empty
// string all yield *!*@*.
//
//	nick         -> nick!*@*
//	nick!        -> nick!*@*
//	nick!ident@  -> nick!ident@*
//	!ident@host  -> *!ident@host
//	@host        -> *!*@host
func Parse(text string) (mask Mask) {
	text = strings.TrimSpace(text)
	// `@!` would otherwise put `!` into the host segment
	if text == "@!" {
		text = ""
	}
	// the parse only fails on empty input, which is the all-wildcard mask
	nuh, _ := ircmsg.ParseNUH(text)
	return New(nuh.Name, nuh.User, nuh.Host)
}

// New assembles a mask from its segments, normalizing empty ones.
func New(nick, ident, host string) Mask {
	return Mask{
		Nick:     orWildcard(nick),
		Ident:    orWildcard(ident),
		Host:     orWildcard(host),
		compiled: new(compiledMask),
	}
}

func orWildcard(segment string) string {
	if segment == "" {
		return Wildcard
	}
	return segment
}

// String returns the canonical nick!ident@host text of the mask.
func (mask Mask) String() string {
	var out strings.Builder
	out.Grow(len(mask.Nick) + len(mask.Ident) + len(mask.Host) + 2)
	out.WriteString(orWildcard(mask.Nick))
	out.WriteByte('!')
	out.WriteString(orWildcard(mask.Ident))
	out.WriteByte('@')
	out.WriteString(orWildcard(mask.Host))
	return out.String()
}

// NUH returns the mask's segments as an irc-go source.
func (mask Mask) NUH() ircmsg.NUH {
	return ircmsg.NUH{Name: orWildcard(mask.Nick), User: orWildcard(mask.Ident), Host: orWildcard(mask.Host)}
}

// Equal compares masks by their canonical text, case-insensitively.
func (mask Mask) Equal(other Mask) bool {
	return strings.EqualFold(mask.String(), other.String())
}

// IsAll returns whether the mask matches every address.
func (mask Mask) IsAll() bool {
	return mask.String() == "*!*@*"
}

// Match reports whether address (a nick!ident@host string) matches the mask.
// `*` matches any run of characters and `?` any single character; the
// comparison ignores case.
func (mask Mask) Match(address string) bool {
	if mask.compiled == nil {
		// zero Mask, or one built by hand: compile without caching
		return compile(mask.String()).Match(strings.ToLower(address))
	}
	c := mask.compiled
	c.once.Do(func() {
		c.matcher = compile(mask.String())
	})
	return c.matcher.Match(strings.ToLower(address))
}

// compile translates an IRC glob to a gobwas glob, quoting everything except
// the two IRC wildcards, since nicks may legitimately contain [ ] { } \.
func compile(pattern string) glob.Glob {
	var buf strings.Builder
	var literal strings.Builder
	flush := func() {
		if literal.Len() != 0 {
			buf.WriteString(glob.QuoteMeta(literal.String()))
			literal.Reset()
		}
	}
	for _, r := range strings.ToLower(pattern) {
		switch r {
		case '*', '?':
			flush()
			buf.WriteRune(r)
		default:
			literal.WriteRune(r)
		}
	}
	flush()
	g, err := glob.Compile(buf.String())
	if err != nil {
		// quoting makes this unreachable; fail closed
		return nothing{}
	}
	return g
}

type nothing struct{}

func (nothing) Match(string) bool { return false }

// Address builds the nick!ident@host text for a concrete client.
func Address(nick, ident, host string) string {
	return nick + "!" + ident + "@" + host
}
