// Copyright (c) 2020 Shivaram Lingamneni <slingamn@cs.stanford.edu>
// Copyright (c) 2024 The Flex Authors
// released under the MIT license

package utils

import (
	"bytes"
	"regexp"
	"regexp/syntax"
	"strings"
)

// yet another glob implementation in Go

func addRegexp(buf *bytes.Buffer, glob string) (err error) {
	for _, r := range glob {
		switch r {
		case '*':
			buf.WriteString(".*")
		case '?':
			buf.WriteString(".")
		case 0xFFFD:
			return &syntax.Error{Code: syntax.ErrInvalidUTF8, Expr: glob}
		default:
			buf.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	return
}

// CompileMasks compiles a set of globs into a single alternation, so that
// testing an address against a whole ban list is one regexp evaluation.
func CompileMasks(masks []string) (result *regexp.Regexp, err error) {
	var buf bytes.Buffer
	buf.WriteString("(?i)^(")
	for i, mask := range masks {
		if i != 0 {
			buf.WriteByte('|')
		}
		err = addRegexp(&buf, mask)
		if err != nil {
			return
		}
	}
	buf.WriteString(")$")
	return regexp.Compile(buf.String())
}

// HasWildcards reports whether `glob` contains any wildcard characters.
func HasWildcards(glob string) bool {
	return strings.ContainsAny(glob, "*?")
}
