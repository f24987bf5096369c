// Copyright (c) 2016 Daniel Oaks <daniel@danieloaks.net>
// Copyright (c) 2024 The Flex Authors
// released under the MIT license

package isupport

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

const (
	maxLastArgLength = 400

	/* Modern: "As the maximum number of message parameters to any reply is 15,
	the maximum number of RPL_ISUPPORT tokens that can be advertised is 13."
	<nickname> [up to 13 parameters] <human-readable trailing>
	*/
	maxParameters = 13

	trailing = ":are supported by this server"
)

var (
	errTokenNotParameter = errors.New("bad isupport token (cannot be sent as IRC parameter)")
	errTokenOctets       = errors.New("bad isupport token (contains forbidden octets)")
	errTokenTooLong      = errors.New("bad isupport token (too long)")
)

// List holds the RPL_ISUPPORT tokens describing the engine's channel
// semantics: casemapping, channel modes, prefixes and limits.
type List struct {
	Tokens      map[string]string
	CachedReply [][]string
}

// NewList returns a new List
func NewList() *List {
	return &List{Tokens: make(map[string]string)}
}

// Add adds an RPL_ISUPPORT token to our internal list
func (il *List) Add(name string, value string) {
	il.Tokens[name] = value
}

// AddInt adds a token with a numeric value; non-positive values are
// advertised without a value, meaning "no limit".
func (il *List) AddInt(name string, value int) {
	if value <= 0 {
		il.AddNoValue(name)
		return
	}
	il.Add(name, strconv.Itoa(value))
}

// AddNoValue adds an RPL_ISUPPORT token that does not have a value
func (il *List) AddNoValue(name string) {
	il.Tokens[name] = ""
}

// Contains returns whether the list already contains a token
func (il *List) Contains(name string) bool {
	_, ok := il.Tokens[name]
	return ok
}

// Get returns a token's value.
func (il *List) Get(name string) (value string, ok bool) {
	value, ok = il.Tokens[name]
	return
}

func tokenString(name, value string) string {
	if value == "" {
		return name
	}
	return name + "=" + value
}

func validateToken(token string) error {
	switch {
	case token == "", token[0] == ':', strings.Contains(token, " "):
		return fmt.Errorf("%w: `%s`", errTokenNotParameter, token)
	case strings.ContainsAny(token, "\n\r\x00"):
		return errTokenOctets
	case len(token) >= maxLastArgLength:
		return fmt.Errorf("%w: `%s`", errTokenTooLong, token)
	}
	return nil
}

// RegenerateCachedReply splits the sorted tokens into reply lines of at
// most 13 parameters and 400 bytes. Invalid tokens are left out and the
// last validation error is returned.
func (il *List) RegenerateCachedReply() (err error) {
	tokens := make([]string, 0, len(il.Tokens))
	for name, value := range il.Tokens {
		token := tokenString(name, value)
		if tokenErr := validateToken(token); tokenErr != nil {
			err = tokenErr
			continue
		}
		tokens = append(tokens, token)
	}
	slices.Sort(tokens)

	il.CachedReply = nil
	var line []string
	var length int
	for _, token := range tokens {
		// +1 for the separating space
		if len(line) == maxParameters || length+len(token)+1 > maxLastArgLength {
			il.CachedReply = append(il.CachedReply, line)
			line, length = nil, 0
		}
		if len(line) > 0 {
			length++
		}
		length += len(token)
		line = append(line, token)
	}
	if len(line) > 0 {
		il.CachedReply = append(il.CachedReply, line)
	}
	return
}

// Lines renders the cached reply as 005 parameter lines addressed to nick.
func (il *List) Lines(nick string) (result []string) {
	for _, tokens := range il.CachedReply {
		result = append(result, nick+" "+strings.Join(tokens, " ")+" "+trailing)
	}
	return
}
