// Copyright (c) 2024 The Flex Authors
// released under the MIT license

package modes

import (
	"errors"
	"strings"
)

var (
	ErrUnrecognizedSymbol = errors.New("unrecognized access level symbol")
	ErrUnrecognizedLetter = errors.New("unrecognized access level letter")
)

// AccessLevel is a channel rank. Levels are single bits with strictly
// descending values, so they order numerically and combine into AccessLevels.
type AccessLevel uint8

const (
	Vip AccessLevel = 1 << iota
	HalfOperator
	Operator
	AdminOperator
	Owner
)

// AllAccessLevels lists every level in descending order of precedence.
var AllAccessLevels = []AccessLevel{Owner, AdminOperator, Operator, HalfOperator, Vip}

type levelInfo struct {
	letter rune
	symbol rune
	name   string
}

var levelInfos = map[AccessLevel]levelInfo{
	Owner:         {'q', '~', "owner"},
	AdminOperator: {'a', '&', "admin"},
	Operator:      {'o', '@', "operator"},
	HalfOperator:  {'h', '%', "halfop"},
	Vip:           {'v', '+', "vip"},
}

// Bit returns the numeric value of the level.
func (level AccessLevel) Bit() uint8 {
	return uint8(level)
}

// Letter returns the mode letter used to grant the level, e.g. 'o'.
func (level AccessLevel) Letter() rune {
	return levelInfos[level].letter
}

// Symbol returns the prefix displayed before a member's nick, e.g. '@'.
func (level AccessLevel) Symbol() rune {
	return levelInfos[level].symbol
}

// Mode returns the level as a channel mode.
func (level AccessLevel) Mode() Mode {
	return Mode(level.Letter())
}

func (level AccessLevel) String() string {
	if info, ok := levelInfos[level]; ok {
		return info.name
	}
	return "none"
}

// IsValid returns whether level is exactly one of the defined levels.
func (level AccessLevel) IsValid() bool {
	_, ok := levelInfos[level]
	return ok
}

// ParseAccessLevelSymbol parses a membership prefix such as '@'.
func ParseAccessLevelSymbol(symbol rune) (AccessLevel, error) {
	for _, level := range AllAccessLevels {
		if level.Symbol() == symbol {
			return level, nil
		}
	}
	return 0, ErrUnrecognizedSymbol
}

// ParseAccessLevelLetter parses a mode letter such as 'o'.
func ParseAccessLevelLetter(letter rune) (AccessLevel, error) {
	for _, level := range AllAccessLevels {
		if level.Letter() == letter {
			return level, nil
		}
	}
	return 0, ErrUnrecognizedLetter
}

// AccessLevels is the set of levels a member holds. Grants accumulate rather
// than replace, so a member can be Operator and Vip at once.
type AccessLevels uint8

// Has returns whether the set contains level.
func (set AccessLevels) Has(level AccessLevel) bool {
	return set&AccessLevels(level) != 0
}

// Add adds level, returning whether the set changed.
func (set *AccessLevels) Add(level AccessLevel) (changed bool) {
	if set.Has(level) {
		return false
	}
	*set |= AccessLevels(level)
	return true
}

// Remove removes level, returning whether the set changed.
func (set *AccessLevels) Remove(level AccessLevel) (changed bool) {
	if !set.Has(level) {
		return false
	}
	*set &^= AccessLevels(level)
	return true
}

// IsEmpty returns whether no level is held.
func (set AccessLevels) IsEmpty() bool {
	return set == 0
}

// Highest returns the most privileged level held, or false if none is.
func (set AccessLevels) Highest() (level AccessLevel, ok bool) {
	for _, level := range AllAccessLevels {
		if set.Has(level) {
			return level, true
		}
	}
	return 0, false
}

// AtLeast returns whether any held level is at or above minimum.
func (set AccessLevels) AtLeast(minimum AccessLevel) bool {
	highest, ok := set.Highest()
	return ok && highest >= minimum
}

// Levels returns the held levels in descending order.
func (set AccessLevels) Levels() (result []AccessLevel) {
	for _, level := range AllAccessLevels {
		if set.Has(level) {
			result = append(result, level)
		}
	}
	return
}

// Prefixes returns the membership prefixes for the set, highest first.
// Without multi-prefix only the highest one is returned.
func (set AccessLevels) Prefixes(isMultiPrefix bool) string {
	var prefixes strings.Builder
	for _, level := range set.Levels() {
		prefixes.WriteRune(level.Symbol())
		if !isMultiPrefix {
			break
		}
	}
	return prefixes.String()
}

// String returns the mode letters of the set, e.g. "ov".
func (set AccessLevels) String() string {
	var letters strings.Builder
	for _, level := range set.Levels() {
		letters.WriteRune(level.Letter())
	}
	return letters.String()
}

// PrefixToken returns the PREFIX ISUPPORT value, e.g. "(qaohv)~&@%+".
func PrefixToken() string {
	var letters, symbols strings.Builder
	for _, level := range AllAccessLevels {
		letters.WriteRune(level.Letter())
		symbols.WriteRune(level.Symbol())
	}
	return "(" + letters.String() + ")" + symbols.String()
}
