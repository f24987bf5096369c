// Copyright (c) 2012-2014 Jeremy Latt
// Copyright (c) 2014-2015 Edmund Huber
// Copyright (c) 2016-2017 Daniel Oaks <daniel@danieloaks.net>
// Copyright (c) 2024 The Flex Authors
// released under the MIT license

package modes

import (
	"fmt"
	"slices"
	"strings"
)

var (
	// SettingModes are the channel flags stored in a channel's settings.
	SettingModes = Modes{
		InviteOnly, Key, UserLimit, Moderated, NoOutside, OpOnlyTopic, OperOnly, Secret,
	}

	// ListModes are the channel modes backed by a mask list.
	ListModes = Modes{
		BanMask, ExceptMask, InviteMask,
	}

	// SupportedChannelModes are the channel modes that we support.
	SupportedChannelModes = append(slices.Clone(SettingModes), ListModes...)
)

// ModeOp is an operation performed with modes
type ModeOp rune

const (
	// Add is used when adding the given key.
	Add ModeOp = '+'
	// List is used when listing modes (for instance, listing the current bans on a channel).
	List ModeOp = '='
	// Remove is used when taking away the given key.
	Remove ModeOp = '-'
)

// Mode represents a channel mode letter
type Mode rune

func (mode Mode) String() string {
	return string(mode)
}

// ModeChange is a single mode changing
type ModeChange struct {
	Mode Mode
	Op   ModeOp
	Arg  string
}

func (change ModeChange) String() string {
	if change.Arg == "" {
		return fmt.Sprintf("%c%c", change.Op, change.Mode)
	}
	return fmt.Sprintf("%c%c %s", change.Op, change.Mode, change.Arg)
}

// ModeChanges are a collection of 'ModeChange's
type ModeChanges []ModeChange

// Strings renders the changes as a mode string followed by its arguments,
// e.g. ["+kl-i", "secret", "10"].
func (changes ModeChanges) Strings() (result []string) {
	if len(changes) == 0 {
		return
	}

	var builder strings.Builder

	op := changes[0].Op
	builder.WriteRune(rune(op))

	for _, change := range changes {
		if change.Op != op {
			op = change.Op
			builder.WriteRune(rune(op))
		}
		builder.WriteRune(rune(change.Mode))
	}

	result = append(result, builder.String())

	for _, change := range changes {
		if change.Arg == "" {
			continue
		}
		result = append(result, change.Arg)
	}
	return
}

// Modes is just a raw list of modes
type Modes []Mode

func (modes Modes) String() string {
	var builder strings.Builder
	for _, m := range modes {
		builder.WriteRune(rune(m))
	}
	return builder.String()
}

// Channel Modes
const (
	BanMask     Mode = 'b' // arg
	ExceptMask  Mode = 'e' // arg
	InviteMask  Mode = 'I' // arg
	InviteOnly  Mode = 'i' // flag
	Key         Mode = 'k' // flag arg
	Moderated   Mode = 'm' // flag
	NoOutside   Mode = 'n' // flag
	OpOnlyTopic Mode = 't' // flag
	OperOnly    Mode = 'O' // flag
	Secret      Mode = 's' // flag
	UserLimit   Mode = 'l' // flag arg
)

// IsSettingMode returns whether `mode` is stored in a channel's settings.
func IsSettingMode(mode Mode) bool {
	return slices.Contains(SettingModes, mode)
}

// IsListMode returns whether `mode` is backed by a mask list.
func IsListMode(mode Mode) bool {
	return slices.Contains(ListModes, mode)
}

// ParseChannelModeChanges returns the valid changes, and the list of unknown chars.
func ParseChannelModeChanges(params ...string) (changes ModeChanges, unknown []rune) {
	op := List

	if 0 < len(params) {
		modeArg := params[0]
		skipArgs := 1

		for _, mode := range modeArg {
			if mode == '-' || mode == '+' {
				op = ModeOp(mode)
				continue
			}
			change := ModeChange{
				Mode: Mode(mode),
				Op:   op,
			}

			// put arg into modechange if needed
			switch Mode(mode) {
			case BanMask, ExceptMask, InviteMask:
				if len(params) > skipArgs {
					change.Arg = params[skipArgs]
					skipArgs++
				} else {
					change.Op = List
				}
			case Mode(Owner.Letter()), Mode(AdminOperator.Letter()), Mode(Operator.Letter()),
				Mode(HalfOperator.Letter()), Mode(Vip.Letter()):
				if len(params) > skipArgs {
					change.Arg = params[skipArgs]
					skipArgs++
				} else {
					continue
				}
			case UserLimit:
				// don't require value when removing
				if change.Op == Add {
					if len(params) > skipArgs {
						change.Arg = params[skipArgs]
						skipArgs++
					} else {
						continue
					}
				}
			case Key:
				// +k takes a parameter both for add and remove; allow a
				// bare -k, but not a bare +k.
				if len(params) > skipArgs {
					if change.Op == Add {
						change.Arg = params[skipArgs]
					}
					skipArgs++
				} else if change.Op == Add {
					continue
				}
				if change.Op == Remove {
					change.Arg = "*"
				}
			}

			if slices.Contains(SupportedChannelModes, Mode(mode)) {
				changes = append(changes, change)
			} else if _, err := ParseAccessLevelLetter(mode); err == nil {
				changes = append(changes, change)
			} else {
				unknown = append(unknown, mode)
			}
		}
	}

	return changes, unknown
}

// ParseDefaultChannelModes parses a configured default mode string such as
// "+nt", ignoring anything that isn't a parameterless setting flag.
func ParseDefaultChannelModes(modeString string) (result Modes) {
	result = Modes{}
	changes, _ := ParseChannelModeChanges(strings.Fields(modeString)...)
	for _, change := range changes {
		if change.Op != Add || !IsSettingMode(change.Mode) {
			continue
		}
		if change.Mode == Key || change.Mode == UserLimit {
			continue
		}
		if !slices.Contains(result, change.Mode) {
			result = append(result, change.Mode)
		}
	}
	return
}

// ChanmodesToken returns the CHANMODES ISUPPORT value for the supported modes.
func ChanmodesToken() (result string) {
	// type A: listable modes with parameters
	A := slices.Clone(ListModes)
	// type B: modes with parameters
	B := Modes{Key}
	// type C: modes that take a parameter only when set, never when unset
	C := Modes{UserLimit}
	// type D: modes without parameters
	D := Modes{InviteOnly, Moderated, NoOutside, OpOnlyTopic, OperOnly, Secret}

	slices.Sort(A)
	slices.Sort(D)

	return fmt.Sprintf("%s,%s,%s,%s", A.String(), B.String(), C.String(), D.String())
}
