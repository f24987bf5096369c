// Copyright (c) 2024 The Flex Authors
// released under the MIT license

package irc

import (
	"time"

	"github.com/PhiSyX/flex/irc/modes"
)

// Member is a client's standing within one channel.
type Member struct {
	ID           ClientID
	AccessLevels modes.AccessLevels
	JoinTime     time.Time
}

// Highest returns the member's most privileged level, if any.
func (member Member) Highest() (modes.AccessLevel, bool) {
	return member.AccessLevels.Highest()
}

// HasLevel returns whether the member holds exactly this level.
func (member Member) HasLevel(level modes.AccessLevel) bool {
	return member.AccessLevels.Has(level)
}

// rank orders members for CanOperateOn; a member with no level ranks below
// HalfOperator but above nothing.
func (member Member) rank() modes.AccessLevel {
	highest, _ := member.AccessLevels.Highest()
	return highest
}
