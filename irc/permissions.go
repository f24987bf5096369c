// Copyright (c) 2024 The Flex Authors
// released under the MIT license

package irc

import (
	"github.com/PhiSyX/flex/irc/modes"
)

// Actor is the client asking for something. Global operator status lives on
// the client, not the channel, so it travels with the request.
type Actor struct {
	ID             ClientID
	GlobalOperator bool
}

// DoesMemberHaveRights returns whether id is a member of channel holding a
// level at or above minimum.
func DoesMemberHaveRights(channel *Channel, id ClientID, minimum modes.AccessLevel) bool {
	member, ok := channel.Member(id)
	return ok && member.AccessLevels.AtLeast(minimum)
}

// HasMinimumLevel is DoesMemberHaveRights with the global operator bypass.
func HasMinimumLevel(channel *Channel, actor Actor, minimum modes.AccessLevel) bool {
	return actor.GlobalOperator || DoesMemberHaveRights(channel, actor.ID, minimum)
}

// CanOperateOn returns whether actor may kick, deop or otherwise act
// against target in channel. Authority comes from the actor's highest level
// and is strict: nobody acts on a peer or a superior, so no channel member
// can act on an Owner. Vips act on no one; a target with no level ranks
// below HalfOperator.
func CanOperateOn(channel *Channel, actor Actor, target ClientID) bool {
	if actor.GlobalOperator {
		return true
	}
	actorMember, ok := channel.Member(actor.ID)
	if !ok {
		return false
	}
	targetRank := modes.AccessLevel(0)
	if targetMember, ok := channel.Member(target); ok {
		targetRank = targetMember.rank()
	}

	switch actorMember.rank() {
	case modes.Owner:
		return targetRank < modes.Owner
	case modes.AdminOperator:
		return targetRank < modes.AdminOperator
	case modes.Operator:
		return targetRank < modes.Operator
	case modes.HalfOperator:
		return targetRank < modes.HalfOperator
	default:
		return false
	}
}

// CanGrant returns whether actor may grant or revoke level in channel.
// Owners may grant anything; everyone else from HalfOperator up may grant
// the levels strictly below their own.
func CanGrant(channel *Channel, actor Actor, level modes.AccessLevel) bool {
	if actor.GlobalOperator {
		return true
	}
	highest, ok := channel.HighestLevel(actor.ID)
	if !ok {
		return false
	}
	if highest == modes.Owner {
		return true
	}
	return highest >= modes.HalfOperator && level < highest
}
