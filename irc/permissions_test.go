// Copyright (c) 2024 The Flex Authors
// released under the MIT license

package irc

import (
	"fmt"
	"testing"

	"github.com/PhiSyX/flex/irc/modes"
)

// newRankedChannel returns a channel holding one member per level, keyed by
// the level's name, plus a member "none" with no level.
func newRankedChannel() *Channel {
	channel := NewChannel("#ranks", "#ranks", NewChannelSettings(nil, "flex.test"))
	channel.addMember("owner") // the first member is granted Owner
	for _, level := range modes.AllAccessLevels[1:] {
		id := ClientID(level.String())
		channel.addMember(id)
		channel.GrantLevel(id, level)
	}
	channel.addMember("none")
	return channel
}

func TestFirstMemberIsOwner(t *testing.T) {
	channel := NewChannel("#new", "#new", NewChannelSettings(nil, "flex.test"))
	first, added := channel.addMember("first")
	assertEqual(added, true, t)
	assertEqual(first.HasLevel(modes.Owner), true, t)

	second, _ := channel.addMember("second")
	assertEqual(second.AccessLevels.IsEmpty(), true, t)

	_, added = channel.addMember("first")
	assertEqual(added, false, t)
}

func TestDoesMemberHaveRights(t *testing.T) {
	channel := newRankedChannel()
	assertEqual(DoesMemberHaveRights(channel, "operator", modes.HalfOperator), true, t)
	assertEqual(DoesMemberHaveRights(channel, "operator", modes.Operator), true, t)
	assertEqual(DoesMemberHaveRights(channel, "operator", modes.AdminOperator), false, t)
	assertEqual(DoesMemberHaveRights(channel, "none", modes.Vip), false, t)
	assertEqual(DoesMemberHaveRights(channel, "stranger", modes.Vip), false, t)

	// global operators bypass the check
	assertEqual(HasMinimumLevel(channel, Actor{ID: "stranger", GlobalOperator: true}, modes.Owner), true, t)
	assertEqual(HasMinimumLevel(channel, Actor{ID: "vip"}, modes.Vip), true, t)
}

func TestAccumulatedLevels(t *testing.T) {
	channel := newRankedChannel()
	channel.GrantLevel("vip", modes.Operator)
	level, ok := channel.HighestLevel("vip")
	assertEqual(ok, true, t)
	assertEqual(level, modes.Operator, t)

	// revoking the higher level falls back to the lower one
	channel.RevokeLevel("vip", modes.Operator)
	level, _ = channel.HighestLevel("vip")
	assertEqual(level, modes.Vip, t)
}

func TestCanOperateOn(t *testing.T) {
	channel := newRankedChannel()
	names := []string{"owner", "admin", "operator", "halfop", "vip", "none"}
	// expected[actor][target]
	expected := map[string][]bool{
		"owner":    {false, true, true, true, true, true},
		"admin":    {false, false, true, true, true, true},
		"operator": {false, false, false, true, true, true},
		"halfop":   {false, false, false, false, true, true},
		"vip":      {false, false, false, false, false, false},
		"none":     {false, false, false, false, false, false},
	}
	for _, actor := range names {
		for i, target := range names {
			t.Run(fmt.Sprintf("%s on %s", actor, target), func(t *testing.T) {
				got := CanOperateOn(channel, Actor{ID: ClientID(actor)}, ClientID(target))
				if got != expected[actor][i] {
					t.Errorf("expected %t, got %t", expected[actor][i], got)
				}
			})
		}
	}

	// global operators act on anyone, members or not
	assertEqual(CanOperateOn(channel, Actor{ID: "stranger", GlobalOperator: true}, "owner"), true, t)
	assertEqual(CanOperateOn(channel, Actor{ID: "stranger"}, "none"), false, t)
}

func TestCanGrant(t *testing.T) {
	channel := newRankedChannel()

	for _, level := range modes.AllAccessLevels {
		assertEqual(CanGrant(channel, Actor{ID: "owner"}, level), true, t)
	}
	assertEqual(CanGrant(channel, Actor{ID: "admin"}, modes.AdminOperator), false, t)
	assertEqual(CanGrant(channel, Actor{ID: "admin"}, modes.Operator), true, t)
	assertEqual(CanGrant(channel, Actor{ID: "operator"}, modes.Operator), false, t)
	assertEqual(CanGrant(channel, Actor{ID: "operator"}, modes.HalfOperator), true, t)
	assertEqual(CanGrant(channel, Actor{ID: "halfop"}, modes.Vip), true, t)
	assertEqual(CanGrant(channel, Actor{ID: "halfop"}, modes.HalfOperator), false, t)
	assertEqual(CanGrant(channel, Actor{ID: "vip"}, modes.Vip), false, t)
	assertEqual(CanGrant(channel, Actor{ID: "none"}, modes.Vip), false, t)
	assertEqual(CanGrant(channel, Actor{ID: "stranger", GlobalOperator: true}, modes.Owner), true, t)
}

func TestMembersOrderedByJoin(t *testing.T) {
	channel := newRankedChannel()
	members := channel.Members()
	assertEqual(len(members), 6, t)
	for i := 1; i < len(members); i++ {
		if members[i].JoinTime.Before(members[i-1].JoinTime) {
			t.Errorf("member %s listed after a later join", members[i-1].ID)
		}
	}
}

func TestChannelIsFull(t *testing.T) {
	channel := NewChannel("#small", "#small", NewChannelSettings(nil, "flex.test"))
	channel.addMember("a")
	assertEqual(channel.IsFull(), false, t)
	channel.Settings().Set(NewModeRecord(LimitFlag(1), "op"))
	assertEqual(channel.IsFull(), true, t)
}
