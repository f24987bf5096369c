// Copyright (c) 2012-2014 Jeremy Latt
// Copyright (c) 2014-2015 Edmund Huber
// Copyright (c) 2016- Daniel Oaks <daniel@danieloaks.net>
// Copyright (c) 2024 The Flex Authors
// released under the MIT license

package irc

import (
	"sort"
	"time"

	"github.com/PhiSyX/flex/irc/modes"
)

// Topic is a channel's topic. The zero value is an unset topic.
type Topic struct {
	Text  string
	SetBy string
	SetAt time.Time
}

// IsSet returns whether a topic has been set.
func (topic Topic) IsSet() bool {
	return topic.Text != ""
}

// Channel is a chat room. A Channel is only ever accessed through a
// ChannelManager handle, which holds the channel's lock for the duration of
// the callback, so its methods do no locking of their own.
type Channel struct {
	name           string
	nameCasefolded string
	createdTime    time.Time
	members        map[ClientID]*Member
	accessControl  AccessControl
	settings       ChannelSettings
	topic          Topic
	registered     bool
}

// NewChannel creates a channel with the given initial settings.
func NewChannel(name, casefoldedName string, settings ChannelSettings) *Channel {
	return &Channel{
		name:           name,
		nameCasefolded: casefoldedName,
		createdTime:    time.Now().UTC(),
		members:        make(map[ClientID]*Member),
		accessControl:  NewAccessControl(),
		settings:       settings,
	}
}

// copy returns a deep copy that shares nothing with the original.
func (channel *Channel) copy() *Channel {
	result := *channel
	result.members = make(map[ClientID]*Member, len(channel.members))
	for id, member := range channel.members {
		memberCopy := *member
		result.members[id] = &memberCopy
	}
	result.accessControl = channel.accessControl.Copy()
	result.settings = channel.settings.Copy()
	return &result
}

func (channel *Channel) Name() string {
	return channel.name
}

func (channel *Channel) NameCasefolded() string {
	return channel.nameCasefolded
}

func (channel *Channel) CreatedTime() time.Time {
	return channel.createdTime
}

// AccessControl returns the channel's lists. The pointer is only valid
// inside the handle it was obtained from.
func (channel *Channel) AccessControl() *AccessControl {
	return &channel.accessControl
}

// Settings returns the channel's settings. The pointer is only valid
// inside the handle it was obtained from.
func (channel *Channel) Settings() *ChannelSettings {
	return &channel.settings
}

// IsRegistered returns whether the channel's state is persisted.
func (channel *Channel) IsRegistered() bool {
	return channel.registered
}

func (channel *Channel) Topic() Topic {
	return channel.topic
}

func (channel *Channel) SetTopic(topic Topic) {
	channel.topic = topic
}

func (channel *Channel) ClearTopic() {
	channel.topic = Topic{}
}

func (channel *Channel) IsEmpty() bool {
	return len(channel.members) == 0
}

func (channel *Channel) MemberCount() int {
	return len(channel.members)
}

// IsFull returns whether a member limit is set and reached.
func (channel *Channel) IsFull() bool {
	limit, ok := channel.settings.Limit()
	return ok && uint64(len(channel.members)) >= limit
}

// addMember adds id, granting Owner if the channel was empty. It returns
// false if id was already a member.
func (channel *Channel) addMember(id ClientID) (member Member, added bool) {
	if existing, ok := channel.members[id]; ok {
		return *existing, false
	}
	newMember := &Member{
		ID:       id,
		JoinTime: time.Now().UTC(),
	}
	if len(channel.members) == 0 {
		newMember.AccessLevels.Add(modes.Owner)
	}
	channel.members[id] = newMember
	return *newMember, true
}

func (channel *Channel) removeMember(id ClientID) (removed bool) {
	if _, ok := channel.members[id]; !ok {
		return false
	}
	delete(channel.members, id)
	return true
}

// Member returns a copy of the member record for id.
func (channel *Channel) Member(id ClientID) (member Member, ok bool) {
	if m, present := channel.members[id]; present {
		return *m, true
	}
	return
}

func (channel *Channel) HasMember(id ClientID) bool {
	_, ok := channel.members[id]
	return ok
}

// Members returns copies of every member record, oldest join first.
func (channel *Channel) Members() (result []Member) {
	result = make([]Member, 0, len(channel.members))
	for _, member := range channel.members {
		result = append(result, *member)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].JoinTime.Equal(result[j].JoinTime) {
			return result[i].ID < result[j].ID
		}
		return result[i].JoinTime.Before(result[j].JoinTime)
	})
	return
}

// GrantLevel adds level to the member's levels. It returns false if id
// isn't a member or already holds level.
func (channel *Channel) GrantLevel(id ClientID, level modes.AccessLevel) (changed bool) {
	member, ok := channel.members[id]
	if !ok {
		return false
	}
	return member.AccessLevels.Add(level)
}

// RevokeLevel removes level from the member's levels. It returns false if
// id isn't a member or doesn't hold level.
func (channel *Channel) RevokeLevel(id ClientID, level modes.AccessLevel) (changed bool) {
	member, ok := channel.members[id]
	if !ok {
		return false
	}
	return member.AccessLevels.Remove(level)
}

// HighestLevel returns id's most privileged level in the channel.
func (channel *Channel) HighestLevel(id ClientID) (level modes.AccessLevel, ok bool) {
	member, present := channel.members[id]
	if !present {
		return
	}
	return member.AccessLevels.Highest()
}
