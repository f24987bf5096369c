// Copyright (c) 2024 The Flex Authors
// released under the MIT license

package irc

import (
	"github.com/PhiSyX/flex/irc/utils"
)

// CanJoin decides whether client may join channel with the supplied key.
// It returns nil, or a *Rejection; checks run in this order and the first
// failure wins:
//
//	OperOnly           +O and the client isn't a global operator
//	BannedFromChannel  covered by a ban and not by a ban exception
//	ChannelIsFull      +l and the member count has reached the limit
//	InviteOnlyChannel  +i and neither a pending invite nor an invite exception
//	BadChannelKey      +k and the key doesn't match
//	HasAlreadyMember   already a member (a no-op for the caller)
func CanJoin(channel *Channel, client ClientDetails, key utils.Secret) error {
	settings := channel.Settings()
	ac := channel.AccessControl()
	nuh := client.NUH()

	if settings.HasOperatorOnly() && !client.GlobalOperator {
		return reject(OperOnly)
	}
	if ac.IsBanned(nuh) {
		return reject(BannedFromChannel)
	}
	if channel.IsFull() {
		return reject(ChannelIsFull)
	}
	if settings.HasInviteOnly() && !ac.HasPendingInvite(client.ID) && !ac.IsInviteExempted(nuh) {
		return reject(InviteOnlyChannel)
	}
	if settings.HasKey() && !settings.ContainsKeyWith(key) {
		return reject(BadChannelKey)
	}
	if channel.HasMember(client.ID) {
		return ErrAlreadyMember
	}
	return nil
}
