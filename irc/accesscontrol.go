// Copyright (c) 2024 The Flex Authors
// released under the MIT license

package irc

import (
	"sort"
	"strings"

	"github.com/ergochat/irc-go/ircmsg"

	"github.com/PhiSyX/flex/irc/masks"
	"github.com/PhiSyX/flex/irc/modes"
	"github.com/PhiSyX/flex/irc/utils"
)

// AccessControlMask is the value of one ban, ban exception or invite
// exception entry.
type AccessControlMask struct {
	Mode modes.Mode
	Mask masks.Mask
}

// MaskRecord is a list entry with its provenance.
type MaskRecord = ModeRecord[AccessControlMask]

// NewMaskRecord parses maskText and stamps it for the given list mode.
func NewMaskRecord(mode modes.Mode, maskText string, setBy string) MaskRecord {
	return NewModeRecord(AccessControlMask{Mode: mode, Mask: masks.Parse(maskText)}, setBy)
}

func maskKey(mask masks.Mask) string {
	return strings.ToLower(mask.String())
}

// MaskList is a set of masks keyed by their canonical text.
type MaskList struct {
	records map[string]MaskRecord
}

func (list *MaskList) add(record MaskRecord) (result MaskRecord, ok bool) {
	key := maskKey(record.Flag.Mask)
	if _, present := list.records[key]; present {
		return
	}
	if list.records == nil {
		list.records = make(map[string]MaskRecord)
	}
	list.records[key] = record
	return record, true
}

func (list *MaskList) remove(maskText string) (result MaskRecord, ok bool) {
	key := maskKey(masks.Parse(maskText))
	result, ok = list.records[key]
	if ok {
		delete(list.records, key)
	}
	return
}

// Has returns whether maskText, once normalized, is in the list.
func (list *MaskList) Has(maskText string) bool {
	_, ok := list.records[maskKey(masks.Parse(maskText))]
	return ok
}

// Len returns the number of entries.
func (list *MaskList) Len() int {
	return len(list.records)
}

// Records returns the entries ordered by mask text.
func (list *MaskList) Records() (result []MaskRecord) {
	result = make([]MaskRecord, 0, len(list.records))
	for _, key := range utils.SortedKeys(list.records) {
		result = append(result, list.records[key])
	}
	return
}

func (list *MaskList) copy() MaskList {
	return MaskList{records: utils.CopyMap(list.records)}
}

// Covers reports whether the client identified by nuh is covered by an
// entry: either one of the address probes equals a stored mask, or the
// client's full address matches a stored mask as a glob.
func (list *MaskList) Covers(nuh ircmsg.NUH) bool {
	if len(list.records) == 0 {
		return false
	}
	for _, probe := range addressProbes(nuh) {
		if _, ok := list.records[strings.ToLower(probe)]; ok {
			return true
		}
	}
	address := masks.Address(nuh.Name, nuh.User, nuh.Host)
	for key, record := range list.records {
		// a literal mask can only equal the full-address probe
		if !utils.HasWildcards(key) {
			continue
		}
		if record.Flag.Mask.Match(address) {
			return true
		}
	}
	return false
}

// hostSuffix strips the first dot-separated label: a.b.example -> b.example.
// A host without a dot is its own suffix.
func hostSuffix(host string) string {
	if _, suffix, found := strings.Cut(host, "."); found && suffix != "" {
		return suffix
	}
	return host
}

// addressProbes returns the address shapes a stored ban may have been
// written against. Bans can be stored against partial or cloaked forms of an
// address, so every shape is tried.
func addressProbes(nuh ircmsg.NUH) []string {
	nick, ident, host := nuh.Name, nuh.User, nuh.Host
	suffix := hostSuffix(host)
	return []string{
		"*!*@*",
		"*!" + ident + "@*",
		"*!*" + ident + "@*",
		"*!" + ident + "@" + host,
		"*!*" + ident + "@" + host,
		"*!*@" + host,
		"*!*" + ident + "@*." + suffix,
		"*!*@*." + suffix,
		nick + "!" + ident + "@" + host,
		nick + "!*" + ident + "@" + host,
		nick + "!*@" + host,
		nick + "!*" + ident + "@*." + suffix,
		nick + "!*@*." + suffix,
		nick + "!*@*",
	}
}

// AccessControl holds a channel's ban, ban exception and invite exception
// lists, and the set of clients with a pending invite. It is not
// synchronized; the owning Channel's lock guards it.
type AccessControl struct {
	bans             MaskList
	banExceptions    MaskList
	inviteExceptions MaskList
	pendingInvites   utils.HashSet[ClientID]
}

// NewAccessControl returns empty access control lists.
func NewAccessControl() AccessControl {
	return AccessControl{pendingInvites: make(utils.HashSet[ClientID])}
}

// List returns the mask list backing a list mode.
func (ac *AccessControl) List(mode modes.Mode) (list *MaskList, ok bool) {
	switch mode {
	case modes.BanMask:
		return &ac.bans, true
	case modes.ExceptMask:
		return &ac.banExceptions, true
	case modes.InviteMask:
		return &ac.inviteExceptions, true
	default:
		return nil, false
	}
}

func (ac *AccessControl) AddBan(record MaskRecord) (MaskRecord, bool) {
	record.Flag.Mode = modes.BanMask
	return ac.bans.add(record)
}

func (ac *AccessControl) RemoveBan(maskText string) (MaskRecord, bool) {
	return ac.bans.remove(maskText)
}

func (ac *AccessControl) AddBanException(record MaskRecord) (MaskRecord, bool) {
	record.Flag.Mode = modes.ExceptMask
	return ac.banExceptions.add(record)
}

func (ac *AccessControl) RemoveBanException(maskText string) (MaskRecord, bool) {
	return ac.banExceptions.remove(maskText)
}

func (ac *AccessControl) AddInviteException(record MaskRecord) (MaskRecord, bool) {
	record.Flag.Mode = modes.InviteMask
	return ac.inviteExceptions.add(record)
}

func (ac *AccessControl) RemoveInviteException(maskText string) (MaskRecord, bool) {
	return ac.inviteExceptions.remove(maskText)
}

// Add adds a record to the list selected by record.Flag.Mode.
func (ac *AccessControl) Add(record MaskRecord) (result MaskRecord, ok bool) {
	list, valid := ac.List(record.Flag.Mode)
	if !valid {
		return
	}
	return list.add(record)
}

// Remove removes maskText from the list selected by mode.
func (ac *AccessControl) Remove(mode modes.Mode, maskText string) (result MaskRecord, ok bool) {
	list, valid := ac.List(mode)
	if !valid {
		return
	}
	return list.remove(maskText)
}

func (ac *AccessControl) Bans() []MaskRecord {
	return ac.bans.Records()
}

func (ac *AccessControl) BanExceptions() []MaskRecord {
	return ac.banExceptions.Records()
}

func (ac *AccessControl) InviteExceptions() []MaskRecord {
	return ac.inviteExceptions.Records()
}

// AddPendingInvite records an invite for id, returning false if one was
// already pending.
func (ac *AccessControl) AddPendingInvite(id ClientID) bool {
	if ac.pendingInvites == nil {
		ac.pendingInvites = make(utils.HashSet[ClientID])
	}
	return ac.pendingInvites.AddNew(id)
}

// RemovePendingInvite consumes the invite for id, returning whether there
// was one.
func (ac *AccessControl) RemovePendingInvite(id ClientID) bool {
	return ac.pendingInvites.Pop(id)
}

func (ac *AccessControl) HasPendingInvite(id ClientID) bool {
	return ac.pendingInvites.Has(id)
}

// IsExempted returns whether the client is covered by a ban exception.
func (ac *AccessControl) IsExempted(nuh ircmsg.NUH) bool {
	return ac.banExceptions.Covers(nuh)
}

// IsInviteExempted returns whether the client is covered by an invite
// exception, which stands in for an invite on invite-only channels.
func (ac *AccessControl) IsInviteExempted(nuh ircmsg.NUH) bool {
	return ac.inviteExceptions.Covers(nuh)
}

// IsBanned returns whether the client is covered by a ban and not by a ban
// exception.
func (ac *AccessControl) IsBanned(nuh ircmsg.NUH) bool {
	if ac.IsExempted(nuh) {
		return false
	}
	return ac.bans.Covers(nuh)
}

// Copy returns an independent copy of the lists.
func (ac *AccessControl) Copy() AccessControl {
	return AccessControl{
		bans:             ac.bans.copy(),
		banExceptions:    ac.banExceptions.copy(),
		inviteExceptions: ac.inviteExceptions.copy(),
		pendingInvites:   ac.pendingInvites.Copy(),
	}
}

// PendingInvites returns the ids with a pending invite, sorted.
func (ac *AccessControl) PendingInvites() (result []ClientID) {
	result = make([]ClientID, 0, len(ac.pendingInvites))
	for id := range ac.pendingInvites {
		result = append(result, id)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return
}
