// Copyright (c) 2016-2017 Daniel Oaks <daniel@danieloaks.net>
// Copyright (c) 2024 The Flex Authors
// released under the MIT license

package irc

import (
	"encoding/json"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/PhiSyX/flex/irc/datastore"
	"github.com/PhiSyX/flex/irc/modes"
	"github.com/PhiSyX/flex/irc/utils"
)

// this is exclusively the *persistence* layer for channel registration;
// channel creation/tracking/destruction is in channelmanager.go

// StoredMask is one persisted list entry.
type StoredMask struct {
	Mask  string
	SetBy string
	SetAt time.Time
}

// StoredSetting is one persisted channel setting.
type StoredSetting struct {
	Mode  string
	Key   string `json:",omitempty"`
	Limit uint64 `json:",omitempty"`
	SetBy string
	SetAt time.Time
}

// RegisteredChannel holds the persisted state of a registered channel: the
// state that should survive the channel emptying out.
type RegisteredChannel struct {
	// Name of the channel.
	Name string
	// NameCasefolded is the datastore key.
	NameCasefolded string
	// RegisteredAt represents the time that the channel was registered.
	RegisteredAt time.Time
	// RegisteredBy is the address of whoever registered it.
	RegisteredBy     string
	Topic            Topic
	Settings         []StoredSetting
	Bans             []StoredMask
	BanExceptions    []StoredMask
	InviteExceptions []StoredMask
}

func (r *RegisteredChannel) Serialize() ([]byte, error) {
	return json.Marshal(r)
}

func (r *RegisteredChannel) Deserialize(b []byte) (err error) {
	return json.Unmarshal(b, r)
}

func storeMasks(records []MaskRecord) (result []StoredMask) {
	for _, record := range records {
		result = append(result, StoredMask{
			Mask:  record.Flag.Mask.String(),
			SetBy: record.UpdatedBy,
			SetAt: record.UpdatedAt,
		})
	}
	return
}

// ExportRegistration takes a snapshot of the channel's persistent state.
// The caller must hold a handle on the channel.
func (channel *Channel) ExportRegistration(registeredBy string) (info RegisteredChannel) {
	info = RegisteredChannel{
		Name:             channel.name,
		NameCasefolded:   channel.nameCasefolded,
		RegisteredAt:     time.Now().UTC(),
		RegisteredBy:     registeredBy,
		Topic:            channel.topic,
		Bans:             storeMasks(channel.accessControl.Bans()),
		BanExceptions:    storeMasks(channel.accessControl.BanExceptions()),
		InviteExceptions: storeMasks(channel.accessControl.InviteExceptions()),
	}
	for _, record := range channel.settings.Records() {
		stored := StoredSetting{
			Mode:  string(record.Flag.Mode),
			SetBy: record.UpdatedBy,
			SetAt: record.UpdatedAt,
		}
		switch record.Flag.Mode {
		case modes.Key:
			stored.Key = record.Flag.Key.Expose()
		case modes.UserLimit:
			stored.Limit = record.Flag.Limit
		}
		info.Settings = append(info.Settings, stored)
	}
	return
}

// applyRegistration replaces the channel's persistent state with info.
// Entries that no longer parse are skipped.
func (channel *Channel) applyRegistration(info RegisteredChannel) {
	channel.registered = true
	channel.topic = info.Topic

	channel.settings = ChannelSettings{records: make(map[modes.Mode]SettingsRecord)}
	for _, stored := range info.Settings {
		r, _ := utf8.DecodeRuneInString(stored.Mode)
		mode := modes.Mode(r)
		var flag SettingsFlag
		switch mode {
		case modes.Key:
			flag = KeyFlag(utils.NewSecret(stored.Key))
		case modes.UserLimit:
			flag = LimitFlag(stored.Limit)
		default:
			if !modes.IsSettingMode(mode) {
				continue
			}
			flag = Flag(mode)
		}
		record := NewModeRecord(flag, stored.SetBy)
		record.UpdatedAt = stored.SetAt
		channel.settings.Set(record)
	}

	channel.accessControl = NewAccessControl()
	restore := func(mode modes.Mode, stored []StoredMask) {
		for _, entry := range stored {
			record := NewMaskRecord(mode, entry.Mask, entry.SetBy)
			record.UpdatedAt = entry.SetAt
			channel.accessControl.Add(record)
		}
	}
	restore(modes.BanMask, info.Bans)
	restore(modes.ExceptMask, info.BanExceptions)
	restore(modes.InviteMask, info.InviteExceptions)
}

// ChannelRegistry persists registered channels to a datastore and keeps an
// in-memory index of them, so that a channel that empties out and is
// recreated gets its lists back.
type ChannelRegistry struct {
	// this serializes operations of the form (read channel state, synchronously persist it);
	// this is enough to guarantee eventual consistency of the datastore with the
	// ChannelManager and Channel objects, which are the source of truth.
	sync.Mutex // tier 2
	dstore     datastore.Datastore
	registered map[string]RegisteredChannel
}

// NewChannelRegistry returns a registry backed by dstore, which may be nil
// for a purely in-memory registry.
func NewChannelRegistry(dstore datastore.Datastore) *ChannelRegistry {
	return &ChannelRegistry{
		dstore:     dstore,
		registered: make(map[string]RegisteredChannel),
	}
}

// Load populates the index from the datastore.
func (reg *ChannelRegistry) Load(server *Server) (err error) {
	if reg.dstore == nil {
		return nil
	}
	all, err := loadAllSerialized[RegisteredChannel](reg.dstore, datastore.TableChannels, server.logger)
	if err != nil {
		return err
	}
	reg.Lock()
	defer reg.Unlock()
	for _, info := range all {
		cfname, err := CasefoldChannel(info.Name)
		if err != nil {
			server.logger.Error("datastore", "couldn't casefold registered channel, skipping", info.Name, err.Error())
			continue
		}
		info.NameCasefolded = cfname
		reg.registered[cfname] = info
		server.logger.Debug("datastore", "loaded registered channel", info.Name)
	}
	return nil
}

// LoadChannel returns the stored state of a registered channel.
func (reg *ChannelRegistry) LoadChannel(cfname string) (info RegisteredChannel, ok bool) {
	reg.Lock()
	defer reg.Unlock()
	info, ok = reg.registered[cfname]
	return
}

// IsRegistered returns whether the casefolded name is registered.
func (reg *ChannelRegistry) IsRegistered(cfname string) bool {
	_, ok := reg.LoadChannel(cfname)
	return ok
}

// StoreChannel records info in the index and persists it.
func (reg *ChannelRegistry) StoreChannel(info RegisteredChannel) error {
	reg.Lock()
	defer reg.Unlock()

	if existing, ok := reg.registered[info.NameCasefolded]; ok {
		info.RegisteredAt = existing.RegisteredAt
		info.RegisteredBy = existing.RegisteredBy
	}
	reg.registered[info.NameCasefolded] = info
	if reg.dstore == nil {
		return nil
	}
	return storeSerialized(reg.dstore, datastore.TableChannels, info.NameCasefolded, &info)
}

// DeleteChannel forgets a registered channel.
func (reg *ChannelRegistry) DeleteChannel(cfname string) (err error) {
	reg.Lock()
	defer reg.Unlock()

	if _, ok := reg.registered[cfname]; !ok {
		return ErrNoSuchChannel
	}
	delete(reg.registered, cfname)
	if reg.dstore != nil {
		err = reg.dstore.Delete(datastore.TableChannels, cfname)
	}
	return
}

// Names returns the casefolded names of every registered channel, sorted.
func (reg *ChannelRegistry) Names() []string {
	reg.Lock()
	defer reg.Unlock()
	return utils.SortedKeys(reg.registered)
}
