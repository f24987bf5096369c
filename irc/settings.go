// Copyright (c) 2024 The Flex Authors
// released under the MIT license

package irc

import (
	"strconv"
	"strings"

	"github.com/PhiSyX/flex/irc/modes"
	"github.com/PhiSyX/flex/irc/utils"
)

// SettingsFlag is the value of one channel setting. Key carries a secret and
// UserLimit a count; the other modes are plain flags.
type SettingsFlag struct {
	Mode  modes.Mode
	Key   utils.Secret
	Limit uint64
}

// Flag returns a parameterless setting such as modes.InviteOnly.
func Flag(mode modes.Mode) SettingsFlag {
	return SettingsFlag{Mode: mode}
}

// KeyFlag returns a channel key setting.
func KeyFlag(key utils.Secret) SettingsFlag {
	return SettingsFlag{Mode: modes.Key, Key: key}
}

// LimitFlag returns a member limit setting.
func LimitFlag(limit uint64) SettingsFlag {
	return SettingsFlag{Mode: modes.UserLimit, Limit: limit}
}

func (flag SettingsFlag) isParametrized() bool {
	return flag.Mode == modes.Key || flag.Mode == modes.UserLimit
}

func (flag SettingsFlag) sameValue(other SettingsFlag) bool {
	switch flag.Mode {
	case modes.Key:
		return flag.Key.Equal(other.Key)
	case modes.UserLimit:
		return flag.Limit == other.Limit
	default:
		return true
	}
}

// SettingsRecord is a channel setting with its provenance.
type SettingsRecord = ModeRecord[SettingsFlag]

// ChannelSettings holds at most one record per setting mode. It is not
// synchronized; the owning Channel's lock guards it.
type ChannelSettings struct {
	records map[modes.Mode]SettingsRecord
}

// NewChannelSettings returns settings with the given parameterless flags set.
func NewChannelSettings(defaults modes.Modes, setBy string) (settings ChannelSettings) {
	settings.records = make(map[modes.Mode]SettingsRecord)
	for _, mode := range defaults {
		settings.Set(NewModeRecord(Flag(mode), setBy))
	}
	return
}

// Set stores record. Key and UserLimit replace an existing record holding
// a different value; every other flag, and Key/UserLimit with an identical
// value, is rejected if already present.
func (settings *ChannelSettings) Set(record SettingsRecord) (result SettingsRecord, ok bool) {
	if settings.records == nil {
		settings.records = make(map[modes.Mode]SettingsRecord)
	}
	current, present := settings.records[record.Flag.Mode]
	if present {
		if !record.Flag.isParametrized() || current.Flag.sameValue(record.Flag) {
			return
		}
	}
	settings.records[record.Flag.Mode] = record
	return record, true
}

// Unset removes the setting identified by record.Flag.Mode. Key and
// UserLimit can always be removed; other flags are rejected if absent.
func (settings *ChannelSettings) Unset(record SettingsRecord) (result SettingsRecord, ok bool) {
	current, present := settings.records[record.Flag.Mode]
	if !present {
		if record.Flag.isParametrized() {
			return record, true
		}
		return
	}
	delete(settings.records, record.Flag.Mode)
	return current, true
}

// Get returns the record for mode.
func (settings *ChannelSettings) Get(mode modes.Mode) (record SettingsRecord, ok bool) {
	record, ok = settings.records[mode]
	return
}

// Has returns whether mode is set.
func (settings *ChannelSettings) Has(mode modes.Mode) bool {
	_, ok := settings.records[mode]
	return ok
}

func (settings *ChannelSettings) HasInviteOnly() bool {
	return settings.Has(modes.InviteOnly)
}

func (settings *ChannelSettings) HasKey() bool {
	return settings.Has(modes.Key)
}

func (settings *ChannelSettings) HasLimit() bool {
	return settings.Has(modes.UserLimit)
}

func (settings *ChannelSettings) HasModerate() bool {
	return settings.Has(modes.Moderated)
}

func (settings *ChannelSettings) HasNoExternalMessages() bool {
	return settings.Has(modes.NoOutside)
}

func (settings *ChannelSettings) HasNoTopicChange() bool {
	return settings.Has(modes.OpOnlyTopic)
}

func (settings *ChannelSettings) HasOperatorOnly() bool {
	return settings.Has(modes.OperOnly)
}

func (settings *ChannelSettings) HasSecret() bool {
	return settings.Has(modes.Secret)
}

// ContainsKeyWith returns whether a key is set and equals key.
func (settings *ChannelSettings) ContainsKeyWith(key utils.Secret) bool {
	record, ok := settings.records[modes.Key]
	return ok && record.Flag.Key.Equal(key)
}

// Limit returns the member limit, if one is set.
func (settings *ChannelSettings) Limit() (limit uint64, ok bool) {
	record, ok := settings.records[modes.UserLimit]
	return record.Flag.Limit, ok
}

// Records returns every setting, ordered by mode letter.
func (settings *ChannelSettings) Records() (result []SettingsRecord) {
	result = make([]SettingsRecord, 0, len(settings.records))
	for _, mode := range modes.SettingModes {
		if record, ok := settings.records[mode]; ok {
			result = append(result, record)
		}
	}
	return
}

// Copy returns an independent copy of the settings.
func (settings *ChannelSettings) Copy() ChannelSettings {
	return ChannelSettings{records: utils.CopyMap(settings.records)}
}

// ModeString renders the settings as RPL_CHANNELMODEIS parameters,
// e.g. ["+klnt", "secret", "10"]. The key is replaced by "*" unless showKey.
func (settings *ChannelSettings) ModeString(showKey bool) (result []string) {
	var flags strings.Builder
	var args []string
	flags.WriteByte('+')
	// flags with args first, so that positional arguments line up
	if record, ok := settings.records[modes.Key]; ok {
		flags.WriteRune(rune(modes.Key))
		if showKey {
			args = append(args, record.Flag.Key.Expose())
		} else {
			args = append(args, "*")
		}
	}
	if record, ok := settings.records[modes.UserLimit]; ok {
		flags.WriteRune(rune(modes.UserLimit))
		args = append(args, strconv.FormatUint(record.Flag.Limit, 10))
	}
	for _, record := range settings.Records() {
		if !record.Flag.isParametrized() {
			flags.WriteRune(rune(record.Flag.Mode))
		}
	}
	result = append(result, flags.String())
	return append(result, args...)
}
