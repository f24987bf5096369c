// Copyright (c) 2017 Shivaram Lingamneni <slingamn@cs.stanford.edu>
// Copyright (c) 2024 The Flex Authors
// released under the MIT license

package irc

import (
	"sort"

	"github.com/PhiSyX/flex/irc/logger"
	"github.com/PhiSyX/flex/irc/modes"
	"github.com/PhiSyX/flex/irc/utils"
)

const (
	// how many times a join retries after losing a race with the channel's
	// destruction before giving up
	maxJoinAttempts = 8
)

// ChannelManagerConfig holds the parts of the server config the channel
// manager needs.
type ChannelManagerConfig struct {
	ServerName        string
	DefaultModes      modes.Modes
	MaxChannelNameLen int
}

// ChannelManager keeps track of all the channels on the server,
// providing synchronization for creation of new channels on first join,
// and cleanup of empty channels on last part.
type ChannelManager struct {
	// chans maps casefolded name -> *Channel
	chans *utils.ShardedMap[*Channel]
	// chansSkeletons maps skeleton -> casefolded name
	chansSkeletons *utils.ShardedMap[string]
	registry       *ChannelRegistry
	logger         *logger.Manager
	config         ChannelManagerConfig
}

// NewChannelManager returns a new ChannelManager. registry may be nil.
func NewChannelManager(config ChannelManagerConfig, registry *ChannelRegistry, logger *logger.Manager) *ChannelManager {
	if registry == nil {
		registry = NewChannelRegistry(nil)
	}
	return &ChannelManager{
		chans:          utils.NewShardedMap[*Channel](),
		chansSkeletons: utils.NewShardedMap[string](),
		registry:       registry,
		logger:         logger,
		config:         config,
	}
}

func (cm *ChannelManager) casefold(name string) (string, error) {
	cfname, err := CasefoldChannel(name)
	if err != nil {
		return "", ErrNoSuchChannel
	}
	return cfname, nil
}

// validate casefolds a name for creation.
func (cm *ChannelManager) validate(name string) (cfname, skeleton string, err error) {
	cfname, err = CasefoldChannel(name)
	if err != nil {
		return "", "", errInvalidChannelName
	}
	if cm.config.MaxChannelNameLen > 0 && len(cfname) > cm.config.MaxChannelNameLen {
		return "", "", errInvalidChannelName
	}
	skeleton, err = Skeleton(name)
	if err != nil {
		return "", "", errInvalidChannelName
	}
	return
}

// newChannel is the constructor handed to the sharded map; it runs under
// the shard lock for cfname.
func (cm *ChannelManager) newChannel(name, cfname, skeleton string, settings *ChannelSettings) (*Channel, error) {
	owner, claimed := cm.chansSkeletons.LoadOrCreate(skeleton, func() string { return cfname })
	if !claimed && owner != cfname {
		return nil, errConfusableIdentifier
	}
	var initial ChannelSettings
	if settings != nil {
		initial = settings.Copy()
	} else {
		initial = NewChannelSettings(cm.config.DefaultModes, cm.config.ServerName)
	}
	channel := NewChannel(name, cfname, initial)
	if info, ok := cm.registry.LoadChannel(cfname); ok {
		channel.applyRegistration(info)
		cm.logger.Debug("channels", "restored registered channel", name)
	} else {
		cm.logger.Debug("channels", "created channel", name)
	}
	return channel, nil
}

// releaseSkeleton runs under the entry lock of the channel being destroyed.
func (cm *ChannelManager) releaseSkeleton(channel *Channel) {
	skeleton, err := Skeleton(channel.Name())
	if err != nil {
		return
	}
	cm.chansSkeletons.RemoveIf(skeleton, func(owner string) bool {
		return owner == channel.NameCasefolded()
	})
}

// Get returns a detached copy of the channel named `name`. Changes to the
// copy are not reflected in the manager.
func (cm *ChannelManager) Get(name string) (channel *Channel, ok bool) {
	cfname, err := cm.casefold(name)
	if err != nil {
		return nil, false
	}
	ok = cm.chans.Read(cfname, func(live *Channel) {
		channel = live.copy()
	})
	return
}

// Read runs fn with shared access to the channel named `name`.
func (cm *ChannelManager) Read(name string, fn func(*Channel)) error {
	cfname, err := cm.casefold(name)
	if err != nil {
		return err
	}
	if !cm.chans.Read(cfname, fn) {
		return ErrNoSuchChannel
	}
	return nil
}

// Write runs fn with exclusive access to the channel named `name`.
func (cm *ChannelManager) Write(name string, fn func(*Channel)) error {
	cfname, err := cm.casefold(name)
	if err != nil {
		return err
	}
	if !cm.chans.Write(cfname, fn) {
		return ErrNoSuchChannel
	}
	return nil
}

// Has returns whether a channel named `name` exists.
func (cm *ChannelManager) Has(name string) bool {
	cfname, err := cm.casefold(name)
	return err == nil && cm.chans.Has(cfname)
}

// Create creates an empty channel with the default settings; it returns
// errChannelNameInUse if the channel already exists.
func (cm *ChannelManager) Create(name string) error {
	return cm.create(name, nil)
}

// CreateWithInitialSettings is Create with the given settings in place of
// the defaults.
func (cm *ChannelManager) CreateWithInitialSettings(name string, settings ChannelSettings) error {
	return cm.create(name, &settings)
}

func (cm *ChannelManager) create(name string, settings *ChannelSettings) error {
	cfname, skeleton, err := cm.validate(name)
	if err != nil {
		return err
	}
	_, created, err := cm.chans.LoadOrTryCreate(cfname, func() (*Channel, error) {
		return cm.newChannel(name, cfname, skeleton, settings)
	})
	if err != nil {
		return err
	}
	if !created {
		return errChannelNameInUse
	}
	return nil
}

// Remove destroys the channel named `name` regardless of its members,
// returning the ids of the members it had.
func (cm *ChannelManager) Remove(name string) (members []ClientID, err error) {
	cfname, err := cm.casefold(name)
	if err != nil {
		return nil, err
	}
	_, removed := cm.chans.RemoveIf(cfname, func(channel *Channel) bool {
		for _, member := range channel.Members() {
			members = append(members, member.ID)
		}
		cm.releaseSkeleton(channel)
		return true
	})
	if !removed {
		return nil, ErrNoSuchChannel
	}
	cm.logger.Debug("channels", "destroyed channel", name)
	return members, nil
}

// List returns the display names of every channel, sorted by casefolded name.
func (cm *ChannelManager) List() (result []string) {
	cfnames := cm.chans.Keys()
	sort.Strings(cfnames)
	for _, cfname := range cfnames {
		cm.chans.Read(cfname, func(channel *Channel) {
			result = append(result, channel.Name())
		})
	}
	return
}

// Len returns the number of channels.
func (cm *ChannelManager) Len() int {
	return cm.chans.Len()
}

// AddMember adds id to an existing channel without any policy check. The
// first member of an empty channel becomes its Owner.
func (cm *ChannelManager) AddMember(name string, id ClientID) (member Member, err error) {
	err = cm.Write(name, func(channel *Channel) {
		var added bool
		member, added = channel.addMember(id)
		if !added {
			err = ErrAlreadyMember
		}
	})
	return
}

// JoinOrCreate adds id to the channel named `name`, creating the channel if
// it doesn't exist and mayCreate is set. gate, if non-nil, decides whether
// the join may proceed; it runs with the channel locked. It is skipped only
// for a channel this call created from the default settings, whose first
// joiner becomes Owner. A refused join destroys a channel it created. A
// successful join consumes id's pending invite. displayName is the
// channel's name as it was at join time.
func (cm *ChannelManager) JoinOrCreate(name string, id ClientID, mayCreate bool, gate func(*Channel) error) (member Member, created bool, displayName string, err error) {
	cfname, skeleton, err := cm.validate(name)
	if err != nil {
		return
	}

	for attempt := 0; attempt < maxJoinAttempts; attempt++ {
		createdNow := false
		if mayCreate {
			_, createdNow, err = cm.chans.LoadOrTryCreate(cfname, func() (*Channel, error) {
				return cm.newChannel(name, cfname, skeleton, nil)
			})
			if err != nil {
				return
			}
		}

		found := cm.chans.Write(cfname, func(channel *Channel) {
			// only a channel this join just made from the defaults is
			// exempt; preset and restored channels are checked
			fresh := createdNow && channel.IsEmpty() && !channel.IsRegistered()
			if gate != nil && !fresh {
				if err = gate(channel); err != nil {
					return
				}
			}
			var added bool
			member, added = channel.addMember(id)
			if !added {
				err = ErrAlreadyMember
				return
			}
			channel.accessControl.RemovePendingInvite(id)
			displayName = channel.Name()
		})
		if found {
			if err != nil {
				if createdNow {
					cm.destroyIfEmpty(cfname)
				}
				return member, false, "", err
			}
			return member, createdNow, displayName, nil
		}
		if !mayCreate {
			return member, false, "", errInsufficientPrivs
		}
		// the channel was destroyed between lookup and join; try again
	}
	cm.logger.Warning("channels", "join could not stabilize", name, string(id))
	return member, false, "", errCouldNotStabilize
}

// destroyIfEmpty removes a channel that a refused join created.
func (cm *ChannelManager) destroyIfEmpty(cfname string) {
	_, removed := cm.chans.RemoveIf(cfname, func(channel *Channel) bool {
		if !channel.IsEmpty() {
			return false
		}
		cm.releaseSkeleton(channel)
		return true
	})
	if removed {
		cm.logger.Debug("channels", "destroyed channel after refused join", cfname)
	}
}

// RemoveMember removes id from the channel named `name`, destroying the
// channel if it is left empty. deleted reports whether that happened.
func (cm *ChannelManager) RemoveMember(name string, id ClientID) (deleted bool, err error) {
	return cm.removeMember(name, id, nil)
}

// removeMember is RemoveMember with an optional check that runs under the
// channel lock first; if it fails nothing is removed.
func (cm *ChannelManager) removeMember(name string, id ClientID, check func(*Channel) error) (deleted bool, err error) {
	cfname, err := cm.casefold(name)
	if err != nil {
		return false, err
	}
	found := false
	_, deleted = cm.chans.RemoveIf(cfname, func(channel *Channel) bool {
		found = true
		if check != nil {
			if err = check(channel); err != nil {
				return false
			}
		}
		if !channel.removeMember(id) {
			err = ErrNotOnChannel
			return false
		}
		if channel.IsEmpty() {
			cm.releaseSkeleton(channel)
			return true
		}
		return false
	})
	if !found {
		return false, ErrNoSuchChannel
	}
	if deleted {
		cm.logger.Debug("channels", "destroyed empty channel", name)
	}
	return deleted, err
}

// GetMember returns id's membership record in the channel named `name`.
func (cm *ChannelManager) GetMember(name string, id ClientID) (member Member, ok bool) {
	cm.Read(name, func(channel *Channel) {
		member, ok = channel.Member(id)
	})
	return
}

// HasMember returns whether id is a member of the channel named `name`.
func (cm *ChannelManager) HasMember(name string, id ClientID) (ok bool) {
	cm.Read(name, func(channel *Channel) {
		ok = channel.HasMember(id)
	})
	return
}

// Registry returns the registry the manager restores channels from.
func (cm *ChannelManager) Registry() *ChannelRegistry {
	return cm.registry
}
