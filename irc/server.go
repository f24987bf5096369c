// Copyright (c) 2012-2014 Jeremy Latt
// Copyright (c) 2014-2015 Edmund Huber
// Copyright (c) 2016-2017 Daniel Oaks <daniel@danieloaks.net>
// Copyright (c) 2024 The Flex Authors
// released under the MIT license

package irc

import (
	"fmt"
	"strconv"
	"time"

	"github.com/ergochat/irc-go/ircutils"

	"github.com/PhiSyX/flex/irc/bunt"
	"github.com/PhiSyX/flex/irc/datastore"
	"github.com/PhiSyX/flex/irc/flock"
	"github.com/PhiSyX/flex/irc/isupport"
	"github.com/PhiSyX/flex/irc/logger"
	"github.com/PhiSyX/flex/irc/masks"
	"github.com/PhiSyX/flex/irc/modes"
	"github.com/PhiSyX/flex/irc/mysql"
	"github.com/PhiSyX/flex/irc/utils"
)

// Sink receives the effects of engine operations for delivery to clients.
// The engine never calls it: callers take the returned outcomes and emit
// whatever their transport needs.
type Sink interface {
	Send(to ClientID, source string, command string, params ...string) error
}

// Server owns the channel and client registries and exposes the
// handler-level operations that compose them.
type Server struct {
	config   *Config
	logger   *logger.Manager
	channels *ChannelManager
	clients  *ClientManager
	registry *ChannelRegistry
	dstore   datastore.Datastore
	flock    flock.Flocker
	isupport *isupport.List
}

// NewServer returns a server for config, opening the configured datastore
// and loading its registered channels.
func NewServer(config *Config, log *logger.Manager) (server *Server, err error) {
	server = &Server{
		config: config,
		logger: log,
	}

	if err = server.openDatastore(); err != nil {
		return nil, err
	}
	server.registry = NewChannelRegistry(server.dstore)
	if err = server.registry.Load(server); err != nil {
		server.Shutdown()
		return nil, fmt.Errorf("could not load registered channels: %w", err)
	}

	server.channels = NewChannelManager(config.ChannelManagerConfig(), server.registry, log)
	server.clients = NewClientManager(log)
	if err = server.setISupport(); err != nil {
		server.Shutdown()
		return nil, err
	}
	log.Info("server", "engine started", config.Server.Name, "datastore", config.Datastore.Backend)
	return server, nil
}

func (server *Server) openDatastore() (err error) {
	dsConfig := server.config.Datastore
	switch dsConfig.Backend {
	case BackendBuntDB:
		server.flock, err = flock.AcquireForDatastore(dsConfig.Path)
		if err != nil {
			return err
		}
		server.dstore, err = bunt.Open(dsConfig.Path, server.logger)
		if err != nil {
			server.flock.Unlock()
			server.flock = nil
		}
		return err
	case BackendMySQL:
		store := new(mysql.MySQL)
		store.Initialize(server.logger, dsConfig.MySQL)
		if err = store.Open(); err != nil {
			return fmt.Errorf("could not open mysql datastore: %w", err)
		}
		server.dstore = store
	}
	return nil
}

// Shutdown closes the datastore and releases its lock.
func (server *Server) Shutdown() (err error) {
	if server.dstore != nil {
		err = server.dstore.Close()
		server.dstore = nil
	}
	if server.flock != nil {
		server.flock.Unlock()
		server.flock = nil
	}
	return
}

// setISupport advertises the channel semantics the engine implements.
func (server *Server) setISupport() error {
	channels := server.config.Channels
	maxList := strconv.Itoa(channels.MaxListEntries)

	isupport := isupport.NewList()
	isupport.Add("CASEMAPPING", server.config.Server.Casemapping)
	isupport.Add("CHANLIMIT", "#:")
	isupport.Add("CHANMODES", modes.ChanmodesToken())
	isupport.AddInt("CHANNELLEN", channels.MaxChannelNameLen)
	isupport.Add("CHANTYPES", "#")
	isupport.Add("EXCEPTS", string(modes.ExceptMask))
	isupport.Add("INVEX", string(modes.InviteMask))
	isupport.Add("MAXLIST", fmt.Sprintf("%c%c%c:%s", modes.BanMask, modes.ExceptMask, modes.InviteMask, maxList))
	isupport.Add("NETWORK", server.config.Server.Name)
	isupport.Add("PREFIX", modes.PrefixToken())
	isupport.AddInt("TOPICLEN", channels.TopicLen)

	err := isupport.RegenerateCachedReply()
	if err != nil {
		return err
	}
	server.isupport = isupport
	return nil
}

// ISupport returns the RPL_ISUPPORT tokens for the engine's configuration.
func (server *Server) ISupport() *isupport.List {
	return server.isupport
}

func (server *Server) Config() *Config {
	return server.config
}

func (server *Server) Logger() *logger.Manager {
	return server.logger
}

func (server *Server) Channels() *ChannelManager {
	return server.channels
}

func (server *Server) Clients() *ClientManager {
	return server.clients
}

func (server *Server) actor(id ClientID) (details ClientDetails, err error) {
	details, ok := server.clients.Get(id)
	if !ok {
		return details, ErrNoSuchNick
	}
	return details, nil
}

// AddClient registers a client with the engine.
func (server *Server) AddClient(details ClientDetails) (ClientID, error) {
	client := NewClient(details)
	if err := server.clients.Add(client); err != nil {
		return "", err
	}
	return client.ID(), nil
}

// JoinResult is the outcome of a successful join.
type JoinResult struct {
	Channel string
	Member  Member
	Created bool
}

// Join adds the client to a channel, creating it if needed. The client
// that creates a channel from the default settings skips the join checks;
// the first joiner of any channel becomes its Owner.
func (server *Server) Join(id ClientID, name string, key utils.Secret) (result JoinResult, err error) {
	details, err := server.actor(id)
	if err != nil {
		return
	}
	mayCreate := !server.config.Channels.OperOnlyCreation || details.GlobalOperator
	gate := func(channel *Channel) error {
		return CanJoin(channel, details, key)
	}

	result.Member, result.Created, result.Channel, err = server.channels.JoinOrCreate(name, id, mayCreate, gate)
	if err != nil {
		if reason, ok := RejectionReason(err); ok {
			server.logger.Debug("accesscontrol", "join rejected", details.Address(), name, reason.String())
		}
		return
	}

	cfname, _ := CasefoldChannel(name)
	if !server.clients.AddJoined(id, cfname) {
		// the client quit while joining
		server.channels.RemoveMember(name, id)
		return result, ErrNoSuchNick
	}
	return result, nil
}

// Part removes the client from a channel. deleted reports whether the
// channel was destroyed because it became empty.
func (server *Server) Part(id ClientID, name string) (deleted bool, err error) {
	deleted, err = server.channels.RemoveMember(name, id)
	if err != nil {
		return
	}
	if cfname, err := CasefoldChannel(name); err == nil {
		server.clients.RemoveJoined(id, cfname)
	}
	return deleted, nil
}

// QuitResult is the outcome of a quit.
type QuitResult struct {
	Details ClientDetails
	// Channels the client was in, casefolded.
	Channels []string
	// Destroyed lists the channels that became empty.
	Destroyed []string
}

// Quit removes the client from every channel and forgets it.
func (server *Server) Quit(id ClientID) (result QuitResult, err error) {
	details, channels, ok := server.clients.Remove(id)
	if !ok {
		return result, ErrNoSuchNick
	}
	result.Details = details
	for _, cfname := range channels {
		deleted, err := server.channels.RemoveMember(cfname, id)
		if err != nil {
			continue
		}
		result.Channels = append(result.Channels, cfname)
		if deleted {
			result.Destroyed = append(result.Destroyed, cfname)
		}
	}
	return result, nil
}

// Kick removes target from a channel on actor's authority.
func (server *Server) Kick(actorID ClientID, name string, target ClientID) (deleted bool, err error) {
	details, err := server.actor(actorID)
	if err != nil {
		return
	}
	actor := details.Actor()
	check := func(channel *Channel) error {
		if !actor.GlobalOperator && !channel.HasMember(actor.ID) {
			return ErrNotOnChannel
		}
		if !channel.HasMember(target) {
			return ErrUserNotInChannel
		}
		if !CanOperateOn(channel, actor, target) {
			return ErrChanOpPrivsNeeded
		}
		return nil
	}
	deleted, err = server.channels.removeMember(name, target, check)
	if err != nil {
		return
	}
	if cfname, err := CasefoldChannel(name); err == nil {
		server.clients.RemoveJoined(target, cfname)
	}
	server.logger.Debug("channels", "kicked", string(target), "from", name, "by", details.Address())
	return deleted, nil
}

// Invite records a pending invite for target. On an invite-only channel the
// inviter must be at least a HalfOperator.
func (server *Server) Invite(actorID ClientID, name string, target ClientID) error {
	details, err := server.actor(actorID)
	if err != nil {
		return err
	}
	if !server.clients.Has(target) {
		return ErrNoSuchNick
	}
	if server.clients.IsBlocked(target, actorID) {
		return ErrIgnored
	}
	actor := details.Actor()
	werr := server.channels.Write(name, func(channel *Channel) {
		switch {
		case !actor.GlobalOperator && !channel.HasMember(actor.ID):
			err = ErrNotOnChannel
		case channel.HasMember(target):
			err = ErrUserOnChannel
		case channel.Settings().HasInviteOnly() && !HasMinimumLevel(channel, actor, modes.HalfOperator):
			err = ErrChanOpPrivsNeeded
		default:
			channel.AccessControl().AddPendingInvite(target)
		}
	})
	return orElse(werr, err)
}

// Uninvite withdraws a pending invite.
func (server *Server) Uninvite(actorID ClientID, name string, target ClientID) error {
	details, err := server.actor(actorID)
	if err != nil {
		return err
	}
	actor := details.Actor()
	werr := server.channels.Write(name, func(channel *Channel) {
		switch {
		case !HasMinimumLevel(channel, actor, modes.HalfOperator):
			err = ErrChanOpPrivsNeeded
		case !channel.AccessControl().RemovePendingInvite(target):
			err = ErrNoSuchInvite
		}
	})
	return orElse(werr, err)
}

// orElse returns the registry error if there was one, and otherwise the
// error produced inside the callback.
func orElse(registryErr, callbackErr error) error {
	if registryErr != nil {
		return registryErr
	}
	return callbackErr
}

// SetTopic sets (or, with empty text, clears) a channel's topic.
func (server *Server) SetTopic(actorID ClientID, name, text string) (topic Topic, err error) {
	details, err := server.actor(actorID)
	if err != nil {
		return
	}
	actor := details.Actor()
	text = ircutils.SanitizeText(text, server.config.Channels.TopicLen)

	var registered bool
	var info RegisteredChannel
	werr := server.channels.Write(name, func(channel *Channel) {
		switch {
		case !actor.GlobalOperator && !channel.HasMember(actor.ID):
			err = ErrNotOnChannel
			return
		case channel.Settings().HasNoTopicChange() && !HasMinimumLevel(channel, actor, modes.HalfOperator):
			err = ErrChanOpPrivsNeeded
			return
		}
		if text == "" {
			channel.ClearTopic()
		} else {
			channel.SetTopic(Topic{Text: text, SetBy: details.Address(), SetAt: time.Now().UTC()})
		}
		topic = channel.Topic()
		if registered = channel.IsRegistered(); registered {
			info = channel.ExportRegistration(details.Address())
		}
	})
	err = orElse(werr, err)
	if err == nil && registered {
		server.storeRegistration(info)
	}
	return
}

// GrantLevel gives target an access level in a channel.
func (server *Server) GrantLevel(actorID ClientID, name string, target ClientID, level modes.AccessLevel) error {
	details, err := server.actor(actorID)
	if err != nil {
		return err
	}
	actor := details.Actor()
	werr := server.channels.Write(name, func(channel *Channel) {
		err = grantLevel(channel, actor, target, level)
	})
	return orElse(werr, err)
}

// RevokeLevel takes an access level away from target in a channel.
func (server *Server) RevokeLevel(actorID ClientID, name string, target ClientID, level modes.AccessLevel) error {
	details, err := server.actor(actorID)
	if err != nil {
		return err
	}
	actor := details.Actor()
	werr := server.channels.Write(name, func(channel *Channel) {
		err = revokeLevel(channel, actor, target, level)
	})
	return orElse(werr, err)
}

func grantLevel(channel *Channel, actor Actor, target ClientID, level modes.AccessLevel) error {
	if !level.IsValid() {
		return ErrUnknownMode
	}
	if !actor.GlobalOperator && !channel.HasMember(actor.ID) {
		return ErrNotOnChannel
	}
	if !channel.HasMember(target) {
		return ErrUserNotInChannel
	}
	if !CanGrant(channel, actor, level) {
		return ErrChanOpPrivsNeeded
	}
	if !channel.GrantLevel(target, level) {
		return ErrModeNotChanged
	}
	return nil
}

// revokeLevel lets anyone drop their own levels; revoking someone else's
// needs both the right to grant it and authority over them.
func revokeLevel(channel *Channel, actor Actor, target ClientID, level modes.AccessLevel) error {
	if !level.IsValid() {
		return ErrUnknownMode
	}
	if !actor.GlobalOperator && !channel.HasMember(actor.ID) {
		return ErrNotOnChannel
	}
	if !channel.HasMember(target) {
		return ErrUserNotInChannel
	}
	if actor.ID != target && !(CanGrant(channel, actor, level) && CanOperateOn(channel, actor, target)) {
		return ErrChanOpPrivsNeeded
	}
	if !channel.RevokeLevel(target, level) {
		return ErrModeNotChanged
	}
	return nil
}

// ModeError is a mode change that could not be applied.
type ModeError struct {
	Change modes.ModeChange
	Err    error
}

// ModeResult is the outcome of ApplyModeChanges.
type ModeResult struct {
	// Applied holds the changes that took effect, with arguments
	// normalized (canonical masks, redacted keys).
	Applied modes.ModeChanges
	Errors  []ModeError
}

// ApplyModeChanges applies a batch of channel mode changes on actor's
// authority. Changes are applied independently: a refused change is
// reported in the result and doesn't stop the rest. Access level changes
// take a nickname argument.
func (server *Server) ApplyModeChanges(actorID ClientID, name string, changes modes.ModeChanges) (result ModeResult, err error) {
	details, err := server.actor(actorID)
	if err != nil {
		return
	}
	actor := details.Actor()

	// resolve nicks before taking the channel lock
	targets := make(map[string]ClientID)
	for _, change := range changes {
		if _, lerr := modes.ParseAccessLevelLetter(rune(change.Mode)); lerr == nil {
			if id, ok := server.clients.ByNick(change.Arg); ok {
				targets[change.Arg] = id
			}
		}
	}

	var registered bool
	var info RegisteredChannel
	err = server.channels.Write(name, func(channel *Channel) {
		applier := modeApplier{
			channel:        channel,
			actor:          actor,
			setBy:          details.Address(),
			targets:        targets,
			maxListEntries: server.config.Channels.MaxListEntries,
		}
		for _, change := range changes {
			applied, cerr := applier.apply(change)
			if cerr != nil {
				result.Errors = append(result.Errors, ModeError{Change: change, Err: cerr})
				continue
			}
			result.Applied = append(result.Applied, applied)
		}
		if registered = channel.IsRegistered() && len(result.Applied) != 0; registered {
			info = channel.ExportRegistration(details.Address())
		}
	})
	if err != nil {
		return
	}
	for _, merr := range result.Errors {
		if reason, ok := RejectionReason(merr.Err); ok {
			server.logger.Debug("accesscontrol", "mode change rejected", details.Address(), name, merr.Change.String(), reason.String())
		}
	}
	if registered {
		server.storeRegistration(info)
	}
	return result, nil
}

type modeApplier struct {
	channel        *Channel
	actor          Actor
	setBy          string
	targets        map[string]ClientID
	maxListEntries int
}

func (applier *modeApplier) apply(change modes.ModeChange) (applied modes.ModeChange, err error) {
	channel, actor := applier.channel, applier.actor
	applied = change

	if level, lerr := modes.ParseAccessLevelLetter(rune(change.Mode)); lerr == nil {
		target, ok := applier.targets[change.Arg]
		if !ok {
			return applied, ErrNoSuchNick
		}
		switch change.Op {
		case modes.Add:
			err = grantLevel(channel, actor, target, level)
		case modes.Remove:
			err = revokeLevel(channel, actor, target, level)
		default:
			err = ErrNeedMoreParams
		}
		return
	}

	if !actor.GlobalOperator && !channel.HasMember(actor.ID) {
		return applied, ErrNotOnChannel
	}
	if !HasMinimumLevel(channel, actor, modes.HalfOperator) {
		return applied, ErrChanOpPrivsNeeded
	}

	switch {
	case modes.IsListMode(change.Mode):
		return applier.applyList(change)
	case modes.IsSettingMode(change.Mode):
		return applier.applySetting(change)
	}
	return applied, ErrUnknownMode
}

func (applier *modeApplier) applyList(change modes.ModeChange) (applied modes.ModeChange, err error) {
	ac := applier.channel.AccessControl()
	applied = change
	switch change.Op {
	case modes.Add:
		list, _ := ac.List(change.Mode)
		if list.Len() >= applier.maxListEntries {
			return applied, ErrListFull
		}
		record, ok := ac.Add(NewMaskRecord(change.Mode, change.Arg, applier.setBy))
		if !ok {
			return applied, ErrModeNotChanged
		}
		applied.Arg = record.Flag.Mask.String()
	case modes.Remove:
		record, ok := ac.Remove(change.Mode, change.Arg)
		if !ok {
			return applied, ErrNoSuchMask
		}
		applied.Arg = record.Flag.Mask.String()
	default:
		return applied, ErrNeedMoreParams
	}
	return applied, nil
}

func (applier *modeApplier) applySetting(change modes.ModeChange) (applied modes.ModeChange, err error) {
	settings := applier.channel.Settings()
	applied = change

	if change.Mode == modes.OperOnly && !applier.actor.GlobalOperator {
		return applied, errInsufficientPrivs
	}

	var flag SettingsFlag
	switch change.Mode {
	case modes.Key:
		if change.Op == modes.Add && change.Arg == "" {
			return applied, ErrNeedMoreParams
		}
		flag = KeyFlag(utils.NewSecret(change.Arg))
		// keys are never echoed back
		applied.Arg = "*"
	case modes.UserLimit:
		if change.Op == modes.Add {
			limit, perr := strconv.ParseUint(change.Arg, 10, 64)
			if perr != nil || limit == 0 {
				return applied, ErrInvalidLimit
			}
			flag = LimitFlag(limit)
			applied.Arg = strconv.FormatUint(limit, 10)
		} else {
			flag = LimitFlag(0)
		}
	default:
		flag = Flag(change.Mode)
	}

	record := NewModeRecord(flag, applier.setBy)
	var ok bool
	switch change.Op {
	case modes.Add:
		_, ok = settings.Set(record)
	case modes.Remove:
		_, ok = settings.Unset(record)
	default:
		return applied, ErrNeedMoreParams
	}
	if !ok {
		return applied, ErrModeNotChanged
	}
	return applied, nil
}

// ListMasks returns the entries of one of a channel's mask lists.
func (server *Server) ListMasks(name string, mode modes.Mode) (result []MaskRecord, err error) {
	if !modes.IsListMode(mode) {
		return nil, ErrUnknownMode
	}
	err = server.channels.Read(name, func(channel *Channel) {
		list, _ := channel.AccessControl().List(mode)
		result = list.Records()
	})
	return
}

// Names lists a channel's members in join order as prefixed nicknames,
// e.g. "@alice". With multiPrefix every held level is shown, otherwise only
// the highest. A secret channel lists nobody to outsiders.
func (server *Server) Names(actorID ClientID, name string, multiPrefix bool) (result []string, err error) {
	details, _ := server.clients.Get(actorID)
	var members []Member
	err = server.channels.Read(name, func(channel *Channel) {
		if channel.Settings().HasSecret() && !details.GlobalOperator && !channel.HasMember(actorID) {
			return
		}
		members = channel.Members()
	})
	if err != nil {
		return nil, err
	}
	// client lookups happen after the channel lock is released
	for _, member := range members {
		client, ok := server.clients.Get(member.ID)
		if !ok {
			continue
		}
		result = append(result, member.AccessLevels.Prefixes(multiPrefix)+client.Nick)
	}
	return result, nil
}

// ChannelModes renders a channel's settings. Only members and global
// operators see the key.
func (server *Server) ChannelModes(actorID ClientID, name string) (result []string, err error) {
	details, _ := server.clients.Get(actorID)
	err = server.channels.Read(name, func(channel *Channel) {
		showKey := details.GlobalOperator || channel.HasMember(actorID)
		result = channel.Settings().ModeString(showKey)
	})
	return
}

// IsBanned reports whether the address would be refused by the channel's
// ban list.
func (server *Server) IsBanned(name, address string) (banned bool, err error) {
	mask := masks.Parse(address)
	nuh := mask.NUH()
	err = server.channels.Read(name, func(channel *Channel) {
		banned = channel.AccessControl().IsBanned(nuh)
	})
	return
}

// RegisterChannel persists a channel's lists, settings and topic so that
// they survive the channel emptying out. Only the Owner (or a global
// operator) may register a channel.
func (server *Server) RegisterChannel(actorID ClientID, name string) error {
	details, err := server.actor(actorID)
	if err != nil {
		return err
	}
	actor := details.Actor()
	var info RegisteredChannel
	werr := server.channels.Write(name, func(channel *Channel) {
		if !HasMinimumLevel(channel, actor, modes.Owner) {
			err = ErrChanOpPrivsNeeded
			return
		}
		channel.registered = true
		info = channel.ExportRegistration(details.Address())
	})
	err = orElse(werr, err)
	if err != nil {
		return err
	}
	return server.storeRegistration(info)
}

// UnregisterChannel stops persisting a channel.
func (server *Server) UnregisterChannel(actorID ClientID, name string) error {
	details, err := server.actor(actorID)
	if err != nil {
		return err
	}
	actor := details.Actor()
	cfname, err := CasefoldChannel(name)
	if err != nil {
		return ErrNoSuchChannel
	}
	werr := server.channels.Write(name, func(channel *Channel) {
		if !HasMinimumLevel(channel, actor, modes.Owner) {
			err = ErrChanOpPrivsNeeded
			return
		}
		channel.registered = false
	})
	err = orElse(werr, err)
	if err != nil {
		return err
	}
	if err = server.registry.DeleteChannel(cfname); err != nil && err != ErrNoSuchChannel {
		server.logger.Error("datastore", "could not unregister channel", name, err.Error())
		return err
	}
	return nil
}

func (server *Server) storeRegistration(info RegisteredChannel) error {
	err := server.registry.StoreChannel(info)
	if err != nil {
		server.logger.Error("datastore", "could not store channel", info.Name, err.Error())
	}
	return err
}
