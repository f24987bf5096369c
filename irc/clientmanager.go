// Copyright (c) 2012-2014 Jeremy Latt
// Copyright (c) 2016-2017 Daniel Oaks <daniel@danieloaks.net>
// Copyright (c) 2024 The Flex Authors
// released under the MIT license

package irc

import (
	"fmt"
	"sort"
	"strings"

	"github.com/PhiSyX/flex/irc/logger"
	"github.com/PhiSyX/flex/irc/utils"
)

// ExpandUserHost takes a userhost, and returns an expanded version.
func ExpandUserHost(userhost string) (expanded string) {
	expanded = userhost
	// fill in missing wildcards for nicks
	if !strings.Contains(expanded, "!") {
		expanded += "!*"
	}
	if !strings.Contains(expanded, "@") {
		expanded += "@*"
	}
	return
}

// ClientManager keeps track of clients by id, and maintains a reverse index
// from casefolded nick to id, enforcing uniqueness of casefolded nicks.
type ClientManager struct {
	clients *utils.ShardedMap[*Client]
	byNick  *utils.ShardedMap[ClientID]
	logger  *logger.Manager
}

// NewClientManager returns a new ClientManager.
func NewClientManager(logger *logger.Manager) *ClientManager {
	return &ClientManager{
		clients: utils.NewShardedMap[*Client](),
		byNick:  utils.NewShardedMap[ClientID](),
		logger:  logger,
	}
}

// Len returns how many clients are in the manager.
func (clients *ClientManager) Len() int {
	return clients.clients.Len()
}

// Add registers a client, claiming its nick if it has one.
func (clients *ClientManager) Add(client *Client) (err error) {
	var cfnick string
	if nick := client.Nick(); nick != "" {
		cfnick, err = CasefoldName(nick)
		if err != nil {
			return err
		}
		if !clients.byNick.Insert(cfnick, client.ID()) {
			return errNicknameInUse
		}
	}
	client.nickCasefolded = cfnick
	if !clients.clients.Insert(string(client.ID()), client) {
		if cfnick != "" {
			clients.releaseNick(cfnick, client.ID())
		}
		return errClientIDInUse
	}
	clients.logger.Debug("clients", "added client", string(client.ID()), client.Nick())
	return nil
}

func (clients *ClientManager) releaseNick(cfnick string, id ClientID) {
	clients.byNick.RemoveIf(cfnick, func(owner ClientID) bool {
		return owner == id
	})
}

// Remove removes a client and releases its nick. It returns the client's
// final state, so the caller can part it from its channels.
func (clients *ClientManager) Remove(id ClientID) (details ClientDetails, channels []string, ok bool) {
	client, ok := clients.clients.Remove(string(id))
	if !ok {
		return
	}
	// the entry is gone; nobody else can obtain a handle to it now
	details, channels = client.Details(), client.Channels()
	if cfnick := client.NickCasefolded(); cfnick != "" {
		clients.releaseNick(cfnick, id)
	}
	clients.logger.Debug("clients", "removed client", string(id), details.Nick)
	return details, channels, true
}

// Get returns a snapshot of the client's details.
func (clients *ClientManager) Get(id ClientID) (details ClientDetails, ok bool) {
	ok = clients.clients.Read(string(id), func(client *Client) {
		details = client.Details()
	})
	return
}

// Has returns whether the client is known.
func (clients *ClientManager) Has(id ClientID) bool {
	return clients.clients.Has(string(id))
}

// Read runs fn with shared access to the client.
func (clients *ClientManager) Read(id ClientID, fn func(*Client)) bool {
	return clients.clients.Read(string(id), fn)
}

// Write runs fn with exclusive access to the client.
func (clients *ClientManager) Write(id ClientID, fn func(*Client)) bool {
	return clients.clients.Write(string(id), fn)
}

// ByNick resolves a nick, case-insensitively.
func (clients *ClientManager) ByNick(nick string) (id ClientID, ok bool) {
	cfnick, err := CasefoldName(nick)
	if err != nil {
		return
	}
	return clients.byNick.Get(cfnick)
}

// GetByNick resolves a nick and returns the client's details.
func (clients *ClientManager) GetByNick(nick string) (details ClientDetails, ok bool) {
	id, ok := clients.ByNick(nick)
	if !ok {
		return
	}
	return clients.Get(id)
}

// SetNick sets a client's nickname, validating it against nicknames in use.
func (clients *ClientManager) SetNick(id ClientID, newNick string) error {
	newcfnick, err := CasefoldName(newNick)
	if err != nil {
		return err
	}

	claimed := clients.byNick.Insert(newcfnick, id)
	if !claimed {
		// the client may just be changing case
		if owner, _ := clients.byNick.Get(newcfnick); owner != id {
			return errNicknameInUse
		}
	}

	var oldcfnick string
	found := clients.clients.Write(string(id), func(client *Client) {
		oldcfnick = client.nickCasefolded
		client.nickCasefolded = newcfnick
		client.details.Nick = newNick
	})
	if !found {
		if claimed {
			clients.releaseNick(newcfnick, id)
		}
		return ErrNoSuchNick
	}
	if oldcfnick != "" && oldcfnick != newcfnick {
		clients.releaseNick(oldcfnick, id)
	}
	return nil
}

// AddToBlock makes id ignore target. It returns false if the client is
// unknown or already ignores target.
func (clients *ClientManager) AddToBlock(id, target ClientID) (added bool) {
	clients.clients.Write(string(id), func(client *Client) {
		added = client.blocked.AddNew(target)
	})
	return
}

// RemoveFromBlock stops id ignoring target.
func (clients *ClientManager) RemoveFromBlock(id, target ClientID) (removed bool) {
	clients.clients.Write(string(id), func(client *Client) {
		removed = client.blocked.Pop(target)
	})
	return
}

// IsBlocked returns whether id ignores target.
func (clients *ClientManager) IsBlocked(id, target ClientID) (blocked bool) {
	clients.clients.Read(string(id), func(client *Client) {
		blocked = client.blocked.Has(target)
	})
	return
}

// AddJoined records that id is in the channel with the given casefolded name.
func (clients *ClientManager) AddJoined(id ClientID, cfname string) bool {
	return clients.clients.Write(string(id), func(client *Client) {
		client.channels.Add(cfname)
	})
}

// RemoveJoined forgets that id is in the channel with the given casefolded name.
func (clients *ClientManager) RemoveJoined(id ClientID, cfname string) bool {
	return clients.clients.Write(string(id), func(client *Client) {
		client.channels.Remove(cfname)
	})
}

// Joined returns the casefolded names of id's channels, sorted.
func (clients *ClientManager) Joined(id ClientID) (result []string) {
	clients.clients.Read(string(id), func(client *Client) {
		result = client.Channels()
	})
	sort.Strings(result)
	return
}

// All returns a snapshot of every client's details.
func (clients *ClientManager) All() (result []ClientDetails) {
	for _, client := range clients.clients.Values() {
		clients.clients.Read(string(client.ID()), func(client *Client) {
			result = append(result, client.Details())
		})
	}
	return
}

// FindAll returns all clients that match any of the given userhost masks.
func (clients *ClientManager) FindAll(userhosts ...string) (result []ClientDetails) {
	expanded := make([]string, len(userhosts))
	for i, userhost := range userhosts {
		expanded[i] = ExpandUserHost(userhost)
	}
	matcher, err := utils.CompileMasks(expanded)
	if err != nil {
		clients.logger.Debug("clients", fmt.Sprintf("invalid search masks %q", userhosts), err.Error())
		return
	}
	for _, details := range clients.All() {
		if matcher.MatchString(details.Address()) {
			result = append(result, details)
		}
	}
	return
}
