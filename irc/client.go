// Copyright (c) 2012-2014 Jeremy Latt
// Copyright (c) 2014-2015 Edmund Huber
// Copyright (c) 2016-2017 Daniel Oaks <daniel@danieloaks.net>
// Copyright (c) 2024 The Flex Authors
// released under the MIT license

package irc

import (
	"time"

	"github.com/ergochat/irc-go/ircmsg"
	"github.com/google/uuid"

	"github.com/PhiSyX/flex/irc/masks"
	"github.com/PhiSyX/flex/irc/utils"
)

// ClientID is the stable identity of a client for its whole session.
type ClientID string

// NewClientID returns a fresh random ClientID.
func NewClientID() ClientID {
	return ClientID(uuid.NewString())
}

// ClientDetails is a read-only snapshot of a client's identity.
type ClientDetails struct {
	ID             ClientID
	Nick           string
	Ident          string
	Host           string
	RealName       string
	GlobalOperator bool
	Registered     bool
	Connected      bool
}

// NUH returns the client's nick!ident@host source.
func (details ClientDetails) NUH() ircmsg.NUH {
	return ircmsg.NUH{Name: details.Nick, User: details.Ident, Host: details.Host}
}

// Address returns the client's nick!ident@host text.
func (details ClientDetails) Address() string {
	return masks.Address(details.Nick, details.Ident, details.Host)
}

// Actor returns the client as the initiator of a request.
func (details ClientDetails) Actor() Actor {
	return Actor{ID: details.ID, GlobalOperator: details.GlobalOperator}
}

// Client is a connected (or known) client. Clients are owned by the
// ClientManager and are only accessed through its handles, which hold the
// client's lock; Client methods do no locking of their own.
type Client struct {
	details        ClientDetails
	nickCasefolded string
	ctime          time.Time
	// casefolded names of the channels the client believes it is in
	channels utils.HashSet[string]
	// clients whose messages this client ignores
	blocked utils.HashSet[ClientID]
}

// NewClient creates a client. An empty id is replaced by a fresh one.
func NewClient(details ClientDetails) *Client {
	if details.ID == "" {
		details.ID = NewClientID()
	}
	return &Client{
		details:  details,
		ctime:    time.Now().UTC(),
		channels: make(utils.HashSet[string]),
		blocked:  make(utils.HashSet[ClientID]),
	}
}

func (client *Client) ID() ClientID {
	return client.details.ID
}

func (client *Client) Details() ClientDetails {
	return client.details
}

func (client *Client) Nick() string {
	return client.details.Nick
}

func (client *Client) NickCasefolded() string {
	return client.nickCasefolded
}

func (client *Client) CreatedTime() time.Time {
	return client.ctime
}

func (client *Client) SetGlobalOperator(isOper bool) {
	client.details.GlobalOperator = isOper
}

func (client *Client) SetRegistered(registered bool) {
	client.details.Registered = registered
}

func (client *Client) SetConnected(connected bool) {
	client.details.Connected = connected
}

// Channels returns the casefolded names of the client's channels.
func (client *Client) Channels() (result []string) {
	result = make([]string, 0, len(client.channels))
	for name := range client.channels {
		result = append(result, name)
	}
	return
}

func (client *Client) IsBlocked(other ClientID) bool {
	return client.blocked.Has(other)
}

// Blocked returns the ids this client ignores.
func (client *Client) Blocked() (result []ClientID) {
	result = make([]ClientID, 0, len(client.blocked))
	for id := range client.blocked {
		result = append(result, id)
	}
	return
}
