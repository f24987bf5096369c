// Copyright (c) 2024 The Flex Authors
// released under the MIT license

package irc

import (
	"sort"
	"testing"
)

func addTestClient(clients *ClientManager, id ClientID, nick, ident, host string) {
	err := clients.Add(NewClient(ClientDetails{ID: id, Nick: nick, Ident: ident, Host: host}))
	if err != nil {
		panic(err)
	}
}

func TestExpandUserHost(t *testing.T) {
	assertEqual(ExpandUserHost("alice"), "alice!*@*", t)
	assertEqual(ExpandUserHost("alice!ali"), "alice!ali@*", t)
	assertEqual(ExpandUserHost("a!b@c"), "a!b@c", t)
}

func TestClientNickUniqueness(t *testing.T) {
	clients := NewClientManager(nil)
	addTestClient(clients, "1", "Alice", "a", "example.com")

	err := clients.Add(NewClient(ClientDetails{ID: "2", Nick: "alice"}))
	assertEqual(err, errNicknameInUse, t)
	assertEqual(clients.Len(), 1, t)

	// an id clash must not leave the new nick claimed
	err = clients.Add(NewClient(ClientDetails{ID: "1", Nick: "bob"}))
	assertEqual(err, errClientIDInUse, t)
	_, ok := clients.ByNick("bob")
	assertEqual(ok, false, t)

	id, ok := clients.ByNick("ALICE")
	assertEqual(ok, true, t)
	assertEqual(id, ClientID("1"), t)
}

func TestClientWithoutNick(t *testing.T) {
	clients := NewClientManager(nil)
	client := NewClient(ClientDetails{Ident: "anon"})
	if err := clients.Add(client); err != nil {
		t.Fatal(err)
	}
	if client.ID() == "" {
		t.Error("expected a generated id")
	}
	assertEqual(clients.Has(client.ID()), true, t)
}

func TestSetNick(t *testing.T) {
	clients := NewClientManager(nil)
	addTestClient(clients, "1", "alice", "a", "example.com")
	addTestClient(clients, "2", "bob", "b", "example.com")

	assertEqual(clients.SetNick("2", "Alice"), errNicknameInUse, t)

	// changing case keeps the nick
	assertEqual(clients.SetNick("1", "ALICE"), nil, t)
	details, _ := clients.Get("1")
	assertEqual(details.Nick, "ALICE", t)
	id, _ := clients.ByNick("alice")
	assertEqual(id, ClientID("1"), t)

	// a real change frees the old nick
	assertEqual(clients.SetNick("1", "carol"), nil, t)
	_, ok := clients.ByNick("alice")
	assertEqual(ok, false, t)
	assertEqual(clients.SetNick("2", "alice"), nil, t)

	assertEqual(clients.SetNick("404", "dave"), ErrNoSuchNick, t)
	_, ok = clients.ByNick("dave")
	assertEqual(ok, false, t)
}

func TestRemoveClient(t *testing.T) {
	clients := NewClientManager(nil)
	addTestClient(clients, "1", "alice", "a", "example.com")
	clients.AddJoined("1", "#a")
	clients.AddJoined("1", "#b")

	details, channels, ok := clients.Remove("1")
	assertEqual(ok, true, t)
	assertEqual(details.Nick, "alice", t)
	sort.Strings(channels)
	assertEqual(channels, []string{"#a", "#b"}, t)

	_, ok = clients.ByNick("alice")
	assertEqual(ok, false, t)
	_, _, ok = clients.Remove("1")
	assertEqual(ok, false, t)

	// the nick is free again
	addTestClient(clients, "2", "alice", "a", "example.com")
}

func TestJoinedChannels(t *testing.T) {
	clients := NewClientManager(nil)
	addTestClient(clients, "1", "alice", "a", "example.com")
	clients.AddJoined("1", "#zoo")
	clients.AddJoined("1", "#art")
	assertEqual(clients.Joined("1"), []string{"#art", "#zoo"}, t)
	clients.RemoveJoined("1", "#zoo")
	assertEqual(clients.Joined("1"), []string{"#art"}, t)
	assertEqual(clients.AddJoined("404", "#art"), false, t)
}

func TestBlocks(t *testing.T) {
	clients := NewClientManager(nil)
	addTestClient(clients, "1", "alice", "a", "example.com")

	assertEqual(clients.AddToBlock("1", "2"), true, t)
	assertEqual(clients.AddToBlock("1", "2"), false, t)
	assertEqual(clients.IsBlocked("1", "2"), true, t)
	assertEqual(clients.IsBlocked("2", "1"), false, t)
	assertEqual(clients.RemoveFromBlock("1", "2"), true, t)
	assertEqual(clients.IsBlocked("1", "2"), false, t)
	assertEqual(clients.AddToBlock("404", "1"), false, t)
}

func TestFindAll(t *testing.T) {
	clients := NewClientManager(nil)
	addTestClient(clients, "1", "alice", "ali", "a.example.com")
	addTestClient(clients, "2", "bob", "bob", "b.example.com")
	addTestClient(clients, "3", "carol", "car", "elsewhere.net")

	nicks := func(found []ClientDetails) (result []string) {
		for _, details := range found {
			result = append(result, details.Nick)
		}
		sort.Strings(result)
		return
	}

	assertEqual(nicks(clients.FindAll("*!*@*.example.com")), []string{"alice", "bob"}, t)
	assertEqual(nicks(clients.FindAll("carol")), []string{"carol"}, t)
	assertEqual(nicks(clients.FindAll("ALICE", "*!car@*")), []string{"alice", "carol"}, t)
	assertEqual(len(clients.FindAll("nobody")), 0, t)
}
