// Copyright (c) 2024 The Flex Authors
// released under the MIT license

package irc

import (
	"errors"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/PhiSyX/flex/irc/modes"
	"github.com/PhiSyX/flex/irc/utils"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	server, err := NewServer(DefaultConfig("flex.test"), nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { server.Shutdown() })
	return server
}

func addServerClient(t *testing.T, server *Server, nick string) ClientID {
	t.Helper()
	id, err := server.AddClient(ClientDetails{ID: ClientID(nick), Nick: nick, Ident: "~" + nick, Host: nick + ".example.com"})
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func join(t *testing.T, server *Server, id ClientID, name string) JoinResult {
	t.Helper()
	result, err := server.Join(id, name, utils.Secret{})
	if err != nil {
		t.Fatalf("%s could not join %s: %v", id, name, err)
	}
	return result
}

func mustApply(t *testing.T, server *Server, id ClientID, name string, params ...string) ModeResult {
	t.Helper()
	changes, unknown := modes.ParseChannelModeChanges(params...)
	if len(unknown) != 0 {
		t.Fatalf("unknown modes %q", string(unknown))
	}
	result, err := server.ApplyModeChanges(id, name, changes)
	if err != nil {
		t.Fatal(err)
	}
	return result
}

func TestServerJoinAndPart(t *testing.T) {
	server := newTestServer(t)
	alice := addServerClient(t, server, "alice")
	bob := addServerClient(t, server, "bob")

	result := join(t, server, alice, "#Flex")
	assertEqual(result.Channel, "#Flex", t)
	assertEqual(result.Created, true, t)
	assertEqual(result.Member.HasLevel(modes.Owner), true, t)

	result = join(t, server, bob, "#flex")
	assertEqual(result.Channel, "#Flex", t)
	assertEqual(result.Created, false, t)
	assertEqual(server.Clients().Joined(bob), []string{"#flex"}, t)

	_, err := server.Join(bob, "#FLEX", utils.Secret{})
	assertEqual(err, ErrAlreadyMember, t)

	deleted, err := server.Part(bob, "#flex")
	assertEqual(err, nil, t)
	assertEqual(deleted, false, t)
	assertEqual(len(server.Clients().Joined(bob)), 0, t)

	_, err = server.Part(bob, "#flex")
	assertEqual(err, ErrNotOnChannel, t)

	deleted, _ = server.Part(alice, "#flex")
	assertEqual(deleted, true, t)
	assertEqual(server.Channels().Has("#flex"), false, t)

	_, err = server.Join("ghost", "#flex", utils.Secret{})
	assertEqual(err, ErrNoSuchNick, t)
}

func TestServerJoinChecks(t *testing.T) {
	server := newTestServer(t)
	alice := addServerClient(t, server, "alice")
	bob := addServerClient(t, server, "bob")
	join(t, server, alice, "#locked")
	mustApply(t, server, alice, "#locked", "+k", "hunter2")

	_, err := server.Join(bob, "#locked", utils.NewSecret("wrong"))
	reason, _ := RejectionReason(err)
	assertEqual(reason, BadChannelKey, t)
	_, err = server.Join(bob, "#locked", utils.NewSecret("hunter2"))
	assertEqual(err, nil, t)
}

func TestServerOperOnlyCreation(t *testing.T) {
	config := DefaultConfig("flex.test")
	config.Channels.OperOnlyCreation = true
	server, err := NewServer(config, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer server.Shutdown()

	alice := addServerClient(t, server, "alice")
	oper, _ := server.AddClient(ClientDetails{ID: "oper", Nick: "oper", GlobalOperator: true})

	_, err = server.Join(alice, "#new", utils.Secret{})
	assertEqual(err, errInsufficientPrivs, t)
	join(t, server, oper, "#new")
	join(t, server, alice, "#new")
}

func TestServerQuit(t *testing.T) {
	server := newTestServer(t)
	alice := addServerClient(t, server, "alice")
	bob := addServerClient(t, server, "bob")
	join(t, server, alice, "#shared")
	join(t, server, bob, "#shared")
	join(t, server, alice, "#solo")

	result, err := server.Quit(alice)
	assertEqual(err, nil, t)
	assertEqual(result.Details.Nick, "alice", t)
	sort.Strings(result.Channels)
	assertEqual(result.Channels, []string{"#shared", "#solo"}, t)
	assertEqual(result.Destroyed, []string{"#solo"}, t)

	assertEqual(server.Channels().HasMember("#shared", alice), false, t)
	assertEqual(server.Channels().Has("#solo"), false, t)
	_, ok := server.Clients().ByNick("alice")
	assertEqual(ok, false, t)

	_, err = server.Quit(alice)
	assertEqual(err, ErrNoSuchNick, t)
}

func TestServerKick(t *testing.T) {
	server := newTestServer(t)
	owner := addServerClient(t, server, "owner")
	op := addServerClient(t, server, "op")
	peon := addServerClient(t, server, "peon")
	outsider := addServerClient(t, server, "outsider")
	join(t, server, owner, "#kick")
	join(t, server, op, "#kick")
	join(t, server, peon, "#kick")
	assertEqual(server.GrantLevel(owner, "#kick", op, modes.Operator), nil, t)

	_, err := server.Kick(outsider, "#kick", peon)
	assertEqual(err, ErrNotOnChannel, t)
	_, err = server.Kick(op, "#kick", outsider)
	assertEqual(err, ErrUserNotInChannel, t)
	_, err = server.Kick(peon, "#kick", op)
	assertEqual(err, ErrChanOpPrivsNeeded, t)
	_, err = server.Kick(op, "#kick", owner)
	assertEqual(err, ErrChanOpPrivsNeeded, t)

	deleted, err := server.Kick(op, "#kick", peon)
	assertEqual(err, nil, t)
	assertEqual(deleted, false, t)
	assertEqual(server.Channels().HasMember("#kick", peon), false, t)
	assertEqual(len(server.Clients().Joined(peon)), 0, t)

	_, err = server.Kick(op, "#nowhere", peon)
	assertEqual(err, ErrNoSuchChannel, t)
}

func TestServerKickLastMember(t *testing.T) {
	server := newTestServer(t)
	oper, _ := server.AddClient(ClientDetails{ID: "oper", Nick: "oper", GlobalOperator: true})
	alice := addServerClient(t, server, "alice")
	join(t, server, alice, "#alone")

	// a global operator needn't be in the channel
	deleted, err := server.Kick(oper, "#alone", alice)
	assertEqual(err, nil, t)
	assertEqual(deleted, true, t)
	assertEqual(server.Channels().Has("#alone"), false, t)
}

func TestServerInvite(t *testing.T) {
	server := newTestServer(t)
	owner := addServerClient(t, server, "owner")
	member := addServerClient(t, server, "member")
	guest := addServerClient(t, server, "guest")
	join(t, server, owner, "#club")
	join(t, server, member, "#club")

	assertEqual(server.Invite(owner, "#club", "nobody"), ErrNoSuchNick, t)
	assertEqual(server.Invite(guest, "#club", owner), ErrNotOnChannel, t)
	assertEqual(server.Invite(owner, "#club", member), ErrUserOnChannel, t)
	assertEqual(server.Invite(owner, "#missing", guest), ErrNoSuchChannel, t)

	// anyone may invite to a channel that isn't invite-only
	assertEqual(server.Invite(member, "#club", guest), nil, t)
	assertEqual(server.Uninvite(owner, "#club", guest), nil, t)
	assertEqual(server.Uninvite(owner, "#club", guest), ErrNoSuchInvite, t)

	mustApply(t, server, owner, "#club", "+i")
	_, err := server.Join(guest, "#club", utils.Secret{})
	reason, _ := RejectionReason(err)
	assertEqual(reason, InviteOnlyChannel, t)

	assertEqual(server.Invite(member, "#club", guest), ErrChanOpPrivsNeeded, t)
	assertEqual(server.Uninvite(member, "#club", guest), ErrChanOpPrivsNeeded, t)
	assertEqual(server.Invite(owner, "#club", guest), nil, t)
	join(t, server, guest, "#club")

	// the invite was used up
	server.Part(guest, "#club")
	_, err = server.Join(guest, "#club", utils.Secret{})
	reason, _ = RejectionReason(err)
	assertEqual(reason, InviteOnlyChannel, t)
}

func TestServerInviteIgnored(t *testing.T) {
	server := newTestServer(t)
	owner := addServerClient(t, server, "owner")
	guest := addServerClient(t, server, "guest")
	join(t, server, owner, "#club")
	server.Clients().AddToBlock(guest, owner)
	assertEqual(server.Invite(owner, "#club", guest), ErrIgnored, t)
}

func TestServerSetTopic(t *testing.T) {
	server := newTestServer(t)
	owner := addServerClient(t, server, "owner")
	member := addServerClient(t, server, "member")
	outsider := addServerClient(t, server, "outsider")
	join(t, server, owner, "#topic")
	join(t, server, member, "#topic")

	topic, err := server.SetTopic(owner, "#topic", "hello\x00 world")
	assertEqual(err, nil, t)
	assertEqual(topic.Text, "hello world", t)
	assertEqual(topic.SetBy, "owner!~owner@owner.example.com", t)

	// +t is a default mode
	_, err = server.SetTopic(member, "#topic", "mine now")
	assertEqual(err, ErrChanOpPrivsNeeded, t)
	_, err = server.SetTopic(outsider, "#topic", "drive-by")
	assertEqual(err, ErrNotOnChannel, t)

	mustApply(t, server, owner, "#topic", "-t")
	topic, err = server.SetTopic(member, "#topic", strings.Repeat("x", 500))
	assertEqual(err, nil, t)
	assertEqual(len(topic.Text), 390, t)

	topic, _ = server.SetTopic(member, "#topic", "")
	assertEqual(topic.IsSet(), false, t)
}

func TestServerGrantAndRevoke(t *testing.T) {
	server := newTestServer(t)
	owner := addServerClient(t, server, "owner")
	admin := addServerClient(t, server, "admin")
	peon := addServerClient(t, server, "peon")
	join(t, server, owner, "#ranks")
	join(t, server, admin, "#ranks")
	join(t, server, peon, "#ranks")

	assertEqual(server.GrantLevel(peon, "#ranks", peon, modes.Operator), ErrChanOpPrivsNeeded, t)
	assertEqual(server.GrantLevel(owner, "#ranks", admin, modes.AdminOperator), nil, t)
	assertEqual(server.GrantLevel(owner, "#ranks", admin, modes.AdminOperator), ErrModeNotChanged, t)
	assertEqual(server.GrantLevel(owner, "#ranks", "ghost", modes.Vip), ErrUserNotInChannel, t)
	assertEqual(server.GrantLevel(owner, "#ranks", peon, modes.AccessLevel(3)), ErrUnknownMode, t)

	// an admin may not create peers
	assertEqual(server.GrantLevel(admin, "#ranks", peon, modes.AdminOperator), ErrChanOpPrivsNeeded, t)
	assertEqual(server.GrantLevel(admin, "#ranks", peon, modes.Operator), nil, t)

	// nobody demotes the owner, but anyone may drop their own level
	assertEqual(server.RevokeLevel(admin, "#ranks", owner, modes.Owner), ErrChanOpPrivsNeeded, t)
	assertEqual(server.RevokeLevel(peon, "#ranks", peon, modes.Operator), nil, t)
	assertEqual(server.RevokeLevel(peon, "#ranks", peon, modes.Operator), ErrModeNotChanged, t)

	assertEqual(server.GrantLevel(admin, "#ranks", peon, modes.Operator), nil, t)
	assertEqual(server.RevokeLevel(admin, "#ranks", peon, modes.Operator), nil, t)
	member, _ := server.Channels().GetMember("#ranks", peon)
	assertEqual(member.AccessLevels.IsEmpty(), true, t)
}

func TestServerApplyModeChanges(t *testing.T) {
	server := newTestServer(t)
	owner := addServerClient(t, server, "owner")
	peon := addServerClient(t, server, "peon")
	join(t, server, owner, "#modes")
	join(t, server, peon, "#modes")

	result := mustApply(t, server, owner, "#modes", "+klsb-n+o", "hunter2", "10", "troll", "peon")
	assertEqual(len(result.Errors), 0, t)
	assertEqual(result.Applied.Strings(), []string{"+klsb-n+o", "*", "10", "troll!*@*", "peon"}, t)

	modeString, _ := server.ChannelModes(owner, "#modes")
	assertEqual(modeString, []string{"+klts", "hunter2", "10"}, t)
	modeString, _ = server.ChannelModes("outsider", "#modes")
	assertEqual(modeString, []string{"+klts", "*", "10"}, t)

	// refused changes are reported individually
	result = mustApply(t, server, owner, "#modes", "+snlOv", "zero", "ghost")
	assertEqual(len(result.Applied), 1, t)
	assertEqual(result.Applied[0].Mode, modes.NoOutside, t)
	errs := make(map[modes.Mode]error)
	for _, merr := range result.Errors {
		errs[merr.Change.Mode] = merr.Err
	}
	assertEqual(errs, map[modes.Mode]error{
		modes.Secret:    ErrModeNotChanged,
		modes.UserLimit: ErrInvalidLimit,
		modes.OperOnly:  errInsufficientPrivs,
		modes.Mode('v'): ErrNoSuchNick,
	}, t)

	result = mustApply(t, server, owner, "#modes", "-b+b", "nobody", "TROLL")
	assertEqual(result.Errors[0].Err, ErrNoSuchMask, t)
	assertEqual(result.Errors[1].Err, ErrModeNotChanged, t)

	// peon was opped above, so it may change settings now; a member
	// without a level may not
	fresh := addServerClient(t, server, "fresh")
	if _, err := server.Join(fresh, "#modes", utils.NewSecret("hunter2")); err != nil {
		t.Fatal(err)
	}
	result = mustApply(t, server, fresh, "#modes", "+m")
	assertEqual(result.Errors[0].Err, ErrChanOpPrivsNeeded, t)
	result = mustApply(t, server, peon, "#modes", "+m")
	assertEqual(len(result.Errors), 0, t)

	_, err := server.ApplyModeChanges(owner, "#void", nil)
	assertEqual(err, ErrNoSuchChannel, t)
}

func TestServerListLimit(t *testing.T) {
	config := DefaultConfig("flex.test")
	config.Channels.MaxListEntries = 2
	server, err := NewServer(config, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer server.Shutdown()
	owner := addServerClient(t, server, "owner")
	join(t, server, owner, "#lists")

	result := mustApply(t, server, owner, "#lists", "+bbbe", "a", "b", "c", "d")
	assertEqual(len(result.Applied), 3, t)
	assertEqual(len(result.Errors), 1, t)
	assertEqual(result.Errors[0].Err, ErrListFull, t)

	bans, _ := server.ListMasks("#lists", modes.BanMask)
	assertEqual(maskTexts(bans), []string{"a!*@*", "b!*@*"}, t)
	_, err = server.ListMasks("#lists", modes.Secret)
	assertEqual(err, ErrUnknownMode, t)

	banned, _ := server.IsBanned("#lists", "a!x@y")
	assertEqual(banned, true, t)
	banned, _ = server.IsBanned("#lists", "d!x@y")
	assertEqual(banned, false, t)
}

func TestServerNames(t *testing.T) {
	server := newTestServer(t)
	alice := addServerClient(t, server, "alice")
	bob := addServerClient(t, server, "bob")
	carol := addServerClient(t, server, "carol")
	join(t, server, alice, "#names")
	join(t, server, bob, "#names")
	assertEqual(server.GrantLevel(alice, "#names", bob, modes.Vip), nil, t)
	assertEqual(server.GrantLevel(alice, "#names", bob, modes.HalfOperator), nil, t)

	names, err := server.Names(carol, "#names", false)
	assertEqual(err, nil, t)
	assertEqual(names, []string{"~alice", "%bob"}, t)
	names, _ = server.Names(carol, "#names", true)
	assertEqual(names, []string{"~alice", "%+bob"}, t)

	mustApply(t, server, alice, "#names", "+s")
	names, _ = server.Names(carol, "#names", false)
	assertEqual(len(names), 0, t)
	names, _ = server.Names(bob, "#names", false)
	assertEqual(len(names), 2, t)

	_, err = server.Names(carol, "#nowhere", false)
	assertEqual(err, ErrNoSuchChannel, t)
}

func TestServerJoinPresetKeyedChannel(t *testing.T) {
	server := newTestServer(t)
	settings := NewChannelSettings(server.Config().DefaultModes(), "flex.test")
	settings.Set(NewModeRecord(KeyFlag(utils.NewSecret("secret1")), "flex.test"))
	if err := server.Channels().CreateWithInitialSettings("#keyed", settings); err != nil {
		t.Fatal(err)
	}
	alice := addServerClient(t, server, "alice")

	_, err := server.Join(alice, "#keyed", utils.Secret{})
	assertRejected(err, BadChannelKey, t)
	_, err = server.Join(alice, "#keyed", utils.NewSecret("secret2"))
	assertRejected(err, BadChannelKey, t)
	assertEqual(server.Channels().Has("#keyed"), true, t)

	result, err := server.Join(alice, "#keyed", utils.NewSecret("secret1"))
	assertEqual(err, nil, t)
	assertEqual(result.Created, false, t)
	assertEqual(result.Member.HasLevel(modes.Owner), true, t)
}

func TestServerRegisterChannel(t *testing.T) {
	config := DefaultConfig("flex.test")
	config.Datastore.Backend = BackendBuntDB
	config.Datastore.Path = filepath.Join(t.TempDir(), "flex.db")

	server, err := NewServer(config, nil)
	if err != nil {
		t.Fatal(err)
	}
	owner := addServerClient(t, server, "owner")
	peon := addServerClient(t, server, "peon")
	join(t, server, owner, "#Persist")
	join(t, server, peon, "#persist")

	assertEqual(server.RegisterChannel(peon, "#persist"), ErrChanOpPrivsNeeded, t)
	assertEqual(server.RegisterChannel(owner, "#persist"), nil, t)
	mustApply(t, server, owner, "#persist", "+sb", "peon")
	server.SetTopic(owner, "#persist", "kept")

	// the datastore is locked while the server runs
	if _, err := NewServer(config, nil); err == nil {
		t.Fatal("expected the datastore lock to be held")
	}
	server.Shutdown()

	server, err = NewServer(config, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer server.Shutdown()
	assertEqual(server.registry.Names(), []string{"#persist"}, t)

	peon = addServerClient(t, server, "peon")
	owner = addServerClient(t, server, "owner")
	// the restored ban applies even though the channel is empty
	_, err = server.Join(peon, "#PERSIST", utils.Secret{})
	assertRejected(err, BannedFromChannel, t)
	assertEqual(server.Channels().Has("#persist"), false, t)
	assertEqual(len(server.Clients().Joined(peon)), 0, t)

	result := join(t, server, owner, "#PERSIST")
	assertEqual(result.Created, true, t)
	assertEqual(result.Channel, "#PERSIST", t)
	assertEqual(result.Member.HasLevel(modes.Owner), true, t)
	channel, _ := server.Channels().Get("#persist")
	assertEqual(channel.IsRegistered(), true, t)
	assertEqual(channel.Topic().Text, "kept", t)
	assertEqual(channel.Settings().ModeString(false), []string{"+nts"}, t)
	banned, _ := server.IsBanned("#persist", "peon!~peon@peon.example.com")
	assertEqual(banned, true, t)

	assertEqual(server.UnregisterChannel(owner, "#persist"), nil, t)
	assertEqual(len(server.registry.Names()), 0, t)
	channel, _ = server.Channels().Get("#persist")
	assertEqual(channel.IsRegistered(), false, t)
}

func TestServerJoinAfterQuitRace(t *testing.T) {
	server := newTestServer(t)
	alice := addServerClient(t, server, "alice")
	server.Quit(alice)
	_, err := server.Join(alice, "#late", utils.Secret{})
	if !errors.Is(err, ErrNoSuchNick) {
		t.Errorf("expected ErrNoSuchNick, got %v", err)
	}
	assertEqual(server.Channels().Has("#late"), false, t)
}

func TestServerISupport(t *testing.T) {
	server := newTestServer(t)
	tokens := server.ISupport()
	expectToken := func(name, value string) {
		t.Helper()
		got, ok := tokens.Get(name)
		if !ok || got != value {
			t.Errorf("expected %s=%s, got %q (%t)", name, value, got, ok)
		}
	}
	expectToken("CASEMAPPING", "precis")
	expectToken("CHANMODES", "Ibe,k,l,Oimnst")
	expectToken("MAXLIST", "beI:100")
	expectToken("PREFIX", "(qaohv)~&@%+")
	expectToken("TOPICLEN", "390")
	expectToken("NETWORK", "flex.test")
	assertEqual(len(tokens.CachedReply), 1, t)
}
