// Copyright (c) 2024 The Flex Authors
// released under the MIT license

package irc

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/PhiSyX/flex/irc/logger"
	"github.com/PhiSyX/flex/irc/modes"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig("flex.test")
	assertEqual(config.Server.Casemapping, "precis", t)
	assertEqual(config.DefaultModes(), modes.Modes{modes.NoOutside, modes.OpOnlyTopic}, t)
	assertEqual(config.Channels.MaxChannelNameLen, 64, t)
	assertEqual(config.Channels.MaxListEntries, 100, t)
	assertEqual(config.Channels.TopicLen, 390, t)
	assertEqual(config.Datastore.Backend, BackendNone, t)
	assertEqual(len(config.Logging), 0, t)

	cmConfig := config.ChannelManagerConfig()
	assertEqual(cmConfig.ServerName, "flex.test", t)
	assertEqual(cmConfig.MaxChannelNameLen, 64, t)
}

func TestLoadRawConfig(t *testing.T) {
	config, err := LoadRawConfig([]byte(`
server:
    name: irc.flex.example
channels:
    default-modes: +ntsi
    max-list-entries: 5
    operator-only-creation: true
datastore:
    backend: BuntDB
    path: flex.db
logging:
    -
        method: stderr file
        filename: flex.log
        type: "* -clients"
        level: warn
`))
	if err != nil {
		t.Fatal(err)
	}
	assertEqual(config.Server.Name, "irc.flex.example", t)
	assertEqual(config.DefaultModes(), modes.Modes{modes.NoOutside, modes.OpOnlyTopic, modes.Secret, modes.InviteOnly}, t)
	assertEqual(config.Channels.MaxListEntries, 5, t)
	assertEqual(config.Channels.OperOnlyCreation, true, t)
	assertEqual(config.Datastore.Backend, BackendBuntDB, t)

	assertEqual(len(config.Logging), 1, t)
	logConf := config.Logging[0]
	assertEqual(logConf.MethodStderr, true, t)
	assertEqual(logConf.MethodFile, true, t)
	assertEqual(logConf.MethodStdout, false, t)
	assertEqual(logConf.Level, logger.LogWarning, t)
	assertEqual(logConf.Types, []string{"*"}, t)
	assertEqual(logConf.ExcludedTypes, []string{"clients"}, t)
}

func TestEmptyDefaultModes(t *testing.T) {
	config, err := LoadRawConfig([]byte("server:\n    name: flex.test\nchannels:\n    default-modes: ''\n"))
	if err != nil {
		t.Fatal(err)
	}
	assertEqual(len(config.DefaultModes()), 0, t)
}

func TestConfigErrors(t *testing.T) {
	testCases := []struct {
		name     string
		yaml     string
		expected error
	}{
		{"empty", "", ErrServerNameMissing},
		{"no dot", "server:\n    name: localhost\n", ErrServerNameNotHostname},
		{"casemapping", "server:\n    name: flex.test\n    casemapping: ascii\n", ErrUnknownCasemapping},
		{"limits", "server:\n    name: flex.test\nchannels:\n    topic-len: -1\n", ErrLimitsAreInsane},
		{"bunt path", "server:\n    name: flex.test\ndatastore:\n    backend: buntdb\n", ErrDatastorePathMissing},
		{"backend", "server:\n    name: flex.test\ndatastore:\n    backend: postgres\n", ErrUnknownBackend},
		{"log file", "server:\n    name: flex.test\nlogging:\n    - method: file\n      type: '*'\n      level: info\n", ErrLoggerFilenameMissing},
		{"log types", "server:\n    name: flex.test\nlogging:\n    - method: stdout\n      level: info\n", ErrLoggerHasNoTypes},
		{"log exclude", "server:\n    name: flex.test\nlogging:\n    - method: stdout\n      type: '* -'\n      level: info\n", ErrLoggerExcludeEmpty},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			_, err := LoadRawConfig([]byte(testCase.yaml))
			assertEqual(err, testCase.expected, t)
		})
	}

	_, err := LoadRawConfig([]byte("server:\n    name: flex.test\nlogging:\n    - method: stdout\n      type: '*'\n      level: loud\n"))
	if err == nil || !strings.Contains(err.Error(), "loud") {
		t.Errorf("expected an unknown level error, got %v", err)
	}
}

func TestLoadConfigFile(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "flex.yaml")
	if err := os.WriteFile(filename, []byte("server:\n    name: flex.test\n"), 0600); err != nil {
		t.Fatal(err)
	}
	config, err := LoadConfig(filename)
	if err != nil {
		t.Fatal(err)
	}
	assertEqual(config.Filename, filename, t)

	if err := os.WriteFile(filename, []byte("server:\n    name: nodot\n"), 0600); err != nil {
		t.Fatal(err)
	}
	_, err = LoadConfig(filename)
	if err == nil || !strings.HasPrefix(err.Error(), filename) {
		t.Errorf("expected the error to name the file, got %v", err)
	}

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if !os.IsNotExist(err) {
		t.Errorf("expected a not-exist error, got %v", err)
	}
}

func TestDefaultYAMLIsValid(t *testing.T) {
	if _, err := LoadConfig("../default.yaml"); err != nil {
		t.Error(err)
	}
}
