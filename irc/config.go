// Copyright (c) 2012-2014 Jeremy Latt
// Copyright (c) 2014-2015 Edmund Huber
// Copyright (c) 2016-2017 Daniel Oaks <daniel@danieloaks.net>
// Copyright (c) 2024 The Flex Authors
// released under the MIT license

package irc

import (
	"fmt"
	"os"
	"strings"

	"github.com/ergochat/irc-go/ircutils"
	"gopkg.in/yaml.v2"

	"github.com/PhiSyX/flex/irc/logger"
	"github.com/PhiSyX/flex/irc/modes"
	"github.com/PhiSyX/flex/irc/mysql"
)

const (
	defaultChannelModes      = "+nt"
	defaultMaxChannelNameLen = 64
	defaultMaxListEntries    = 100
	defaultTopicLen          = 390
)

// Datastore backends.
const (
	BackendNone   = "none"
	BackendBuntDB = "buntdb"
	BackendMySQL  = "mysql"
)

// ChannelsConfig controls channel creation and limits.
type ChannelsConfig struct {
	DefaultModes      *string `yaml:"default-modes"`
	defaultModes      modes.Modes
	MaxChannelNameLen int  `yaml:"max-channel-name-len"`
	MaxListEntries    int  `yaml:"max-list-entries"`
	TopicLen          int  `yaml:"topic-len"`
	OperOnlyCreation  bool `yaml:"operator-only-creation"`
}

// DatastoreConfig selects where registered channels are persisted.
type DatastoreConfig struct {
	Backend string
	Path    string
	MySQL   mysql.Config `yaml:"mysql"`
}

// Config defines the overall configuration.
type Config struct {
	Server struct {
		Name        string
		Casemapping string
	}

	Channels ChannelsConfig

	Datastore DatastoreConfig

	Logging []logger.LoggingConfig

	Filename string `yaml:"-"`
}

// DefaultModes returns the parsed setting flags every new channel starts with.
func (conf *Config) DefaultModes() modes.Modes {
	return conf.Channels.defaultModes
}

// ChannelManagerConfig returns the subset of the config the channel
// manager uses.
func (conf *Config) ChannelManagerConfig() ChannelManagerConfig {
	return ChannelManagerConfig{
		ServerName:        conf.Server.Name,
		DefaultModes:      conf.Channels.defaultModes,
		MaxChannelNameLen: conf.Channels.MaxChannelNameLen,
	}
}

// DefaultConfig returns a usable config for an in-memory engine named
// serverName, with logging disabled.
func DefaultConfig(serverName string) *Config {
	config := new(Config)
	config.Server.Name = serverName
	if err := config.prepare(); err != nil {
		panic(err)
	}
	return config
}

// LoadConfig loads the given YAML configuration file.
func LoadConfig(filename string) (config *Config, err error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	config, err = LoadRawConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	config.Filename = filename
	return config, nil
}

// LoadRawConfig parses and validates a YAML document.
func LoadRawConfig(data []byte) (config *Config, err error) {
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, err
	}
	if config == nil {
		config = new(Config)
	}
	if err = config.prepare(); err != nil {
		return nil, err
	}
	return config, nil
}

// prepare validates the config and fills in defaults and derived fields.
func (config *Config) prepare() (err error) {
	if config.Server.Name == "" {
		return ErrServerNameMissing
	}
	if !ircutils.HostnameIsValid(config.Server.Name) {
		return ErrServerNameNotHostname
	}
	switch strings.ToLower(config.Server.Casemapping) {
	case "", casemappingName:
		config.Server.Casemapping = casemappingName
	default:
		return ErrUnknownCasemapping
	}

	channels := &config.Channels
	if channels.DefaultModes == nil {
		defaultModes := defaultChannelModes
		channels.DefaultModes = &defaultModes
	}
	channels.defaultModes = modes.ParseDefaultChannelModes(*channels.DefaultModes)
	if channels.MaxChannelNameLen == 0 {
		channels.MaxChannelNameLen = defaultMaxChannelNameLen
	}
	if channels.MaxListEntries == 0 {
		channels.MaxListEntries = defaultMaxListEntries
	}
	if channels.TopicLen == 0 {
		channels.TopicLen = defaultTopicLen
	}
	if channels.MaxChannelNameLen < 2 || channels.MaxListEntries < 1 || channels.TopicLen < 1 {
		return ErrLimitsAreInsane
	}

	switch strings.ToLower(config.Datastore.Backend) {
	case "", BackendNone:
		config.Datastore.Backend = BackendNone
	case BackendBuntDB:
		config.Datastore.Backend = BackendBuntDB
		if config.Datastore.Path == "" {
			return ErrDatastorePathMissing
		}
	case BackendMySQL:
		config.Datastore.Backend = BackendMySQL
	default:
		return ErrUnknownBackend
	}

	config.Logging, err = prepareLogging(config.Logging)
	return err
}

func prepareLogging(configs []logger.LoggingConfig) (result []logger.LoggingConfig, err error) {
	for _, logConfig := range configs {
		// methods
		methods := make(map[string]bool)
		for _, method := range strings.Split(logConfig.Method, " ") {
			if len(method) > 0 {
				methods[strings.ToLower(method)] = true
			}
		}
		if methods["file"] && logConfig.Filename == "" {
			return nil, ErrLoggerFilenameMissing
		}
		logConfig.MethodFile = methods["file"]
		logConfig.MethodStdout = methods["stdout"]
		logConfig.MethodStderr = methods["stderr"]

		// levels
		level, exists := logger.LogLevelNames[strings.ToLower(logConfig.LevelString)]
		if !exists {
			return nil, fmt.Errorf("Could not translate log level [%s]", logConfig.LevelString)
		}
		logConfig.Level = level

		// types
		for _, typeStr := range strings.Split(logConfig.TypeString, " ") {
			if len(typeStr) == 0 {
				continue
			}
			if typeStr == "-" {
				return nil, ErrLoggerExcludeEmpty
			}
			if typeStr[0] == '-' {
				typeStr = typeStr[1:]
				logConfig.ExcludedTypes = append(logConfig.ExcludedTypes, typeStr)
			} else {
				logConfig.Types = append(logConfig.Types, typeStr)
			}
		}
		if len(logConfig.Types) < 1 {
			return nil, ErrLoggerHasNoTypes
		}

		result = append(result, logConfig)
	}
	return
}
