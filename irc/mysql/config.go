// Copyright (c) 2020 Shivaram Lingamneni
// Copyright (c) 2024 The Flex Authors
// released under the MIT license

package mysql

import (
	"fmt"
	"time"

	"github.com/PhiSyX/flex/irc/utils"
)

type Config struct {
	// these are intended to be written directly into the config file:
	Host       string
	Port       int
	SocketPath string `yaml:"socket-path"`
	User       string
	Password   utils.Secret
	Database   string
	Timeout    time.Duration
}

// DSN returns the go-sql-driver/mysql data source name for the config.
func (config *Config) DSN() string {
	var address string
	if config.SocketPath != "" {
		address = fmt.Sprintf("unix(%s)", config.SocketPath)
	} else if config.Port != 0 {
		address = fmt.Sprintf("tcp(%s:%d)", config.Host, config.Port)
	}
	return fmt.Sprintf("%s:%s@%s/%s", config.User, config.Password.Expose(), address, config.Database)
}
