// Copyright (c) 2012-2014 Jeremy Latt
// Copyright (c) 2014-2015 Edmund Huber
// Copyright (c) 2016-2017 Daniel Oaks <daniel@danieloaks.net>
// Copyright (c) 2024 The Flex Authors
// released under the MIT license

package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/docopt/docopt-go"

	"github.com/PhiSyX/flex/irc"
	"github.com/PhiSyX/flex/irc/logger"
	"github.com/PhiSyX/flex/irc/masks"
	"github.com/PhiSyX/flex/irc/modes"
)

// set via linker flags, either by make or by goreleaser:
var commit = ""  // git hash
var version = "" // tagged version

func loadServer(configFile string) (*irc.Server, *logger.Manager) {
	config, err := irc.LoadConfig(configFile)
	if err != nil {
		log.Fatal("Config file did not load successfully: ", err.Error())
	}
	logman, err := logger.NewManager(config.Logging)
	if err != nil {
		log.Fatal("Logger did not load successfully:", err.Error())
	}
	server, err := irc.NewServer(config, logman)
	if err != nil {
		logman.Error("server", fmt.Sprintf("Could not load server: %s", err.Error()))
		os.Exit(1)
	}
	return server, logman
}

// implements the `flex bans` command
func doBans(configFile, channel string) {
	server, logman := loadServer(configFile)
	defer logman.Close()
	defer server.Shutdown()

	cfname, err := irc.CasefoldChannel(channel)
	if err != nil {
		log.Fatal("Invalid channel name: ", channel)
	}
	info, ok := server.Channels().Registry().LoadChannel(cfname)
	if !ok {
		log.Fatal("Channel is not registered: ", channel)
	}
	lists := []struct {
		mode    modes.Mode
		entries []irc.StoredMask
	}{
		{modes.BanMask, info.Bans},
		{modes.ExceptMask, info.BanExceptions},
		{modes.InviteMask, info.InviteExceptions},
	}
	for _, list := range lists {
		for _, entry := range list.entries {
			fmt.Printf("+%c %s %s %s\n", list.mode, entry.Mask, entry.SetBy, entry.SetAt.Format("2006-01-02T15:04:05Z"))
		}
	}
}

func main() {
	irc.SetVersionString(version, commit)
	usage := `flex.
Usage:
	flex checkconf [--conf <filename>] [--quiet]
	flex mask <mask>
	flex match <mask> <address>
	flex bans <channel> [--conf <filename>]
	flex registered [--conf <filename>]
	flex isupport [--conf <filename>]
	flex -h | --help
	flex --version
Options:
	--conf <filename>  Configuration file to use [default: flex.yaml].
	--quiet            Don't show the configuration summary.
	-h --help          Show this screen.
	--version          Show version.`

	arguments, _ := docopt.ParseArgs(usage, nil, irc.Ver)

	// these don't need a config file
	if arguments["mask"].(bool) {
		fmt.Println(masks.Parse(arguments["<mask>"].(string)).String())
		return
	} else if arguments["match"].(bool) {
		mask := masks.Parse(arguments["<mask>"].(string))
		address := arguments["<address>"].(string)
		if mask.Match(address) {
			fmt.Printf("%s matches %s\n", mask.String(), address)
			return
		}
		fmt.Printf("%s does not match %s\n", mask.String(), address)
		os.Exit(1)
	}

	configfile := arguments["--conf"].(string)
	if arguments["checkconf"].(bool) {
		config, err := irc.LoadConfig(configfile)
		if err != nil {
			log.Fatal("Config file did not load successfully: ", err.Error())
		}
		if !arguments["--quiet"].(bool) {
			fmt.Printf("server:        %s\n", config.Server.Name)
			fmt.Printf("default modes: +%s\n", config.DefaultModes().String())
			fmt.Printf("chanmodes:     %s\n", modes.ChanmodesToken())
			fmt.Printf("datastore:     %s\n", config.Datastore.Backend)
		}
		fmt.Println("config ok")
	} else if arguments["bans"].(bool) {
		doBans(configfile, arguments["<channel>"].(string))
	} else if arguments["registered"].(bool) {
		server, logman := loadServer(configfile)
		defer logman.Close()
		defer server.Shutdown()
		fmt.Println(strings.Join(server.Channels().Registry().Names(), "\n"))
	} else if arguments["isupport"].(bool) {
		server, logman := loadServer(configfile)
		defer logman.Close()
		defer server.Shutdown()
		for _, line := range server.ISupport().Lines("*") {
			fmt.Println(line)
		}
	}
}
