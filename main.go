// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package main

import (
	"flag"

	"github.com/mstarongithub/wayshell/config"
	"github.com/sirupsen/logrus"
)

var (
	configPath *string = flag.String(
		"config",
		"",
		"Path to the config file. Default is $XDG_CONFIG_HOME/wayshell/config.toml",
	)
	toolMode *bool = flag.Bool("tool", false, "Start as a tool instead of a compositor")
	debug    *bool = flag.Bool("debug", false, "Log everything down to debug level")
	help     *bool = flag.Bool("help", false, "Show the help message for the selected mode")
)

func main() {
	flag.Parse()

	conf, err := config.Load(*configPath)
	if err != nil {
		logrus.WithError(err).Fatalln("Failed to load config")
	}
	logrus.SetLevel(conf.Level())
	if *debug {
		logrus.SetLevel(logrus.DebugLevel)
	}

	if *toolMode {
		utilMain(conf)
		return
	}
	if *help {
		wlHelpMessage()
		return
	}
	wlMain(conf)
}
