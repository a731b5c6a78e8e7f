// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// pbox-hostd is a demonstration host daemon: it loads a YAML config,
// creates one sandboxed process from it, and serves the admin
// introspection RPC on a Unix socket for the sandbox's lifetime.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/pbox/lib/process"
)

func main() {
	var configPath string

	flagSet := pflag.NewFlagSet("pbox-hostd", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to pbox-hostd.yaml (defaults to $PBOX_CONFIG)")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return
		}
		process.Fatal(err)
	}

	if help, _ := flagSet.GetBool("help"); help {
		fmt.Fprintln(os.Stderr, "pbox-hostd — demonstration host daemon for the pbox sandboxing runtime")
		flagSet.PrintDefaults()
		return
	}

	if err := run(configPath); err != nil {
		process.Fatal(err)
	}
}
