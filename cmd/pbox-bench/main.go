// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// pbox-bench measures round-trip call latency against a real sandbox
// process, the Go port of examples/pbox/bench from the original: one
// benchmark reuses a single Caller across many calls to isolate the
// cost of one request/response cycle, the other pays the cost of a
// fresh worker channel (NewCaller/Close) on every iteration to show
// how much of that cost is channel setup rather than the call itself.
// The "no signature pre-compilation" tradeoff spec.md §4.3 calls out
// is exactly what the first number puts a latency figure on.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/pbox"
	"github.com/bureau-foundation/pbox/lib/process"
)

func main() {
	var callIterations, channelIterations int

	flagSet := pflag.NewFlagSet("pbox-bench", pflag.ContinueOnError)
	flagSet.IntVar(&callIterations, "call-iterations", 1_000_000, "calls to make over one reused Caller")
	flagSet.IntVar(&channelIterations, "channel-iterations", 1_000, "NewCaller/call/Close cycles to time")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return
		}
		process.Fatal(err)
	}
	if help, _ := flagSet.GetBool("help"); help {
		fmt.Fprintln(os.Stderr, "pbox-bench <path-to-pbox-sandbox> — round-trip call latency micro-benchmark")
		flagSet.PrintDefaults()
		return
	}

	args := flagSet.Args()
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: pbox-bench [flags] <path-to-pbox-sandbox>")
		os.Exit(2)
	}

	if err := run(args[0], callIterations, channelIterations); err != nil {
		process.Fatal(err)
	}
}

func run(binaryPath string, callIterations, channelIterations int) error {
	sb, err := pbox.Create(binaryPath)
	if err != nil {
		return fmt.Errorf("creating sandbox: %w", err)
	}
	defer sb.Destroy()

	fmt.Printf("sandbox created (pid %d)\n\n", sb.PID())

	caller, err := sb.NewCaller()
	if err != nil {
		return fmt.Errorf("new caller: %w", err)
	}
	defer caller.Close()

	getpidAddr, err := sb.Dlsym(caller, "getpid")
	if err != nil {
		return fmt.Errorf("dlsym getpid: %w", err)
	}
	if getpidAddr == 0 {
		return fmt.Errorf("getpid not found in sandbox")
	}

	// Warmup: the first few calls pay for lazily touched pages the
	// steady-state number shouldn't include.
	for i := 0; i < 100; i++ {
		var result int32
		if err := sb.Call(caller, getpidAddr, pbox.TypeSint32, nil, nil, &result); err != nil {
			return fmt.Errorf("warmup call: %w", err)
		}
	}

	start := time.Now()
	for i := 0; i < callIterations; i++ {
		var result int32
		if err := sb.Call(caller, getpidAddr, pbox.TypeSint32, nil, nil, &result); err != nil {
			return fmt.Errorf("call %d: %w", i, err)
		}
	}
	elapsed := time.Since(start)
	fmt.Printf("pbox call (existing channel): %.3f us/call (%d iterations)\n",
		float64(elapsed.Microseconds())/float64(callIterations), callIterations)

	start = time.Now()
	for i := 0; i < channelIterations; i++ {
		c, err := sb.NewCaller()
		if err != nil {
			return fmt.Errorf("channel iteration %d: new caller: %w", i, err)
		}
		addr, err := sb.Dlsym(c, "getpid")
		if err != nil {
			c.Close()
			return fmt.Errorf("channel iteration %d: dlsym: %w", i, err)
		}
		var result int32
		if err := sb.Call(c, addr, pbox.TypeSint32, nil, nil, &result); err != nil {
			c.Close()
			return fmt.Errorf("channel iteration %d: call: %w", i, err)
		}
		c.Close()
	}
	elapsed = time.Since(start)
	fmt.Printf("channel create + dlsym + call + close: %.3f us/iter (%d iterations)\n",
		float64(elapsed.Microseconds())/float64(channelIterations), channelIterations)

	return nil
}
