// sfida-auth is an operator tool for the accessory challenge-response
// protocol.
//
// Usage:
//
//	sfida-auth <command> [options]
//
// Commands:
//
//	initial    Build a pairing challenge (ChallengeData) for an accessory
//	next       Build a round challenge (NextChallenge)
//	verify     Verify and decrypt a round challenge
//	reconnect  Compute the reconnect response for a round challenge
//	simulate   Pair with and reconnect to an in-memory accessory
//
// Common options:
//
//	-log-level  disabled, error, warn, info, debug or trace (default: warn)
//	-nonce-mode random or repeated (default: random)
//
// Example:
//
//	sfida-auth initial -secrets secrets.yaml -hwid 11:22:33:44:55:66
//	sfida-auth verify -key 000102030405060708090a0b0c0d0e0f -challenge <hex>
package main

import (
	"fmt"
	"io"
	"os"
)

// command is one sub-command. It returns the process exit code.
type command struct {
	name    string
	summary string
	run     func(args []string, stdout, stderr io.Writer) int
}

var commands = []command{
	{"initial", "build a pairing challenge", runInitial},
	{"next", "build a round challenge", runNext},
	{"verify", "verify and decrypt a round challenge", runVerify},
	{"reconnect", "compute a reconnect response", runReconnect},
	{"simulate", "pair with an in-memory accessory", runSimulate},
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return 2
	}
	for _, c := range commands {
		if c.name == args[0] {
			return c.run(args[1:], stdout, stderr)
		}
	}
	if args[0] == "-h" || args[0] == "-help" || args[0] == "help" {
		usage(stdout)
		return 0
	}
	fmt.Fprintf(stderr, "sfida-auth: unknown command %q\n", args[0])
	usage(stderr)
	return 2
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: sfida-auth <command> [options]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "commands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-10s %s\n", c.name, c.summary)
	}
}
