// Command mcpboot turns a natural-language prompt into a running MCP tool
// server: it fetches any URLs named in the prompt, asks an LLM to plan a
// set of tools, compiles each into sandboxed JavaScript, and serves them
// over streamable HTTP MCP until interrupted.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
)

func main() {
	cfg, err := parseArgs(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, "mcpboot: "+err.Error())
		os.Exit(1)
	}

	ctx, cancel := signalContext()
	defer cancel()

	if err := run(ctx, cfg, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "mcpboot: "+err.Error())
		os.Exit(1)
	}
}
