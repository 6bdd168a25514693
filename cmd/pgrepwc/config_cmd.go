package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/asheshgoplani/pgrepwc/internal/config"
)

// handleConfig dispatches config subcommands
func (c *cli) handleConfig(args []string) int {
	if len(args) == 0 {
		return c.handleConfigShow()
	}

	switch args[0] {
	case "init":
		return c.handleConfigInit(args[1:])
	case "path":
		path, err := config.GetUserConfigPath()
		if err != nil {
			fmt.Fprintf(c.stderr, "Error: %v\n", err)
			return exitFailure
		}
		fmt.Fprintln(c.stdout, path)
		return exitOK
	case "show":
		return c.handleConfigShow()
	case "help", "--help", "-h":
		c.printConfigHelp()
		return exitOK
	default:
		fmt.Fprintf(c.stderr, "Unknown config command: %s\n\n", args[0])
		c.printConfigHelp()
		return exitUsage
	}
}

func (c *cli) printConfigHelp() {
	w := c.stdout
	fmt.Fprintln(w, "Usage: pgrepwc config <command>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  init [--force]   Write config.toml with every default spelled out")
	fmt.Fprintln(w, "  path             Print the config.toml location")
	fmt.Fprintln(w, "  show             Print the effective configuration")
}

func (c *cli) handleConfigInit(args []string) int {
	fs := flag.NewFlagSet("config init", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	force := fs.Bool("force", false, "Overwrite an existing config.toml")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	path, err := config.GetUserConfigPath()
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return exitFailure
	}
	if _, err := os.Stat(path); err == nil && !*force {
		fmt.Fprintf(c.stderr, "Error: %s already exists (use --force to overwrite)\n", path)
		return exitFailure
	}

	if err := config.SaveUserConfig(config.EffectiveUserConfig()); err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return exitFailure
	}
	fmt.Fprintf(c.stdout, "Wrote %s\n", path)
	return exitOK
}

func (c *cli) handleConfigShow() int {
	if _, err := config.LoadUserConfig(); err != nil {
		fmt.Fprintf(c.stderr, "Warning: %v\n", err)
	}
	if err := toml.NewEncoder(c.stdout).Encode(config.EffectiveUserConfig()); err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return exitFailure
	}
	return exitOK
}
