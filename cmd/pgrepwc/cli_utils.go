package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/asheshgoplani/pgrepwc/internal/config"
)

// Exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

// normalizeArgs reorders args so flags come before positional arguments.
// Go's flag package stops parsing at the first non-flag argument, which means
// "pgrepwc word -c" silently ignores -c. This function moves all flags to the
// front so they get parsed correctly.
func normalizeArgs(fs *flag.FlagSet, args []string) []string {
	boolFlags := make(map[string]bool)
	fs.VisitAll(func(f *flag.Flag) {
		if bf, ok := f.Value.(interface{ IsBoolFlag() bool }); ok && bf.IsBoolFlag() {
			boolFlags[f.Name] = true
		}
	})

	var flags, positional []string
	for i := 0; i < len(args); i++ {
		arg := args[i]

		// "--" terminates flag processing
		if arg == "--" {
			positional = append(positional, args[i+1:]...)
			break
		}

		if strings.HasPrefix(arg, "-") && arg != "-" {
			flags = append(flags, arg)

			name := strings.TrimLeft(arg, "-")
			if strings.Contains(name, "=") {
				continue
			}

			// If it's not a bool flag, the next arg is its value
			if !boolFlags[name] && i+1 < len(args) {
				i++
				flags = append(flags, args[i])
			}
		} else {
			positional = append(positional, arg)
		}
	}
	return append(flags, positional...)
}

// splitFilesArg separates the -f/--files list. Every argument after the
// first -f or --files is a file name; ok reports whether the flag was given.
func splitFilesArg(args []string) (rest, files []string, ok bool) {
	for i, a := range args {
		if a == "-f" || a == "--files" || a == "-files" {
			return args[:i:i], args[i+1:], true
		}
	}
	return args, nil, false
}

// readFileList reads whitespace-separated file names from r, one or more per
// line, until a blank line or EOF. When prompt is non-nil a prompt is written
// before the first line.
func readFileList(r io.Reader, prompt io.Writer) ([]string, error) {
	if prompt != nil {
		fmt.Fprintln(prompt, "Enter file names (blank line to finish):")
	}
	var files []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			break
		}
		files = append(files, strings.Fields(line)...)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read file list: %w", err)
	}
	return files, nil
}

// exitCodeFor maps an error to the process exit code.
func exitCodeFor(err error) int {
	if err == nil {
		return exitOK
	}
	var verr *config.ValidationError
	if errors.As(err, &verr) {
		return exitUsage
	}
	return exitFailure
}
