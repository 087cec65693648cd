// Package cliargs parses da-proc's command line: --id, --hosts,
// --output, and a trailing positional config path.
package cliargs

import (
	"flag"
	"fmt"
)

// Args is the parsed command line.
type Args struct {
	ID         uint64
	HostsPath  string
	OutputPath string
	ConfigPath string
}

// Parse parses argv (excluding the program name, i.e. os.Args[1:]).
func Parse(argv []string) (Args, error) {
	fs := flag.NewFlagSet("da-proc", flag.ContinueOnError)
	id := fs.Uint64("id", 0, "this process's id")
	hosts := fs.String("hosts", "", "path to the hosts file")
	output := fs.String("output", "", "path to the output log")
	if err := fs.Parse(argv); err != nil {
		return Args{}, err
	}

	if *id == 0 {
		return Args{}, fmt.Errorf("cliargs: --id is required and must be >= 1")
	}
	if *hosts == "" {
		return Args{}, fmt.Errorf("cliargs: --hosts is required")
	}
	if *output == "" {
		return Args{}, fmt.Errorf("cliargs: --output is required")
	}
	if fs.NArg() != 1 {
		return Args{}, fmt.Errorf("cliargs: expected exactly one positional config path, got %d", fs.NArg())
	}

	return Args{
		ID:         *id,
		HostsPath:  *hosts,
		OutputPath: *output,
		ConfigPath: fs.Arg(0),
	}, nil
}
