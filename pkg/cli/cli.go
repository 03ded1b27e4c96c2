package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/eslym/troupe/pkg/config"
)

var (
	ErrUsage          = errors.New("usage error")
	ErrUnknownProcess = fmt.Errorf("%w: unknown process", ErrUsage)
)

const Usage = `Troupe - Procfile runner

Usage:
  troupe start [options] [process...]

Options:
  -f, --procfile PATH   Procfile to run (default "Procfile")
  -e, --env PATH        env file merged into every child (default ".env")
  -c, --config PATH     settings file (JSON, YAML or TOML)
      --color MODE      always, auto or never (default "always")
      --admin ADDR      serve the admin API on host:port or unix:/path
  -v                    verbose supervisor log

Examples:
  # Run every process in ./Procfile
  troupe start

  # Run only web and worker, padding still spans the whole Procfile
  troupe start web worker

  # Another Procfile without colors
  troupe start -f Procfile.dev --color never
`

// Options represents the command-line options
type Options struct {
	Procfile   string
	EnvFile    string
	ConfigPath string
	Color      string
	Admin      *config.AdminEntry
	Verbose    bool
	Processes  []string

	// set holds the long names of flags given explicitly
	set map[string]bool
}

// ParseArgs parses the command-line arguments, without the program name.
// Every failure wraps ErrUsage, -h yields flag.ErrHelp.
func ParseArgs(args []string) (*Options, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: missing command", ErrUsage)
	}
	switch args[0] {
	case "start":
	case "-h", "-help", "--help", "help":
		return nil, flag.ErrHelp
	default:
		return nil, fmt.Errorf("%w: unknown command %q", ErrUsage, args[0])
	}

	options := &Options{}

	fs := flag.NewFlagSet("troupe start", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&options.Procfile, "procfile", "", "Procfile to run")
	fs.StringVar(&options.Procfile, "f", "", "Procfile to run (shorthand)")
	fs.StringVar(&options.EnvFile, "env", "", "env file")
	fs.StringVar(&options.EnvFile, "e", "", "env file (shorthand)")
	fs.StringVar(&options.ConfigPath, "config", "", "settings file")
	fs.StringVar(&options.ConfigPath, "c", "", "settings file (shorthand)")
	fs.StringVar(&options.Color, "color", "", "color mode")
	var admin string
	fs.StringVar(&admin, "admin", "", "admin listen address")
	fs.BoolVar(&options.Verbose, "v", false, "Enable verbose output")

	// flags and process names may be interleaved
	rest := args[1:]
	for {
		if err := fs.Parse(rest); err != nil {
			if errors.Is(err, flag.ErrHelp) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %v", ErrUsage, err)
		}
		remaining := fs.Args()
		if len(remaining) == 0 {
			break
		}
		consumed := len(rest) - len(remaining)
		if consumed > 0 && rest[consumed-1] == "--" {
			options.Processes = append(options.Processes, remaining...)
			break
		}
		options.Processes = append(options.Processes, remaining[0])
		rest = remaining[1:]
	}

	options.set = make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		options.set[longName(f.Name)] = true
	})

	if options.set["admin"] {
		entry, err := config.ParseAdminAddress(admin)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUsage, err)
		}
		options.Admin = entry
	}

	return options, nil
}

func longName(name string) string {
	switch name {
	case "f":
		return "procfile"
	case "e":
		return "env"
	case "c":
		return "config"
	default:
		return name
	}
}

// Apply overrides settings with the flags given on the command line
func (o *Options) Apply(settings *config.Settings) {
	if o.set["procfile"] {
		settings.Procfile = o.Procfile
	}
	if o.set["env"] {
		settings.EnvFile = o.EnvFile
	}
	if o.set["color"] {
		settings.Color = o.Color
	}
	if o.set["admin"] {
		settings.Admin = o.Admin
	}
	if o.Verbose {
		settings.Verbose = true
	}
}

// SelectProcesses turns the positional names into a launch filter. No names
// selects everything and returns nil.
func SelectProcesses(names []string, available []string) (map[string]bool, error) {
	if len(names) == 0 {
		return nil, nil
	}
	known := make(map[string]bool, len(available))
	for _, name := range available {
		known[name] = true
	}
	result := make(map[string]bool, len(names))
	for _, name := range names {
		if !known[name] {
			return nil, fmt.Errorf("%w: %s", ErrUnknownProcess, name)
		}
		result[name] = true
	}
	return result, nil
}
