package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/eslym/troupe/pkg/admin"
	"github.com/eslym/troupe/pkg/cli"
	"github.com/eslym/troupe/pkg/config"
	"github.com/eslym/troupe/pkg/console"
	"github.com/eslym/troupe/pkg/log"
	"github.com/eslym/troupe/pkg/manifest"
	"github.com/eslym/troupe/pkg/supervisor"
	"gopkg.in/yaml.v3"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	options, err := cli.ParseArgs(args)
	if errors.Is(err, flag.ErrHelp) {
		fmt.Print(cli.Usage)
		return 0
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "troupe: %v\n\n%s", err, cli.Usage)
		return 2
	}

	settings, err := loadSettings(options)
	if err != nil {
		log.Errorf("troupe", "%v", err)
		return 1
	}

	cons := console.NewConsole(os.Stdout)
	log.SetOutput(cons)
	defer log.SetOutput(nil)

	mode, _ := console.ParseColorMode(settings.Color)
	palette := console.NewPalette(mode.Enabled(os.Stdout))

	env, err := config.LoadEnvFile(settings.EnvFile)
	if err != nil {
		log.Errorf("troupe", "%v", err)
		return 1
	}

	entries, err := manifest.Load(settings.Procfile)
	if err != nil {
		log.Errorf("troupe", "%v", err)
		return 1
	}

	only, err := cli.SelectProcesses(options.Processes, manifest.Names(manifest.Runnable(entries)))
	if err != nil {
		fmt.Fprintf(os.Stderr, "troupe: %v\n\n%s", err, cli.Usage)
		return 2
	}

	if settings.Verbose {
		dumpSettings(settings, entries)
	}

	sup := supervisor.NewSupervisor(supervisor.Options{
		Console:       cons,
		Palette:       palette,
		Env:           env,
		MaxLineLength: settings.MaxLineLength,
		Only:          only,
		Verbose:       settings.Verbose,
	})

	ctx := context.Background()
	if settings.Admin != nil {
		server := admin.NewAdminServer(ctx, sup, cons, settings.Admin, settings.Verbose)
		if err := server.Start(); err != nil {
			log.Errorf("admin", "Error starting admin server: %v", err)
		} else {
			defer server.Stop()
		}
	}

	if err := sup.Run(ctx, entries); err != nil {
		log.Errorf("troupe", "%v", err)
		return 1
	}
	return 0
}

// loadSettings resolves the settings file, then layers the flags on top
func loadSettings(options *cli.Options) (*config.Settings, error) {
	path := options.ConfigPath
	if path == "" {
		resolved, err := config.ResolveSettingsPath()
		if err != nil && !errors.Is(err, config.ErrSettingsNotFound) {
			return nil, err
		}
		path = resolved
	}

	settings, err := config.LoadSettings(path)
	if err != nil {
		return nil, err
	}
	options.Apply(settings)
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

func dumpSettings(settings *config.Settings, entries []manifest.Entry) {
	processes := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		processes = append(processes, map[string]any{
			"name":    entry.Name,
			"command": entry.Command,
			"inert":   entry.Inert(),
		})
	}
	out, err := yaml.Marshal(map[string]any{
		"settings":  settings.Serialize(),
		"processes": processes,
	})
	if err != nil {
		log.Errorf("troupe", "Error marshaling settings to YAML: %v", err)
		return
	}
	log.Printf("troupe", "Effective settings:\n%s", out)
}
