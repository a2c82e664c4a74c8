package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mattjoyce/gpiogw/internal/actionconfig"
	"github.com/mattjoyce/gpiogw/internal/config"
	"github.com/mattjoyce/gpiogw/internal/handlers"
	"github.com/mattjoyce/gpiogw/internal/plugin"
)

const redacted = "********"

func runConfigShow(args []string) int {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	jsonOut := fs.Bool("json", false, "Output in structured JSON format")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Load error: %v\n", err)
		return 1
	}
	redactSecrets(cfg)

	if *jsonOut {
		data, _ := json.MarshalIndent(cfg, "", "  ")
		fmt.Println(string(data))
	} else {
		data, _ := yaml.Marshal(cfg)
		fmt.Print(string(data))
	}
	return 0
}

func redactSecrets(cfg *config.Config) {
	if cfg.API.Auth.APIKey != "" {
		cfg.API.Auth.APIKey = redacted
	}
	for i := range cfg.API.Auth.Tokens {
		cfg.API.Auth.Tokens[i].Token = redacted
	}
	if cfg.MQTT.Auth.Password != "" {
		cfg.MQTT.Auth.Password = redacted
	}
	if cfg.InfluxDB.Token != "" {
		cfg.InfluxDB.Token = redacted
	}
}

// runConfigCheck loads the service config, the action config documents and
// the plugin manifests without touching hardware.
func runConfigCheck(args []string) int {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FAIL config: %v\n", err)
		return 1
	}
	fmt.Printf("OK   config: %s\n", displayPath(cfg.SourcePath))

	store := actionconfig.NewStore(cfg.Paths.ConfigDir)
	if err := store.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "FAIL action configs: %v\n", err)
		return 1
	}
	fmt.Printf("OK   action configs: %d loaded from %s\n", len(store.Names()), cfg.Paths.ConfigDir)

	registry, err := plugin.Discover(cfg.Paths.PluginsDir, handlers.Catalog(handlers.Deps{}), nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FAIL plugins: %v\n", err)
		return 1
	}
	fmt.Printf("OK   plugins: %d handlers, kinds %v\n", registry.Len(), registry.Kinds())
	return 0
}

func displayPath(p string) string {
	if p == "" {
		return "(defaults)"
	}
	return p
}
