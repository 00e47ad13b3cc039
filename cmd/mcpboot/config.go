package main

import (
	"flag"
	"fmt"
	"os"
)

const (
	defaultProvider   = "anthropic"
	defaultPort       = 8000
	defaultCacheDir   = ".mcpboot-cache"
	defaultConfigFile = ".mcpboot.yaml"
)

// ConfigError is a startup-fatal configuration problem: a missing prompt,
// an invalid provider, an absent API key, or a malformed port. cmd/mcpboot
// prints its message as a single stderr line and exits 1.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return e.Msg }

// Config is the fully resolved configuration for one mcpboot run, after
// flags, environment fallback, and an optional YAML file have all been
// applied.
type Config struct {
	Prompt     string
	Provider   string
	Model      string
	APIKey     string
	Port       int
	CacheDir   string
	NoCache    bool
	Verbose    bool
	LogFile    string
	DryRun     bool
	ConfigFile string
}

// flagValues holds the raw flag destinations plus the prompt-file flag,
// which config.go resolves into Config.Prompt but which Config itself does
// not carry (only the resolved text matters past startup).
type flagValues struct {
	prompt     string
	promptFile string
	provider   string
	model      string
	apiKey     string
	port       int
	cacheDir   string
	noCache    bool
	verbose    bool
	logFile    string
	dryRun     bool
	configFile string
}

// parseArgs parses args (excluding the program name) into a Config. It
// returns flag.ErrHelp unchanged when -h/--help was requested, so the
// caller can print usage and exit 0 without treating it as a fatal error.
func parseArgs(args []string) (*Config, error) {
	fs := flag.NewFlagSet("mcpboot", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var fv flagValues
	fs.StringVar(&fv.prompt, "prompt", "", "natural-language description of the tools to synthesize")
	fs.StringVar(&fv.promptFile, "prompt-file", "", "path to a file containing the prompt")
	fs.StringVar(&fv.provider, "provider", defaultProvider, "LLM provider: anthropic or openai")
	fs.StringVar(&fv.model, "model", "", "model id (provider-specific default if empty)")
	fs.StringVar(&fv.apiKey, "api-key", "", "LLM API key (falls back to ANTHROPIC_API_KEY or OPENAI_API_KEY)")
	fs.IntVar(&fv.port, "port", defaultPort, "HTTP port to listen on (0 picks an ephemeral port)")
	fs.StringVar(&fv.cacheDir, "cache-dir", defaultCacheDir, "cache directory for generated tool tables")
	fs.BoolVar(&fv.noCache, "no-cache", false, "disable the on-disk cache")
	fs.BoolVar(&fv.verbose, "verbose", false, "enable debug-level logging")
	fs.StringVar(&fv.logFile, "log-file", "", "also write logs to this file")
	fs.BoolVar(&fv.dryRun, "dry-run", false, "print the generated plan and exit without compiling or serving")
	fs.StringVar(&fv.configFile, "config", defaultConfigFile, "optional YAML config file (silently skipped if absent)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	cfg := &Config{
		Provider:   fv.provider,
		Model:      fv.model,
		APIKey:     fv.apiKey,
		Port:       fv.port,
		CacheDir:   fv.cacheDir,
		NoCache:    fv.noCache,
		Verbose:    fv.verbose,
		LogFile:    fv.logFile,
		DryRun:     fv.dryRun,
		ConfigFile: fv.configFile,
	}

	if err := resolvePrompt(cfg, fv); err != nil {
		return nil, err
	}

	if fc, err := loadFileConfigIfPresent(cfg.ConfigFile); err != nil {
		return nil, err
	} else if fc != nil {
		applyFileConfig(cfg, fc, set)
	}

	if err := resolveAPIKey(cfg, set); err != nil {
		return nil, err
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func resolvePrompt(cfg *Config, fv flagValues) error {
	switch {
	case fv.prompt != "" && fv.promptFile != "":
		return &ConfigError{Msg: "exactly one of --prompt or --prompt-file is required, got both"}
	case fv.prompt != "":
		cfg.Prompt = fv.prompt
	case fv.promptFile != "":
		data, err := os.ReadFile(fv.promptFile)
		if err != nil {
			return &ConfigError{Msg: fmt.Sprintf("read --prompt-file: %v", err)}
		}
		cfg.Prompt = string(data)
	default:
		return &ConfigError{Msg: "exactly one of --prompt or --prompt-file is required"}
	}
	return nil
}

// resolveAPIKey falls back to the provider's conventional environment
// variable when --api-key was not passed (the config file has no API key
// field).
func resolveAPIKey(cfg *Config, set map[string]bool) error {
	if cfg.APIKey != "" {
		return nil
	}
	switch cfg.Provider {
	case "anthropic":
		cfg.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	case "openai":
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return &ConfigError{Msg: fmt.Sprintf("no API key: pass --api-key or set the provider's environment variable for %q", cfg.Provider)}
	}
	return nil
}

func validateConfig(cfg *Config) error {
	if cfg.Provider != "anthropic" && cfg.Provider != "openai" {
		return &ConfigError{Msg: fmt.Sprintf("invalid --provider %q: must be anthropic or openai", cfg.Provider)}
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return &ConfigError{Msg: fmt.Sprintf("invalid --port %d: must be 0-65535", cfg.Port)}
	}
	return nil
}
