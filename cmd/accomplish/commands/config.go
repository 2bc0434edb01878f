package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/urfave/cli/v3"

	"github.com/accomplish-dev/accomplish-cli/internal/app"
)

// envPrefix is stripped from environment variables during config loading (e.g., ACCOMPLISH_API__BASE_URL → api.base_url)
const envPrefix = "ACCOMPLISH_"

// loadConfig loads application configuration for one profile with precedence:
// config file section → environment variables → CLI flags → defaults.
// The config file holds one TOML table per profile ([default], [prod], ...).
func loadConfig(configPath string, cmd *cli.Command, environFunc func() []string) (*app.Config, error) {
	profile := app.DefaultConfigProfile
	if cmd != nil && cmd.String("profile") != "" {
		profile = cmd.String("profile")
	}
	return loadConfigForProfile(configPath, profile, cmd, environFunc)
}

func loadConfigForProfile(configPath, profile string, cmd *cli.Command, environFunc func() []string) (*app.Config, error) {
	k := koanf.New(".")

	// 1. Load the profile's section from the config file. The default path
	// is optional; an explicitly given one must exist.
	if configPath == "" {
		if home, err := os.UserHomeDir(); err == nil {
			candidate := filepath.Join(home, ".accomplish", "config.toml")
			if _, err := os.Stat(candidate); err == nil {
				configPath = candidate
			}
		}
	}
	if configPath != "" {
		all := koanf.New(".")
		if err := all.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
		if err := k.Merge(all.Cut(profile)); err != nil {
			return nil, fmt.Errorf("selecting profile %q: %w", profile, err)
		}
	}

	// 2. Load from environment variables
	envProvider := env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			stripped := strings.TrimPrefix(key, envPrefix)
			nested := strings.ToLower(strings.ReplaceAll(stripped, "__", "."))
			return nested, value
		},
		EnvironFunc: environFunc,
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	// 3. Load from CLI flags if provided
	if cmd != nil {
		flagValues := extractAndTransformFlags(cmd)
		if err := k.Load(confmap.Provider(flagValues, "."), nil); err != nil {
			return nil, fmt.Errorf("loading CLI flags: %w", err)
		}
	}

	config := &app.Config{}
	if err := k.UnmarshalWithConf("", config, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	config.Profile = profile

	if err := config.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("applying defaults: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

// extractAndTransformFlags transforms CLI flag names to match config structure.
// Includes parent flags. Examples: --api--base-url → api.base_url, --log-level → log_level
func extractAndTransformFlags(cmd *cli.Command) map[string]any {
	values := make(map[string]any)

	// FlagNames() includes flags from parent commands (via lineage)
	for _, name := range cmd.FlagNames() {
		// Skip unset flags to preserve precedence from earlier config sources
		if !cmd.IsSet(name) {
			continue
		}
		// The profile flag selects the file section; it is not part of it.
		if name == "profile" || name == "p" || name == "config" || name == "c" {
			continue
		}

		if value := cmd.Value(name); value != nil {
			key := strings.ReplaceAll(name, "--", ".")
			key = strings.ReplaceAll(key, "-", "_")
			values[key] = value
		}
	}

	return values
}
