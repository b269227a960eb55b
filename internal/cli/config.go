package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

const (
	maxWalkDepth = 25
	envPrefix    = "DREL"
)

// Config represents the drel configuration from drel.yaml.
//
//	schema: schema/blog.cue
//	dialect: sqlite
//	scenarios: testdata/scenarios
//	database:
//	  driver: sqlite3
//	  dsn: blog.db
type Config struct {
	// Schema is a YAML file, a CUE file, or a CUE package directory.
	// Empty means introspect the database.
	Schema string `mapstructure:"schema"`

	// Dialect selects the SQL dialect for compile when no database is given.
	Dialect string `mapstructure:"dialect"`

	// Scenarios is the default directory for drel test.
	Scenarios string `mapstructure:"scenarios"`

	Database DatabaseConfig `mapstructure:"database"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// LoadConfig discovers and loads configuration with proper precedence:
// flags > env > config file > defaults.
//
// The .env and .env.local files next to the config file (or in the working
// directory when there is none) are loaded first. Variables already set in
// the environment win over .env; .env.local overrides both.
//
// Returns the loaded config, the path to the config file (empty if none found),
// and any error encountered.
func LoadConfig(fs afero.Fs, explicitPath string) (*Config, string, error) {
	configPath, err := findConfigFile(fs, explicitPath)
	if err != nil {
		return nil, "", err
	}

	envDir := filepath.Dir(configPath)
	if configPath == "" {
		if envDir, err = os.Getwd(); err != nil {
			return nil, "", fmt.Errorf("getting cwd: %w", err)
		}
	}
	if err := loadDotEnv(fs, envDir); err != nil {
		return nil, configPath, err
	}

	v := viper.New()
	v.SetFs(fs)

	// 1. Defaults (lowest precedence)
	setDefaults(v)

	// 2. Environment, e.g. DREL_DATABASE_DSN
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 3. Config file
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, configPath, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, configPath, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Relative paths in the config file are relative to the file.
	if configPath != "" {
		base := filepath.Dir(configPath)
		cfg.Schema = resolvePath(base, cfg.Schema)
		cfg.Scenarios = resolvePath(base, cfg.Scenarios)
	}

	return &cfg, configPath, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("schema", "")
	v.SetDefault("dialect", "sqlite")
	v.SetDefault("scenarios", "")

	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.dsn", "")
}

// findConfigFile finds the config file to use.
// If explicitPath is provided, it validates the file exists.
// Otherwise, it walks up from cwd looking for drel.yaml or drel.yml,
// stopping at a .git directory or after maxWalkDepth levels.
func findConfigFile(fs afero.Fs, explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := fs.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicitPath)
		}
		return explicitPath, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting cwd: %w", err)
	}

	dir := cwd
	for i := 0; i < maxWalkDepth; i++ {
		for _, name := range []string{"drel.yaml", "drel.yml"} {
			path := filepath.Join(dir, name)
			if _, err := fs.Stat(path); err == nil {
				return path, nil
			}
		}

		// Stop at the repo root
		if _, err := fs.Stat(filepath.Join(dir, ".git")); err == nil {
			break
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", nil
}

// loadDotEnv sets variables from dir/.env and dir/.env.local.
// Missing files are skipped.
func loadDotEnv(fs afero.Fs, dir string) error {
	for _, f := range []struct {
		name      string
		overwrite bool
	}{
		{".env", false},
		{".env.local", true},
	} {
		path := filepath.Join(dir, f.name)
		data, err := afero.ReadFile(fs, path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("reading %s: %w", path, err)
		}
		vars, err := godotenv.Unmarshal(string(data))
		if err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
		for k, val := range vars {
			if _, set := os.LookupEnv(k); set && !f.overwrite {
				continue
			}
			if err := os.Setenv(k, val); err != nil {
				return fmt.Errorf("setting %s: %w", k, err)
			}
		}
	}
	return nil
}

func resolvePath(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}
