package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"

	cfgKeyDataDir     = "data_dir"
	cfgKeyArchiveRoot = "archive_root"
	cfgKeyLogLevel    = "log_level"
)

// defaultConfigYAML is written to config.yaml on first run so the file's
// shape is discoverable without documentation.
const defaultConfigYAML = `# chronicle configuration

# Index data directory (optional; overridable by --data-dir flag)
# data_dir:

# Archive tree root (optional; overridable by --archive-root flag)
# archive_root:

# Log level: trace, debug, info, warn, error
log_level: info
`

// cliConfig is the parsed view of config.yaml.
type cliConfig struct {
	DataDir     string
	ArchiveRoot string
	LogLevel    string
}

// loadConfig reads config.yaml from the config directory using Viper,
// creating the directory and a default file on first run. A missing
// config.yaml is not an error.
func loadConfig(configDir string) (*cliConfig, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure config dir: %w", err)
	}
	if err := ensureDefaultConfigFile(configDir); err != nil {
		return nil, fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	v.SetDefault(cfgKeyLogLevel, "info")
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return &cliConfig{
		DataDir:     v.GetString(cfgKeyDataDir),
		ArchiveRoot: v.GetString(cfgKeyArchiveRoot),
		LogLevel:    v.GetString(cfgKeyLogLevel),
	}, nil
}

// ensureDefaultConfigFile creates a default config.yaml if none exists.
func ensureDefaultConfigFile(configDir string) error {
	path := filepath.Join(configDir, configFileExt)
	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}
