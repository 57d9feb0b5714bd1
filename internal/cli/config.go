package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"

	cfgKeyDataDir     = "data_dir"
	cfgKeyCache       = "cache"
	cfgKeyIdentityMap = "identity_map"
)

// configFile holds the structure written to config.yaml.
type configFile struct {
	DataDir     string `yaml:"data_dir,omitempty"`
	Cache       bool   `yaml:"cache"`
	IdentityMap bool   `yaml:"identity_map"`
}

// defaultConfig is written to config.yaml on first run.
var defaultConfig = configFile{
	Cache:       false,
	IdentityMap: true,
}

// loadConfig reads config.yaml from configDir with viper, creating the
// directory and a default file on first run.
func loadConfig(configDir string) (*viper.Viper, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}
	if err := writeConfigIfMissing(filepath.Join(configDir, configFileExt), defaultConfig); err != nil {
		return nil, fmt.Errorf("write default config: %w", err)
	}

	v := viper.New()
	v.SetDefault(cfgKeyCache, defaultConfig.Cache)
	v.SetDefault(cfgKeyIdentityMap, defaultConfig.IdentityMap)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}

// writeConfigIfMissing writes cfg to path unless the file exists.
func writeConfigIfMissing(path string, cfg configFile) error {
	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat config file: %w", err)
	}

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	header := []byte("# fleet configuration; data_dir is overridden by --data-dir and NARWHAL_DATA_DIR\n")
	return os.WriteFile(path, append(header, data...), 0o644)
}
