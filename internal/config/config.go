package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	log "github.com/sirupsen/logrus"

	"go-tarot-gen/internal/models"
)

// TokenEnvVar overrides ApiToken from the config file.
const TokenEnvVar = "REPLICATE_API_TOKEN"

// ErrNoConfigFile is returned (with defaults) when the config file does not exist.
var ErrNoConfigFile = errors.New("config file not found")

// Defaults returns the configuration used for any value the file leaves unset.
func Defaults() models.Config {
	return models.Config{
		ApiBaseUrl:          "https://api.replicate.com/v1",
		OutputPath:          "output",
		DatabasePath:        "tarot_state.db",
		BleveIndexPath:      "tarot.bleve",
		Model:               "flux-schnell",
		AspectRatio:         "2:3",
		Seed:                42,
		Parallel:            1,
		Diversity:           "medium",
		PromptStrength:      0.47,
		KeyCardScope:        "deck",
		MaxRetries:          5,
		ApiClientTimeoutSec: 300,
		PollIntervalSec:     2,
		RateLimitWaitSec:    60,
	}
}

// LoadConfig reads the TOML file at configFilePath (default "config.toml") on
// top of Defaults. A missing file returns the defaults and ErrNoConfigFile.
func LoadConfig(configFilePath string) (models.Config, error) {
	if configFilePath == "" {
		configFilePath = "config.toml"
	}
	cfg := Defaults()

	meta, err := toml.DecodeFile(configFilePath, &cfg)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Defaults(), fmt.Errorf("%w: %s", ErrNoConfigFile, configFilePath)
		}
		return Defaults(), fmt.Errorf("error loading config file %s: %w", configFilePath, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		log.Warnf("Ignoring unknown keys in %s: %s", configFilePath, strings.Join(keys, ", "))
	}

	if cfg.OutputPath == "" {
		log.Warn("OutputPath is empty in config, using default")
		cfg.OutputPath = Defaults().OutputPath
	}
	if cfg.DatabasePath == "" {
		log.Warn("DatabasePath is empty in config, using default")
		cfg.DatabasePath = Defaults().DatabasePath
	}

	log.Infof("Configuration loaded from %s", configFilePath)
	return cfg, nil
}

// ApplyEnv lets REPLICATE_API_TOKEN take precedence over the file's ApiToken.
func ApplyEnv(cfg *models.Config) {
	if token := strings.TrimSpace(os.Getenv(TokenEnvVar)); token != "" {
		cfg.ApiToken = token
	}
}
