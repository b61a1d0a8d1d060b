package cmd

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go-tarot-gen/internal/api"
	"go-tarot-gen/internal/config"
	"go-tarot-gen/internal/models"
)

// cfgFile holds the path to the config file specified by the user
var cfgFile string

// logApiFlag holds the value of the --log-api flag
var logApiFlag bool

// apiTimeoutFlag holds the value of the --api-timeout flag
var apiTimeoutFlag int

var logLevel string
var logFormat string // "text" or "json"

// globalConfig holds the loaded configuration
var globalConfig models.Config

// globalHttpTransport is the base transport, wrapped for logging when --log-api is set
var globalHttpTransport http.RoundTripper

var rootCmd = &cobra.Command{
	Use:   "tarot-gen",
	Short: "Generate visually consistent tarot and oracle decks",
	Long: `tarot-gen drives the Replicate image API to illustrate a full tarot deck,
or a custom oracle deck, in one consistent art style.

Cards are generated from deterministic seeds, and image-to-image models can chain
every card off a key card or shared reference images.`,
	PersistentPreRunE: loadGlobalConfig,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

// Execute runs the root command. It is called once by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		api.CloseAllLoggingTransports()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.toml", "Configuration file path")
	rootCmd.PersistentFlags().BoolVar(&logApiFlag, "log-api", false, "Log API requests/responses to api.log (overrides config)")
	rootCmd.PersistentFlags().IntVar(&apiTimeoutFlag, "api-timeout", -1, "Timeout for API HTTP requests in seconds (-1 uses config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Logging level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Logging format (text, json)")

	cobra.OnInitialize(initLogging)
}

// initLogging configures logrus from the persistent flags.
func initLogging() {
	level, err := log.ParseLevel(logLevel)
	if err != nil {
		log.WithError(err).Warnf("Invalid log level '%s', using default 'info'", logLevel)
		level = log.InfoLevel
	}
	log.SetLevel(level)

	switch logFormat {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	case "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		log.Warnf("Invalid log format '%s', using default 'text'", logFormat)
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	log.Debugf("Logging configured: Level=%s, Format=%s", log.GetLevel(), logFormat)
}

// loadGlobalConfig loads .env and the config file, applies flag overrides and
// seeds viper defaults so generate flags fall back to config values.
func loadGlobalConfig(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WithError(err).Warn("Failed to load .env file")
	}

	var err error
	globalConfig, err = config.LoadConfig(cfgFile)
	if errors.Is(err, config.ErrNoConfigFile) {
		log.Debugf("No config file at %s, using defaults", cfgFile)
	} else if err != nil {
		return err
	}
	config.ApplyEnv(&globalConfig)

	if cmd.Flags().Changed("log-api") {
		globalConfig.LogApiRequests = logApiFlag
	}
	if cmd.Flags().Changed("api-timeout") {
		if apiTimeoutFlag > 0 {
			globalConfig.ApiClientTimeoutSec = apiTimeoutFlag
		} else {
			log.Warnf("--api-timeout flag provided with invalid value %d, using config value: %d sec", apiTimeoutFlag, globalConfig.ApiClientTimeoutSec)
		}
	}
	if globalConfig.ApiClientTimeoutSec <= 0 {
		globalConfig.ApiClientTimeoutSec = config.Defaults().ApiClientTimeoutSec
	}

	seedGenerateDefaults(globalConfig)

	globalHttpTransport = http.DefaultTransport
	if globalConfig.LogApiRequests {
		logFilePath := "api.log"
		if info, statErr := os.Stat(globalConfig.OutputPath); statErr == nil && info.IsDir() {
			logFilePath = filepath.Join(globalConfig.OutputPath, logFilePath)
		}
		loggingTransport, err := api.NewLoggingTransport(http.DefaultTransport, logFilePath)
		if err != nil {
			log.WithError(err).Error("Failed to initialize API logging transport, logging disabled.")
		} else {
			log.Infof("API logging to file: %s", logFilePath)
			globalHttpTransport = loggingTransport
		}
	}
	return nil
}

// seedGenerateDefaults makes config values the viper defaults of the generate
// keys, so a changed flag wins over the config file, which wins over flag defaults.
func seedGenerateDefaults(cfg models.Config) {
	viper.SetDefault("generate.output", cfg.OutputPath)
	viper.SetDefault("generate.style", cfg.Style)
	viper.SetDefault("generate.model", cfg.Model)
	viper.SetDefault("generate.seed", cfg.Seed)
	viper.SetDefault("generate.parallel", cfg.Parallel)
	viper.SetDefault("generate.diversity", cfg.Diversity)
	viper.SetDefault("generate.aspect_ratio", cfg.AspectRatio)
	viper.SetDefault("generate.prompt_strength", cfg.PromptStrength)
	viper.SetDefault("generate.negative_extra", cfg.NegativeExtra)
	viper.SetDefault("generate.reference", cfg.ReferencePath)
	viper.SetDefault("generate.reference_dir", cfg.ReferenceDir)
	viper.SetDefault("generate.key_card_scope", cfg.KeyCardScope)
	viper.SetDefault("generate.cards_file", cfg.CardsFile)
	viper.SetDefault("generate.skip_card_back", cfg.SkipCardBack)
	viper.SetDefault("generate.reference_fallback", cfg.ReferenceFallback)
}

// newHttpClient returns a client on the global transport with the configured timeout.
func newHttpClient() *http.Client {
	if globalHttpTransport == nil {
		globalHttpTransport = http.DefaultTransport
	}
	return &http.Client{
		Timeout:   time.Duration(globalConfig.ApiClientTimeoutSec) * time.Second,
		Transport: globalHttpTransport,
	}
}
