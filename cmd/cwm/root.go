package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ColonelPanicX/comply-with-me/internal/client"
	"github.com/ColonelPanicX/comply-with-me/internal/config"
	"github.com/ColonelPanicX/comply-with-me/internal/events"
)

var (
	cfgFile   string
	dataDir   string
	verbose   bool
	logFormat string

	cfg    *config.Config
	logger *events.Logger

	rootCmd = &cobra.Command{
		Use:   "cwm",
		Short: "Mirror compliance publications into a local library",
		Long: `cwm keeps a local mirror of published compliance documents.

Each configured source is discovered live (listing pages, GitHub repos,
probed archives, or curated URL lists), changed documents are downloaded,
and content fingerprints are recorded so unchanged files are never
fetched twice. Every run leaves CSV manifest and results reports.

Examples:
  cwm sources                     # List configured sources
  cwm sync fedramp                # Sync one source
  cwm sync --all --skip-download  # Report what would change, touch nothing
  cwm status --adopt              # Fingerprint files already on disk`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	cobra.OnInitialize(initViper)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: $XDG_CONFIG_HOME/cwm/config.json)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "",
		"root directory for content, state, and reports")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "",
		"log format: text or json")

	_ = viper.BindPFlag("data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// initViper wires CWM_* environment variables behind the bound flags.
func initViper() {
	viper.SetEnvPrefix("CWM")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// loadConfig layers file and CWM_* env through the loader, then applies
// the flag overrides bound in viper.
func loadConfig() (*config.Config, error) {
	loaded, err := config.NewLoader(cfgFile).Load()
	if err != nil {
		return nil, err
	}

	if v := viper.GetString("data_dir"); v != "" {
		loaded.SetDataDir(v)
	}
	if v := viper.GetString("log_format"); v != "" {
		loaded.Log.Format = v
	}
	if viper.GetBool("verbose") {
		loaded.Log.Level = "debug"
	}

	if err := loaded.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return loaded, nil
}

// newClient builds the shared client for a command invocation.
func newClient() (*client.Client, error) {
	loaded, err := loadConfig()
	if err != nil {
		return nil, err
	}
	cfg = loaded

	lg, err := events.NewLogger(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	logger = lg

	return client.New(cfg, logger)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

var (
	successColor = color.New(color.FgGreen)
	warnColor    = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed, color.Bold)
)

func printInfo(format string, args ...interface{}) {
	fmt.Printf(format+"\n", args...)
}

func printSuccess(format string, args ...interface{}) {
	_, _ = successColor.Printf(format+"\n", args...)
}

func printWarning(format string, args ...interface{}) {
	_, _ = warnColor.Fprintf(os.Stderr, format+"\n", args...)
}

func printError(format string, args ...interface{}) {
	_, _ = errorColor.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}
