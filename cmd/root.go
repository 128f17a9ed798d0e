package cmd

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/issues/internal/auth"
	"github.com/joescharf/issues/internal/issues"
	"github.com/joescharf/issues/internal/output"
	"github.com/joescharf/issues/internal/store"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui        *output.UI
	logger    *slog.Logger
	dataStore store.Store

	verbose bool
	dryRun  bool
)

var rootCmd = &cobra.Command{
	Use:   "issues",
	Short: "Issue tracker - create, assign, and close issues",
	Long: `issues is a small issue tracker with a JSON HTTP API, an MCP server,
and a CLI. Reads are public; creating, editing, assigning and deleting
issues require a session token.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without making changes")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/issues/config.yaml)")
	rootCmd.PersistentFlags().String("token", "", "Session token for mutating commands (default: session.token)")
	_ = viper.BindPFlag("session.token", rootCmd.PersistentFlags().Lookup("token"))
}

func initConfig() {
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}

		viper.AddConfigPath(filepath.Join(home, ".config", "issues"))
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("ISSUES")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

// setDefaults registers every config key with its default value.
func setDefaults() {
	home, _ := os.UserHomeDir()
	defaultConfigDir := filepath.Join(home, ".config", "issues")

	viper.SetDefault("state_dir", defaultConfigDir)
	viper.SetDefault("db_path", filepath.Join(defaultConfigDir, "issues.db"))
	viper.SetDefault("port", 8080)
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")
	viper.SetDefault("auth.secret", "")
	viper.SetDefault("auth.token_ttl", "720h")
	viper.SetDefault("session.token", "")
	viper.SetDefault("list.page_size", issues.DefaultPageSize)
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun

	logger = newLogger(os.Stderr)
	slog.SetDefault(logger)

	// Store is opened lazily so config/version commands run without a db.
}

// newLogger builds the slog logger described by log.level and log.format.
// --verbose forces debug level.
func newLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(viper.GetString("log.level"))); err != nil {
		level = slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(viper.GetString("log.format"), "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// newStdLogger adapts logger for APIs that want a *log.Logger.
func newStdLogger() *log.Logger {
	return slog.NewLogLogger(logger.Handler(), slog.LevelWarn)
}

// getStore returns the shared store, initializing it on first call.
func getStore() (store.Store, error) {
	if dataStore != nil {
		return dataStore, nil
	}

	dbPath := viper.GetString("db_path")
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := s.Migrate(rootCmd.Context()); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	dataStore = s
	return dataStore, nil
}

// getResolver returns a session resolver over the shared store.
func getResolver() (*auth.JWTResolver, error) {
	s, err := getStore()
	if err != nil {
		return nil, err
	}
	return auth.NewJWTResolver(viper.GetString("auth.secret"), s), nil
}

// getService wires the issue service over the shared store.
func getService() (*issues.Service, error) {
	s, err := getStore()
	if err != nil {
		return nil, err
	}
	resolver, err := getResolver()
	if err != nil {
		return nil, err
	}
	svc := issues.NewService(s, resolver, logger)
	svc.SetDefaultPageSize(viper.GetInt("list.page_size"))
	return svc, nil
}

// sessionToken returns the token used by mutating commands.
func sessionToken() string {
	return viper.GetString("session.token")
}
