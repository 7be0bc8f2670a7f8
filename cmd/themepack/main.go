package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/podtheme/themepack/pkg/logging"
	"github.com/podtheme/themepack/pkg/theme"
	"github.com/podtheme/themepack/pkg/theme/errors"
	"github.com/podtheme/themepack/pkg/theme/repo"
	"github.com/podtheme/themepack/pkg/theme/store"
)

const version = "0.2.0"

var (
	themesDir   string
	stateDir    string
	logLevel    string
	versionFlag bool
	rootCmd     *cobra.Command
)

func getBuildTimestamp() string {
	// Try to get vcs.time from build info
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.time" {
				if t, err := time.Parse(time.RFC3339, setting.Value); err == nil {
					return t.UTC().Format(time.RFC3339)
				}
			}
		}
	}
	// Fallback to binary modification time
	if exePath, err := os.Executable(); err == nil {
		if stat, err := os.Stat(exePath); err == nil {
			return stat.ModTime().UTC().Format(time.RFC3339)
		}
	}
	return time.Now().UTC().Format(time.RFC3339)
}

func defaultThemesDir() string {
	if dir := os.Getenv("THEMEPACK_THEMES_DIR"); dir != "" {
		return dir
	}
	return "themes"
}

func defaultStateDir() string {
	if dir := os.Getenv("THEMEPACK_STATE_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".themepack"
	}
	return filepath.Join(home, ".local", "state", "themepack")
}

// app bundles the opened store and repository behind the CLI commands.
type app struct {
	logger hclog.Logger
	store  *store.Store
	repo   *repo.Repository
}

func openApp() (*app, error) {
	level := logLevel
	if level == "" {
		level = logging.GetLogLevel()
	}
	logger := logging.NewLogger("themepack", level, logging.DefaultOutput())
	st, err := store.Open(stateDir, logger.Named("store"))
	if err != nil {
		return nil, friendly(err)
	}
	return &app{
		logger: logger,
		store:  st,
		repo:   repo.New(themesDir, st, logger.Named("repo")),
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("closing store", "error", err)
	}
}

// allThemes returns built-ins followed by user themes.
func (a *app) allThemes(ctx context.Context) ([]theme.LoadedTheme, error) {
	builtIn, err := a.repo.ScanBuiltIn()
	if err != nil {
		return nil, err
	}
	user, err := a.repo.LoadUserThemes(ctx)
	if err != nil {
		return nil, friendly(err)
	}
	return append(builtIn, user...), nil
}

func (a *app) findTheme(ctx context.Context, id string) (theme.LoadedTheme, error) {
	themes, err := a.allThemes(ctx)
	if err != nil {
		return theme.LoadedTheme{}, err
	}
	for _, t := range themes {
		if t.ID == id {
			return t, nil
		}
	}
	return theme.LoadedTheme{}, fmt.Errorf("%w: %s", errors.ErrNotFound, id)
}

// requireEditable is the caller-side gate: only clones can be mutated.
func requireEditable(t theme.LoadedTheme) error {
	if !t.IsEditable {
		return fmt.Errorf("theme %q is built-in and immutable — clone it first (themepack clone %s)", t.ID, t.ID)
	}
	return nil
}

// friendly rewrites storage failures into actionable messages. Quota is the
// one users can fix themselves.
func friendly(err error) error {
	if err == nil {
		return nil
	}
	if errors.IsQuota(err) {
		return fmt.Errorf("storage full — try smaller images, then retry (%v)", err)
	}
	return err
}

func init() {
	rootCmd = &cobra.Command{
		Use:           "themepack",
		Short:         "Edit and export media-player theme packages",
		Long:          `Edit and export media-player theme packages`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&themesDir, "themes-dir", defaultThemesDir(), "Bundle directory of built-in theme packages")
	rootCmd.PersistentFlags().StringVar(&stateDir, "state-dir", defaultStateDir(), "Directory for the user-theme database")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&versionFlag, "version", "V", false, "Show version information")

	rootCmd.AddCommand(
		newListCmd(),
		newShowCmd(),
		newCloneCmd(),
		newDeleteCmd(),
		newSetColorCmd(),
		newSetInfoCmd(),
		newSetAssetCmd(),
		newImportCmd(),
		newExportCmd(),
		newPreviewCmd(),
		newDedupCmd(),
		newWatchCmd(),
	)
}

func main() {
	// Handle --version or -V before cobra parses other flags
	if len(os.Args) > 1 && (os.Args[1] == "--version" || os.Args[1] == "-V") {
		fmt.Printf("themepack %s\n", version)
		fmt.Printf("Built: %s\n", getBuildTimestamp())
		os.Exit(0)
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}
