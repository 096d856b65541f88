// Package cli implements the gdsmesh command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/gdsmesh/pkg/buildinfo"
	"github.com/matzehuels/gdsmesh/pkg/cache"
	"github.com/matzehuels/gdsmesh/pkg/observability"
	"github.com/matzehuels/gdsmesh/pkg/pipeline"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "gdsmesh"

	// redisKeyPrefix scopes cache keys on shared Redis servers.
	redisKeyPrefix = appName + ":"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	stderr  io.Writer
	logFile io.Closer
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		stderr: w,
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// Close flushes and closes the log file, if one was opened.
func (c *CLI) Close() error {
	if c.logFile == nil {
		return nil
	}
	err := c.logFile.Close()
	c.logFile = nil
	return err
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	var (
		verbose bool
		logFile string
	)

	root := &cobra.Command{
		Use:   appName,
		Short: "gdsmesh turns GDSII layouts into per-layer STL meshes",
		Long: `gdsmesh reads a GDSII chip layout, extrudes the polygons of selected layers
between configured heights, and writes one STL mesh per layer for 3D viewers
and renderers.`,
		Version:      buildinfo.Resolved(),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if verbose {
				c.SetLogLevel(LogDebug)
			}
			if logFile != "" {
				if err := c.attachLogFile(logFile); err != nil {
					return err
				}
			}
			observability.SetPipelineHooks(logHooks{logger: c.Logger})
			observability.SetCacheHooks(logHooks{logger: c.Logger})
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().StringVar(&logFile, "log-file", "", "also write logs to a size-rotated file")

	root.AddCommand(c.convertCommand())
	root.AddCommand(c.layersCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner creates a pipeline runner for CLI use.
func (c *CLI) newRunner(ctx context.Context, noCache bool, cacheURL string) (*pipeline.Runner, error) {
	cc, keyer, err := newCache(ctx, noCache, cacheURL)
	if err != nil {
		return nil, err
	}
	return pipeline.NewRunner(cc, keyer, c.Logger), nil
}

// newCache selects the cache backend: none, Redis when a URL is given, or
// the file cache under the user cache directory.
func newCache(ctx context.Context, noCache bool, cacheURL string) (cache.Cache, cache.Keyer, error) {
	switch {
	case noCache:
		return cache.NewNullCache(), nil, nil
	case cacheURL != "":
		rc, err := cache.NewRedisCache(ctx, cacheURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect cache: %w", err)
		}
		return rc, cache.NewScopedKeyer(nil, redisKeyPrefix), nil
	}
	dir, err := cacheDir()
	if err != nil {
		return cache.NewNullCache(), nil, nil
	}
	fc, err := cache.NewFileCache(dir)
	if err != nil {
		return nil, nil, err
	}
	return fc, nil, nil
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/gdsmesh/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// cacheURLFromEnv returns GDSMESH_CACHE_URL, used when --cache-url is unset.
func cacheURLFromEnv() string {
	return strings.TrimSpace(os.Getenv("GDSMESH_CACHE_URL"))
}
