package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/hperssn/benchtop/internal/catalog"
	"github.com/hperssn/benchtop/internal/config"
	"github.com/hperssn/benchtop/internal/logfields"
	"github.com/hperssn/benchtop/internal/retry"
)

const defaultConfigPath = "benchtop.yaml"

// Global context passed to subcommands.
type Global struct {
	Logger *slog.Logger
}

type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"benchtop.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Serve      ServeCmd      `cmd:"" help:"Run the checklist session service"`
	Checklists ChecklistsCmd `cmd:"" help:"List checklists from the catalog, or show one checklist's steps"`
	History    HistoryCmd    `cmd:"" help:"Show recently closed checklist sessions"`
}

// AfterApply runs after flag parsing; setup logging once.
func (c *CLI) AfterApply(g *Global) error {
	g.Logger = newLogger(os.Stderr, "", "text", c.Verbose)
	slog.SetDefault(g.Logger)
	return nil
}

// loadConfig reads the configuration. The default path may be absent.
func (c *CLI) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(c.Config, c.Config != defaultConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func newLogger(w io.Writer, level, format string, verbose bool) *slog.Logger {
	lvl := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	if verbose {
		lvl = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: lvl}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// openCatalog picks the HTTP data service when a URL is configured, else the
// definition directory, watched for changes when watch is set.
func openCatalog(ctx context.Context, cfg config.CatalogConfig, watch bool, logger *slog.Logger) (catalog.Source, error) {
	if cfg.URL != "" {
		policy := retry.DefaultPolicy()
		policy.MaxRetries = cfg.MaxRetries
		logger.Info("Using checklist catalog service", slog.String("url", cfg.URL))
		return catalog.NewHTTPClient(cfg.URL, cfg.Timeout, policy, logger), nil
	}

	src, err := catalog.NewDirSource(cfg.Dir, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("Using checklist directory", logfields.Path(cfg.Dir))

	if watch && cfg.Watch {
		if err := src.Watch(ctx, nil); err != nil {
			return nil, err
		}
	}
	return src, nil
}
