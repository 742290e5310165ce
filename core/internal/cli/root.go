package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"plasma/core/internal/config"
	"plasma/core/internal/version"
	"plasma/dissector"
	"plasma/dissectors"
	"plasma/extension"
)

// app carries state shared by every subcommand once the root command's
// PersistentPreRunE has run.
type app struct {
	configPath string
	pluginDirs []string
	logLevel   string
	logFormat  string

	cfg      *config.Config
	logger   *slog.Logger
	registry *dissector.Registry
}

func NewRootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:           "plasma",
		Short:         "Dissect forensic artifacts into tabular records",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "YAML configuration file")
	pf.StringArrayVar(&a.pluginDirs, "plugin-directory", nil, "Directory of extension dissector manifests (repeatable)")
	pf.StringVar(&a.logLevel, "log-level", "info", "Log level (debug|info|warn|error)")
	pf.StringVar(&a.logFormat, "log-format", "text", "Log format (text|json)")

	cmd.AddCommand(newDissectCmd(a))
	cmd.AddCommand(newListCmd(a))
	cmd.AddCommand(newVersionCmd())

	cmd.SetVersionTemplate(fmt.Sprintf("%s (%s/%s)\n", version.Version, runtime.GOOS, runtime.GOARCH))
	cmd.Version = version.Version

	return cmd
}

// setup resolves configuration (defaults, file, environment, then flags),
// installs the logger and fills the dissector registry.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Log.Level = a.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = a.logFormat
	}
	if flags.Changed("plugin-directory") {
		cfg.Plugins.Directories = append(cfg.Plugins.Directories, a.pluginDirs...)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	a.logger = newLogger(cmd.ErrOrStderr(), cfg.Log)
	slog.SetDefault(a.logger)

	a.registry = dissector.NewRegistry()
	dissectors.Register(a.registry)
	n, err := extension.LoadDirs(a.registry, cfg.Plugins.Directories...)
	if err != nil {
		return fmt.Errorf("load extensions: %w", err)
	}
	a.logger.Debug("registry ready", "dissectors", a.registry.Len(), "extensions", n)
	return nil
}

func newLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
