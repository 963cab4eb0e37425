package main

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/tejashwikalptaru/lyra/internal/app"
	"github.com/tejashwikalptaru/lyra/internal/config"
	"github.com/tejashwikalptaru/lyra/internal/logger"
)

// cli carries what every subcommand needs.
type cli struct {
	fs     afero.Fs
	out    io.Writer
	errOut io.Writer
	styles styles
	loader *config.Loader

	settings config.Config

	// wire lets tests adjust the application before it is built
	wire func(*app.Config)
}

func newRootCmd(fs afero.Fs, out, errOut io.Writer) *cobra.Command {
	return newCLI(fs, out, errOut).rootCmd()
}

func newCLI(fs afero.Fs, out, errOut io.Writer) *cli {
	return &cli{
		fs:     fs,
		out:    &lockedWriter{w: out},
		errOut: errOut,
		styles: newStyles(out),
		loader: config.NewLoader(fs),
	}
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           config.Name,
		Short:         "Play local music with synchronised lyrics",
		Long:          "Lyra plays tracks from a local library, falls back to a second decoder when the first one fails, and follows along with .lrc lyric files.",
		Version:       app.GetVersionInfo().String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.loadSettings(cmd)
		},
	}
	root.SetOut(c.out)
	root.SetErr(c.errOut)
	root.SetVersionTemplate(app.GetVersionInfo().FullString() + "\n")

	pf := root.PersistentFlags()
	pf.String("config", "", "config file (default is lyra.toml in the user config directory)")
	pf.StringP("library", "L", "", "music library directory")
	pf.String("log-level", "", "log level: debug, info, warn, error")
	pf.String("log-format", "", "log format: text, json")
	pf.Bool("mock", false, "use silent in-memory audio backends")

	v := c.loader.Viper()
	lo.Must0(v.BindPFlag(config.KeyLibraryDir, pf.Lookup("library")))
	lo.Must0(v.BindPFlag(config.KeyLogLevel, pf.Lookup("log-level")))
	lo.Must0(v.BindPFlag(config.KeyLogFormat, pf.Lookup("log-format")))
	lo.Must0(v.BindPFlag(config.KeyAudioMock, pf.Lookup("mock")))

	root.AddCommand(
		newListCmd(c),
		newLyricsCmd(c),
		newPlayCmd(c),
		newConfigCmd(c),
	)
	return root
}

func (c *cli) loadSettings(cmd *cobra.Command) error {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		c.loader.SetConfigFile(path)
	}

	settings, err := c.loader.Load()
	if err != nil {
		return err
	}
	c.settings = settings
	return nil
}

// newApp builds the application from the loaded settings. Logs go to stderr.
func (c *cli) newApp() (*app.Application, error) {
	logCfg := c.settings.Logger()
	logCfg.Output = c.errOut

	cfg := app.Config{
		Settings: c.settings,
		Fs:       c.fs,
		Logger:   logger.NewLogger(logCfg),
	}
	if c.wire != nil {
		c.wire(&cfg)
	}
	return app.NewApplication(cfg)
}

// shutdown is deferred by every command that builds an application.
func (c *cli) shutdown(a *app.Application) {
	if err := a.Shutdown(); err != nil {
		a.Logger().Error("failed to shut down", slog.Any("error", err))
	}
}

func (c *cli) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(c.out, format, args...)
}

// lockedWriter serialises writes from event handlers running on different goroutines.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// formatDuration renders d as m:ss, or h:mm:ss for an hour or more.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// formatTimestamp renders d the way lyric files write it.
func formatTimestamp(d time.Duration) string {
	m := int(d / time.Minute)
	s := int(d % time.Minute / time.Second)
	ms := int(d % time.Second / time.Millisecond)
	return fmt.Sprintf("[%02d:%02d.%03d]", m, s, ms)
}
