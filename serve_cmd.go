package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/sparklereader/sparkle/internal/narration"
	"github.com/sparklereader/sparkle/internal/narration/remote"
	"github.com/sparklereader/sparkle/internal/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveLocal bool

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the reader to a web browser",
		Long: paragraph(fmt.Sprintf("\n%s the reader over HTTP. Upload a book in the browser and listen with the browser's voices, or use --local to narrate on this machine with the configured engine.",
			keyword("Serve"))),
		Example: paragraph("sparkle serve\nsparkle serve --addr :9000 --local --engine piper"),
		Args:    cobra.NoArgs,
		RunE:    runServe,
	}
)

func init() {
	serveCmd.Flags().String("addr", "127.0.0.1:8080", "address to listen on")
	serveCmd.Flags().BoolVar(&serveLocal, "local", false, "narrate on this machine instead of in the browser")
	_ = viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
}

// serverConfig reads the server settings. SPARKLE_ADDR and
// SPARKLE_MAX_UPLOAD_MB win over the config file, the --addr flag wins
// over both.
func serverConfig(cmd *cobra.Command) (server.Config, error) {
	cfg, err := env.ParseAs[server.Config]()
	if err != nil {
		return cfg, fmt.Errorf("error parsing config: %w", err)
	}
	if _, ok := os.LookupEnv("SPARKLE_ADDR"); !ok || cmd.Flags().Changed("addr") {
		cfg.Addr = viper.GetString("server.addr")
	}
	if _, ok := os.LookupEnv("SPARKLE_MAX_UPLOAD_MB"); !ok {
		cfg.MaxUploadMB = viper.GetInt64("server.max_upload_mb")
	}
	if cfg.Addr == "" {
		return cfg, errors.New("server address must not be empty")
	}
	if cfg.MaxUploadMB <= 0 {
		return cfg, errors.New("server.max_upload_mb must be positive")
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	logToStderr()

	cfg, err := serverConfig(cmd)
	if err != nil {
		return err
	}

	var (
		port     narration.Port
		browser  *remote.Port
		narrator = "browser"
		closeAll = func() error { return nil }
	)
	if serveLocal {
		narrator = opts.Engine
		if port, closeAll, err = newPort(opts); err != nil {
			return err
		}
	} else {
		browser = remote.New()
		port = browser
	}
	defer func() { _ = closeAll() }()

	rd, err := newReader(port, opts)
	if err != nil {
		return err
	}
	watchConfig(viper.GetViper(), rd)

	ctx := cmd.Context()
	go func() {
		if err := rd.Run(ctx); err != nil && !errors.Is(err, ctx.Err()) {
			log.Error("narration stopped", "err", err)
		}
	}()

	log.Info("starting server",
		"addr", cfg.Addr,
		"narration", narrator,
		"max_upload", humanize.IBytes(uint64(cfg.MaxUploadBytes())), //nolint:gosec
	)
	srv := server.New(rd, browser, cfg)
	if err := srv.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("server stopped: %w", err)
	}
	rd.Stop()
	return nil
}
