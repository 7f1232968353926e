package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/do"
	"github.com/spf13/cobra"

	"visiond/internal/config"
	"visiond/internal/httpapi"
	"visiond/internal/inject"
	"visiond/internal/logging"
	"visiond/internal/segment"
)

type serveOptions struct {
	configPath   string
	addr         string
	uploadDir    string
	processedDir string
	runtimeURL   string
	logLevel     string
	logFormat    string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "segmentd",
		Short:         "Box-prompted image segmentation service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd())
	return root
}

func newServeCmd() *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Run the segmentation HTTP API",
		Example: "  segmentd serve --addr :5001 --runtime-url http://127.0.0.1:7000",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load(os.Getenv)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", "", "Config file (.yaml, .yml, .json or .toml)")
	f.StringVar(&opts.addr, "addr", "", "HTTP listen address (default :5001)")
	f.StringVar(&opts.uploadDir, "upload-dir", "", "Directory for uploaded images")
	f.StringVar(&opts.processedDir, "processed-dir", "", "Directory for cutouts")
	f.StringVar(&opts.runtimeURL, "runtime-url", "", "Model runtime base URL")
	f.StringVar(&opts.logLevel, "log-level", "", "Log level: debug|info|warn|error")
	f.StringVar(&opts.logFormat, "log-format", "", "Log format: json|console")
	return cmd
}

func (o *serveOptions) load(getenv func(string) string) (config.Config, error) {
	var cfg config.Config
	if o.configPath != "" {
		c, err := config.Load(o.configPath)
		if err != nil {
			return cfg, err
		}
		cfg = c
	}
	cfg.ApplyEnv(getenv)
	override(&cfg.Segment.Addr, o.addr)
	override(&cfg.Segment.UploadDir, o.uploadDir)
	override(&cfg.Segment.ProcessedDir, o.processedDir)
	override(&cfg.Runtime.URL, o.runtimeURL)
	override(&cfg.Log.Level, o.logLevel)
	override(&cfg.Log.Format, o.logFormat)
	cfg.ApplyDefaults()
	return cfg, nil
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	logger, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}
	logger = logger.With().Str("service", "segmentd").Logger()
	ctx = logging.NewContext(ctx, logger)

	injector := inject.Setup(ctx, cfg)
	defer func() {
		if err := injector.Shutdown(); err != nil {
			logger.Warn().Err(err).Msg("injector shutdown")
		}
	}()
	inject.Preflight(ctx, injector, cfg.Segment.WeightsDir)

	handler, err := do.InvokeNamed[http.Handler](injector, inject.SegmentHandler)
	if err != nil {
		return err
	}
	svc := do.MustInvoke[*segment.Service](injector)

	ln, err := net.Listen("tcp", cfg.Segment.Addr)
	if err != nil {
		return err
	}
	httpapi.SetBaseContext(ctx)
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: config.Seconds(cfg.HTTP.ReadHeaderTimeout),
	}
	logger.Info().
		Str("addr", ln.Addr().String()).
		Str("upload_dir", cfg.Segment.UploadDir).
		Str("processed_dir", cfg.Segment.ProcessedDir).
		Msg("segmentd listening")

	serveErr := httpapi.Serve(ctx, srv, ln, config.Seconds(cfg.HTTP.ShutdownTimeout))

	uctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := svc.Unload(uctx); err != nil {
		logger.Warn().Err(err).Msg("model unload failed")
	}
	logger.Info().Msg("segmentd stopped")
	return serveErr
}
