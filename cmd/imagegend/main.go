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

	"visiond/internal/artifact"
	"visiond/internal/config"
	"visiond/internal/httpapi"
	"visiond/internal/imagegen"
	"visiond/internal/inject"
	"visiond/internal/logging"
)

type serveOptions struct {
	configPath string
	addr       string
	outputDir  string
	runtimeURL string
	logLevel   string
	logFormat  string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "imagegend",
		Short:         "Text-to-image generation service",
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
		Short:   "Run the generation HTTP API",
		Example: "  imagegend serve --config visiond.yaml --runtime-url http://127.0.0.1:7000",
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
	f.StringVar(&opts.addr, "addr", "", "HTTP listen address (default :5000)")
	f.StringVar(&opts.outputDir, "output-dir", "", "Directory for generated images")
	f.StringVar(&opts.runtimeURL, "runtime-url", "", "Model runtime base URL")
	f.StringVar(&opts.logLevel, "log-level", "", "Log level: debug|info|warn|error")
	f.StringVar(&opts.logFormat, "log-format", "", "Log format: json|console")
	return cmd
}

// load layers the config file, the environment and flags, then fills defaults.
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
	override(&cfg.ImageGen.Addr, o.addr)
	override(&cfg.ImageGen.OutputDir, o.outputDir)
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
	logger = logger.With().Str("service", "imagegend").Logger()
	ctx = logging.NewContext(ctx, logger)

	injector := inject.Setup(ctx, cfg)
	defer func() {
		if err := injector.Shutdown(); err != nil {
			logger.Warn().Err(err).Msg("injector shutdown")
		}
	}()
	inject.Preflight(ctx, injector, cfg.ImageGen.WeightsDir)

	handler, err := do.InvokeNamed[http.Handler](injector, inject.ImageGenHandler)
	if err != nil {
		return err
	}
	orch := do.MustInvoke[*imagegen.Orchestrator](injector)

	if g := cfg.ImageGen; g.ResultRetention > 0 {
		results := do.MustInvokeNamed[*artifact.Store](injector, inject.ResultStore)
		go results.RunSweeper(ctx, "*.png", time.Duration(g.ResultRetention)*time.Hour, time.Duration(g.SweepInterval)*time.Minute)
	}

	ln, err := net.Listen("tcp", cfg.ImageGen.Addr)
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
		Str("output_dir", cfg.ImageGen.OutputDir).
		Str("runtime", cfg.Runtime.URL).
		Msg("imagegend listening")

	serveErr := httpapi.Serve(ctx, srv, ln, config.Seconds(cfg.HTTP.ShutdownTimeout))

	dctx, cancel := context.WithTimeout(context.Background(), config.Seconds(cfg.ImageGen.DrainTimeout))
	defer cancel()
	if err := orch.Close(dctx); err != nil {
		logger.Warn().Err(err).Int("inflight", orch.InFlight()).Msg("generation drain incomplete")
	}
	logger.Info().Msg("imagegend stopped")
	return serveErr
}
