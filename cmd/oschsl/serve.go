package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/eiannone/keyboard"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/benaclejames/OSC-HSL/internal/config"
	"github.com/benaclejames/OSC-HSL/osc"
)

func serveCmd() *cobra.Command {
	var (
		configPath    string
		bind          string
		dataPort      int
		handshakePort int
		metricsAddr   string
		capturePath   string
		interactive   bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the handshake and data endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			// Flags win over file and environment.
			flags := cmd.Flags()
			if flags.Changed("bind") {
				cfg.Bind = bind
			}
			if flags.Changed("data-port") {
				cfg.DataPort = dataPort
			}
			if flags.Changed("handshake-port") {
				cfg.HandshakePort = handshakePort
			}
			if flags.Changed("metrics-addr") {
				cfg.MetricsAddr = metricsAddr
			}
			if flags.Changed("capture") {
				cfg.Capture = capturePath
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger, err := cfg.NewLogger(os.Stderr)
			if err != nil {
				return err
			}
			return runServer(cmd.Context(), cfg, logger, interactive)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "oschsl.yaml", "Path to configuration file")
	cmd.Flags().StringVar(&bind, "bind", "", "Address to bind both endpoints to")
	cmd.Flags().IntVar(&dataPort, "data-port", 0, "Data endpoint port")
	cmd.Flags().IntVar(&handshakePort, "handshake-port", 0, "Handshake endpoint port")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	cmd.Flags().StringVar(&capturePath, "capture", "", "Append every handshake datagram to this file")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Stop when 'q' or ESC is pressed")

	return cmd
}

func runServer(ctx context.Context, cfg *config.Config, logger *slog.Logger, interactive bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	opts := []osc.Option{
		osc.WithLogger(logger),
		osc.WithApps(cfg.Roster()...),
		osc.WithAdditionalData([]byte(cfg.AdditionalData)),
		osc.WithBufferSize(cfg.BufferSize),
	}
	if cfg.ReplyRate > 0 {
		opts = append(opts, osc.WithReplyLimit(rate.Limit(cfg.ReplyRate), cfg.ReplyBurst))
	}

	if cfg.Capture != "" {
		f, err := os.OpenFile(cfg.Capture, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("failed to open capture file: %w", err)
		}
		defer f.Close()
		opts = append(opts, osc.WithCapture(osc.NewCaptureWriter(f)))
	}

	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		opts = append(opts, osc.WithRegisterer(reg))

		metricsSrv := &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		}
		go func() {
			logger.Info("serving metrics", "addr", cfg.MetricsAddr)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		defer metricsSrv.Close()
	}

	srv, err := osc.Start(cfg.App, cfg.Bind, cfg.DataPort, cfg.HandshakePort, opts...)
	if err != nil {
		return err
	}

	if interactive {
		go waitForQuit(cancel, logger)
	}

	done := make(chan error, 1)
	go func() { done <- srv.Wait() }()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		srv.Close()
		return <-done
	case err := <-done:
		srv.Close()
		return err
	}
}

// waitForQuit calls cancel once 'q', ESC or Ctrl+C is pressed.
func waitForQuit(cancel context.CancelFunc, logger *slog.Logger) {
	if err := keyboard.Open(); err != nil {
		logger.Warn("interactive mode unavailable", "error", err)
		return
	}
	defer keyboard.Close()

	fmt.Println("Press \"q\" or ESC to quit")
	for {
		char, key, err := keyboard.GetKey()
		if err != nil {
			logger.Warn("keyboard read failed", "error", err)
			return
		}
		if char == 'q' || key == keyboard.KeyEsc || key == keyboard.KeyCtrlC {
			cancel()
			return
		}
	}
}
