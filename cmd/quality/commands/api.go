package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/TheophilusNdukwe/Energy-Data-Pipeline/internal/alert"
	"github.com/TheophilusNdukwe/Energy-Data-Pipeline/internal/api"
	"github.com/TheophilusNdukwe/Energy-Data-Pipeline/internal/api/handlers"
	"github.com/TheophilusNdukwe/Energy-Data-Pipeline/internal/api/ws"
	"github.com/TheophilusNdukwe/Energy-Data-Pipeline/internal/monitor"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the API server and the monitor",
	Long: `Starts the REST API, the websocket stream and the periodic monitor.

Endpoints:
  GET  /health                                      - Health check
  GET  /metrics                                     - Prometheus metrics
  GET  /ws/quality                                  - Live scan reports and alerts
  GET  /api/v1/quality/metrics                      - Latest scores
  GET  /api/v1/quality/issues                       - Issues
  POST /api/v1/quality/run-check                    - Trigger a scan
  GET  /api/v1/quality/monitoring/status            - Monitor status

Example:
  go run ./cmd/quality api
  go run ./cmd/quality api --port 8080 --no-monitor`,
	RunE: runAPIServer,
}

var (
	apiPort      string
	apiNoMonitor bool
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (default is PORT)")
	apiCmd.Flags().BoolVar(&apiNoMonitor, "no-monitor", false, "do not arm the periodic check on startup")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Energy Data Quality API Server ===")

	e, err := newEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	// Override port if flag is set
	if apiPort != "" {
		e.cfg.Port = apiPort
	}
	log := e.log

	log.WithFields(map[string]interface{}{
		"port":   e.cfg.Port,
		"env":    e.cfg.Env,
		"tables": len(e.rules),
	}).Info("Initializing API server")

	// 1. Websocket hub
	hub := ws.NewHub(log)
	defer hub.Close()

	// 2. Prometheus registry
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// 3. Monitor
	mon, err := e.newMonitor(reg, e.sink(alert.NewBroadcastSink(hub)))
	if err != nil {
		return fmt.Errorf("create monitor: %w", err)
	}
	mon.OnReport(func(r *monitor.RunReport) {
		hub.Broadcast(ws.MessageQualityUpdate, r)
	})

	// 4. Router
	routes := api.Routes{
		Quality: handlers.NewQualityHandler(e.metrics, e.issues, log),
		Monitor: handlers.NewMonitorHandler(mon, e.cfg.API.RunCheckPerMinute, log),
		Stream:  hub,
		DB:      e.db,
	}
	if e.cfg.MetricsEnabled {
		routes.Metrics = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}
	server := api.New(e.cfg, log, api.NewRouter(routes, log))

	// 5. Start server and monitor
	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			errCh <- err
		}
	}()

	if e.cfg.Monitor.AutoStart && !apiNoMonitor {
		if err := mon.Start(); err != nil {
			return fmt.Errorf("start monitor: %w", err)
		}
	}

	log.Info("API server started successfully")
	fmt.Printf("\n✅ Server running on http://localhost:%s\n", e.cfg.Port)
	fmt.Printf("   Check interval: %v | Alert threshold: %.1f\n", e.cfg.Monitor.CheckInterval, e.cfg.Monitor.AlertThreshold)
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case <-quit:
	case err := <-errCh:
		log.WithError(err).Error("Server failed")
		_ = mon.Stop(context.Background())
		return fmt.Errorf("server: %w", err)
	}

	log.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := mon.Stop(ctx); err != nil {
		log.WithError(err).Warn("Monitor did not stop cleanly")
	}
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
