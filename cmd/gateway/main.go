// Command gateway runs the Z39.50-to-ZOOM protocol bridge: a raw Z39.50
// listener (wire.go) dispatching into internal/gateway, alongside a
// small admin HTTP API (admin.go).
package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/indexbridge/z3950gateway/internal/config"
	"github.com/indexbridge/z3950gateway/internal/config/store"
	"github.com/indexbridge/z3950gateway/internal/telemetry"
)

func initLogger() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)
}

var catalog store.Store

// openCatalog wires up the SQL-backed database catalog per DB_PROVIDER,
// mirroring the teacher's own provider switch in spirit: sqlite or
// postgres if configured, nil (YAML-only) otherwise.
func openCatalog() store.Store {
	switch os.Getenv("DB_PROVIDER") {
	case "sqlite":
		st, err := store.NewSQLiteStore(os.Getenv("DB_PATH"))
		if err != nil {
			slog.Error("failed to open sqlite catalog", "error", err)
			return nil
		}
		return st
	case "postgres":
		st, err := store.NewPostgresStore(os.Getenv("DB_DSN"))
		if err != nil {
			slog.Error("failed to open postgres catalog", "error", err)
			return nil
		}
		return st
	default:
		return nil
	}
}

// loadConfig reads the YAML GatewayConfig and, if a catalog store is
// configured, overlays its rows onto the Databases map (spec §3's
// database catalog, extended per SPEC_FULL's database catalog store).
func loadConfig(cfgPath string) (*config.GatewayConfig, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if catalog == nil {
		return cfg, nil
	}
	rows, err := catalog.List()
	if err != nil {
		slog.Warn("catalog list failed", "error", err)
		return cfg, nil
	}
	for _, dc := range rows {
		cfg.Databases[dc.Name] = dc
	}
	return cfg, nil
}

func main() {
	initLogger()

	catalog = openCatalog()
	if catalog != nil {
		defer catalog.Close()
	}

	cfgPath := os.Getenv("GATEWAY_CONFIG")
	if cfgPath == "" {
		cfgPath = "gateway.yaml"
	}
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		slog.Error("failed to load gateway config", "path", cfgPath, "error", err)
		cfg = &config.GatewayConfig{}
	}

	shutdownTracer, err := telemetry.InitTracer(context.Background(), cfg.Telemetry)
	if err != nil {
		slog.Warn("failed to init tracer", "error", err)
	} else {
		defer shutdownTracer(context.Background())
	}

	zPort := os.Getenv("ZSERVER_PORT")
	if zPort == "" {
		zPort = "2100"
	}
	wire := newWireServer(cfgPath, os.Getenv("ZSERVER_ALLOWED_IPS"))
	zListener, err := net.Listen("tcp", "0.0.0.0:"+zPort)
	if err != nil {
		slog.Error("failed to start Z39.50 listener", "error", err)
	} else {
		slog.Info("Z39.50 server starting", "port", zPort)
		go func() {
			for {
				conn, err := zListener.Accept()
				if err != nil {
					return
				}
				if !wire.checkIP(conn.RemoteAddr()) {
					conn.Close()
					continue
				}
				go wire.handleConnection(conn)
			}
		}()
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8899"
	}
	router := setupRouter(cfgPath)
	httpSrv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}
	go func() {
		slog.Info("admin API starting", "addr", ":"+port)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("admin API listen failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down gateway...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		slog.Error("admin API forced to shutdown", "error", err)
	}
	if zListener != nil {
		zListener.Close()
	}
	slog.Info("gateway exiting")
}
