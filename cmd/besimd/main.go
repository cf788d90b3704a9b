// Command besimd is the thermostat cloud simulator: it speaks the
// UDP control-plane protocol, optionally relays to the vendor's real
// cloud, and serves the REST, proxy and local-app HTTP surfaces.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MatusOllah/slogcolor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/besim-go/besim/capture"
	"github.com/besim-go/besim/config"
	"github.com/besim-go/besim/engine"
	"github.com/besim-go/besim/localapp"
	"github.com/besim-go/besim/metrics"
	"github.com/besim-go/besim/proxy"
	"github.com/besim-go/besim/restapi"
	"github.com/besim-go/besim/shadow"
	"github.com/besim-go/besim/telemetry"
	"github.com/besim-go/besim/weather"
)

var configPath = flag.String("config", "config.yaml", "path to the YAML configuration file")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Error("besimd: unable to load configuration", "path", *configPath, "err", err)
		}
	}

	opts := slogcolor.DefaultOptions
	if cfg.Verbose {
		opts.Level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slogcolor.NewHandler(os.Stderr, opts)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	promReg := prometheus.NewRegistry()
	reg := metrics.NewRegistry(promReg)

	store := shadow.NewStore()

	db, err := telemetry.Open(ctx, cfg.SQLitePath, telemetry.WithMetrics(reg))
	if err != nil {
		slog.Error("besimd: telemetry sidecar unavailable", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	db.Purge(ctx, cfg.DaysToKeep)

	cap, err := capture.Open(cfg.CapturePath)
	if err != nil {
		slog.Error("besimd: capture log unavailable", "err", err)
		os.Exit(1)
	}
	defer cap.Close()

	udpAddr, err := net.ResolveUDPAddr("udp", cfg.UDPListenAddr)
	if err != nil {
		slog.Error("besimd: bad udp_listen_addr", "addr", cfg.UDPListenAddr, "err", err)
		os.Exit(1)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		slog.Error("besimd: unable to bind UDP listener", "addr", cfg.UDPListenAddr, "err", err)
		os.Exit(1)
	}
	defer conn.Close()

	eng := engine.New(conn, store,
		engine.WithTelemetry(db),
		engine.WithCapture(cap),
		engine.WithUnknownLogger(db),
		engine.WithMetrics(reg),
	)

	var wp weather.Provider
	if cfg.Weather.Latitude != 0 || cfg.Weather.Longitude != 0 {
		wp = weather.NewMetNoProvider(cfg.Weather.Latitude, cfg.Weather.Longitude)
	}

	api := restapi.New(store, eng, db, wp)
	router := api.Router()

	local := localapp.Handler(wp)
	combined := http.NewServeMux()
	combined.Handle("/api/", router)
	combined.Handle("/", local)
	proxyHandler := proxy.New(combined, router, cfg.CloudRelay.Nameserver,
		proxy.WithTracer(db),
		proxy.WithUnknownAPILogger(db),
		proxy.WithMetrics(reg),
	)

	go runEngine(ctx, eng, cfg, db)

	go runHTTP(ctx, "rest", cfg.RESTListenAddr, router)
	go runHTTP(ctx, "proxy", cfg.ProxyListenAddr, proxyHandler)
	go runHTTP(ctx, "localapp", cfg.LocalAppListenAddr, local)
	go runHTTP(ctx, "metrics", ":9090", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))

	slog.Info("besimd: running", "udp", cfg.UDPListenAddr)
	<-ctx.Done()
	slog.Info("besimd: shutting down")
}

func runEngine(ctx context.Context, eng *engine.Engine, cfg *config.Config, db *telemetry.DB) {
	if !cfg.CloudRelay.Enabled {
		if err := eng.Run(ctx); err != nil && ctx.Err() == nil {
			slog.Error("besimd: engine stopped", "err", err)
		}
		return
	}

	relay := engine.NewRelay(eng, cfg.CloudRelay.Nameserver, cfg.CloudRelay.CloudHost, db)
	if err := relay.ResolveCloud(ctx, 80); err != nil {
		slog.Error("besimd: cloud-relay DNS resolution failed", "err", err)
		return
	}

	if err := relay.Run(ctx); err != nil && ctx.Err() == nil {
		slog.Error("besimd: relay stopped", "err", err)
	}
}

func runHTTP(ctx context.Context, name, addr string, handler http.Handler) {
	srv := &http.Server{Addr: addr, Handler: handler}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("besimd: http listener starting", "name", name, "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("besimd: http listener stopped", "name", name, "err", err)
	}
}
