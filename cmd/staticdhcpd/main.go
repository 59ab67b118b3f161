// staticdhcpd — a static DHCPv4 server: every lease is an administrator
// authored MAC-to-Definition record, never a pool allocation.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/staticdhcpd/staticdhcpd/internal/config"
	"github.com/staticdhcpd/staticdhcpd/internal/database"
	"github.com/staticdhcpd/staticdhcpd/internal/dhcp"
	"github.com/staticdhcpd/staticdhcpd/internal/logging"
	"github.com/staticdhcpd/staticdhcpd/internal/metrics"
)

func main() {
	configPath := flag.String("config", "/etc/staticdhcpd/config.toml", "path to configuration file")
	dbPath := flag.String("database", "/etc/staticdhcpd/definitions.toml", "path to the static reference database file")
	metricsAddr := flag.String("metrics-listen", ":9167", "address for the Prometheus /metrics endpoint")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.Server.LogLevel, os.Stdout)
	logger.Info("staticdhcpd starting", "config", *configPath, "database", *dbPath)

	serverIP := net.ParseIP(cfg.Server.ServerIP)
	if serverIP == nil {
		logger.Error("server.server_ip must be set to a valid IPv4 address")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	real, err := database.NewFileDatabase(*dbPath)
	if err != nil {
		logger.Error("failed to load reference database", "error", err)
		os.Exit(1)
	}

	chain, err := buildCacheChain(cfg, real)
	if err != nil {
		logger.Error("failed to build cache chain", "error", err)
		os.Exit(1)
	}

	dispatcher := dhcp.NewDispatcher(
		cfg.Dispatcher.SuspendEnabled(),
		cfg.Dispatcher.SuspendThreshold,
		cfg.Dispatcher.MisbehavingClientTimeout,
		logger,
	)
	go dispatcher.RunTicker(ctx.Done())

	stats := dhcp.NewSink()
	stats.Register(func(rec dhcp.Record) {
		logger.Debug("packet processed",
			"mac", macString(rec.MAC),
			"type", rec.PacketType,
			"processed", rec.Processed,
			"duration", rec.Duration,
		)
	})

	hooks := dhcp.DefaultHooks{}
	if err := hooks.Init(); err != nil {
		logger.Error("extension hook initialisation failed", "error", err)
		os.Exit(1)
	}
	engine := dhcp.NewEngine(serverIP, cfg, chain, hooks, logger)

	server := dhcp.NewServer(cfg, serverIP, engine, dispatcher, stats, logger)
	if err := server.Start(ctx); err != nil {
		logger.Error("failed to start DHCP server", "error", err)
		os.Exit(1)
	}

	metrics.ServerStartTime.SetToCurrentTime()
	metrics.ServerInfo.WithLabelValues("staticdhcpd").Set(1)

	metricsMux := nethttp.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &nethttp.Server{Addr: *metricsAddr, Handler: metricsMux}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != nethttp.ErrServerClosed {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	logger.Info("metrics endpoint started", "listen", *metricsAddr)

	logger.Info("staticdhcpd ready",
		"server_ip", serverIP.String(),
		"server_port", cfg.Server.ServerPort,
		"authoritative", cfg.Server.Authoritative,
		"allow_dhcp_relays", cfg.Server.AllowDHCPRelays)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for {
		sig := <-sigCh
		switch sig {
		case syscall.SIGHUP:
			logger.Info("received SIGHUP, reloading reference database")
			if err := chain.Reinitialise(); err != nil {
				logger.Error("failed to reload reference database", "error", err)
				continue
			}
			logger.Info("reference database reloaded")

		case syscall.SIGINT, syscall.SIGTERM:
			logger.Info("received shutdown signal", "signal", sig.String())
			cancel()

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			metricsServer.Shutdown(shutdownCtx)
			shutdownCancel()

			server.Stop()
			logger.Info("staticdhcpd stopped")
			return
		}
	}
}

// buildCacheChain assembles the lease-definition cache chain in front of
// real per cfg.Cache (spec §4.2): disk node optionally chained behind a
// memory node, or no caching at all.
func buildCacheChain(cfg *config.Config, real database.Database) (*database.Chain, error) {
	var head database.Node
	if cfg.Cache.UseCache {
		if cfg.Cache.CacheOnDisk {
			disk, err := database.NewDiskNode(cfg.Cache.PersistentCache, nil)
			if err != nil {
				return nil, fmt.Errorf("opening disk cache: %w", err)
			}
			head = database.NewMemoryNode(disk)
		} else {
			head = database.NewMemoryNode(nil)
		}
	}
	return database.NewChain(head, real, cfg.Database.PoolSize), nil
}

func macString(mac net.HardwareAddr) string {
	if mac == nil {
		return ""
	}
	return mac.String()
}
