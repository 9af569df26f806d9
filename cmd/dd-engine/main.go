package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"DDoSDefender/internal/config"
	"DDoSDefender/internal/engine/streamaggregator"
	"DDoSDefender/internal/logging"
	"DDoSDefender/internal/metrics"
	"DDoSDefender/internal/notification"
	"DDoSDefender/internal/probe"
	"DDoSDefender/internal/scoring"
	"DDoSDefender/internal/store"
	_ "DDoSDefender/internal/store/clickhouse"
	_ "DDoSDefender/internal/store/memory"
	_ "DDoSDefender/internal/store/mongodb"
	_ "DDoSDefender/internal/store/postgres"
)

func main() {
	configFile := flag.String("config", "configs/config.yaml", "Path to the configuration file")
	metricsAddr := flag.String("metrics", ":9102", "Address to serve Prometheus metrics on, empty to disable")
	watch := flag.Bool("watch", true, "Reload anomaly thresholds when the configuration file changes")
	flag.Parse()

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	log.Info("Starting dd-engine...")

	chain, err := store.Open(cfg.Stores, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to open any store")
	}
	defer chain.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	sub, err := probe.NewSubscriber(cfg.NATS, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to NATS")
	}
	pub, err := probe.NewPublisher(cfg.NATS, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to NATS")
	}
	defer pub.Close()

	deps := streamaggregator.Deps{
		Stores:    chain,
		Metrics:   m,
		Feed:      sub,
		Publisher: pub,
		Log:       log,
	}
	if cfg.Alerter.Enabled && cfg.SMTP.Host != "" {
		notifier, err := notification.NewEmailNotifier(cfg.SMTP)
		if err != nil {
			log.WithError(err).Fatal("Invalid SMTP configuration")
		}
		deps.Notifier = notifier
	}
	if cfg.Scoring.Enabled {
		scorer, err := scoring.NewClient(cfg.Scoring)
		if err != nil {
			log.WithError(err).Fatal("Failed to create scoring client")
		}
		defer scorer.Close()
		deps.Scorer = scorer
	}

	engine, err := streamaggregator.NewStreamAggregator(cfg, deps)
	if err != nil {
		log.WithError(err).Fatal("Failed to create stream aggregator")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := engine.Start(ctx); err != nil {
		log.WithError(err).Fatal("Failed to start stream aggregator")
	}

	if *watch {
		go func() {
			if err := config.Watch(ctx, *configFile, log, engine.Reload); err != nil {
				log.WithError(err).Error("Configuration watcher stopped")
			}
		}()
	}

	var metricsServer *http.Server
	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		metricsServer = &http.Server{Addr: *metricsAddr, Handler: mux}
		go func() {
			log.Infof("Serving metrics on %s", *metricsAddr)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.WithError(err).Error("Metrics server failed")
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutdown signal received, stopping engine...")
	cancel()
	sub.Close()
	engine.Stop()
	if metricsServer != nil {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		metricsServer.Shutdown(shutdownCtx)
	}
	log.Info("Shutdown complete.")
}
