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

	"DDoSDefender/internal/api"
	"DDoSDefender/internal/config"
	"DDoSDefender/internal/engine/streamaggregator"
	"DDoSDefender/internal/features"
	"DDoSDefender/internal/logging"
	"DDoSDefender/internal/metrics"
	"DDoSDefender/internal/model"
	"DDoSDefender/internal/probe"
	"DDoSDefender/internal/store"
	_ "DDoSDefender/internal/store/clickhouse"
	_ "DDoSDefender/internal/store/memory"
	_ "DDoSDefender/internal/store/mongodb"
	_ "DDoSDefender/internal/store/postgres"
)

func main() {
	configFile := flag.String("config", "configs/config.yaml", "Path to the configuration file")
	noFeed := flag.Bool("no-feed", false, "Do not forward features published on NATS to websocket clients")
	flag.Parse()

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up logging: %v\n", err)
		os.Exit(1)
	}

	chain, err := store.Open(cfg.Stores, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to open any store")
	}
	defer chain.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	m := metrics.New(reg)

	pipeline := features.NewPipeline(
		features.NewAggregator(streamaggregator.Thresholds(cfg.Anomaly)), chain, chain,
		features.WithRecentLimit(cfg.Pipeline.RecentLimit),
		features.WithObserver(m),
		features.WithLogger(log),
	)
	hub := api.NewHub(log)

	if !*noFeed {
		sub, err := probe.NewSubscriber(cfg.NATS, log)
		if err != nil {
			log.WithError(err).Warn("NATS unavailable, the websocket feed only carries API-triggered records")
		} else {
			defer sub.Close()
			if err := sub.SubscribeFeatures(func(rec model.FeatureRecord, vec model.FeatureVector) {
				hub.Broadcast(rec, vec)
			}); err != nil {
				log.WithError(err).Fatal("Failed to subscribe to features")
			}
		}
	}

	handler := api.NewHandler(pipeline, chain, chain, hub, reg, log)
	server := &http.Server{
		Addr:    cfg.API.ListenAddr,
		Handler: handler.Router(),
	}

	go func() {
		log.Infof("API server starting on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v", server.Addr, err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("API server shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}
	log.Info("API server exited.")
}
