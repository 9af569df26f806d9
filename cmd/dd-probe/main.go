package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcap"
	"github.com/sirupsen/logrus"

	"DDoSDefender/internal/config"
	"DDoSDefender/internal/engine/protocol"
	"DDoSDefender/internal/ingest"
	"DDoSDefender/internal/logging"
	"DDoSDefender/internal/model"
	"DDoSDefender/internal/probe"
	pcapfile "DDoSDefender/pkg/pcap"
)

const (
	snapshotLen int32 = 1600
	promiscuous       = true
	timeout           = pcap.BlockForever
)

func main() {
	configFile := flag.String("config", "configs/config.yaml", "Path to the configuration file")
	mode := flag.String("mode", "pub", "Operating mode: 'pub' to capture and publish, 'sub' to subscribe and print.")
	iface := flag.String("iface", "", "Interface to capture packets from (required for pub mode).")
	bpf := flag.String("bpf", "ip or ip6", "BPF filter applied to the capture.")
	archive := flag.String("archive", "", "Also write captured frames to this pcap file.")
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

	switch *mode {
	case "pub":
		runProbe(cfg, log, *iface, *bpf, *archive)
	case "sub":
		runSubscriber(cfg, log)
	default:
		fmt.Fprintf(os.Stderr, "Invalid mode: %s\n", *mode)
		flag.Usage()
		os.Exit(1)
	}
}

// runProbe captures packets and publishes them to NATS in batches.
func runProbe(cfg *config.Config, log *logrus.Logger, interfaceName, filter, archivePath string) {
	if interfaceName == "" {
		log.Error("The -iface flag is required for probe mode.")
		flag.Usage()
		os.Exit(1)
	}
	log.Infof("Starting dd-probe in PROBE mode on interface: %s", interfaceName)

	pub, err := probe.NewPublisher(cfg.NATS, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to NATS")
	}
	defer pub.Close()

	// The publisher is the batcher's sink: records leave in batches of
	// ingest.batch_size or every ingest.flush_interval.
	batcher, err := ingest.NewBatcher(cfg.Ingest, pub, nil, log)
	if err != nil {
		log.WithError(err).Fatal("Invalid ingest configuration")
	}
	batcher.Start()
	defer batcher.Stop()

	handle, err := pcap.OpenLive(interfaceName, snapshotLen, promiscuous, timeout)
	if err != nil {
		log.WithError(err).Fatalf("Error opening device %s", interfaceName)
	}
	defer handle.Close()
	if filter != "" {
		if err := handle.SetBPFFilter(filter); err != nil {
			log.WithError(err).Fatalf("Invalid BPF filter %q", filter)
		}
	}

	var writer *pcapfile.Writer
	if archivePath != "" {
		f, err := os.Create(archivePath)
		if err != nil {
			log.WithError(err).Fatal("Failed to create archive file")
		}
		defer f.Close()
		if writer, err = pcapfile.NewWriter(f); err != nil {
			log.WithError(err).Fatal("Failed to start archive")
		}
		log.Infof("Archiving captured frames to %s", archivePath)
	}

	log.Info("Capture started successfully. Publishing packets to NATS...")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		packetSource := gopacket.NewPacketSource(handle, handle.LinkType())
		published := 0
		for {
			select {
			case <-ctx.Done():
				return
			case packet, ok := <-packetSource.Packets():
				if !ok {
					return
				}
				rec, err := protocol.ParsePacket(packet)
				if err != nil {
					continue
				}
				if writer != nil {
					if err := writer.WritePacket(packet.Metadata().CaptureInfo, packet.Data()); err != nil {
						log.WithError(err).Warn("Failed to archive frame")
					}
				}
				published += batcher.Enqueue(rec)
				if published > 0 && published%10000 == 0 {
					log.Infof("%d packets queued for publishing...", published)
				}
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Info("Shutdown signal received, cleaning up...")
	cancel()
	<-done
}

// runSubscriber prints every batch of raw records received from NATS.
func runSubscriber(cfg *config.Config, log *logrus.Logger) {
	log.Info("Starting dd-probe in SUBSCRIBER mode...")

	sub, err := probe.NewSubscriber(cfg.NATS, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to create subscriber")
	}
	defer sub.Close()

	handler := func(records []model.RawTrafficRecord) {
		for _, r := range records {
			log.WithFields(logrus.Fields{
				"src":   fmt.Sprintf("%s:%d", r.SourceAddress, r.SourcePort),
				"dst":   fmt.Sprintf("%s:%d", r.DestinationAddress, r.DestinationPort),
				"proto": r.Protocol,
				"size":  r.Size,
				"flags": r.Flags,
			}).Info("Received record")
		}
	}
	if err := sub.SubscribeRecords(handler); err != nil {
		log.WithError(err).Fatal("Subscriber failed to start")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Info("Shutdown signal received, cleaning up...")
}
