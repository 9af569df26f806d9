// Package probe moves raw traffic records and computed feature records over NATS.
package probe

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"DDoSDefender/internal/config"
	"DDoSDefender/internal/model"
)

func connect(cfg config.NATSConfig, name string, log logrus.FieldLogger) (*nats.Conn, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.WithError(err).Warn("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.WithField("url", nc.ConnectedUrl()).Info("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.URL, err)
	}
	log.WithField("url", cfg.URL).Info("Connected to NATS server")
	return nc, nil
}

// Publisher publishes raw record batches and feature records.
type Publisher struct {
	nc              *nats.Conn
	recordsSubject  string
	featuresSubject string
	log             logrus.FieldLogger
}

// NewPublisher connects a publisher.
func NewPublisher(cfg config.NATSConfig, log logrus.FieldLogger) (*Publisher, error) {
	nc, err := connect(cfg, "ddos-defender-publisher", log)
	if err != nil {
		return nil, err
	}
	return &Publisher{nc: nc, recordsSubject: cfg.RecordsSubject, featuresSubject: cfg.FeaturesSubject, log: log}, nil
}

// PublishRecords sends one batch of raw records.
func (p *Publisher) PublishRecords(records []model.RawTrafficRecord) error {
	if len(records) == 0 {
		return nil
	}
	data, err := MarshalRecords(records)
	if err != nil {
		return err
	}
	return p.nc.Publish(p.recordsSubject, data)
}

// PublishFeature sends a computed feature record with its vector.
func (p *Publisher) PublishFeature(rec model.FeatureRecord, vector model.FeatureVector) error {
	data, err := MarshalFeature(rec, vector)
	if err != nil {
		return err
	}
	return p.nc.Publish(p.featuresSubject, data)
}

// Close drains and closes the NATS connection.
func (p *Publisher) Close() {
	if p.nc != nil {
		if err := p.nc.Drain(); err != nil {
			p.log.WithError(err).Warn("Failed to drain NATS connection")
		}
		p.log.Info("NATS publisher drained and closed")
	}
}

// AppendRecords publishes records as one batch, letting a Publisher stand
// in as the sink of an ingest batcher.
func (p *Publisher) AppendRecords(_ context.Context, records []model.RawTrafficRecord) error {
	return p.PublishRecords(records)
}
