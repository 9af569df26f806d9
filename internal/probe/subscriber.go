package probe

import (
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"DDoSDefender/internal/config"
	"DDoSDefender/internal/model"
)

// RecordsHandler processes one received batch of raw records.
type RecordsHandler func(records []model.RawTrafficRecord)

// FeatureHandler processes one received feature record.
type FeatureHandler func(rec model.FeatureRecord, vector model.FeatureVector)

// Subscriber listens on the record and feature subjects.
type Subscriber struct {
	nc   *nats.Conn
	subs []*nats.Subscription
	cfg  config.NATSConfig
	log  logrus.FieldLogger
}

// NewSubscriber connects a subscriber.
func NewSubscriber(cfg config.NATSConfig, log logrus.FieldLogger) (*Subscriber, error) {
	nc, err := connect(cfg, "ddos-defender-subscriber", log)
	if err != nil {
		return nil, err
	}
	return &Subscriber{nc: nc, cfg: cfg, log: log}, nil
}

// SubscribeRecords delivers raw record batches to handler. Undecodable
// messages are logged and dropped.
func (s *Subscriber) SubscribeRecords(handler RecordsHandler) error {
	return s.subscribe(s.cfg.RecordsSubject, recordsCallback(handler, s.log))
}

// SubscribeFeatures delivers feature records to handler.
func (s *Subscriber) SubscribeFeatures(handler FeatureHandler) error {
	return s.subscribe(s.cfg.FeaturesSubject, featuresCallback(handler, s.log))
}

func (s *Subscriber) subscribe(subject string, cb nats.MsgHandler) error {
	sub, err := s.nc.Subscribe(subject, cb)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	s.log.WithField("subject", subject).Info("Subscribed, waiting for messages")
	return nil
}

func recordsCallback(handler RecordsHandler, log logrus.FieldLogger) nats.MsgHandler {
	return func(msg *nats.Msg) {
		records, err := UnmarshalRecords(msg.Data)
		if err != nil {
			log.WithError(err).WithField("subject", msg.Subject).Warn("Dropping undecodable record batch")
			return
		}
		handler(records)
	}
}

func featuresCallback(handler FeatureHandler, log logrus.FieldLogger) nats.MsgHandler {
	return func(msg *nats.Msg) {
		rec, vec, err := UnmarshalFeature(msg.Data)
		if err != nil {
			log.WithError(err).WithField("subject", msg.Subject).Warn("Dropping undecodable feature record")
			return
		}
		handler(rec, vec)
	}
}

// Close unsubscribes and closes the NATS connection.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		if err := sub.Unsubscribe(); err != nil {
			s.log.WithError(err).Debug("Unsubscribe failed")
		}
	}
	if s.nc != nil {
		s.nc.Close()
		s.log.Info("NATS subscriber closed")
	}
}
