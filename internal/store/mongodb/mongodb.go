// Package mongodb stores raw traffic and feature records in MongoDB.
package mongodb

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/activecm/mgorus"
	"github.com/activecm/mgosec"
	"github.com/blang/semver"
	"github.com/globalsign/mgo"
	"github.com/globalsign/mgo/bson"
	"github.com/sirupsen/logrus"

	"DDoSDefender/internal/config"
	"DDoSDefender/internal/model"
	"DDoSDefender/internal/store"
)

func init() {
	store.Register("mongodb", func(def config.StoreDef, log *logrus.Logger) (model.Store, error) {
		return New(def.MongoDB, log)
	})
}

// Collection names.
const (
	TrafficCollection = "network_traffic"
	FeatureCollection = "time_series_data"
)

// MinServerVersion is the oldest MongoDB server the driver is known to work with.
var MinServerVersion = semver.Version{Major: 3, Minor: 6, Patch: 0}

// Store implements model.Store on an mgo session.
type Store struct {
	session *mgo.Session
	db      string
	log     logrus.FieldLogger
}

// New dials MongoDB, checks the server version and ensures indexes. When
// cfg.LogCollection is set, log entries are mirrored into that collection.
func New(cfg config.MongoDBConfig, log *logrus.Logger) (*Store, error) {
	session, err := dial(cfg, log)
	if err != nil {
		return nil, err
	}
	timeout, err := config.ParseDuration(cfg.SocketTimeout)
	if err != nil {
		session.Close()
		return nil, err
	}
	session.SetSocketTimeout(timeout)
	session.SetSyncTimeout(timeout)

	s := &Store{session: session, db: cfg.Database, log: log.WithField("store", "mongodb")}
	if err := s.ensureIndexes(); err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}
	if cfg.LogCollection != "" {
		log.AddHook(mgorus.NewHookerFromSession(session, cfg.Database, cfg.LogCollection))
	}
	log.WithField("database", cfg.Database).Info("Connected to MongoDB and ensured indexes exist")
	return s, nil
}

func dial(cfg config.MongoDBConfig, log *logrus.Logger) (*mgo.Session, error) {
	authMechanism, err := mgosec.ParseAuthMechanism(cfg.AuthMechanism)
	if err != nil {
		authMechanism = mgosec.None
		if cfg.AuthMechanism != "" {
			log.WithField("authMechanism", cfg.AuthMechanism).Warn("Could not parse MongoDB authentication mechanism")
		}
	}

	var session *mgo.Session
	if cfg.TLS {
		session, err = mgosec.Dial(cfg.URL, authMechanism, &tls.Config{})
	} else {
		session, err = mgosec.DialInsecure(cfg.URL, authMechanism)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dial mongodb: %w", err)
	}

	info, err := session.BuildInfo()
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to read mongodb build info: %w", err)
	}
	version, err := semver.ParseTolerant(info.Version)
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("unparsable mongodb version %q: %w", info.Version, err)
	}
	if version.LT(MinServerVersion) {
		session.Close()
		return nil, fmt.Errorf("unsupported version of MongoDB: %s is older than %s", version, MinServerVersion)
	}
	return session, nil
}

func (s *Store) ensureIndexes() error {
	session := s.session.Copy()
	defer session.Close()

	indexes := map[string][]mgo.Index{
		TrafficCollection: {{Key: []string{"timestamp"}}},
		FeatureCollection: {{Key: []string{"window_size_minutes", "-timestamp"}}},
	}
	for coll, list := range indexes {
		for _, index := range list {
			if err := session.DB(s.db).C(coll).EnsureIndex(index); err != nil {
				return fmt.Errorf("%s: %w", coll, err)
			}
		}
	}
	return nil
}

// Records returns the raw records with start <= timestamp < end. mgo has no
// context support, so ctx is only checked before the query starts.
func (s *Store) Records(ctx context.Context, start, end time.Time) ([]model.RawTrafficRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	session := s.session.Copy()
	defer session.Close()

	var out []model.RawTrafficRecord
	err := session.DB(s.db).C(TrafficCollection).
		Find(bson.M{"timestamp": bson.M{"$gte": start, "$lt": end}}).
		Sort("timestamp").
		All(&out)
	if err != nil {
		return nil, fmt.Errorf("failed to query raw records: %w", err)
	}
	return out, nil
}

// AppendRecords inserts raw records with one unordered bulk write.
func (s *Store) AppendRecords(ctx context.Context, records []model.RawTrafficRecord) error {
	if len(records) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	session := s.session.Copy()
	defer session.Close()

	docs := make([]interface{}, len(records))
	for i := range records {
		r := records[i]
		r.Protocol = r.NormalizedProtocol()
		docs[i] = r
	}
	bulk := session.DB(s.db).C(TrafficCollection).Bulk()
	bulk.Unordered()
	bulk.Insert(docs...)
	if _, err := bulk.Run(); err != nil {
		return fmt.Errorf("failed to insert raw records: %w", err)
	}
	s.log.Debugf("Wrote %d raw records", len(records))
	return nil
}

// Append inserts one feature record.
func (s *Store) Append(ctx context.Context, f model.FeatureRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	session := s.session.Copy()
	defer session.Close()

	if err := session.DB(s.db).C(FeatureCollection).Insert(f); err != nil {
		return fmt.Errorf("failed to insert feature record: %w", err)
	}
	return nil
}

// QueryRecent returns up to limit feature records of the window size, newest first.
func (s *Store) QueryRecent(ctx context.Context, windowSizeMinutes, limit int) ([]model.FeatureRecord, error) {
	if limit <= 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	session := s.session.Copy()
	defer session.Close()

	var out []model.FeatureRecord
	err := session.DB(s.db).C(FeatureCollection).
		Find(bson.M{"window_size_minutes": windowSizeMinutes}).
		Sort("-timestamp").
		Limit(limit).
		All(&out)
	if err != nil {
		return nil, fmt.Errorf("failed to query feature records: %w", err)
	}
	return out, nil
}

// Close closes the root session.
func (s *Store) Close() error {
	s.session.Close()
	return nil
}
