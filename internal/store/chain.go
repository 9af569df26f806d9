package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"DDoSDefender/internal/model"
)

// Named is a backend together with the name it is reported under.
type Named struct {
	Name  string
	Store model.Store
}

// BackendStatus describes the health of one backend as seen by the chain.
type BackendStatus struct {
	Name        string    `json:"name"`
	Live        bool      `json:"live"`
	Failures    uint64    `json:"failures"`
	LastError   string    `json:"lastError,omitempty"`
	LastErrorAt time.Time `json:"lastErrorAt,omitempty"`
}

// Status is a point-in-time view of the chain.
type Status struct {
	// Active is the first live backend, the one new writes go to.
	Active   string          `json:"active"`
	Backends []BackendStatus `json:"backends"`
}

// Chain serves every store operation from the first backend that succeeds.
// A backend that fails is marked down and retried on the next call, so a
// recovered primary takes over again without a restart. Recent feature
// records are read from the backend that took the last append for that
// window size, so a read-back always sees the record just written.
type Chain struct {
	backends    []Named
	unavailable []BackendStatus
	log         logrus.FieldLogger

	mu      sync.Mutex
	health  map[string]*BackendStatus
	writers map[int]string
}

var _ model.Store = (*Chain)(nil)

// ErrNoStore is returned by a chain that has no backends.
var ErrNoStore = errors.New("no store available")

// NewChain chains the given backends in priority order.
func NewChain(log logrus.FieldLogger, backends ...Named) *Chain {
	c := &Chain{
		backends: backends,
		log:      log,
		health:   make(map[string]*BackendStatus, len(backends)),
		writers:  make(map[int]string),
	}
	for _, b := range backends {
		c.health[b.Name] = &BackendStatus{Name: b.Name, Live: true}
	}
	return c
}

// Records reads raw records from the first backend that answers.
func (c *Chain) Records(ctx context.Context, start, end time.Time) ([]model.RawTrafficRecord, error) {
	var out []model.RawTrafficRecord
	err := c.try(ctx, "records", c.backends, func(s model.Store) error {
		var err error
		out, err = s.Records(ctx, start, end)
		return err
	})
	return out, err
}

// AppendRecords writes a batch of raw records to the first backend that accepts it.
func (c *Chain) AppendRecords(ctx context.Context, records []model.RawTrafficRecord) error {
	if len(records) == 0 {
		return nil
	}
	return c.try(ctx, "append_records", c.backends, func(s model.Store) error {
		return s.AppendRecords(ctx, records)
	})
}

// Append writes a feature record to the first backend that accepts it.
func (c *Chain) Append(ctx context.Context, record model.FeatureRecord) error {
	var writer string
	err := c.try(ctx, "append", c.backends, func(s model.Store) error {
		return s.Append(ctx, record)
	}, func(name string) { writer = name })
	if err == nil {
		c.mu.Lock()
		c.writers[record.WindowSizeMinutes] = writer
		c.mu.Unlock()
	}
	return err
}

// QueryRecent reads recent feature records, starting with the backend that
// accepted the last append for windowSizeMinutes and falling back in order.
func (c *Chain) QueryRecent(ctx context.Context, windowSizeMinutes, limit int) ([]model.FeatureRecord, error) {
	var out []model.FeatureRecord
	err := c.try(ctx, "query_recent", c.readOrder(windowSizeMinutes), func(s model.Store) error {
		var err error
		out, err = s.QueryRecent(ctx, windowSizeMinutes, limit)
		return err
	})
	return out, err
}

// Close closes every backend.
func (c *Chain) Close() error {
	var errs []error
	for _, b := range c.backends {
		if err := b.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", b.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Status reports which backends are configured, which are live and the last
// error seen from each.
func (c *Chain) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Status{Backends: make([]BackendStatus, 0, len(c.backends)+len(c.unavailable))}
	for _, b := range c.backends {
		h := *c.health[b.Name]
		if st.Active == "" && h.Live {
			st.Active = h.Name
		}
		st.Backends = append(st.Backends, h)
	}
	st.Backends = append(st.Backends, c.unavailable...)
	return st
}

// readOrder returns the backends with the last writer for the window first.
func (c *Chain) readOrder(windowSizeMinutes int) []Named {
	c.mu.Lock()
	writer, ok := c.writers[windowSizeMinutes]
	c.mu.Unlock()
	if !ok || len(c.backends) == 0 || c.backends[0].Name == writer {
		return c.backends
	}
	ordered := make([]Named, 0, len(c.backends))
	for _, b := range c.backends {
		if b.Name == writer {
			ordered = append(ordered, b)
		}
	}
	for _, b := range c.backends {
		if b.Name != writer {
			ordered = append(ordered, b)
		}
	}
	return ordered
}

// try runs fn against backends in order until one succeeds. The optional
// done callbacks receive the name of the backend that succeeded.
func (c *Chain) try(ctx context.Context, op string, backends []Named, fn func(model.Store) error, done ...func(string)) error {
	var errs []error
	for _, b := range backends {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		err := fn(b.Store)
		c.mark(b.Name, op, err)
		if err == nil {
			for _, d := range done {
				d(b.Name)
			}
			return nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", b.Name, err))
	}
	if len(errs) == 0 {
		return ErrNoStore
	}
	return fmt.Errorf("%s failed on every store: %w", op, errors.Join(errs...))
}

func (c *Chain) mark(name, op string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	h := c.health[name]
	if err == nil {
		if !h.Live {
			c.log.WithField("store", name).Info("Store recovered")
		}
		h.Live = true
		return
	}
	if h.Live {
		c.log.WithError(err).WithFields(logrus.Fields{"store": name, "op": op}).Warn("Store failed, falling back")
	}
	h.Live = false
	h.Failures++
	h.LastError = err.Error()
	h.LastErrorAt = time.Now()
}
