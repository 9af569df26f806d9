// Package store opens the configured storage backends and chains them behind
// a single model.Store with ordered fallback.
package store

import (
	"errors"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"DDoSDefender/internal/config"
	"DDoSDefender/internal/model"
)

// Opener connects one backend described by def.
type Opener func(def config.StoreDef, log *logrus.Logger) (model.Store, error)

// registry holds the mapping of store types to their openers.
var registry = make(map[string]Opener)

// Register makes a backend type available to Open. Backends call it from init.
func Register(name string, opener Opener) {
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("store type '%s' already registered", name))
	}
	registry[name] = opener
}

// Registered lists the known backend types.
func Registered() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open connects every enabled backend in configured order and chains them.
// A backend that fails to connect is logged, reported in the chain status and
// skipped. Open fails on unknown types or when no backend could be opened.
func Open(defs []config.StoreDef, log *logrus.Logger) (*Chain, error) {
	var (
		opened   []Named
		failures []BackendStatus
		errs     []error
	)
	for i, def := range defs {
		if !def.Enabled {
			continue
		}
		opener, ok := registry[def.Type]
		if !ok {
			return nil, fmt.Errorf("unknown store type '%s' (known: %v)", def.Type, Registered())
		}
		name := fmt.Sprintf("%s#%d", def.Type, i)
		s, err := opener(def, log)
		if err != nil {
			log.WithError(err).WithField("store", name).Warn("Store unavailable, skipping")
			failures = append(failures, BackendStatus{Name: name, LastError: err.Error()})
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		log.WithField("store", name).Info("Store connected")
		opened = append(opened, Named{Name: name, Store: s})
	}
	if len(opened) == 0 {
		if len(errs) == 0 {
			return nil, errors.New("no store enabled")
		}
		return nil, fmt.Errorf("no store could be opened: %w", errors.Join(errs...))
	}

	chain := NewChain(log, opened...)
	chain.unavailable = failures
	return chain, nil
}
