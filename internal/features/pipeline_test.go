package features

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"DDoSDefender/internal/logging"
	"DDoSDefender/internal/model"
)

type fakeSource struct {
	mu         sync.Mutex
	records    []model.RawTrafficRecord
	err        error
	start, end time.Time
}

func (s *fakeSource) Records(_ context.Context, start, end time.Time) ([]model.RawTrafficRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.start, s.end = start, end
	return s.records, s.err
}

type fakeStore struct {
	mu        sync.Mutex
	appended  []model.FeatureRecord
	appendErr error
	queryErr  error
}

func (s *fakeStore) Append(_ context.Context, r model.FeatureRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return s.appendErr
	}
	s.appended = append(s.appended, r)
	return nil
}

func (s *fakeStore) QueryRecent(_ context.Context, window, limit int) ([]model.FeatureRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	var out []model.FeatureRecord
	for i := len(s.appended) - 1; i >= 0 && len(out) < limit; i-- {
		if s.appended[i].WindowSizeMinutes == window {
			out = append(out, s.appended[i])
		}
	}
	return out, nil
}

type recordingObserver struct {
	outcomes  []string
	anomalies []string
}

func (o *recordingObserver) ObserveRun(_ int, outcome string, _ time.Duration) {
	o.outcomes = append(o.outcomes, outcome)
}

func (o *recordingObserver) ObserveAnomaly(_ int, anomalyType string, _ float64) {
	o.anomalies = append(o.anomalies, anomalyType)
}

func newTestPipeline(src model.RecordSource, store model.FeatureStore, obs Observer) *Pipeline {
	return NewPipeline(NewAggregator(DefaultThresholds()), src, store,
		WithRecentLimit(3), WithObserver(obs), WithLogger(logging.Discard()))
}

func udpBurst(n int) []model.RawTrafficRecord {
	records := make([]model.RawTrafficRecord, n)
	for i := range records {
		records[i] = rec("udp", "10.0.0.1", "10.0.0.2", 100)
	}
	return records
}

func TestPipeline_Run_StoresAndReadsBack(t *testing.T) {
	src := &fakeSource{records: udpBurst(10)}
	store := &fakeStore{}
	obs := &recordingObserver{}
	p := newTestPipeline(src, store, obs)

	for i := 0; i < 5; i++ {
		if _, err := p.Run(context.Background(), 5, testNow.Add(time.Duration(i)*time.Second)); err != nil {
			t.Fatalf("Run %d failed: %v", i, err)
		}
	}
	res, err := p.Run(context.Background(), 5, testNow.Add(10*time.Second))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if !res.Persisted || res.Record == nil {
		t.Fatalf("Expected a persisted record, got %+v", res)
	}
	if len(res.Recent) != 3 {
		t.Fatalf("Expected 3 recent records, got %d", len(res.Recent))
	}
	if res.Recent[0].ID != res.Record.ID {
		t.Errorf("Expected the fresh record first, got %s want %s", res.Recent[0].ID, res.Record.ID)
	}
	if !src.start.Equal(testNow.Add(10*time.Second-5*time.Minute)) || !src.end.Equal(testNow.Add(10*time.Second)) {
		t.Errorf("Unexpected source window [%s, %s)", src.start, src.end)
	}
	// UDP share 1.0 trips the distribution rule.
	if !res.Record.IsAnomaly || res.Record.AnomalyScore != ScoreDistribution {
		t.Errorf("Expected distribution anomaly, got %+v", res.Record)
	}
	if len(obs.outcomes) != 6 || obs.outcomes[5] != OutcomeStored || len(obs.anomalies) != 6 {
		t.Errorf("Unexpected observations: %v %v", obs.outcomes, obs.anomalies)
	}
}

func TestPipeline_Run_EmptyWindowWritesNothing(t *testing.T) {
	store := &fakeStore{}
	obs := &recordingObserver{}
	res, err := newTestPipeline(&fakeSource{}, store, obs).Run(context.Background(), 5, testNow)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Record != nil || res.Persisted || len(res.Recent) != 0 {
		t.Errorf("Expected an empty result, got %+v", res)
	}
	if len(store.appended) != 0 {
		t.Errorf("Expected no writes, store has %d records", len(store.appended))
	}
	if obs.outcomes[0] != OutcomeEmpty {
		t.Errorf("Expected outcome %q, got %v", OutcomeEmpty, obs.outcomes)
	}
}

func TestPipeline_Run_InvalidWindow(t *testing.T) {
	src := &fakeSource{records: udpBurst(1)}
	_, err := newTestPipeline(src, &fakeStore{}, nil).Run(context.Background(), 0, testNow)
	if !errors.Is(err, ErrInvalidWindow) {
		t.Fatalf("Expected ErrInvalidWindow, got %v", err)
	}
	if !src.start.IsZero() {
		t.Error("Source must not be queried for an invalid window")
	}
}

func TestPipeline_Run_SourceFailure(t *testing.T) {
	boom := errors.New("connection refused")
	_, err := newTestPipeline(&fakeSource{err: boom}, &fakeStore{}, nil).Run(context.Background(), 5, testNow)
	if !IsSourceError(err) || !errors.Is(err, boom) {
		t.Fatalf("Expected a SourceError wrapping the cause, got %v", err)
	}
	if IsPersistenceError(err) {
		t.Error("Source failure must not look like a persistence failure")
	}
}

func TestPipeline_Run_AppendFailureKeepsRecord(t *testing.T) {
	boom := errors.New("write rejected")
	store := &fakeStore{appendErr: boom}
	res, err := newTestPipeline(&fakeSource{records: udpBurst(3)}, store, nil).Run(context.Background(), 5, testNow)

	var pe *PersistenceError
	if !errors.As(err, &pe) {
		t.Fatalf("Expected a PersistenceError, got %v", err)
	}
	if pe.Op != OpAppend || !errors.Is(err, boom) {
		t.Errorf("Unexpected persistence error: %+v", pe)
	}
	if res.Record == nil || res.Persisted {
		t.Fatalf("Expected the unpersisted record to be returned, got %+v", res)
	}
	if pe.Record.ID != res.Record.ID {
		t.Errorf("Error must carry the computed record")
	}
}

func TestPipeline_Run_ReadBackFailure(t *testing.T) {
	store := &fakeStore{queryErr: errors.New("timeout")}
	res, err := newTestPipeline(&fakeSource{records: udpBurst(3)}, store, nil).Run(context.Background(), 5, testNow)

	var pe *PersistenceError
	if !errors.As(err, &pe) || pe.Op != OpQueryRecent {
		t.Fatalf("Expected a read-back PersistenceError, got %v", err)
	}
	if !res.Persisted || res.Record == nil {
		t.Errorf("Record was appended, result should say so: %+v", res)
	}
}

func TestPipeline_Run_ConcurrentWindows(t *testing.T) {
	store := &fakeStore{}
	p := newTestPipeline(&fakeSource{records: udpBurst(5)}, store, nil)

	var wg sync.WaitGroup
	for _, w := range []int{1, 5, 15, 60} {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			if _, err := p.Run(context.Background(), w, testNow); err != nil {
				t.Errorf("window %d: %v", w, err)
			}
		}(w)
	}
	wg.Wait()

	if len(store.appended) != 4 {
		t.Errorf("Expected one record per window, got %d", len(store.appended))
	}
}
