package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"DDoSDefender/internal/model"
	"DDoSDefender/internal/store/storetest"
)

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func raw(offset time.Duration) model.RawTrafficRecord {
	return model.RawTrafficRecord{Timestamp: base.Add(offset), SourceAddress: "10.0.0.1", DestinationAddress: "10.0.0.2", Protocol: "tcp", Size: 60}
}

func feature(id string, window int, offset time.Duration) model.FeatureRecord {
	return model.FeatureRecord{ID: id, WindowSizeMinutes: window, Timestamp: base.Add(offset)}
}

func TestRecordsHalfOpenRange(t *testing.T) {
	s := New(0, 0)
	ctx := context.Background()
	require.NoError(t, s.AppendRecords(ctx, []model.RawTrafficRecord{
		raw(2 * time.Minute), raw(0), raw(time.Minute), raw(5 * time.Minute), raw(-time.Second),
	}))

	got, err := s.Records(ctx, base, base.Add(5*time.Minute))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.True(t, got[0].Timestamp.Equal(base), "start is inclusive and results are ordered")
	assert.True(t, got[2].Timestamp.Equal(base.Add(2*time.Minute)))
}

func TestQueryRecentNewestFirstPerWindow(t *testing.T) {
	s := New(0, 0)
	ctx := context.Background()
	for i, f := range []model.FeatureRecord{
		feature("a", 5, 0),
		feature("b", 1, time.Minute),
		feature("c", 5, 2*time.Minute),
		feature("d", 5, time.Minute),
		feature("e", 5, 2*time.Minute),
	} {
		require.NoError(t, s.Append(ctx, f), "append %d", i)
	}

	got, err := s.QueryRecent(ctx, 5, 3)
	require.NoError(t, err)
	ids := make([]string, len(got))
	for i, f := range got {
		ids[i] = f.ID
	}
	assert.Equal(t, []string{"e", "c", "d"}, ids)

	none, err := s.QueryRecent(ctx, 5, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestBoundsEvictOldest(t *testing.T) {
	s := New(3, 2)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, s.AppendRecords(ctx, []model.RawTrafficRecord{raw(time.Duration(i) * time.Second)}))
		require.NoError(t, s.Append(ctx, feature(string(rune('a'+i)), 5, time.Duration(i)*time.Second)))
	}

	records, features := s.Len()
	assert.Equal(t, 3, records)
	assert.Equal(t, 2, features)

	got, err := s.Records(ctx, base, base.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, got[0].Timestamp.Equal(base.Add(2*time.Second)))

	recent, err := s.QueryRecent(ctx, 5, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "e", recent[0].ID)
}

func TestClosedStoreRejectsCalls(t *testing.T) {
	s := New(0, 0)
	require.NoError(t, s.Close())

	ctx := context.Background()
	assert.ErrorIs(t, s.Append(ctx, feature("x", 5, 0)), ErrClosed)
	assert.ErrorIs(t, s.AppendRecords(ctx, []model.RawTrafficRecord{raw(0)}), ErrClosed)
	_, err := s.QueryRecent(ctx, 5, 1)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = s.Records(ctx, base, base.Add(time.Minute))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestConformance(t *testing.T) {
	storetest.Run(t, New(0, 0))
}

func TestRecordBudget(t *testing.T) {
	assert.Equal(t, minRecordBudget, RecordBudget(0))
	assert.Equal(t, minRecordBudget, RecordBudget(1<<20))
	// 16 GiB leaves 1 GiB for 256-byte records.
	assert.Equal(t, 1<<22, RecordBudget(16<<30))
}
