// Package storetest holds the behaviour every model.Store backend must show.
package storetest

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"DDoSDefender/internal/model"
)

// Run exercises s. It only touches rows it creates itself: a random window
// size for feature records and a fresh time range for raw records, so it can
// run against a shared database.
func Run(t *testing.T, s model.Store) {
	t.Helper()
	ctx := context.Background()
	window := 100000 + rand.Intn(900000)
	base := time.Now().UTC().Truncate(time.Millisecond).Add(-time.Duration(rand.Intn(1000)) * time.Hour)

	t.Run("RecordsHalfOpen", func(t *testing.T) {
		in := []model.RawTrafficRecord{
			{Timestamp: base.Add(-time.Millisecond), SourceAddress: "10.0.0.9", DestinationAddress: "10.0.0.2", Protocol: "udp", Size: 10},
			{Timestamp: base, SourceAddress: "10.0.0.1", DestinationAddress: "10.0.0.2", Protocol: "tcp", Size: 60, Flags: []string{"SYN"}, SourcePort: 40000, DestinationPort: 80},
			{Timestamp: base.Add(30 * time.Second), SourceAddress: "10.0.0.3", DestinationAddress: "10.0.0.2", Protocol: "icmp", Size: 84},
			{Timestamp: base.Add(time.Minute), SourceAddress: "10.0.0.4", DestinationAddress: "10.0.0.2", Protocol: "udp", Size: 512},
		}
		require.NoError(t, s.AppendRecords(ctx, in))

		got, err := s.Records(ctx, base, base.Add(time.Minute))
		require.NoError(t, err)
		require.Len(t, got, 2)

		var syn model.RawTrafficRecord
		for _, r := range got {
			if r.SourceAddress == "10.0.0.1" {
				syn = r
			}
		}
		assert.True(t, syn.Timestamp.Equal(base))
		assert.Equal(t, "tcp", syn.Protocol)
		assert.Equal(t, 60, syn.Size)
		assert.True(t, syn.IsPureSYN())
		assert.Equal(t, uint16(40000), syn.SourcePort)
		assert.Equal(t, uint16(80), syn.DestinationPort)
	})

	t.Run("QueryRecent", func(t *testing.T) {
		var ids []string
		for i := 0; i < 4; i++ {
			f := model.FeatureRecord{
				ID:                uuid.NewString(),
				Timestamp:         base.Add(time.Duration(i) * time.Minute),
				WindowSizeMinutes: window,
				Metrics: model.Metrics{
					PacketCount:       150,
					ByteCount:         9000,
					UniqueSourceCount: 3,
					TCPRatio:          1,
					SYNRatio:          0.8667,
					SourceEntropy:     1.5,
				},
				IsAnomaly:    true,
				AnomalyScore: 0.9,
				AnomalyType:  model.AnomalySYNFlood,
			}
			require.NoError(t, s.Append(ctx, f))
			ids = append(ids, f.ID)
		}
		require.NoError(t, s.Append(ctx, model.FeatureRecord{ID: uuid.NewString(), Timestamp: base.Add(time.Hour), WindowSizeMinutes: window + 1}))

		got, err := s.QueryRecent(ctx, window, 3)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, []string{ids[3], ids[2], ids[1]}, []string{got[0].ID, got[1].ID, got[2].ID})

		newest := got[0]
		assert.Equal(t, window, newest.WindowSizeMinutes)
		assert.True(t, newest.Timestamp.Equal(base.Add(3*time.Minute)))
		assert.Equal(t, 150, newest.Metrics.PacketCount)
		assert.Equal(t, int64(9000), newest.Metrics.ByteCount)
		assert.InDelta(t, 0.8667, newest.Metrics.SYNRatio, 1e-9)
		assert.True(t, newest.IsAnomaly)
		assert.Equal(t, model.AnomalySYNFlood, newest.AnomalyType)
	})
}
