package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signal-hud.klederson.com/internal/signal"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "sightings.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRecordAndHistory(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	d := 2.5
	base := time.UnixMilli(1_700_000_000_000)
	first := signal.Batch{
		Source: signal.SourceWiFi,
		Cycle:  uuid.New(),
		Readings: []signal.SignalReading{
			{Source: signal.SourceWiFi, Identifier: "Router-X", Observer: "node-a", RSSI: -58, Distance: &d,
				Estimated: &signal.Position{X: 3, Y: 4}, ObservedAt: base},
			{Source: signal.SourceWiFi, Identifier: "Other", RSSI: -70, Distance: &d, ObservedAt: base},
		},
	}
	second := signal.Batch{
		Source: signal.SourceWiFi,
		Cycle:  uuid.New(),
		Readings: []signal.SignalReading{
			{Source: signal.SourceWiFi, Identifier: "Router-X", RSSI: 0, ObservedAt: base.Add(5 * time.Second)},
		},
	}
	require.NoError(t, db.RecordBatch(ctx, first))
	require.NoError(t, db.RecordBatch(ctx, second))

	got, err := db.History(ctx, signal.SourceWiFi, "Router-X", 10)
	require.NoError(t, err)

	want := []Sighting{
		{Cycle: second.Cycle, Source: signal.SourceWiFi, Identifier: "Router-X",
			ObservedAt: base.Add(5 * time.Second)},
		{Cycle: first.Cycle, Source: signal.SourceWiFi, Identifier: "Router-X", Observer: "node-a",
			RSSI: -58, Distance: &d, Estimated: &signal.Position{X: 3, Y: 4}, ObservedAt: base},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("History mismatch (-want +got):\n%s", diff)
	}

	limited, err := db.History(ctx, signal.SourceWiFi, "Router-X", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	none, err := db.History(ctx, signal.SourceBluetooth, "Router-X", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRecordEmptyBatch(t *testing.T) {
	db := openTestDB(t)
	assert.NoError(t, db.RecordBatch(context.Background(), signal.Batch{Source: signal.SourceNFC}))
}
