package repository

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/adminwatch/internal/snapshot/domain"
	"github.com/smallbiznis/adminwatch/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertLosingRaceUpdatesExistingRow(t *testing.T) {
	db := testutil.OpenDB(t)
	r := &repo{}
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	first := &domain.Snapshot{ID: 1, CountryCode: "CI", MetricType: domain.MetricRevenue, Period: domain.PeriodWeek, CurrentValue: 90, PriorValue: 100, CapturedAt: at}
	require.NoError(t, r.Upsert(ctx, db, first))

	// a second ingest whose update ran before the first insert committed
	second := &domain.Snapshot{ID: 2, CountryCode: "CI", MetricType: domain.MetricRevenue, Period: domain.PeriodWeek, CurrentValue: 60, PriorValue: 100, CapturedAt: at.Add(time.Minute)}
	require.NoError(t, r.insertOrRefresh(ctx, db, second))

	snapshots, err := r.ListByCountry(ctx, db, "CI")
	require.NoError(t, err)
	require.Len(t, snapshots, 1)
	assert.Equal(t, 60.0, snapshots[0].CurrentValue)
	assert.EqualValues(t, 1, snapshots[0].ID)
}
