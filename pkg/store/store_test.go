package store

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/itohio/feedflow/pkg/feed"
	"github.com/itohio/feedflow/pkg/schedule"
	"github.com/itohio/feedflow/pkg/sensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "feedflow.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSettings(t *testing.T) {
	db := openTemp(t)

	_, ok, err := db.Float("missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, db.SetFloat("factor", 17102.86))
	v, ok, err := db.Float("factor")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.InDelta(t, 17102.86, v, 0.01)

	require.NoError(t, db.SetFloat("factor", 42))
	v, _, err = db.Float("factor")
	require.NoError(t, err)
	assert.Equal(t, float32(42), v)
}

func TestLoadCalibration_WritesBackDefault(t *testing.T) {
	db := openTemp(t)

	require.NoError(t, db.SetFloat(sensor.CalibrationKey, -1))
	got, err := sensor.LoadCalibration(db, sensor.CalibrationKey, 17102.86, 1e9)
	require.NoError(t, err)
	assert.Equal(t, float32(17102.86), got)

	v, ok, err := db.Float(sensor.CalibrationKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.InDelta(t, 17102.86, v, 0.01)
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feedflow.db")

	db, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, db.SetFloat("factor", 5))
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()

	v, ok, err := db.Float("factor")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, float32(5), v)
}

func TestFeedLogs(t *testing.T) {
	db := openTemp(t)
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	first := FeedLog{
		ID:          "a",
		TargetKg:    0.5,
		DispensedKg: 0.503,
		Outcome:     "completed",
		Start:       start,
		End:         start.Add(500 * time.Millisecond),
		AvgTempC:    24.5,
	}
	second := FeedLog{
		ID:          "b",
		TargetKg:    1,
		DispensedKg: 0,
		Outcome:     "timeout",
		Start:       start.Add(time.Minute),
		End:         start.Add(time.Minute + 30*time.Second),
	}
	require.NoError(t, db.insertFeed(first))
	require.NoError(t, db.insertFeed(second))

	logs, err := db.FeedLogs(10)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, second, logs[0])
	assert.Equal(t, first, logs[1])

	logs, err = db.FeedLogs(1)
	require.NoError(t, err)
	assert.Len(t, logs, 1)

	assert.Error(t, db.insertFeed(first), "duplicate id")
}

func TestRecordFeed(t *testing.T) {
	db := openTemp(t)
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	end := start.Add(10 * time.Second)

	require.NoError(t, db.RecordTemperature(start.Add(2*time.Second), 24))
	require.NoError(t, db.RecordTemperature(start.Add(4*time.Second), 26))
	require.NoError(t, db.RecordTemperature(end.Add(time.Minute), 90))

	ev := feed.Event{
		Kind: feed.EventTimeout,
		Request: feed.Request{
			ID:        uuid.New(),
			TargetKg:  0.5,
			StartTime: start,
		},
		DispensedKg: 0.1,
		Elapsed:     10 * time.Second,
	}
	require.NoError(t, db.RecordFeed(ev, end))

	logs, err := db.FeedLogs(1)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, FeedLog{
		ID:          ev.Request.ID.String(),
		TargetKg:    0.5,
		DispensedKg: 0.1,
		Outcome:     "timeout",
		Start:       start,
		End:         end,
		AvgTempC:    25,
	}, logs[0])
}

func TestTemperatures(t *testing.T) {
	db := openTemp(t)
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	_, ok, err := db.AverageTemperature(start, start.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, db.RecordTemperature(start, 20))
	require.NoError(t, db.RecordTemperature(start.Add(time.Second), 22))
	require.NoError(t, db.RecordTemperature(start.Add(time.Hour), 40))

	avg, ok, err := db.AverageTemperature(start, start.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, float32(21), avg)

	temps, err := db.Temperatures(2)
	require.NoError(t, err)
	require.Len(t, temps, 2)
	assert.Equal(t, float32(40), temps[0].TempC)
	assert.Equal(t, start.Add(time.Hour), temps[0].Time)
}

func TestAlerts(t *testing.T) {
	db := openTemp(t)
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	require.NoError(t, db.RecordAlert(at, "HIGH_TEMP", 33.5))

	alerts, err := db.Alerts(5)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertLog{Time: at, Kind: "HIGH_TEMP", Value: 33.5}, alerts[0])
}

func TestSchedules(t *testing.T) {
	db := openTemp(t)

	evening, err := db.AddSchedule("18:00", 1)
	require.NoError(t, err)
	morning, err := db.AddSchedule("07:30", 0.5)
	require.NoError(t, err)

	_, err = db.AddSchedule("7:30", 0.5)
	assert.ErrorIs(t, err, schedule.ErrInvalidTime)
	_, err = db.AddSchedule("08:00", 0)
	assert.ErrorIs(t, err, feed.ErrInvalidAmount)

	entries, err := db.Schedules()
	require.NoError(t, err)
	assert.Equal(t, []schedule.Entry{
		{ID: morning, Hour: 7, Minute: 30, AmountKg: 0.5},
		{ID: evening, Hour: 18, Minute: 0, AmountKg: 1},
	}, entries)

	require.NoError(t, db.DeleteSchedule(morning))
	assert.ErrorIs(t, db.DeleteSchedule(morning), sql.ErrNoRows)

	entries, err = db.Schedules()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, evening, entries[0].ID)
}
