package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/itohio/feedflow/pkg/feed"
	"github.com/itohio/feedflow/pkg/schedule"
	"github.com/itohio/feedflow/pkg/sensor"
)

// DB is the appliance log and settings database.
type DB struct{ *sql.DB }

var (
	_ sensor.CalibrationStore = (*DB)(nil)
	_ schedule.Source         = (*DB)(nil)
)

// FeedLog is one finished feed request.
type FeedLog struct {
	ID          string
	TargetKg    float32
	DispensedKg float32
	Outcome     string
	Start       time.Time
	End         time.Time
	AvgTempC    float32
}

// TempLog is one valid temperature reading.
type TempLog struct {
	Time  time.Time
	TempC float32
}

// AlertLog is one raised alert.
type AlertLog struct {
	Time  time.Time
	Kind  string
	Value float32
}

// Open opens or creates the database at path and migrates it.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate %s: %w", path, err)
	}
	return &DB{DB: db}, nil
}

func migrate(db *sql.DB) error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value REAL NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS feed_logs (
			id TEXT PRIMARY KEY,
			target_kg REAL NOT NULL,
			dispensed_kg REAL NOT NULL,
			outcome TEXT NOT NULL,
			started_at TEXT NOT NULL,
			ended_at TEXT NOT NULL,
			avg_temp_c REAL NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_feed_logs_started_at ON feed_logs(started_at);`,
		`CREATE TABLE IF NOT EXISTS temp_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			created_at TEXT NOT NULL,
			temp_c REAL NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS alert_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			created_at TEXT NOT NULL,
			kind TEXT NOT NULL,
			value REAL NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_alert_logs_kind ON alert_logs(kind);`,
		`CREATE TABLE IF NOT EXISTS schedule_feeds (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			time TEXT NOT NULL,
			kg REAL NOT NULL,
			created_at TEXT NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Float returns the setting stored under key.
func (db *DB) Float(key string) (float32, bool, error) {
	var v float64
	err := db.QueryRow(`SELECT value FROM settings WHERE key=?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return float32(v), true, nil
}

// SetFloat stores v under key.
func (db *DB) SetFloat(key string, v float32) error {
	_, err := db.Exec(`INSERT INTO settings(key,value,updated_at) VALUES(?,?,?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`,
		key, float64(v), stamp(time.Now()))
	return err
}

// RecordFeed stores a finished feed request together with the mean water
// temperature logged while it ran.
func (db *DB) RecordFeed(ev feed.Event, end time.Time) error {
	avg, _, err := db.AverageTemperature(ev.Request.StartTime, end)
	if err != nil {
		return fmt.Errorf("failed to average temperature: %w", err)
	}
	return db.insertFeed(FeedLog{
		ID:          ev.Request.ID.String(),
		TargetKg:    ev.Request.TargetKg,
		DispensedKg: ev.DispensedKg,
		Outcome:     ev.Kind.String(),
		Start:       ev.Request.StartTime,
		End:         end,
		AvgTempC:    avg,
	})
}

func (db *DB) insertFeed(l FeedLog) error {
	_, err := db.Exec(`INSERT INTO feed_logs(id,target_kg,dispensed_kg,outcome,started_at,ended_at,avg_temp_c)
		VALUES(?,?,?,?,?,?,?)`,
		l.ID, float64(l.TargetKg), float64(l.DispensedKg), l.Outcome, stamp(l.Start), stamp(l.End), float64(l.AvgTempC))
	return err
}

// RecordTemperature stores a temperature reading.
func (db *DB) RecordTemperature(at time.Time, tempC float32) error {
	_, err := db.Exec(`INSERT INTO temp_logs(created_at,temp_c) VALUES(?,?)`, stamp(at), float64(tempC))
	return err
}

// RecordAlert stores an alert.
func (db *DB) RecordAlert(at time.Time, kind string, value float32) error {
	_, err := db.Exec(`INSERT INTO alert_logs(created_at,kind,value) VALUES(?,?,?)`, stamp(at), kind, float64(value))
	return err
}

// AverageTemperature returns the mean of the temperature readings in [from, to].
// ok is false when there are none.
func (db *DB) AverageTemperature(from, to time.Time) (float32, bool, error) {
	var avg sql.NullFloat64
	err := db.QueryRow(`SELECT AVG(temp_c) FROM temp_logs WHERE created_at >= ? AND created_at <= ?`,
		stamp(from), stamp(to)).Scan(&avg)
	if err != nil {
		return 0, false, err
	}
	return float32(avg.Float64), avg.Valid, nil
}

// FeedLogs returns the newest feed logs first, at most limit of them.
func (db *DB) FeedLogs(limit int) ([]FeedLog, error) {
	rows, err := db.Query(`SELECT id,target_kg,dispensed_kg,outcome,started_at,ended_at,avg_temp_c
		FROM feed_logs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FeedLog
	for rows.Next() {
		var (
			l                       FeedLog
			target, dispensed, temp float64
			started, ended          string
		)
		if err := rows.Scan(&l.ID, &target, &dispensed, &l.Outcome, &started, &ended, &temp); err != nil {
			return nil, err
		}
		l.TargetKg, l.DispensedKg, l.AvgTempC = float32(target), float32(dispensed), float32(temp)
		if l.Start, err = parseStamp(started); err != nil {
			return nil, err
		}
		if l.End, err = parseStamp(ended); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// Temperatures returns the newest temperature readings first, at most limit of them.
func (db *DB) Temperatures(limit int) ([]TempLog, error) {
	rows, err := db.Query(`SELECT created_at,temp_c FROM temp_logs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TempLog
	for rows.Next() {
		var (
			at string
			c  float64
		)
		if err := rows.Scan(&at, &c); err != nil {
			return nil, err
		}
		t, err := parseStamp(at)
		if err != nil {
			return nil, err
		}
		out = append(out, TempLog{Time: t, TempC: float32(c)})
	}
	return out, rows.Err()
}

// Alerts returns the newest alerts first, at most limit of them.
func (db *DB) Alerts(limit int) ([]AlertLog, error) {
	rows, err := db.Query(`SELECT created_at,kind,value FROM alert_logs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AlertLog
	for rows.Next() {
		var (
			a  AlertLog
			at string
			v  float64
		)
		if err := rows.Scan(&at, &a.Kind, &v); err != nil {
			return nil, err
		}
		if a.Time, err = parseStamp(at); err != nil {
			return nil, err
		}
		a.Value = float32(v)
		out = append(out, a)
	}
	return out, rows.Err()
}

// AddSchedule stores a daily feed of kg at "HH:MM" and returns its ID.
func (db *DB) AddSchedule(clock string, kg float32) (int64, error) {
	hour, minute, err := schedule.ParseClock(clock)
	if err != nil {
		return 0, err
	}
	if !(kg > 0) {
		return 0, fmt.Errorf("%w: %v kg", feed.ErrInvalidAmount, kg)
	}
	res, err := db.Exec(`INSERT INTO schedule_feeds(time,kg,created_at) VALUES(?,?,?)`,
		schedule.Entry{Hour: hour, Minute: minute}.Clock(), float64(kg), stamp(time.Now()))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// Schedules returns the scheduled feeds ordered by time of day.
func (db *DB) Schedules() ([]schedule.Entry, error) {
	rows, err := db.Query(`SELECT id,time,kg FROM schedule_feeds ORDER BY time, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []schedule.Entry
	for rows.Next() {
		var (
			e     schedule.Entry
			clock string
			kg    float64
		)
		if err := rows.Scan(&e.ID, &clock, &kg); err != nil {
			return nil, err
		}
		if e.Hour, e.Minute, err = schedule.ParseClock(clock); err != nil {
			return nil, err
		}
		e.AmountKg = float32(kg)
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteSchedule removes a scheduled feed.
func (db *DB) DeleteSchedule(id int64) error {
	res, err := db.Exec(`DELETE FROM schedule_feeds WHERE id=?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("schedule %d: %w", id, sql.ErrNoRows)
	}
	return nil
}

// stamp formats times so that they sort lexically.
func stamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z")
}

func parseStamp(s string) (time.Time, error) {
	return time.Parse("2006-01-02T15:04:05.000000000Z", s)
}
