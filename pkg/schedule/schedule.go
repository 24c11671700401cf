package schedule

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"
)

// DefaultCheckInterval is how often the entry list is read.
const DefaultCheckInterval = 30 * time.Second

// ErrInvalidTime is returned for times that are not HH:MM on a 24 hour clock.
var ErrInvalidTime = errors.New("invalid schedule time")

// Entry is a daily feed at a wall-clock minute.
type Entry struct {
	ID       int64
	Hour     int
	Minute   int
	AmountKg float32
}

// Clock returns the entry time as HH:MM.
func (e Entry) Clock() string {
	return fmt.Sprintf("%02d:%02d", e.Hour, e.Minute)
}

func (e Entry) String() string {
	return fmt.Sprintf("#%d %s %.3f kg", e.ID, e.Clock(), e.AmountKg)
}

// Matches reports whether now falls in the entry's minute.
func (e Entry) Matches(now time.Time) bool {
	return now.Hour() == e.Hour && now.Minute() == e.Minute
}

// ParseClock parses "HH:MM".
func ParseClock(s string) (hour, minute int, err error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || len(hh) != 2 || len(mm) != 2 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	hour, err = strconv.Atoi(hh)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	minute, err = strconv.Atoi(mm)
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	return hour, minute, nil
}

// Source is the durable list of scheduled feeds.
type Source interface {
	Schedules() ([]Entry, error)
	DeleteSchedule(id int64) error
}

// Scheduler picks the entries that fall due. It is driven by the control
// loop and is not safe for concurrent use.
type Scheduler struct {
	src      Source
	interval time.Duration

	lastCheck time.Time
	fired     map[int64]string // entry ID to the day it last fired
}

// New creates a scheduler reading src at most once per interval.
func New(src Source, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultCheckInterval
	}
	return &Scheduler{
		src:      src,
		interval: interval,
		fired:    make(map[int64]string),
	}
}

// Due returns the entries whose minute matches now and that have not fired
// yet today. Each returned entry counts as fired for the day whether or not
// the caller manages to start it.
func (s *Scheduler) Due(now time.Time) []Entry {
	if !s.lastCheck.IsZero() && now.Sub(s.lastCheck) < s.interval {
		return nil
	}
	s.lastCheck = now

	entries, err := s.src.Schedules()
	if err != nil {
		log.Printf("schedule: failed to read entries: %v", err)
		return nil
	}

	day := now.Format(time.DateOnly)
	var due []Entry
	for _, e := range entries {
		if !e.Matches(now) || s.fired[e.ID] == day {
			continue
		}
		s.fired[e.ID] = day
		due = append(due, e)
	}
	return due
}

// Done removes an entry whose feed completed.
func (s *Scheduler) Done(id int64) error {
	delete(s.fired, id)
	if err := s.src.DeleteSchedule(id); err != nil {
		return fmt.Errorf("failed to delete schedule %d: %w", id, err)
	}
	return nil
}
