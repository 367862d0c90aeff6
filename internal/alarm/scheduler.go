// Package alarm implements the durable alarm scheduler. Records persist
// through the storage layer so grace-end and pause-end alarms survive process
// restarts; in-process time.Timers deliver the fires.
package alarm

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/goodtune/timewarden/internal/browser"
	"github.com/goodtune/timewarden/internal/period"
	"github.com/goodtune/timewarden/internal/storage"
)

// periodUnit is the wall-clock length of one period minute. Tests shrink it.
var periodUnit = time.Minute

// Scheduler implements browser.AlarmStore backed by persistent records.
type Scheduler struct {
	records storage.AlarmRecordStore
	clock   period.Clock
	logger  zerolog.Logger
	events  chan browser.Event

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewScheduler creates a scheduler over the given record store.
func NewScheduler(records storage.AlarmRecordStore, clock period.Clock, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		records: records,
		clock:   clock,
		logger:  logger.With().Str("component", "alarm").Logger(),
		events:  make(chan browser.Event, 64),
		timers:  make(map[string]*time.Timer),
	}
}

// Events returns the AlarmFired stream.
func (s *Scheduler) Events() <-chan browser.Event { return s.events }

// Start reloads persisted records. One-shot alarms already due fire
// immediately (they were missed while the process was down); everything else
// is re-armed.
func (s *Scheduler) Start(ctx context.Context) error {
	records, err := s.records.List(ctx)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	for _, record := range records {
		if record.PeriodMinutes > 0 {
			s.armPeriodic(record.Name, record.PeriodMinutes)
			continue
		}
		if !record.When.After(now) {
			s.logger.Info().Str("name", record.Name).Time("when", record.When).
				Msg("Firing alarm missed while down")
			s.fireOneShot(record.Name)
			continue
		}
		s.armOneShot(record.Name, record.When.Sub(now))
	}

	s.logger.Info().Int("alarms", len(records)).Msg("Alarm scheduler started")
	return nil
}

// Create schedules an alarm, replacing any existing alarm of the same name.
func (s *Scheduler) Create(ctx context.Context, alarm browser.Alarm) error {
	record := storage.AlarmRecord{
		Name:          alarm.Name,
		When:          alarm.When,
		PeriodMinutes: alarm.PeriodMinutes,
	}
	if err := s.records.Put(ctx, record); err != nil {
		return err
	}

	if alarm.PeriodMinutes > 0 {
		s.armPeriodic(alarm.Name, alarm.PeriodMinutes)
		return nil
	}
	delay := alarm.When.Sub(s.clock.Now())
	if delay < 0 {
		delay = 0
	}
	s.armOneShot(alarm.Name, delay)
	return nil
}

// Clear cancels an alarm. Best-effort: a racing fire is tolerated because
// handlers re-check state idempotently.
func (s *Scheduler) Clear(ctx context.Context, name string) error {
	s.mu.Lock()
	if timer, ok := s.timers[name]; ok {
		timer.Stop()
		delete(s.timers, name)
	}
	s.mu.Unlock()
	return s.records.Delete(ctx, name)
}

// GetAll enumerates the scheduled alarms.
func (s *Scheduler) GetAll(ctx context.Context) ([]browser.Alarm, error) {
	records, err := s.records.List(ctx)
	if err != nil {
		return nil, err
	}
	alarms := make([]browser.Alarm, 0, len(records))
	for _, r := range records {
		alarms = append(alarms, browser.Alarm{
			Name:          r.Name,
			When:          r.When,
			PeriodMinutes: r.PeriodMinutes,
		})
	}
	return alarms, nil
}

// Stop cancels all in-process timers. Persisted records remain for the next
// start.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, timer := range s.timers {
		timer.Stop()
		delete(s.timers, name)
	}
}

func (s *Scheduler) armOneShot(name string, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if timer, ok := s.timers[name]; ok {
		timer.Stop()
	}
	s.timers[name] = time.AfterFunc(delay, func() { s.fireOneShot(name) })
}

func (s *Scheduler) armPeriodic(name string, periodMinutes float64) {
	interval := time.Duration(periodMinutes * float64(periodUnit))
	if interval <= 0 {
		interval = periodUnit
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if timer, ok := s.timers[name]; ok {
		timer.Stop()
	}
	var fire func()
	fire = func() {
		s.emit(name)
		s.mu.Lock()
		if _, live := s.timers[name]; live {
			s.timers[name] = time.AfterFunc(interval, fire)
		}
		s.mu.Unlock()
	}
	s.timers[name] = time.AfterFunc(interval, fire)
}

func (s *Scheduler) fireOneShot(name string) {
	s.mu.Lock()
	delete(s.timers, name)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.records.Delete(ctx, name); err != nil {
		s.logger.Warn().Err(err).Str("name", name).Msg("Failed to delete fired alarm record")
	}
	s.emit(name)
}

func (s *Scheduler) emit(name string) {
	select {
	case s.events <- browser.AlarmFired{Name: name}:
	default:
		s.logger.Warn().Str("name", name).Msg("Alarm event dropped, consumer too slow")
	}
}
