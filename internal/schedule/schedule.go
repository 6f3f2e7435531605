// Package schedule triggers cycles at fixed local times of day.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/spigell/job-hunter/internal/logger"
)

const DefaultTimezone = "America/Manaus"

var DefaultTimes = []string{"08:00", "18:00", "20:00"}

type TimeOfDay struct {
	Hour   int
	Minute int
}

func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q: expected HH:MM", s)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (t TimeOfDay) String() string { return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute) }

// Spec returns the daily cron expression for t.
func (t TimeOfDay) Spec() string { return fmt.Sprintf("%d %d * * *", t.Minute, t.Hour) }

// Schedule is the set of daily run times in one time zone.
type Schedule struct {
	Location *time.Location
	Times    []TimeOfDay
}

func New(timezone string, times []string) (*Schedule, error) {
	if strings.TrimSpace(timezone) == "" {
		timezone = DefaultTimezone
	}

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load time zone %q: %w", timezone, err)
	}

	if len(times) == 0 {
		return nil, errors.New("schedule needs at least one time of day")
	}

	s := &Schedule{Location: loc}
	seen := map[TimeOfDay]bool{}
	for _, raw := range times {
		tod, err := ParseTimeOfDay(raw)
		if err != nil {
			return nil, err
		}
		if seen[tod] {
			continue
		}
		seen[tod] = true
		s.Times = append(s.Times, tod)
	}

	sort.Slice(s.Times, func(i, j int) bool {
		a, b := s.Times[i], s.Times[j]
		return a.Hour < b.Hour || (a.Hour == b.Hour && a.Minute < b.Minute)
	})

	return s, nil
}

// NextRuns returns the next occurrence of every time after now, earliest first.
func (s *Schedule) NextRuns(now time.Time) []time.Time {
	local := now.In(s.Location)
	runs := make([]time.Time, 0, len(s.Times))

	for _, tod := range s.Times {
		sched, err := cron.ParseStandard(tod.Spec())
		if err != nil {
			continue
		}
		runs = append(runs, sched.Next(local))
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].Before(runs[j]) })
	return runs
}

// Next returns the earliest run after now.
func (s *Schedule) Next(now time.Time) time.Time {
	runs := s.NextRuns(now)
	if len(runs) == 0 {
		return time.Time{}
	}
	return runs[0]
}

func (s *Schedule) String() string {
	parts := make([]string, 0, len(s.Times))
	for _, t := range s.Times {
		parts = append(parts, t.String())
	}
	return strings.Join(parts, ", ") + " (" + s.Location.String() + ")"
}

// AliveMessage is the startup notice listing the upcoming runs.
func AliveMessage(s *Schedule, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🤖 *Job Hunter Bot* started! Time zone: %s.\nNext searches:", s.Location)
	for _, run := range s.NextRuns(now) {
		fmt.Fprintf(&b, "\n- %s", run.Format("02/01 15:04"))
	}
	return b.String()
}

// SubmitFunc hands a cycle to the dispatcher.
type SubmitFunc func(source string) (string, error)

// Scheduler submits a cycle at each configured time of day.
type Scheduler struct {
	schedule *Schedule
	submit   SubmitFunc
	logger   *zap.Logger
}

func NewScheduler(schedule *Schedule, submit SubmitFunc, logger *zap.Logger) *Scheduler {
	return &Scheduler{schedule: schedule, submit: submit, logger: logger}
}

// Run starts the cron loop and blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	c := cron.New(
		cron.WithLocation(s.schedule.Location),
		cron.WithLogger(cronLogger{s.logger.Sugar()}),
	)

	for _, tod := range s.schedule.Times {
		tod := tod
		if _, err := c.AddFunc(tod.Spec(), func() { s.fire(tod) }); err != nil {
			return fmt.Errorf("schedule %s: %w", tod, err)
		}
	}

	c.Start()
	s.logger.Info("scheduler started",
		zap.String("schedule", s.schedule.String()),
		zap.Time("next_run", s.schedule.Next(time.Now())),
	)

	<-ctx.Done()
	<-c.Stop().Done()
	s.logger.Info("scheduler stopped")

	return nil
}

func (s *Scheduler) fire(tod TimeOfDay) {
	id, err := s.submit("schedule")
	if err != nil {
		s.logger.Warn("scheduled cycle was not queued", zap.String("time", tod.String()), zap.Error(err))
		return
	}
	s.logger.Info("scheduled cycle queued", zap.String("time", tod.String()), zap.String(logger.FieldTaskID, id))
}

// cronLogger routes cron's own messages to zap.
type cronLogger struct {
	sugar *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}
