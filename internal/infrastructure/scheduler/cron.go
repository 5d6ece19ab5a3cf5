package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"ContentCurator/internal/ports"
)

// Schedule yields the next activation strictly after a given time.
type Schedule interface {
	Next(after time.Time) time.Time
}

type every time.Duration

func (e every) Next(after time.Time) time.Time {
	return after.Add(time.Duration(e))
}

// clock fires at minute past hour in loc; hour < 0 means every hour.
type clock struct {
	hour   int
	minute int
	loc    *time.Location
}

func (c clock) Next(after time.Time) time.Time {
	t := after.In(c.loc)
	if c.hour < 0 {
		next := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), c.minute, 0, 0, c.loc)
		if !next.After(t) {
			next = next.Add(time.Hour)
		}
		return next
	}
	next := time.Date(t.Year(), t.Month(), t.Day(), c.hour, c.minute, 0, 0, c.loc)
	if !next.After(t) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// weekly fires at midnight on Sunday in loc, like cron's "0 0 * * 0".
type weekly struct {
	loc *time.Location
}

func (w weekly) Next(after time.Time) time.Time {
	t := after.In(w.loc)
	days := (7 - int(t.Weekday())) % 7
	next := time.Date(t.Year(), t.Month(), t.Day()+days, 0, 0, 0, 0, w.loc)
	if !next.After(t) {
		next = next.AddDate(0, 0, 7)
	}
	return next
}

// ParseSchedule understands "@every <duration>", "@hourly", "@daily",
// "@midnight", "@weekly", a bare Go duration, and the cron subset
// "<minute> <hour|*> * * *".
func ParseSchedule(spec string, loc *time.Location) (Schedule, error) {
	if loc == nil {
		loc = time.UTC
	}
	spec = strings.TrimSpace(spec)

	switch spec {
	case "@hourly":
		return clock{hour: -1, minute: 0, loc: loc}, nil
	case "@daily", "@midnight":
		return clock{hour: 0, minute: 0, loc: loc}, nil
	case "@weekly":
		return weekly{loc: loc}, nil
	}

	if rest, ok := strings.CutPrefix(spec, "@every "); ok {
		return parseEvery(rest)
	}
	if d, err := time.ParseDuration(spec); err == nil {
		return parseEvery(d.String())
	}

	fields := strings.Fields(spec)
	if len(fields) != 5 {
		return nil, fmt.Errorf("unsupported schedule %q", spec)
	}
	for _, f := range fields[2:] {
		if f != "*" {
			return nil, fmt.Errorf("unsupported schedule %q: only minute and hour may be set", spec)
		}
	}
	minute, err := strconv.Atoi(fields[0])
	if err != nil || minute < 0 || minute > 59 {
		return nil, fmt.Errorf("schedule %q: bad minute %q", spec, fields[0])
	}
	if fields[1] == "*" {
		return clock{hour: -1, minute: minute, loc: loc}, nil
	}
	hour, err := strconv.Atoi(fields[1])
	if err != nil || hour < 0 || hour > 23 {
		return nil, fmt.Errorf("schedule %q: bad hour %q", spec, fields[1])
	}
	return clock{hour: hour, minute: minute, loc: loc}, nil
}

func parseEvery(raw string) (Schedule, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("schedule interval: %w", err)
	}
	if d < time.Second {
		return nil, fmt.Errorf("schedule interval %s is shorter than a second", d)
	}
	return every(d), nil
}

// CronScheduler runs a job once at start and then at every activation of
// its schedule.
type CronScheduler struct {
	schedule Schedule
	now      func() time.Time

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// NewCronScheduler builds a scheduler configured via cron expression string.
func NewCronScheduler(spec string, loc *time.Location) (*CronScheduler, error) {
	schedule, err := ParseSchedule(spec, loc)
	if err != nil {
		return nil, err
	}
	return &CronScheduler{schedule: schedule, now: time.Now}, nil
}

// Start begins the schedule loop. Jobs run sequentially; an activation
// missed while a job is still running is skipped.
func (c *CronScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stop != nil {
		return nil
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	c.stop, c.done = stop, done

	go func() {
		defer close(done)
		job(c.now())
		for {
			wait := c.schedule.Next(c.now()).Sub(c.now())
			timer := time.NewTimer(wait)
			select {
			case t := <-timer.C:
				job(t)
			case <-ctx.Done():
				timer.Stop()
				return
			case <-stop:
				timer.Stop()
				return
			}
		}
	}()

	return nil
}

// Stop halts the loop and waits for a running job to return or ctx to end.
func (c *CronScheduler) Stop(ctx context.Context) error {
	c.mu.Lock()
	stop, done := c.stop, c.done
	c.stop, c.done = nil, nil
	c.mu.Unlock()

	if stop == nil {
		return nil
	}
	close(stop)
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
