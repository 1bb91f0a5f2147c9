package domain

import (
	"time"

	cronlib "github.com/robfig/cron/v3"
)

// cronParser supports standard 5-field cron and descriptors like "@every 6h".
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// Built-in default applied by the schedule store when no definition has been
// persisted yet. This is the only implicit default in the system.
const (
	DefaultCronExpression = "0 */6 * * *"
	DefaultTimeZoneID     = "UTC"
)

// CronScheduleDefinition is the single persisted scan schedule. Construction
// validates cron syntax and time-zone resolvability; invalid input is a
// validation failure, never a silently substituted fallback.
type CronScheduleDefinition struct {
	Expression string
	TimeZoneID string
	LastRun    *time.Time

	schedule cronlib.Schedule
	location *time.Location
}

// NewCronSchedule validates and constructs a schedule definition.
func NewCronSchedule(expression, timeZoneID string) (*CronScheduleDefinition, error) {
	schedule, err := cronParser.Parse(expression)
	if err != nil {
		return nil, Validationf("invalid cron expression %q: %v", expression, err)
	}
	location, err := time.LoadLocation(timeZoneID)
	if err != nil {
		return nil, Validationf("time zone %q is not resolvable", timeZoneID)
	}
	return &CronScheduleDefinition{
		Expression: expression,
		TimeZoneID: timeZoneID,
		schedule:   schedule,
		location:   location,
	}, nil
}

// DefaultCronSchedule returns the built-in schedule used when none exists.
func DefaultCronSchedule() *CronScheduleDefinition {
	def, err := NewCronSchedule(DefaultCronExpression, DefaultTimeZoneID)
	if err != nil {
		// The defaults are constants validated by tests.
		panic(err)
	}
	return def
}

// NextRun computes the next fire time. A schedule that has never run is due
// immediately; otherwise the next fire follows the last run in the
// schedule's time zone.
func (d *CronScheduleDefinition) NextRun(now time.Time) time.Time {
	if d.LastRun == nil {
		return now.UTC()
	}
	return d.schedule.Next(d.LastRun.In(d.location)).UTC()
}

// IsDue reports whether a tick at now should fire.
func (d *CronScheduleDefinition) IsDue(now time.Time) bool {
	return !now.UTC().Before(d.NextRun(now))
}

// MarkRun advances the schedule after a completed tick.
func (d *CronScheduleDefinition) MarkRun(now time.Time) {
	at := now.UTC()
	d.LastRun = &at
}
