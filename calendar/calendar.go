/*
Package calendar provides the period and clock helpers used by the installment engine.

PURPOSE:
  Installments are keyed by (ano, mes) billing periods and every contract date is derived
  from month arithmetic. This package owns that arithmetic so the generation engine, the
  lifecycle engine and the reports all agree on it.

KEY CONCEPTS:
  - Clock: injectable wall clock (tests pin it, production uses time.Now)
  - Period: a (year, month) billing period
  - AddMonths: month addition that clamps to the last day of the target month
    (Jan 31 + 1 month = Feb 28), never overflowing into the next month the way
    time.AddDate does

MONTH NAMES:
  Periods are displayed with lowercase three-letter Portuguese abbreviations
  (jan, fev, mar, abr, mai, jun, jul, ago, set, out, nov, dez).

SEE ALSO:
  - parcelas/generation.go: installment schedule built from AddMonths
  - report/annual.go: month columns ordered with MonthShortName
*/
package calendar

import (
	"fmt"
	"strings"
	"time"
)

// StampLayout is the dd/mm/yy HH:MM layout used for lifecycle stamps shown to users.
const StampLayout = "02/01/06 15:04"

// ISOLayout is how dates are persisted (no zone suffix).
const ISOLayout = "2006-01-02T15:04:05"

var monthShortNames = [12]string{
	"jan", "fev", "mar", "abr", "mai", "jun",
	"jul", "ago", "set", "out", "nov", "dez",
}

// =============================================================================
// CLOCK
// =============================================================================

// Clock returns the current time.
type Clock func() time.Time

// Calendar answers "now"-relative questions against a Clock.
type Calendar struct {
	Now Clock
}

// New returns a Calendar on the system clock.
func New() Calendar {
	return Calendar{Now: time.Now}
}

// Fixed returns a Calendar whose clock is pinned to t.
func Fixed(t time.Time) Calendar {
	return Calendar{Now: func() time.Time { return t }}
}

func (c Calendar) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

// CurrentYear returns the year of the clock.
func (c Calendar) CurrentYear() int { return c.now().Year() }

// CurrentMonth returns the month number (1..12) of the clock.
func (c Calendar) CurrentMonth() int { return int(c.now().Month()) }

// CurrentMonthShortName returns the abbreviation of the clock's month, e.g. "out".
func (c Calendar) CurrentMonthShortName() string {
	name, _ := MonthShortName(c.CurrentMonth())
	return name
}

// CurrentPeriod returns the billing period containing the clock.
func (c Calendar) CurrentPeriod() Period {
	n := c.now()
	return Period{Year: n.Year(), Month: int(n.Month())}
}

// Today returns the clock's date at midnight.
func (c Calendar) Today() time.Time { return Midnight(c.now()) }

// NowStamp formats the clock as dd/mm/yy HH:MM.
func (c Calendar) NowStamp() string { return c.now().Format(StampLayout) }

// Timestamp returns the clock truncated to seconds.
func (c Calendar) Timestamp() time.Time { return c.now().Truncate(time.Second) }

// =============================================================================
// MONTH NAMES
// =============================================================================

// MonthShortName maps 1..12 to its abbreviation.
func MonthShortName(month int) (string, error) {
	if month < 1 || month > 12 {
		return "", fmt.Errorf("invalid month %d", month)
	}
	return monthShortNames[month-1], nil
}

// MonthNumber maps an abbreviation (case-insensitive, trimmed) to 1..12.
func MonthNumber(shortName string) (int, error) {
	s := strings.ToLower(strings.TrimSpace(shortName))
	for i, name := range monthShortNames {
		if name == s {
			return i + 1, nil
		}
	}
	return 0, fmt.Errorf("unknown month %q", shortName)
}

// MonthLabel is MonthShortName with a fallback label for out-of-range months.
func MonthLabel(month int) string {
	if name, err := MonthShortName(month); err == nil {
		return name
	}
	return fmt.Sprintf("Mês %d", month)
}

// =============================================================================
// DATE ARITHMETIC
// =============================================================================

// Midnight drops the time-of-day component, keeping the location.
func Midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// Date returns the calendar date of t, read in t's own location, as UTC midnight.
// Dates from different locations compare by their wall-clock day, not by instant.
func Date(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// AddMonths adds n months, clamping the day to the last day of the resulting month.
func AddMonths(t time.Time, n int) time.Time {
	total := int(t.Month()) - 1 + n
	year := t.Year() + floorDiv(total, 12)
	month := time.Month(floorMod(total, 12) + 1)

	day := t.Day()
	if last := DaysIn(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// AddDays adds n calendar days.
func AddDays(t time.Time, n int) time.Time { return t.AddDate(0, 0, n) }

// EndAfterMonths returns start + n months - 1 day, the inclusive end of an n-month term.
func EndAfterMonths(start time.Time, n int) time.Time {
	return AddDays(AddMonths(start, n), -1)
}

// MonthsBetween returns the whole months from start to end, the way
// relativedelta(end, start) reports years*12 + months.
func MonthsBetween(start, end time.Time) int {
	months := (end.Year()-start.Year())*12 + int(end.Month()) - int(start.Month())
	if months > 0 && AddMonths(start, months).After(end) {
		months--
	}
	if months < 0 && AddMonths(start, months).Before(end) {
		months++
	}
	return months
}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// DaysBetween counts calendar days from -> to (negative when to is earlier).
// Each side is reduced to its own wall-clock date, so locations and DST do not shift it.
func DaysBetween(from, to time.Time) int {
	return int(Date(to).Sub(Date(from)).Hours() / 24)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorMod(a, b int) int { return a - floorDiv(a, b)*b }

// =============================================================================
// PERIOD - (year, month) billing period
// =============================================================================

// Period identifies the billing month an installment covers.
type Period struct {
	Year  int
	Month int
}

// PeriodOf returns the period containing t.
func PeriodOf(t time.Time) Period { return Period{Year: t.Year(), Month: int(t.Month())} }

// Validate rejects months outside 1..12.
func (p Period) Validate() error {
	if p.Month < 1 || p.Month > 12 {
		return fmt.Errorf("invalid month %d", p.Month)
	}
	if p.Year < 1 {
		return fmt.Errorf("invalid year %d", p.Year)
	}
	return nil
}

// Start returns the first day of the period in UTC.
func (p Period) Start() time.Time {
	return time.Date(p.Year, time.Month(p.Month), 1, 0, 0, 0, 0, time.UTC)
}

// Next returns the following period.
func (p Period) Next() Period { return PeriodOf(AddMonths(p.Start(), 1)) }

// Before reports whether p is strictly earlier than other.
func (p Period) Before(other Period) bool {
	if p.Year != other.Year {
		return p.Year < other.Year
	}
	return p.Month < other.Month
}

func (p Period) String() string {
	return fmt.Sprintf("%s/%d", MonthLabel(p.Month), p.Year)
}
