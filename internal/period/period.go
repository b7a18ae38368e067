// Package period computes which funding period a project is in.
//
// Each project type has its own Calendar. Yearly projects follow the
// April to March fiscal year; invoice projects follow their explicit
// installment ranges. A manual override on the project always wins.
// Everything here is pure: today is passed in, never read from the clock.
package period

import (
	"fmt"
	"time"

	"labfunds/internal/core"
)

// Expired is the index returned once a project has no current period.
const Expired = -1

// FiscalStartMonth is the first month of a fiscal year.
const FiscalStartMonth = time.April

// Calendar maps a project and a day to a period index.
type Calendar interface {
	// Current returns the index of the period containing today, or Expired.
	Current(p *core.Project, today core.Date) int
	// Count returns the number of periods the project spans.
	Count(p *core.Project) int
	// Bounds returns the first and last day of period i.
	Bounds(p *core.Project, i int) (core.Date, core.Date, bool)
	// Label names period i for humans.
	Label(p *core.Project, i int) string
}

var calendars = map[core.ProjectType]Calendar{
	core.Yearly:  FiscalYearCalendar{},
	core.Invoice: InstallmentCalendar{},
}

// CalendarFor returns the calendar registered for a project type.
func CalendarFor(t core.ProjectType) (Calendar, error) {
	c, ok := calendars[t]
	if !ok {
		return nil, fmt.Errorf("%w: no calendar for %q", core.ErrInvalidType, t)
	}
	return c, nil
}

// CurrentIndex returns the current period of p on today, honouring the
// override. Unknown project types are treated as expired.
func CurrentIndex(p *core.Project, today time.Time) int {
	if p.Override != nil {
		return p.Override.Index
	}
	c, err := CalendarFor(p.Type)
	if err != nil {
		return Expired
	}
	return c.Current(p, core.NewDate(today))
}

// Count returns the number of periods of p, zero for unknown types.
func Count(p *core.Project) int {
	c, err := CalendarFor(p.Type)
	if err != nil {
		return 0
	}
	return c.Count(p)
}

// InBounds reports whether i addresses a period of p.
func InBounds(p *core.Project, i int) bool {
	return i >= 0 && i < Count(p)
}

// IsLast reports whether i is the final period of p.
func IsLast(p *core.Project, i int) bool {
	return i >= 0 && i+1 == Count(p)
}

// Bounds returns the first and last day of period i of p; ok is false
// when i is out of range or the type has no calendar.
func Bounds(p *core.Project, i int) (core.Date, core.Date, bool) {
	c, err := CalendarFor(p.Type)
	if err != nil || !InBounds(p, i) {
		return core.Date{}, core.Date{}, false
	}
	return c.Bounds(p, i)
}

// Label names period i of p for display, e.g. "FY 2024-25" or
// "Installment 2". Expired reads as "expired".
func Label(p *core.Project, i int) string {
	if i == Expired {
		return "expired"
	}
	c, err := CalendarFor(p.Type)
	if err != nil {
		return fmt.Sprintf("period %d", i+1)
	}
	return c.Label(p, i)
}

// FiscalYear returns the calendar year in which d's fiscal year starts.
func FiscalYear(d core.Date) int {
	if d.Time.Month() < FiscalStartMonth {
		return d.Year() - 1
	}
	return d.Year()
}

// FiscalYearCalendar splits a project into April to March years.
type FiscalYearCalendar struct{}

func (FiscalYearCalendar) Current(p *core.Project, today core.Date) int {
	if today.After(p.EndDate) {
		return Expired
	}
	return max(0, FiscalYear(today)-FiscalYear(p.StartDate))
}

func (FiscalYearCalendar) Count(p *core.Project) int {
	if p.StartDate.IsZero() || p.EndDate.IsZero() {
		return 0
	}
	return max(0, FiscalYear(p.EndDate)-FiscalYear(p.StartDate)+1)
}

func (c FiscalYearCalendar) Bounds(p *core.Project, i int) (core.Date, core.Date, bool) {
	if i < 0 || i >= c.Count(p) {
		return core.Date{}, core.Date{}, false
	}
	fy := FiscalYear(p.StartDate) + i
	start := core.Date{Time: time.Date(fy, FiscalStartMonth, 1, 0, 0, 0, 0, time.UTC)}
	end := core.Date{Time: time.Date(fy+1, FiscalStartMonth, 0, 0, 0, 0, 0, time.UTC)}
	if start.Before(p.StartDate) {
		start = p.StartDate
	}
	if end.After(p.EndDate) {
		end = p.EndDate
	}
	return start, end, true
}

func (FiscalYearCalendar) Label(p *core.Project, i int) string {
	fy := FiscalYear(p.StartDate) + i
	return fmt.Sprintf("FY %d-%02d", fy, (fy+1)%100)
}

// InstallmentCalendar uses the project's installment ranges, inclusive on
// both ends. Days before the first or between installments have no period.
type InstallmentCalendar struct{}

func (InstallmentCalendar) Current(p *core.Project, today core.Date) int {
	for i, in := range p.Installments {
		if !today.Before(in.StartDate) && !today.After(in.EndDate) {
			return i
		}
	}
	return Expired
}

func (InstallmentCalendar) Count(p *core.Project) int {
	return len(p.Installments)
}

func (InstallmentCalendar) Bounds(p *core.Project, i int) (core.Date, core.Date, bool) {
	if i < 0 || i >= len(p.Installments) {
		return core.Date{}, core.Date{}, false
	}
	return p.Installments[i].StartDate, p.Installments[i].EndDate, true
}

func (InstallmentCalendar) Label(_ *core.Project, i int) string {
	return fmt.Sprintf("Installment %d", i+1)
}
