package query

import (
	"strings"
	"time"
)

// Period is a reporting window preset.
type Period string

const (
	PeriodWeek    Period = "week"
	PeriodMonth   Period = "month"
	PeriodQuarter Period = "quarter"
	PeriodYear    Period = "year"
)

// ParsePeriod maps unknown or empty input to PeriodMonth.
func ParsePeriod(raw string) Period {
	switch p := Period(strings.ToLower(strings.TrimSpace(raw))); p {
	case PeriodWeek, PeriodMonth, PeriodQuarter, PeriodYear:
		return p
	default:
		return PeriodMonth
	}
}

// PeriodStart returns the first day of the preset window ending at now.
func PeriodStart(p Period, now time.Time) time.Time {
	today := StartOfDay(now)
	switch ParsePeriod(string(p)) {
	case PeriodWeek:
		return today.AddDate(0, 0, -7)
	case PeriodQuarter:
		return today.AddDate(0, -3, 0)
	case PeriodYear:
		return today.AddDate(-1, 0, 0)
	default:
		return today.AddDate(0, -1, 0)
	}
}
