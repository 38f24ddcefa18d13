package format

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/text/language"
)

func newObserved(t *testing.T) (*Formatter, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.WarnLevel)
	return New(zap.New(core), language.English, ""), logs
}

func TestDateUsesBusinessTime(t *testing.T) {
	f, _ := newObserved(t)
	ts := time.Date(2024, 5, 1, 22, 30, 0, 0, time.UTC)
	require.Equal(t, "2024/05/02 01:30", f.Date(&ts))
	require.Empty(t, f.Date(nil))
	require.Empty(t, f.Date(&time.Time{}))
}

func TestDateStringFallsBackToEmptyAndLogs(t *testing.T) {
	f, logs := newObserved(t)
	require.Equal(t, "2024/05/01 03:00", f.DateString("2024-05-01"))
	require.Empty(t, f.DateString("yesterday-ish"))
	require.Equal(t, 1, logs.FilterMessage("failed to format date").Len())
}

func TestCurrency(t *testing.T) {
	f, logs := newObserved(t)
	out := f.Currency(decimal.RequireFromString("1250.5"))
	require.Contains(t, out, "1250.50")
	require.Zero(t, logs.Len())

	require.Equal(t, "99.5 NOPE", f.CurrencyIn(decimal.RequireFromString("99.5"), "NOPE"))
	require.Equal(t, 1, logs.FilterMessage("failed to format currency").Len())
}
