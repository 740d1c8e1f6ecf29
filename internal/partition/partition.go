// Package partition maps (symbol, calendar day) pairs onto the remote
// store's collection identifiers.
package partition

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"depthflow/internal/errs"
)

const dayFormat = "20060102"

// symbolPattern is the set of characters safe for the store's class
// identifier syntax. Anything else is rejected up front, never mangled.
var symbolPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Key addresses one partition: all snapshots for one symbol on one UTC day.
type Key struct {
	Symbol string
	Day    time.Time
}

// NewKey validates the symbol and truncates day to midnight UTC.
func NewKey(symbol string, day time.Time) (Key, error) {
	if !ValidSymbol(symbol) {
		return Key{}, errs.Validationf("symbol %q contains characters unsafe for partition identifiers", symbol)
	}
	return Key{Symbol: symbol, Day: DayUTC(day)}, nil
}

// ValidSymbol reports whether symbol is usable in a partition identifier.
func ValidSymbol(symbol string) bool {
	return symbolPattern.MatchString(symbol)
}

// Class returns the store collection identifier, ob_<symbol>_<yyyymmdd>.
// The symbol is case-normalized so BTCUSDT and btcusdt address the same
// partition.
func (k Key) Class() string {
	return fmt.Sprintf("ob_%s_%s", strings.ToLower(k.Symbol), k.Day.UTC().Format(dayFormat))
}

func (k Key) String() string { return k.Class() }

// DayUTC truncates t to midnight UTC.
func DayUTC(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// TodayUTC returns the current UTC calendar day.
func TodayUTC() time.Time { return DayUTC(time.Now()) }

// YesterdayUTC returns the previous UTC calendar day.
func YesterdayUTC() time.Time { return TodayUTC().AddDate(0, 0, -1) }

// CutoffUTC computes the retention cutoff day: now minus retentionDays,
// in whole calendar days. Day truncation happens before the subtraction so
// a sweep near midnight cannot drift across partial days.
func CutoffUTC(now time.Time, retentionDays int) time.Time {
	return DayUTC(now).AddDate(0, 0, -retentionDays)
}
