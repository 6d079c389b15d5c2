/**
 * @description
 * Date parsing for spreadsheet cells, AI output and API input. Day-first
 * layouts win over month-first ones.
 *
 * @dependencies
 * - github.com/xuri/excelize/v2: spreadsheet serial date conversion.
 */
package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// maxSaneYear is the point past which a parsed year is assumed to contain
// duplicated digits from data entry.
const maxSaneYear = 3000

// largest serial excelize can represent (31-12-9999)
const maxExcelSerial = 2958465

// Serials typed as text below 01-01-1950 are taken as stray numbers (a bare
// year, a reference) rather than dates.
const minTextSerial = 18264

var (
	digitRun      = regexp.MustCompile(`\d+`)
	numericString = regexp.MustCompile(`^\d+(\.\d+)?$`)
)

// Day-first layouts come before month-first ones; Indian bank documents write
// dates as DD-MM-YYYY.
var dayFirstLayouts = []string{
	"2-1-2006",
	"2/1/2006",
	"2.1.2006",
	"2-Jan-2006",
	"2 Jan 2006",
	"2-January-2006",
	"2 January 2006",
	"2/Jan/2006",
	"2-1-06",
	"2/1/06",
	"2-Jan-06",
	"2-1-2006 15:04:05",
	"2-1-2006 15:04",
	"2/1/2006 15:04:05",
	"2/1/2006 15:04",
	"2.1.2006 15:04:05",
	"2.1.2006 15:04",
	"2-Jan-2006 15:04:05",
	"2-Jan-2006 15:04",
	"2006-01-02",
	"2006/01/02",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"Jan 2, 2006",
	"January 2, 2006",
	"Jan 2 2006",
}

// Layouts that carry a UTC offset. These name an instant, so the calendar
// date depends on the zone it is read in.
var zonedLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02 15:04:05Z07:00",
}

var monthFirstLayouts = []string{
	"1/2/2006",
	"1-2-2006",
	"1/2/06",
}

// ParseDate converts v into a calendar date at midnight UTC. Timestamps with
// an offset keep the date as written.
func ParseDate(v any) (time.Time, bool) {
	return ParseDateIn(v, nil)
}

// ParseDateIn is ParseDate for a business timezone: a timestamp carrying an
// offset is moved into loc before its date is taken, so
// "2024-03-14T18:30:00Z" is 15 March in Asia/Kolkata. A nil loc keeps the
// written date. time.Time values are taken at their own wall-clock date.
func ParseDateIn(v any, loc *time.Location) (time.Time, bool) {
	switch d := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		if d.IsZero() {
			return time.Time{}, false
		}
		return correctYear(dateOnly(d)), true
	case *time.Time:
		if d == nil || d.IsZero() {
			return time.Time{}, false
		}
		return correctYear(dateOnly(*d)), true
	case int:
		return fromSerial(float64(d))
	case int64:
		return fromSerial(float64(d))
	case float64:
		return fromSerial(d)
	case string:
		return parseDateString(d, loc)
	case *string:
		if d == nil {
			return time.Time{}, false
		}
		return parseDateString(*d, loc)
	}
	return time.Time{}, false
}

// FromExcelSerial converts a 1900-system spreadsheet serial to a date.
func FromExcelSerial(serial float64) (time.Time, bool) {
	return fromSerial(serial)
}

func fromSerial(serial float64) (time.Time, bool) {
	if serial <= 0 || serial > maxExcelSerial {
		return time.Time{}, false
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return time.Time{}, false
	}
	return correctYear(dateOnly(t)), true
}

func parseDateString(raw string, loc *time.Location) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if IsBlank(s) {
		return time.Time{}, false
	}

	if numericString.MatchString(s) {
		if len(s) == 8 && (strings.HasPrefix(s, "19") || strings.HasPrefix(s, "20")) {
			if t, err := time.Parse("20060102", s); err == nil {
				return correctYear(t), true
			}
		}
		serial, err := strconv.ParseFloat(s, 64)
		if err != nil || serial < minTextSerial {
			return time.Time{}, false
		}
		return fromSerial(serial)
	}

	s = RepairYearTypo(s)

	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if loc != nil {
				t = t.In(loc)
			}
			return correctYear(dateOnly(t)), true
		}
	}

	for _, layout := range dayFirstLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return correctYear(dateOnly(t)), true
		}
	}
	for _, layout := range monthFirstLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return correctYear(dateOnly(t)), true
		}
	}
	return time.Time{}, false
}

// RepairYearTypo collapses an over-long year that starts with "20" to four
// digits: "15-03-202023" becomes "15-03-2023" and "15-03-20235" becomes
// "15-03-2023". Runs of four digits or fewer are left alone.
func RepairYearTypo(s string) string {
	return digitRun.ReplaceAllStringFunc(s, func(run string) string {
		if len(run) <= 4 || !strings.HasPrefix(run, "20") {
			return run
		}
		if len(run) == 5 {
			return run[:4]
		}
		return "20" + run[len(run)-2:]
	})
}

func correctYear(t time.Time) time.Time {
	if t.Year() <= maxSaneYear {
		return t
	}
	digits := strconv.Itoa(t.Year())
	year, err := strconv.Atoi(digits[:4])
	if err != nil {
		return t
	}
	return time.Date(year, t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
