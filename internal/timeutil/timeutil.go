package timeutil

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidFormat   = errors.New("invalid timestamp format")
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidTimeZone = errors.New("invalid timezone offset")
)

var monthNames = [12]string{
	"Jan", "Feb", "Mar", "Apr", "May", "Jun",
	"Jul", "Aug", "Sep", "Oct", "Nov", "Dec",
}

var daysInMonth = [12]int{31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

func isLeapYear(y int) bool {
	return y%4 == 0 && (y%100 != 0 || y%400 == 0)
}

// daysFromCivil converts a civil date to days since the Unix epoch.
// Howard Hinnant's algorithm; exact for any Gregorian date.
func daysFromCivil(y, m, d int) int64 {
	if m <= 2 {
		y--
	}
	var era int64
	if y >= 0 {
		era = int64(y) / 400
	} else {
		era = (int64(y) - 399) / 400
	}
	yoe := int64(y) - era*400
	var mp int64
	if m > 2 {
		mp = int64(m) - 3
	} else {
		mp = int64(m) + 9
	}
	doy := (153*mp+2)/5 + int64(d) - 1
	doe := yoe*365 + yoe/4 - yoe/100 + doy
	return era*146097 + doe - 719468
}

// civilFromDays is the inverse of daysFromCivil.
func civilFromDays(z int64) (y, m, d int) {
	z += 719468
	var era int64
	if z >= 0 {
		era = z / 146097
	} else {
		era = (z - 146096) / 146097
	}
	doe := z - era*146097
	yoe := (doe - doe/1460 + doe/36524 - doe/146096) / 365
	yy := yoe + era*400
	doy := doe - (365*yoe + yoe/4 - yoe/100)
	mp := (5*doy + 2) / 153
	dd := doy - (153*mp+2)/5 + 1
	var mm int64
	if mp < 10 {
		mm = mp + 3
	} else {
		mm = mp - 9
	}
	if mm <= 2 {
		yy++
	}
	return int(yy), int(mm), int(dd)
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func atoiStrict(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	return digits(s, len(s))
}

func digits(s string, n int) (int, bool) {
	if len(s) < n {
		return 0, false
	}
	v := 0
	for i := 0; i < n; i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		v = v*10 + int(c-'0')
	}
	return v, true
}

// ParseISO8601ToUTCSeconds parses YYYY-MM-DDTHH:MM:SS[.fff...][Z|±HH[:]MM]
// into signed seconds since the Unix epoch. Fractional seconds are truncated.
// A leap second (SS == 60) folds into the next minute arithmetically.
func ParseISO8601ToUTCSeconds(s string) (int64, error) {
	if len(s) < 19 {
		return 0, ErrInvalidFormat
	}
	year, ok := digits(s, 4)
	if !ok || s[4] != '-' {
		return 0, ErrInvalidFormat
	}
	month, ok := digits(s[5:], 2)
	if !ok || s[7] != '-' {
		return 0, ErrInvalidFormat
	}
	day, ok := digits(s[8:], 2)
	if !ok || (s[10] != 'T' && s[10] != 't' && s[10] != ' ') {
		return 0, ErrInvalidFormat
	}
	hour, ok := digits(s[11:], 2)
	if !ok || s[13] != ':' {
		return 0, ErrInvalidFormat
	}
	minute, ok := digits(s[14:], 2)
	if !ok || s[16] != ':' {
		return 0, ErrInvalidFormat
	}
	sec, ok := digits(s[17:], 2)
	if !ok {
		return 0, ErrInvalidFormat
	}

	if month < 1 || month > 12 {
		return 0, ErrInvalidDate
	}
	maxDay := daysInMonth[month-1]
	if month == 2 && isLeapYear(year) {
		maxDay = 29
	}
	if day < 1 || day > maxDay {
		return 0, ErrInvalidDate
	}
	if hour > 23 || minute > 59 || sec > 60 {
		return 0, ErrInvalidDate
	}

	rest := s[19:]

	// Fractional seconds: any number of digits, truncated.
	if len(rest) > 0 && rest[0] == '.' {
		i := 1
		for i < len(rest) && rest[i] >= '0' && rest[i] <= '9' {
			i++
		}
		if i == 1 {
			return 0, ErrInvalidFormat
		}
		rest = rest[i:]
	}

	offsetSec := 0
	switch {
	case rest == "":
		// naive timestamp, treated as UTC
	case rest == "Z" || rest == "z":
	case rest[0] == '+' || rest[0] == '-':
		oh, ok := digits(rest[1:], 2)
		if !ok {
			return 0, ErrInvalidTimeZone
		}
		tail := rest[3:]
		if len(tail) > 0 && tail[0] == ':' {
			tail = tail[1:]
		}
		om := 0
		if len(tail) > 0 {
			om, ok = digits(tail, 2)
			if !ok || len(tail) != 2 {
				return 0, ErrInvalidTimeZone
			}
		}
		if oh > 23 || om > 59 {
			return 0, ErrInvalidTimeZone
		}
		offsetSec = oh*3600 + om*60
		if rest[0] == '-' {
			offsetSec = -offsetSec
		}
	default:
		return 0, ErrInvalidTimeZone
	}

	days := daysFromCivil(year, month, day)
	return days*86400 + int64(hour)*3600 + int64(minute)*60 + int64(sec) - int64(offsetSec), nil
}

// ISODateForOffset returns the YYYY-MM-DD wall-clock date of the given epoch
// second in a fixed UTC offset. Pure civil arithmetic, no zoneinfo.
func ISODateForOffset(epochSec int64, offsetMinutes int) string {
	shifted := epochSec + int64(offsetMinutes)*60
	y, m, d := civilFromDays(floorDiv(shifted, 86400))
	return fmt.Sprintf("%04d-%02d-%02d", y, m, d)
}

// FormatUTCISO renders an epoch second as an ISO-8601 UTC timestamp.
func FormatUTCISO(epochSec int64) string {
	days := floorDiv(epochSec, 86400)
	rem := epochSec - days*86400
	y, m, d := civilFromDays(days)
	return fmt.Sprintf("%04d-%02d-%02dT%02d:%02d:%02dZ", y, m, d, rem/3600, rem%3600/60, rem%60)
}

// FormatOffsetLabel renders a minute offset as "UTC" or "±HH:MM".
func FormatOffsetLabel(offsetMinutes int) string {
	if offsetMinutes == 0 {
		return "UTC"
	}
	sign := "+"
	if offsetMinutes < 0 {
		sign = "-"
		offsetMinutes = -offsetMinutes
	}
	return fmt.Sprintf("%s%02d:%02d", sign, offsetMinutes/60, offsetMinutes%60)
}

// ParseOffsetFlag parses a --tz value: "UTC" or "±HH[:MM]".
func ParseOffsetFlag(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "UTC") {
		return 0, nil
	}
	if s[0] != '+' && s[0] != '-' {
		return 0, ErrInvalidTimeZone
	}
	neg := s[0] == '-'
	body := s[1:]
	hh := ""
	mm := "00"
	if i := strings.IndexByte(body, ':'); i >= 0 {
		hh, mm = body[:i], body[i+1:]
	} else if len(body) > 2 {
		hh, mm = body[:2], body[2:]
	} else {
		hh = body
	}
	h, ok1 := atoiStrict(hh)
	m, ok2 := atoiStrict(mm)
	if !ok1 || !ok2 || len(hh) == 0 || len(hh) > 2 || len(mm) != 2 || h > 23 || m > 59 {
		return 0, ErrInvalidTimeZone
	}
	total := h*60 + m
	if neg {
		total = -total
	}
	return total, nil
}

// FormatDisplayDate converts "2025-11-02" to "Nov 2, 2025".
func FormatDisplayDate(isoDate string) string {
	if len(isoDate) != 10 {
		return isoDate
	}
	y, ok1 := digits(isoDate, 4)
	m, ok2 := digits(isoDate[5:], 2)
	d, ok3 := digits(isoDate[8:], 2)
	if !ok1 || !ok2 || !ok3 || m < 1 || m > 12 {
		return isoDate
	}
	return fmt.Sprintf("%s %d, %d", monthNames[m-1], d, y)
}

// ISOWeek describes an ISO-8601 week (Mon–Sun; a week belongs to the year of
// its Thursday).
type ISOWeek struct {
	Year      int
	Week      int
	StartDate string
	EndDate   string
}

// ISOWeekForDate computes the ISO week containing the given YYYY-MM-DD date.
func ISOWeekForDate(isoDate string) (ISOWeek, bool) {
	if len(isoDate) != 10 {
		return ISOWeek{}, false
	}
	y, ok1 := digits(isoDate, 4)
	m, ok2 := digits(isoDate[5:], 2)
	d, ok3 := digits(isoDate[8:], 2)
	if !ok1 || !ok2 || !ok3 {
		return ISOWeek{}, false
	}
	days := daysFromCivil(y, m, d)
	// 1970-01-01 was a Thursday; ISO weekday Mon=1..Sun=7.
	wd := int((days%7+7)%7) // 0 = Thursday
	isoWd := wd + 4
	if isoWd > 7 {
		isoWd -= 7
	}
	thursday := days + int64(4-isoWd)
	ty, _, _ := civilFromDays(thursday)
	week := int((thursday-daysFromCivil(ty, 1, 1))/7) + 1
	start := days - int64(isoWd-1)
	sy, sm, sd := civilFromDays(start)
	ey, em, ed := civilFromDays(start + 6)
	return ISOWeek{
		Year:      ty,
		Week:      week,
		StartDate: fmt.Sprintf("%04d-%02d-%02d", sy, sm, sd),
		EndDate:   fmt.Sprintf("%04d-%02d-%02d", ey, em, ed),
	}, true
}
