package timeutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseISO8601ToUTCSeconds(t *testing.T) {
	testCases := []struct {
		in   string
		want int64
	}{
		{"1970-01-01T00:00:00Z", 0},
		{"2025-11-01T10:00:00Z", 1761991200},
		{"2025-11-01T10:00:00.123456789Z", 1761991200},
		{"2025-11-01T19:00:00+09:00", 1761991200},
		{"2025-11-01T04:30:00-0530", 1761991200},
		{"2025-11-01T10:00:00", 1761991200}, // naive → UTC
		{"1969-12-31T23:59:59Z", -1},
		{"2016-12-31T23:59:60Z", 1483228800}, // leap second folds forward
	}

	for _, tc := range testCases {
		got, err := ParseISO8601ToUTCSeconds(tc.in)
		require.NoError(t, err, "input %q", tc.in)
		assert.Equal(t, tc.want, got, "input %q", tc.in)
	}
}

func TestParseISO8601Errors(t *testing.T) {
	testCases := []struct {
		in   string
		want error
	}{
		{"not a timestamp", ErrInvalidFormat},
		{"2025-11-01", ErrInvalidFormat},
		{"2025-13-01T00:00:00Z", ErrInvalidDate},
		{"2025-02-30T00:00:00Z", ErrInvalidDate},
		{"2025-11-01T25:00:00Z", ErrInvalidDate},
		{"2025-11-01T10:00:00+9", ErrInvalidTimeZone},
		{"2025-11-01T10:00:00Q", ErrInvalidTimeZone},
		{"2025-11-01T10:00:00.Z", ErrInvalidFormat},
	}

	for _, tc := range testCases {
		_, err := ParseISO8601ToUTCSeconds(tc.in)
		assert.ErrorIs(t, err, tc.want, "input %q", tc.in)
	}
}

func TestISODateForOffset(t *testing.T) {
	ts, err := ParseISO8601ToUTCSeconds("2025-01-01T01:30:00Z")
	require.NoError(t, err)
	assert.Equal(t, "2024-12-31", ISODateForOffset(ts, -120))
	assert.Equal(t, "2025-01-01", ISODateForOffset(ts, 0))

	ts, err = ParseISO8601ToUTCSeconds("2025-11-01T23:30:00Z")
	require.NoError(t, err)
	assert.Equal(t, "2025-11-02", ISODateForOffset(ts, 9*60))
}

func TestFormatUTCISO(t *testing.T) {
	assert.Equal(t, "1970-01-01T00:00:00Z", FormatUTCISO(0))
	assert.Equal(t, "2025-11-01T10:00:00Z", FormatUTCISO(1761991200))
	assert.Equal(t, "1969-12-31T23:59:59Z", FormatUTCISO(-1))
}

func TestFormatOffsetLabel(t *testing.T) {
	testCases := []struct {
		minutes int
		want    string
	}{
		{0, "UTC"},
		{540, "+09:00"},
		{-330, "-05:30"},
		{60, "+01:00"},
	}
	for _, tc := range testCases {
		if got := FormatOffsetLabel(tc.minutes); got != tc.want {
			t.Errorf("FormatOffsetLabel(%d) = %q, want %q", tc.minutes, got, tc.want)
		}
	}
}

func TestParseOffsetFlag(t *testing.T) {
	testCases := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"UTC", 0, false},
		{"utc", 0, false},
		{"+09:00", 540, false},
		{"+0900", 540, false},
		{"+9", 540, false},
		{"-05:30", -330, false},
		{"-0530", -330, false},
		{"9", 0, true},
		{"+25:00", 0, true},
		{"+09:75", 0, true},
		{"bogus", 0, true},
	}

	for _, tc := range testCases {
		got, err := ParseOffsetFlag(tc.in)
		if tc.wantErr {
			assert.Error(t, err, "input %q", tc.in)
			continue
		}
		require.NoError(t, err, "input %q", tc.in)
		assert.Equal(t, tc.want, got, "input %q", tc.in)
	}
}

func TestFormatDisplayDate(t *testing.T) {
	assert.Equal(t, "Nov 2, 2025", FormatDisplayDate("2025-11-02"))
	assert.Equal(t, "Jan 1, 2025", FormatDisplayDate("2025-01-01"))
	assert.Equal(t, "garbage", FormatDisplayDate("garbage"))
}

func TestISOWeekForDate(t *testing.T) {
	testCases := []struct {
		date  string
		year  int
		week  int
		start string
		end   string
	}{
		// Jan 1 2025 is a Wednesday; its week belongs to 2025.
		{"2025-01-01", 2025, 1, "2024-12-30", "2025-01-05"},
		// Dec 29 2024 is a Sunday; still week 52 of 2024.
		{"2024-12-29", 2024, 52, "2024-12-23", "2024-12-29"},
		// Dec 30 2024 is a Monday belonging to 2025 week 1.
		{"2024-12-30", 2025, 1, "2024-12-30", "2025-01-05"},
		// Jan 1 2027 is a Friday; belongs to 2026 week 53.
		{"2027-01-01", 2026, 53, "2026-12-28", "2027-01-03"},
		{"2025-11-01", 2025, 44, "2025-10-27", "2025-11-02"},
	}

	for _, tc := range testCases {
		wk, ok := ISOWeekForDate(tc.date)
		require.True(t, ok, "date %q", tc.date)
		assert.Equal(t, tc.year, wk.Year, "date %q", tc.date)
		assert.Equal(t, tc.week, wk.Week, "date %q", tc.date)
		assert.Equal(t, tc.start, wk.StartDate, "date %q", tc.date)
		assert.Equal(t, tc.end, wk.EndDate, "date %q", tc.date)
	}
}
