package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateRangeType_Resolve(t *testing.T) {
	sunday := time.Date(2024, time.March, 17, 15, 4, 5, 0, time.UTC)
	newYearsEve := time.Date(2024, time.December, 31, 23, 30, 0, 0, time.UTC)
	monday := time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC)
	leapDay := time.Date(2024, time.February, 29, 8, 0, 0, 0, time.UTC)
	offset := time.FixedZone("UTC-5", -5*3600)

	day := func(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }
	endOf := func(y int, m time.Month, d int) time.Time {
		return time.Date(y, m, d, 23, 59, 59, 999_000_000, time.UTC)
	}

	tests := []struct {
		now    time.Time
		want   DateRange
		name   string
		preset DateRangeType
	}{
		{
			name:   "today",
			preset: RangeToday,
			now:    sunday,
			want:   DateRange{Start: day(2024, time.March, 17), End: endOf(2024, time.March, 17)},
		},
		{
			name:   "week of a sunday starts the monday before",
			preset: RangeThisWeek,
			now:    sunday,
			want:   DateRange{Start: day(2024, time.March, 11), End: endOf(2024, time.March, 17)},
		},
		{
			name:   "week of a monday starts that day",
			preset: RangeThisWeek,
			now:    monday,
			want:   DateRange{Start: day(2024, time.April, 1), End: endOf(2024, time.April, 7)},
		},
		{
			name:   "month",
			preset: RangeThisMonth,
			now:    sunday,
			want:   DateRange{Start: day(2024, time.March, 1), End: endOf(2024, time.March, 31)},
		},
		{
			name:   "leap february",
			preset: RangeThisMonth,
			now:    leapDay,
			want:   DateRange{Start: day(2024, time.February, 1), End: endOf(2024, time.February, 29)},
		},
		{
			name:   "year",
			preset: RangeThisYear,
			now:    sunday,
			want:   DateRange{Start: day(2024, time.January, 1), End: endOf(2024, time.December, 31)},
		},
		{
			name:   "today on december 31",
			preset: RangeToday,
			now:    newYearsEve,
			want:   DateRange{Start: day(2024, time.December, 31), End: endOf(2024, time.December, 31)},
		},
		{
			name:   "week spanning new year",
			preset: RangeThisWeek,
			now:    newYearsEve,
			want:   DateRange{Start: day(2024, time.December, 30), End: endOf(2025, time.January, 5)},
		},
		{
			name:   "december",
			preset: RangeThisMonth,
			now:    newYearsEve,
			want:   DateRange{Start: day(2024, time.December, 1), End: endOf(2024, time.December, 31)},
		},
		{
			name:   "year on december 31",
			preset: RangeThisYear,
			now:    newYearsEve,
			want:   DateRange{Start: day(2024, time.January, 1), End: endOf(2024, time.December, 31)},
		},
		{
			name:   "all is unbounded",
			preset: RangeAll,
			now:    sunday,
			want:   DateRange{},
		},
		{
			name:   "bounds follow the clock's location",
			preset: RangeToday,
			now:    time.Date(2024, time.March, 17, 22, 0, 0, 0, offset),
			want: DateRange{
				Start: time.Date(2024, time.March, 17, 0, 0, 0, 0, offset),
				End:   time.Date(2024, time.March, 17, 23, 59, 59, 999_000_000, offset),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.preset.Resolve(tt.now)
			require.NoError(t, err)
			assert.True(t, tt.want.Start.Equal(got.Start), "start: want %v, got %v", tt.want.Start, got.Start)
			assert.True(t, tt.want.End.Equal(got.End), "end: want %v, got %v", tt.want.End, got.End)
			assert.Equal(t, tt.want.IsOpen(), got.IsOpen())
			if !got.IsOpen() {
				assert.False(t, got.End.Before(tt.now), "now falls inside the range")
				assert.False(t, got.Start.After(tt.now), "now falls inside the range")
			}
		})
	}
}

func TestDateRangeType_ResolveEndsOneMillisecondBeforeNextPeriod(t *testing.T) {
	now := time.Date(2024, time.December, 31, 23, 30, 0, 0, time.UTC)

	tests := []struct {
		next   time.Time
		preset DateRangeType
	}{
		{preset: RangeToday, next: time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)},
		{preset: RangeThisWeek, next: time.Date(2025, time.January, 6, 0, 0, 0, 0, time.UTC)},
		{preset: RangeThisMonth, next: time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)},
		{preset: RangeThisYear, next: time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(string(tt.preset), func(t *testing.T) {
			got, err := tt.preset.Resolve(now)
			require.NoError(t, err)
			assert.Equal(t, time.Millisecond, tt.next.Sub(got.End))
		})
	}
}

func TestDateRangeType_ResolveWithoutPresetBounds(t *testing.T) {
	now := time.Date(2024, time.March, 17, 12, 0, 0, 0, time.UTC)

	for _, preset := range []DateRangeType{RangeCustom, "bogus", ""} {
		t.Run(string(preset), func(t *testing.T) {
			got, err := preset.Resolve(now)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "no preset bounds")
			assert.True(t, got.IsOpen())
		})
	}
}
