package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseDate(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)

	tests := []struct {
		name   string
		input  any
		want   time.Time
		wantOK bool
	}{
		{name: "day first dashes", input: "15-03-2023", want: date(2023, time.March, 15), wantOK: true},
		{name: "day first slashes", input: "05/11/2022", want: date(2022, time.November, 5), wantOK: true},
		{name: "single digit parts", input: "5.1.2024", want: date(2024, time.January, 5), wantOK: true},
		{name: "month name", input: "15-Mar-2023", want: date(2023, time.March, 15), wantOK: true},
		{name: "month name lower case", input: "15 mar 2023", want: date(2023, time.March, 15), wantOK: true},
		{name: "iso", input: "2023-03-15", want: date(2023, time.March, 15), wantOK: true},
		{name: "rfc3339 keeps local date", input: "2023-03-15T23:30:00+05:30", want: date(2023, time.March, 15), wantOK: true},
		{name: "two digit year", input: "15-03-23", want: date(2023, time.March, 15), wantOK: true},
		{name: "month first fallback", input: "03/25/2024", want: date(2024, time.March, 25), wantOK: true},
		{name: "year typo six digits", input: "15-03-202023", want: date(2023, time.March, 15), wantOK: true},
		{name: "year typo five digits", input: "15-03-20235", want: date(2023, time.March, 15), wantOK: true},
		{name: "compact yyyymmdd", input: "20230315", want: date(2023, time.March, 15), wantOK: true},
		{name: "serial as text", input: "45000", want: date(2023, time.March, 15), wantOK: true},
		{name: "serial float", input: 45000.0, want: date(2023, time.March, 15), wantOK: true},
		{name: "serial int", input: 45000, want: date(2023, time.March, 15), wantOK: true},
		{name: "native time", input: time.Date(2024, time.June, 1, 0, 30, 0, 0, ist), want: date(2024, time.June, 1), wantOK: true},
		{name: "native time far future year", input: time.Date(202305, time.July, 9, 0, 0, 0, 0, time.UTC), want: date(2023, time.July, 9), wantOK: true},
		{name: "day first with minutes", input: "15/03/2023 10:30", want: date(2023, time.March, 15), wantOK: true},
		{name: "day first with seconds", input: "15-03-2023 00:00:00", want: date(2023, time.March, 15), wantOK: true},
		{name: "datetime local input", input: "2023-03-15T09:45", want: date(2023, time.March, 15), wantOK: true},
		{name: "utc instant keeps written date", input: "2024-03-14T18:30:00.000Z", want: date(2024, time.March, 14), wantOK: true},
		{name: "bare year is not a serial", input: "2023", wantOK: false},
		{name: "small number is not a serial", input: "120", wantOK: false},
		{name: "blank", input: "", wantOK: false},
		{name: "dash", input: "-", wantOK: false},
		{name: "garbage", input: "next tuesday", wantOK: false},
		{name: "negative serial", input: -3.0, wantOK: false},
		{name: "nil", input: nil, wantOK: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ParseDate(tc.input)
			require.Equal(t, tc.wantOK, ok)
			if tc.wantOK {
				assert.True(t, tc.want.Equal(got), "expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestParseDateIn(t *testing.T) {
	kolkata, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	tests := []struct {
		name  string
		input any
		loc   *time.Location
		want  time.Time
	}{
		{name: "midnight in kolkata", input: "2024-03-14T18:30:00.000Z", loc: kolkata, want: date(2024, time.March, 15)},
		{name: "just before midnight in kolkata", input: "2024-03-14T18:29:59Z", loc: kolkata, want: date(2024, time.March, 14)},
		{name: "explicit offset", input: "2023-03-15T23:30:00+05:30", loc: kolkata, want: date(2023, time.March, 15)},
		{name: "utc location", input: "2024-03-14T18:30:00Z", loc: time.UTC, want: date(2024, time.March, 14)},
		{name: "plain dates ignore location", input: "15-03-2023", loc: kolkata, want: date(2023, time.March, 15)},
		{name: "serials ignore location", input: 45000.0, loc: kolkata, want: date(2023, time.March, 15)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ParseDateIn(tc.input, tc.loc)
			require.True(t, ok)
			assert.True(t, tc.want.Equal(got), "expected %s, got %s", tc.want, got)
		})
	}
}

func TestRepairYearTypo(t *testing.T) {
	assert.Equal(t, "15-03-2023", RepairYearTypo("15-03-202023"))
	assert.Equal(t, "15-03-2023", RepairYearTypo("15-03-2023"))
	assert.Equal(t, "20-03-2023", RepairYearTypo("20-03-2023"))
	assert.Equal(t, "ref 1234567", RepairYearTypo("ref 1234567"))
}
