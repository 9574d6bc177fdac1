package month

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAndString_RoundTrip(t *testing.T) {
	t.Parallel()
	for _, s := range []string{"2015-01", "2019-12", "2024-02", "0001-01"} {
		b, err := Parse(s)
		require.NoError(t, err, s)
		assert.Equal(t, s, b.String())
	}
}

func TestParse_AcceptsSlash(t *testing.T) {
	t.Parallel()
	b, err := Parse("2021/7")
	require.NoError(t, err)
	assert.Equal(t, "2021-07", b.String())
}

func TestParse_Invalid(t *testing.T) {
	t.Parallel()
	for _, s := range []string{"", "2021", "2021-", "2021-13", "2021-00", "abcd-01", "-05"} {
		_, err := Parse(s)
		assert.Error(t, err, s)
	}
}

func TestBucket_ConsecutiveAcrossYearBoundary(t *testing.T) {
	t.Parallel()
	dec := MustParse("2023-12")
	jan := MustParse("2024-01")
	assert.Equal(t, dec+1, jan)
	assert.Equal(t, Bucket(2023*12+12), dec)
	assert.Equal(t, dec, jan.Prev())
	assert.Equal(t, 2023, dec.Year())
	assert.Equal(t, time.December, dec.Month())
	assert.Equal(t, 2024, jan.Year())
	assert.Equal(t, time.January, jan.Month())
}

func TestOf_UsesUTC(t *testing.T) {
	t.Parallel()
	// 2024-03-01 01:00 in UTC+2 is still February in UTC.
	loc := time.FixedZone("UTC+2", 2*60*60)
	ts := time.Date(2024, time.March, 1, 1, 0, 0, 0, loc)
	assert.Equal(t, "2024-02", Of(ts).String())
}

func TestStart(t *testing.T) {
	t.Parallel()
	b := MustParse("2022-06")
	assert.Equal(t, time.Date(2022, time.June, 1, 0, 0, 0, 0, time.UTC), b.Start())
	assert.Equal(t, b, Of(b.Start()))
}

func TestSpan(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 12, Span(MustParse("2020-01"), MustParse("2020-12")))
	assert.Equal(t, 1, Span(MustParse("2020-05"), MustParse("2020-05")))
	assert.Equal(t, 0, Span(MustParse("2020-05"), MustParse("2020-04")))
}
