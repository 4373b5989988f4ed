package appointment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeInstant(t *testing.T) {
	want := time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC)

	for _, raw := range []string{
		"2030-01-01T10:00:00Z",
		"2030-01-01T10:00:00.999999Z",
		"2030-01-01T10:00:00",
		"2030-01-01T10:00:00.5",
		"2030-01-01T10:00",
		"2030-01-01T15:30:00+05:30",
		"2030-01-01T15:30+05:30",
		"2030-01-01 10:00:00",
		"2030-01-01 05:00:00-05:00",
		" 2030-01-01 10:00 ",
		"2030-01-01T15:30:00+0530",
		"2030-01-01T15:30:00.123456+0530",
		"2030-01-01T15:00:00+05",
		"2030-01-01T15:30+0530",
		"20300101T100000Z",
		"20300101T153000+05:30",
		"20300101T153000+0530",
		"20300101T100000",
	} {
		got, err := NormalizeInstant(raw)
		require.NoError(t, err, raw)
		assert.True(t, want.Equal(got), "%s parsed as %s", raw, got)
		assert.Equal(t, time.UTC, got.Location(), raw)
	}
}

func TestNormalizeInstantDateOnly(t *testing.T) {
	got, err := NormalizeInstant("2030-01-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC), got)
}

func TestNormalizeInstantRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "tomorrow", "01/01/2030 10:00", "2030-13-01T10:00:00Z"} {
		_, err := NormalizeInstant(raw)
		assert.ErrorIs(t, err, ErrInvalidTimestamp, raw)
	}
}

func TestParseStatus(t *testing.T) {
	st, err := ParseStatus(" Cancelled ")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, st)
	assert.True(t, st.Terminal())
	assert.False(t, StatusScheduled.Terminal())

	_, err = ParseStatus("pending")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}
