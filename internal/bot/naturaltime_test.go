package bot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDueTimeWeekdayWithClock(t *testing.T) {
	base := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC) // a Monday

	due, ok := parseDueTime("19:32 next Wednesday", base)
	require.True(t, ok)
	assert.Equal(t, time.Wednesday, due.Weekday())
	assert.Equal(t, 19, due.Hour())
	assert.Equal(t, 32, due.Minute())
	assert.True(t, due.After(base))
}

func TestParseDueTimeRelative(t *testing.T) {
	base := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

	due, ok := parseDueTime("tomorrow at 10:00", base)
	require.True(t, ok)
	assert.Equal(t, base.Day()+1, due.Day())
	assert.Equal(t, 10, due.Hour())
}

func TestParseDueTimeRejectsPlainText(t *testing.T) {
	_, ok := parseDueTime("no time in here", time.Now())
	assert.False(t, ok)
}
