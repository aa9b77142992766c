package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirstN(t *testing.T) {
	assert.Equal(t, "abc", FirstN("abcdef", 3))
	assert.Equal(t, "abc", FirstN("abc", 10))
	assert.Equal(t, "", FirstN("abc", 0))
	assert.Equal(t, "héé", FirstN("hééllo", 3))
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "ab...", Preview("abcdef", 2))
	assert.Equal(t, "abc", Preview("abc", 3))
}

func TestParseYMD(t *testing.T) {
	got, err := ParseYMD(" 2024-03-09 ")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC), got)

	_, err = ParseYMD("03/09/2024")
	assert.Error(t, err)
}

func TestFormatTime(t *testing.T) {
	assert.Equal(t, "", FormatTime(nil))
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.Equal(t, "2024-01-02T03:04:05Z", FormatTime(&ts))
}
