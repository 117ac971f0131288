package dedup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestShouldProcessDropsRepeatsWithinTTL(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	d := New(time.Minute, 10)
	d.now = func() time.Time { return now }

	assert.True(t, d.ShouldProcess("a"))
	assert.False(t, d.ShouldProcess("a"))

	now = now.Add(2 * time.Minute)
	assert.True(t, d.ShouldProcess("a"), "expired id is processed again")
}

func TestEmptyIDAlwaysProcessed(t *testing.T) {
	d := New(0, 0)
	assert.True(t, d.ShouldProcess(""))
	assert.True(t, d.ShouldProcess(""))
	assert.Equal(t, 0, d.Len())
}

func TestCapEvictsOldest(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	d := New(time.Hour, 2)
	d.now = func() time.Time { return now }

	d.ShouldProcess("first")
	now = now.Add(time.Second)
	d.ShouldProcess("second")
	now = now.Add(time.Second)
	d.ShouldProcess("third")

	assert.Equal(t, 2, d.Len())
	assert.True(t, d.ShouldProcess("first"), "oldest entry was evicted")
}

func TestPayloadKeyStable(t *testing.T) {
	assert.Equal(t, PayloadKey([]byte(`{"a":1}`)), PayloadKey([]byte(`{"a":1}`)))
	assert.NotEqual(t, PayloadKey([]byte(`{"a":1}`)), PayloadKey([]byte(`{"a":2}`)))
}

func TestSeenDoesNotRecord(t *testing.T) {
	d := New(time.Minute, 10)

	assert.False(t, d.Seen("k"))
	assert.False(t, d.Seen("k"), "Seen must not record the id")
	d.Mark("k")
	assert.True(t, d.Seen("k"))
	assert.False(t, d.ShouldProcess("k"))
}
