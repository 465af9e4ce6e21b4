package clock

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
)

func TestFake(t *testing.T) {
	f := FakeAt(2024, time.March, 15)
	assert.Equal(t, civil.Date{Year: 2024, Month: time.March, Day: 15}, Today(f))

	f.Advance(24 * time.Hour)
	assert.Equal(t, civil.Date{Year: 2024, Month: time.March, Day: 16}, Today(f))

	f.Set(time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, 2025, Today(f).Year)
}

func TestReal(t *testing.T) {
	before := time.Now()
	got := Real().Now()
	assert.False(t, got.Before(before))
}
