package codec

import (
	"bytes"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleRecord struct {
	Number  string          `json:"number"`
	Date    civil.Date      `json:"date"`
	Amount  decimal.Decimal `json:"amount"`
	Created time.Time       `json:"created"`
	Active  bool            `json:"active"`
}

func TestRoundTrip(t *testing.T) {
	original := sampleRecord{
		Number:  "411",
		Date:    civil.Date{Year: 2024, Month: time.February, Day: 29},
		Amount:  decimal.RequireFromString("118.45"),
		Created: time.Date(2024, 2, 29, 10, 11, 12, 13, time.UTC),
		Active:  true,
	}

	data, err := Marshal(original)
	require.NoError(t, err)

	var got sampleRecord
	require.NoError(t, Unmarshal(data, &got))

	assert.Equal(t, original.Number, got.Number)
	assert.Equal(t, original.Date, got.Date)
	assert.True(t, original.Amount.Equal(got.Amount), "amount %s != %s", original.Amount, got.Amount)
	assert.True(t, original.Created.Equal(got.Created))
	assert.True(t, got.Active)
}

func TestDeterministic(t *testing.T) {
	rec := sampleRecord{Number: "512", Amount: decimal.NewFromInt(50)}
	first, err := Marshal(rec)
	require.NoError(t, err)
	second, err := Marshal(rec)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(first, second))
}

func TestUnmarshalGarbage(t *testing.T) {
	var got sampleRecord
	assert.Error(t, Unmarshal([]byte{0xff, 0x00}, &got))
}
