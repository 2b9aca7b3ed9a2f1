package etsy

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestPayloadMissingKeysYieldZeroValues(t *testing.T) {
	p := Payload{"a": map[string]any{"b": "x"}}

	assert.Equal(t, "x", p.String("a", "b"))
	assert.Equal(t, "", p.String("a", "missing"))
	assert.Equal(t, "", p.String("missing", "b"))
	assert.Equal(t, int64(0), p.Int64("missing"))
	assert.False(t, p.Bool("missing"))
	assert.True(t, p.Time("missing").IsZero())
	assert.Nil(t, p.TimePtr("missing"))
	assert.Nil(t, p.Object("a", "b"))
	assert.Nil(t, p.Objects("a"))
}

func TestPayloadTimeIsUnixSecondsUTC(t *testing.T) {
	p := Payload{"created_timestamp": float64(1672531200)}

	got := p.Time("created_timestamp")
	assert.Equal(t, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), got)
	assert.Equal(t, time.UTC, got.Location())
}

func TestPayloadMoney(t *testing.T) {
	p := Payload{
		"grandtotal": map[string]any{
			"amount":        float64(1234),
			"divisor":       float64(100),
			"currency_code": "USD",
		},
		"no_divisor": map[string]any{
			"amount":        float64(500),
			"currency_code": "GBP",
		},
	}

	amount, currency := p.Money("grandtotal")
	assert.True(t, amount.Equal(decimal.RequireFromString("12.34")), "got %s", amount)
	assert.Equal(t, "USD", currency)

	// Divisor defaults to 100 when the marketplace omits it.
	amount, currency = p.Money("no_divisor")
	assert.True(t, amount.Equal(decimal.RequireFromString("5")), "got %s", amount)
	assert.Equal(t, "GBP", currency)

	amount, currency = p.Money("missing")
	assert.True(t, amount.IsZero())
	assert.Equal(t, "", currency)
}

func TestListRoundTrip(t *testing.T) {
	values := []string{"art print", "wall decor", "gift"}

	encoded := EncodeList(values)
	assert.Equal(t, "art print|wall decor|gift", encoded)
	assert.Equal(t, values, DecodeList(encoded))

	assert.Nil(t, DecodeList(""))
	assert.Equal(t, "", EncodeList(nil))
}

func TestStringList(t *testing.T) {
	p := Payload{"tags": []any{"a", "b", float64(3), "c"}}

	// Non-string elements are dropped, not stringified.
	assert.Equal(t, "a|b|c", p.StringList("tags"))
	assert.Equal(t, "", p.StringList("missing"))
}
