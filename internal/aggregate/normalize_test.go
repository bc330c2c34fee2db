package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeFlatSnakeCasePayload(t *testing.T) {
	raw := map[string]interface{}{
		"pair_address": "0xABC",
		"last_price":   1.5,
		"buy_volume":   2.0,
		"sell_volume":  1.0,
	}
	ev, ok := Normalize(raw)
	assert.True(t, ok)
	assert.Equal(t, "0xabc", ev.PairAddress)
	assert.Equal(t, 1.5, ev.LastPrice)
	assert.Equal(t, 2.0, ev.BuyVolume)
	assert.Equal(t, 1.0, ev.SellVolume)
}

func TestNormalizeCamelCaseNestedDataEnvelope(t *testing.T) {
	raw := map[string]interface{}{
		"data": map[string]interface{}{
			"pairAddress": "0xDEF",
			"lastPrice":   2.25,
		},
	}
	ev, ok := Normalize(raw)
	assert.True(t, ok)
	assert.Equal(t, "0xdef", ev.PairAddress)
	assert.Equal(t, 2.25, ev.LastPrice)
}

func TestNormalizeRejectsMissingPairAddress(t *testing.T) {
	_, ok := Normalize(map[string]interface{}{"last_price": 1.0})
	assert.False(t, ok)
}

func TestNormalizeRejectsNonPositivePrice(t *testing.T) {
	_, ok := Normalize(map[string]interface{}{"pair_address": "0xabc", "last_price": 0.0})
	assert.False(t, ok)
}

func TestNormalizeParsesStringNumericFields(t *testing.T) {
	raw := map[string]interface{}{
		"pair_address": "0xabc",
		"last_price":   "3.14",
	}
	ev, ok := Normalize(raw)
	assert.True(t, ok)
	assert.Equal(t, 3.14, ev.LastPrice)
}

func TestNormalizeDefaultsMinuteKeyWhenAbsent(t *testing.T) {
	raw := map[string]interface{}{
		"pair_address": "0xabc",
		"last_price":   1.0,
	}
	ev, ok := Normalize(raw)
	assert.True(t, ok)
	assert.Greater(t, ev.MinuteKey, int64(0))
}
