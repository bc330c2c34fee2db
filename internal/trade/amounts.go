package trade

import "math/big"

// toRawAmount scales a human-readable amount up to a token's raw integer
// units. Precision beyond float64 is not a concern here: the agent only
// ever computes *input* amounts this way, and every output amount is read
// back from the chain as an exact integer (tokens_in_possession_raw).
func toRawAmount(amount float64, decimals uint8) *big.Int {
	if amount <= 0 {
		return big.NewInt(0)
	}
	scale := new(big.Float).SetFloat64(pow10(decimals))
	raw, _ := new(big.Float).Mul(big.NewFloat(amount), scale).Int(nil)
	return raw
}

func toReadableAmount(raw *big.Int, decimals uint8) float64 {
	if raw == nil {
		return 0
	}
	f := new(big.Float).SetInt(raw)
	scale := new(big.Float).SetFloat64(pow10(decimals))
	out, _ := new(big.Float).Quo(f, scale).Float64()
	return out
}

func pow10(n uint8) float64 {
	out := 1.0
	for i := uint8(0); i < n; i++ {
		out *= 10
	}
	return out
}

// percentOf computes balance * min(percent, 100) / 100 as an exact
// integer operation, per spec.md §4.6's sell_raw formula.
func percentOf(balance *big.Int, percent int) *big.Int {
	if percent > 100 {
		percent = 100
	}
	if percent <= 0 || balance.Sign() <= 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(balance, big.NewInt(int64(percent)))
	return out.Div(out, big.NewInt(100))
}
