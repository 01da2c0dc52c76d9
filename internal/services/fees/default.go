package fees

import (
	"unicode/utf16"

	"github.com/shopspring/decimal"
)

var (
	baseFeeAmount  = decimal.RequireFromString("0.0010")
	feeAmountSpan  = decimal.RequireFromString("0.0006")
	basePercentage = decimal.RequireFromString("0.05")
	percentageSpan = decimal.RequireFromString("0.10")
	hashBuckets    = decimal.NewFromInt(10000)
)

// seedHash is the 31-multiplier rolling hash over UTF-16 code units, wrapped to int32.
func seedHash(seed string) int32 {
	var h int32
	for _, unit := range utf16.Encode([]rune(seed)) {
		h = h*31 + int32(unit)
	}
	return h
}

// DefaultQuote is the fee of a token on a chain when no override exists. It
// depends on nothing but its arguments.
func DefaultQuote(tokenSymbol, chainID string) (feeAmount, feePercentage decimal.Decimal) {
	h := int64(seedHash(tokenSymbol + chainID))
	if h < 0 {
		h = -h
	}
	n := decimal.NewFromInt(h % 10000).Div(hashBuckets)

	feeAmount = baseFeeAmount.Add(n.Mul(feeAmountSpan)).Round(4)
	feePercentage = basePercentage.Add(n.Mul(percentageSpan)).Round(2)
	return feeAmount, feePercentage
}
