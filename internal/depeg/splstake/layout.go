// Package splstake reads the exchange rate of an SPL stake pool straight from
// the raw StakePool account bytes.
//
// The account ends with a variable-size section, so instead of decoding the
// whole record only the two counters needed for pricing are read at fixed
// offsets. The offsets are valid for the current StakePool layout; if the
// program changes it, only Layout below has to change.
package splstake

// Field describes where a little-endian integer lives inside the account.
type Field struct {
	Name   string
	Offset int
	Width  int
}

// End returns the first byte past the field.
func (f Field) End() int {
	return f.Offset + f.Width
}

var (
	// TotalLamports is the total SOL controlled by the pool, in lamports.
	TotalLamports = Field{Name: "total_lamports", Offset: 258, Width: 8}
	// PoolTokenSupply is the outstanding supply of the pool token.
	PoolTokenSupply = Field{Name: "pool_token_supply", Offset: 266, Width: 8}
)

// Layout lists every field read from the account.
var Layout = []Field{TotalLamports, PoolTokenSupply}

// MinAccountLen is the shortest buffer that contains every field of Layout.
var MinAccountLen = minLen(Layout)

func minLen(fields []Field) int {
	n := 0
	for _, f := range fields {
		if f.End() > n {
			n = f.End()
		}
	}
	return n
}
