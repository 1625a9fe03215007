package conv

import (
	"fmt"
	"math"
)

// Int64ToInt converts int64 to int safely.
func Int64ToInt(v int64) (int, error) {
	if v > math.MaxInt || v < math.MinInt {
		return 0, fmt.Errorf("integer overflow: %d cannot be converted to int", v)
	}
	return int(v), nil
}

// Int64ToUint64 converts int64 to uint64 safely.
func Int64ToUint64(v int64) (uint64, error) {
	if v < 0 {
		return 0, fmt.Errorf("integer overflow: %d cannot be converted to uint64 (negative)", v)
	}
	return uint64(v), nil
}

// Uint64ToInt converts uint64 to int safely.
func Uint64ToInt(v uint64) (int, error) {
	if v > uint64(math.MaxInt) {
		return 0, fmt.Errorf("integer overflow: %d cannot be converted to int (too large)", v)
	}
	return int(v), nil
}

// MulInt64 multiplies non-negative factors, failing on overflow.
func MulInt64(factors ...int64) (int64, error) {
	p := int64(1)
	for _, f := range factors {
		if f < 0 {
			return 0, fmt.Errorf("integer overflow: negative factor %d", f)
		}
		if f != 0 && p > math.MaxInt64/f {
			return 0, fmt.Errorf("integer overflow: product exceeds int64")
		}
		p *= f
	}
	return p, nil
}
