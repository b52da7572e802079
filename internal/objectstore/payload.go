package objectstore

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// ErrUnsupportedPayload is returned by Normalize for payload shapes it cannot read.
var ErrUnsupportedPayload = errors.New("unsupported payload shape")

// Normalize converts a transport payload into a Blob tagged with mimeType.
// Accepted shapes are Blob, *Blob, []byte and a keyed byte-indexed map
// ({"0": 137, "1": 80, ...}) as produced when binary bodies are re-encoded as JSON.
func Normalize(v any, mimeType string) (Blob, error) {
	switch p := v.(type) {
	case Blob:
		return p.WithType(mimeType), nil
	case *Blob:
		if p == nil {
			return Blob{}, fmt.Errorf("%w: nil blob", ErrUnsupportedPayload)
		}
		return p.WithType(mimeType), nil
	case []byte:
		return NewBlob(p, mimeType), nil
	case map[string]any:
		data, err := fromKeyed(p)
		if err != nil {
			return Blob{}, err
		}
		return NewBlob(data, mimeType), nil
	default:
		return Blob{}, fmt.Errorf("%w: %T", ErrUnsupportedPayload, v)
	}
}

// fromKeyed rebuilds a byte slice from a map whose keys are the decimal indexes
// 0..n-1 and whose values are byte values.
func fromKeyed(m map[string]any) ([]byte, error) {
	data := make([]byte, len(m))
	for key, raw := range m {
		idx, err := strconv.Atoi(key)
		if err != nil || idx < 0 || idx >= len(m) || strconv.Itoa(idx) != key {
			return nil, fmt.Errorf("%w: key %q is not a byte index", ErrUnsupportedPayload, key)
		}
		b, ok := byteValue(raw)
		if !ok {
			return nil, fmt.Errorf("%w: value at %d is not a byte", ErrUnsupportedPayload, idx)
		}
		data[idx] = b
	}
	return data, nil
}

func byteValue(v any) (byte, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint8:
		return n, true
	default:
		return 0, false
	}
	if f < 0 || f > math.MaxUint8 || f != math.Trunc(f) {
		return 0, false
	}
	return byte(f), true
}
