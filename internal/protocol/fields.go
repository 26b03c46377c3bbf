package protocol

import (
	"encoding/json"
	"math"
	"strconv"
)

// Int reads a numeric field regardless of whether it came off the wire or was built locally.
func Int(payload map[string]any, key string) (int64, bool) {
	v, ok := payload[key]
	if !ok {
		return 0, false
	}
	return toInt(v)
}

func String(payload map[string]any, key string) (string, bool) {
	v, ok := payload[key].(string)
	return v, ok
}

// Bool also accepts 0/1 since some advertisers encode flags as numbers.
func Bool(payload map[string]any, key string) (bool, bool) {
	switch v := payload[key].(type) {
	case bool:
		return v, true
	case nil:
		return false, false
	default:
		n, ok := toInt(v)
		return n != 0, ok
	}
}

func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		f, err := n.Float64()
		return int64(f), err == nil
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}
