package schema

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ZeroValue returns the implicit default for a value type.
func ZeroValue(t ValueType) any {
	switch t {
	case TypeBool:
		return false
	case TypeInt:
		return int64(0)
	case TypeFloat:
		return float64(0)
	case TypeVector2i:
		return Vector2i{}
	case TypeVector2f:
		return Vector2f{}
	default:
		return ""
	}
}

// FormatScalar renders v in the text form stored in datasheet documents.
// Vectors render as "x,y"; documents store their components separately.
func FormatScalar(t ValueType, v any) string {
	switch t {
	case TypeBool:
		b, _ := v.(bool)
		return strconv.FormatBool(b)
	case TypeInt:
		i, _ := v.(int64)
		return strconv.FormatInt(i, 10)
	case TypeFloat:
		f, _ := v.(float64)
		return strconv.FormatFloat(f, 'g', -1, 64)
	case TypeVector2i:
		vec, _ := v.(Vector2i)
		return strconv.FormatInt(vec.X, 10) + "," + strconv.FormatInt(vec.Y, 10)
	case TypeVector2f:
		vec, _ := v.(Vector2f)
		return strconv.FormatFloat(vec.X, 'g', -1, 64) + "," + strconv.FormatFloat(vec.Y, 'g', -1, 64)
	default:
		s, _ := v.(string)
		return s
	}
}

// ParseScalar parses the text form of a value of type t.
func ParseScalar(t ValueType, s string) (any, error) {
	switch t {
	case TypeBool:
		return strconv.ParseBool(strings.TrimSpace(s))
	case TypeInt:
		return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	case TypeFloat:
		return strconv.ParseFloat(strings.TrimSpace(s), 64)
	case TypeVector2i:
		x, y, err := splitPair(s)
		if err != nil {
			return nil, err
		}
		xi, err := strconv.ParseInt(x, 10, 64)
		if err != nil {
			return nil, err
		}
		yi, err := strconv.ParseInt(y, 10, 64)
		if err != nil {
			return nil, err
		}
		return Vector2i{X: xi, Y: yi}, nil
	case TypeVector2f:
		x, y, err := splitPair(s)
		if err != nil {
			return nil, err
		}
		xf, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return nil, err
		}
		yf, err := strconv.ParseFloat(y, 64)
		if err != nil {
			return nil, err
		}
		return Vector2f{X: xf, Y: yf}, nil
	default:
		return s, nil
	}
}

func splitPair(s string) (string, string, error) {
	x, y, ok := strings.Cut(s, ",")
	if !ok {
		return "", "", fmt.Errorf("schema: expected \"x,y\", got %q", s)
	}
	return strings.TrimSpace(x), strings.TrimSpace(y), nil
}

// coerceDefault converts a decoded YAML/JSON default into the typed form.
func coerceDefault(t ValueType, raw any) (any, error) {
	if raw == nil {
		return ZeroValue(t), nil
	}
	switch t {
	case TypeBool:
		switch v := raw.(type) {
		case bool:
			return v, nil
		case string:
			return ParseScalar(t, v)
		}
	case TypeInt:
		switch v := raw.(type) {
		case int:
			return int64(v), nil
		case int64:
			return v, nil
		case uint64:
			if v > math.MaxInt64 {
				return nil, fmt.Errorf("schema: %d overflows Int", v)
			}
			return int64(v), nil
		case float64:
			if v < math.MinInt64 || v >= math.MaxInt64 {
				return nil, fmt.Errorf("schema: %v overflows Int", v)
			}
			if v != float64(int64(v)) {
				return nil, fmt.Errorf("schema: %v is not an integer", v)
			}
			return int64(v), nil
		case string:
			return ParseScalar(t, v)
		}
	case TypeFloat:
		switch v := raw.(type) {
		case int:
			return float64(v), nil
		case int64:
			return float64(v), nil
		case uint64:
			return float64(v), nil
		case float64:
			return v, nil
		case string:
			return ParseScalar(t, v)
		}
	case TypeVector2i, TypeVector2f:
		switch v := raw.(type) {
		case Vector2i:
			if t == TypeVector2i {
				return v, nil
			}
		case Vector2f:
			if t == TypeVector2f {
				return v, nil
			}
		case string:
			return ParseScalar(t, v)
		case []any:
			if len(v) != 2 {
				return nil, fmt.Errorf("schema: vector default needs 2 components, got %d", len(v))
			}
			parts := make([]string, 2)
			for i, p := range v {
				parts[i] = fmt.Sprint(p)
			}
			return ParseScalar(t, strings.Join(parts, ","))
		}
	default:
		switch v := raw.(type) {
		case string:
			return v, nil
		default:
			return fmt.Sprint(v), nil
		}
	}
	return nil, fmt.Errorf("schema: default %v (%T) does not fit %s", raw, raw, t)
}
