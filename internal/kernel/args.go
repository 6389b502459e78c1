package kernel

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Args holds the named arguments of a function call as decoded from JSON
type Args map[string]any

// String returns a required string argument
func (a Args) String(name string) (string, error) {
	v, ok := a[name]
	if !ok || v == nil {
		return "", fmt.Errorf("%w: missing %q", ErrInvalidArgument, name)
	}
	switch t := v.(type) {
	case string:
		return t, nil
	case json.Number:
		return t.String(), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(t), nil
	default:
		return "", fmt.Errorf("%w: %q must be a string", ErrInvalidArgument, name)
	}
}

// StringOr returns a string argument or def when it is absent
func (a Args) StringOr(name, def string) string {
	s, err := a.String(name)
	if err != nil {
		return def
	}
	return s
}

// Int returns a required integer argument. Numeric strings are accepted
// because small models often quote numbers.
func (a Args) Int(name string) (int, error) {
	v, ok := a[name]
	if !ok || v == nil {
		return 0, fmt.Errorf("%w: missing %q", ErrInvalidArgument, name)
	}
	switch t := v.(type) {
	case int:
		return t, nil
	case int64:
		if t < math.MinInt || t > math.MaxInt {
			return 0, fmt.Errorf("%w: %q is out of range", ErrInvalidArgument, name)
		}
		return int(t), nil
	case float64:
		if t != math.Trunc(t) {
			return 0, fmt.Errorf("%w: %q must be an integer", ErrInvalidArgument, name)
		}
		// float64(math.MaxInt) rounds up to 2^63 (or 2^31), itself out of range
		if t < float64(math.MinInt) || t >= float64(math.MaxInt) {
			return 0, fmt.Errorf("%w: %q is out of range", ErrInvalidArgument, name)
		}
		return int(t), nil
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			return 0, fmt.Errorf("%w: %q must be an integer", ErrInvalidArgument, name)
		}
		if n < math.MinInt || n > math.MaxInt {
			return 0, fmt.Errorf("%w: %q is out of range", ErrInvalidArgument, name)
		}
		return int(n), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, fmt.Errorf("%w: %q must be an integer", ErrInvalidArgument, name)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%w: %q must be an integer", ErrInvalidArgument, name)
	}
}

// Bool returns a required boolean argument
func (a Args) Bool(name string) (bool, error) {
	v, ok := a[name]
	if !ok || v == nil {
		return false, fmt.Errorf("%w: missing %q", ErrInvalidArgument, name)
	}
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		if err != nil {
			return false, fmt.Errorf("%w: %q must be a boolean", ErrInvalidArgument, name)
		}
		return b, nil
	default:
		return false, fmt.Errorf("%w: %q must be a boolean", ErrInvalidArgument, name)
	}
}

// Strings returns a list argument. A single string is split on commas.
func (a Args) Strings(name string) ([]string, error) {
	v, ok := a[name]
	if !ok || v == nil {
		return nil, fmt.Errorf("%w: missing %q", ErrInvalidArgument, name)
	}
	switch t := v.(type) {
	case []string:
		return t, nil
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %q must be a list of strings", ErrInvalidArgument, name)
			}
			out = append(out, s)
		}
		return out, nil
	case string:
		var out []string
		for _, part := range strings.Split(t, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %q must be a list of strings", ErrInvalidArgument, name)
	}
}
