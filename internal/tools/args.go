package tools

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Args are the decoded arguments of a call. Values may arrive as JSON
// numbers from a model or as strings from the command line; the accessors
// accept both.
type Args map[string]any

// ArgError is a bad or missing argument. Its text is shown to the caller
// as it is.
type ArgError struct {
	Key    string
	Reason string
}

func (e *ArgError) Error() string {
	return e.Reason
}

func missing(key string) error {
	return &ArgError{Key: key, Reason: "Missing required argument: " + key}
}

func invalid(key, want string) error {
	return &ArgError{Key: key, Reason: fmt.Sprintf("Invalid %s: should be %s", key, want)}
}

func (a Args) raw(key string) (any, bool) {
	v, ok := a[key]
	if !ok || v == nil {
		return nil, false
	}
	if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
		return nil, false
	}
	return v, true
}

func (a Args) String(key string) (string, error) {
	v, ok := a.raw(key)
	if !ok {
		return "", missing(key)
	}
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s), nil
	default:
		return fmt.Sprint(s), nil
	}
}

func (a Args) OptString(key, def string) string {
	s, err := a.String(key)
	if err != nil {
		return def
	}
	return s
}

func (a Args) Decimal(key string) (decimal.Decimal, error) {
	v, ok := a.raw(key)
	if !ok {
		return decimal.Zero, missing(key)
	}
	var (
		d   decimal.Decimal
		err error
	)
	switch n := v.(type) {
	case float64:
		d = decimal.NewFromFloat(n)
	case float32:
		d = decimal.NewFromFloat32(n)
	case int:
		d = decimal.NewFromInt(int64(n))
	case int64:
		d = decimal.NewFromInt(n)
	case json.Number:
		d, err = decimal.NewFromString(n.String())
	case string:
		d, err = decimal.NewFromString(strings.TrimPrefix(strings.TrimSpace(n), "$"))
	default:
		err = fmt.Errorf("unsupported type %T", v)
	}
	if err != nil {
		return decimal.Zero, invalid(key, "a number")
	}
	return d, nil
}

// Positive is Decimal that also rejects zero and negative values.
func (a Args) Positive(key string) (decimal.Decimal, error) {
	d, err := a.Decimal(key)
	if err != nil {
		return d, err
	}
	if !d.IsPositive() {
		return decimal.Zero, invalid(key, "a positive number")
	}
	return d, nil
}

func (a Args) Float(key string) (float64, error) {
	d, err := a.Decimal(key)
	if err != nil {
		return 0, err
	}
	return d.InexactFloat64(), nil
}

// OptInt returns def when key is absent.
func (a Args) OptInt(key string, def int) (int, error) {
	v, ok := a.raw(key)
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) {
			return 0, invalid(key, "a whole number")
		}
		return int(n), nil
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, invalid(key, "a whole number")
		}
		return int(i), nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, invalid(key, "a whole number")
		}
		return i, nil
	}
	return 0, invalid(key, "a whole number")
}

// ParseArgs turns key=value pairs into Args.
func ParseArgs(pairs []string) (Args, error) {
	args := make(Args, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("argument %q is not key=value", p)
		}
		args[k] = v
	}
	return args, nil
}
