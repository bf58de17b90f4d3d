package cacheapi

import (
	"fmt"
	"math/big"
	"strings"
)

var (
	trueTokens  = []string{"true", "yes", "on", "y", "t", "1"}
	falseTokens = []string{"false", "no", "off", "n", "f", "0"}
)

// ParseBool is a permissive string to boolean parser. It accepts
// true/yes/on/y/t/1 and false/no/off/n/f/0 in any case.
func ParseBool(s string) (bool, error) {
	token := strings.ToLower(strings.TrimSpace(s))
	for _, t := range trueTokens {
		if token == t {
			return true, nil
		}
	}
	for _, f := range falseTokens {
		if token == f {
			return false, nil
		}
	}
	return false, fmt.Errorf("%w: %q", ErrInvalidBool, s)
}

// parseInt parses a base 10 integer of any size, with an optional sign and
// surrounding whitespace. The result marshals to a JSON number and prints in
// canonical decimal form.
func parseInt(s string) (*big.Int, bool) {
	return new(big.Int).SetString(strings.TrimSpace(s), 10)
}

// coerceKey returns the key as sent in the URL path.
func coerceKey(key string, kt KeyType) (any, error) {
	if kt != KeyInt {
		return key, nil
	}
	n, ok := parseInt(key)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not an integer", ErrInvalidKey, key)
	}
	return n, nil
}

// coerceValue returns the value as sent in the JSON body. A nil value is
// left absent whatever its type.
func coerceValue(value *string, vt ValueType) (any, bool, error) {
	if value == nil {
		return nil, false, nil
	}

	switch vt {
	case ValueInt:
		n, ok := parseInt(*value)
		if !ok {
			return nil, false, fmt.Errorf("%w: %q is not an integer", ErrInvalidValue, *value)
		}
		return n, true, nil
	case ValueBool:
		b, err := ParseBool(*value)
		if err != nil {
			return nil, false, fmt.Errorf("%w: %w", ErrInvalidValue, err)
		}
		return b, true, nil
	default:
		return *value, true, nil
	}
}
