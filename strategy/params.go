package strategy

import (
	"fmt"

	"github.com/datar-psa/evalharness/api"
)

// Parameter decoding helpers. Instance parameters arrive as map[string]any
// from the YAML loader, so each strategy constructor extracts and validates
// what it needs and reports anything wrong as a *api.ConfigurationError.

func configErr(typ, param string, err error) error {
	return &api.ConfigurationError{Type: typ, Param: param, Err: err}
}

func stringParam(typ string, params map[string]any, key string) (string, error) {
	v, ok := params[key]
	if !ok {
		return "", configErr(typ, key, api.ErrMissingParameter)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", configErr(typ, key, fmt.Errorf("expected non-empty string, got %T", v))
	}
	return s, nil
}

func optionalStringParam(typ string, params map[string]any, key string) (string, error) {
	v, ok := params[key]
	if !ok {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", configErr(typ, key, fmt.Errorf("expected string, got %T", v))
	}
	return s, nil
}

func mapParam(typ string, params map[string]any, key string) (map[string]any, error) {
	v, ok := params[key]
	if !ok {
		return nil, configErr(typ, key, api.ErrMissingParameter)
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, configErr(typ, key, fmt.Errorf("expected mapping, got %T", v))
	}
	return m, nil
}

func sliceParam(typ string, params map[string]any, key string) ([]any, error) {
	v, ok := params[key]
	if !ok {
		return nil, configErr(typ, key, api.ErrMissingParameter)
	}
	s, ok := v.([]any)
	if !ok {
		return nil, configErr(typ, key, fmt.Errorf("expected sequence, got %T", v))
	}
	return s, nil
}

// asFloat accepts the numeric types YAML and JSON decoders produce.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
