package datagen

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// FieldSpec is one decoded field specification, e.g.
//
//	{"type": "hf-fill-mask", "seed-ref": "SEEDS", "config": {"token-only": true}}
type FieldSpec map[string]any

// ValuesType is the type used when a spec names no type.
const ValuesType = "values"

// Type returns the spec's type, defaulting to ValuesType.
func (s FieldSpec) Type() string {
	if t, ok := s["type"].(string); ok && strings.TrimSpace(t) != "" {
		return strings.TrimSpace(t)
	}
	return ValuesType
}

// Has reports whether key is present.
func (s FieldSpec) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// String returns a top-level string value.
func (s FieldSpec) String(key string) (string, bool) {
	v, ok := s[key]
	if !ok {
		return "", false
	}
	str, ok := v.(string)
	return str, ok
}

// Config returns the spec's config block, or an empty map.
func (s FieldSpec) Config() map[string]any {
	switch c := s["config"].(type) {
	case map[string]any:
		return c
	case FieldSpec:
		return c
	default:
		return map[string]any{}
	}
}

// ConfigValue returns the raw config value for key.
func (s FieldSpec) ConfigValue(key string) (any, bool) {
	v, ok := s.Config()[key]
	return v, ok
}

// ConfigString returns config[key] rendered with Stringify, or def when absent.
func (s FieldSpec) ConfigString(key, def string) string {
	v, ok := s.ConfigValue(key)
	if !ok {
		return def
	}
	return Stringify(v)
}

// ConfigBool accepts booleans and the strings "true"/"false" (any case).
func (s FieldSpec) ConfigBool(key string, def bool) (bool, error) {
	v, ok := s.ConfigValue(key)
	if !ok || v == nil {
		return def, nil
	}
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		if err != nil {
			return def, Configurationf("config %s: expected boolean, got %q", key, b)
		}
		return parsed, nil
	default:
		return def, Configurationf("config %s: expected boolean, got %T", key, v)
	}
}

// ConfigInt returns config[key] as an int64; ok is false when the key is absent.
func (s FieldSpec) ConfigInt(key string) (n int64, ok bool, err error) {
	v, present := s.ConfigValue(key)
	if !present || v == nil {
		return 0, false, nil
	}
	switch t := v.(type) {
	case int:
		return int64(t), true, nil
	case int64:
		return t, true, nil
	case uint64:
		return int64(t), true, nil
	case float64:
		if t != float64(int64(t)) {
			return 0, false, Configurationf("config %s: expected integer, got %v", key, t)
		}
		return int64(t), true, nil
	case string:
		parsed, perr := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if perr != nil {
			return 0, false, Configurationf("config %s: expected integer, got %q", key, t)
		}
		return parsed, true, nil
	default:
		return 0, false, Configurationf("config %s: expected integer, got %T", key, v)
	}
}

// ConfigDuration parses a Go duration string such as "10m".
func (s FieldSpec) ConfigDuration(key string, def time.Duration) (time.Duration, error) {
	v, ok := s.ConfigValue(key)
	if !ok || v == nil {
		return def, nil
	}
	str, isString := v.(string)
	if !isString {
		return def, Configurationf("config %s: expected duration string, got %T", key, v)
	}
	d, err := time.ParseDuration(strings.TrimSpace(str))
	if err != nil {
		return def, Configurationf("config %s: %v", key, err)
	}
	return d, nil
}

// JSON serializes the spec for diagnostics.
func (s FieldSpec) JSON() string {
	b, err := json.Marshal(map[string]any(s))
	if err != nil {
		return fmt.Sprintf("%v", map[string]any(s))
	}
	return string(b)
}

// AsFieldSpec normalizes a raw decoded spec. Bare literals and lists are shorthand
// for {"type": "values", "data": raw}.
func AsFieldSpec(raw any) (FieldSpec, error) {
	switch v := raw.(type) {
	case FieldSpec:
		return v, nil
	case map[string]any:
		return FieldSpec(v), nil
	case nil:
		return nil, Configurationf("empty field spec")
	case string, bool, int, int64, uint64, float64, []any, []string:
		return FieldSpec{"type": ValuesType, "data": v}, nil
	default:
		return nil, Configurationf("unsupported field spec of type %T", raw)
	}
}
