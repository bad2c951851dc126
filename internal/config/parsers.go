// Package config provides configuration loading and parsing for crawlprobe.
package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// settings is the merged view of a config file and the bound CRAWLPROBE_*
// environment. Keys are lower-case; nested blocks such as "log" and
// "tracing" are settings of their own.
type settings map[string]interface{}

func newSettings(raw map[string]interface{}) settings {
	s := make(settings, len(raw))
	for key, val := range raw {
		s[strings.ToLower(strings.TrimSpace(key))] = val
	}
	return s
}

// spellings expands a snake_case key into the forms accepted in config
// files: max_requests, maxrequests and max-requests.
func spellings(key string) []string {
	if !strings.Contains(key, "_") {
		return []string{key}
	}
	return []string{key, strings.ReplaceAll(key, "_", ""), strings.ReplaceAll(key, "_", "-")}
}

// lookup returns the first value present under any spelling of keys.
func (s settings) lookup(keys ...string) (interface{}, bool) {
	for _, key := range keys {
		for _, k := range spellings(key) {
			if val, ok := s[k]; ok {
				return val, true
			}
		}
	}
	return nil, false
}

// section returns the nested block stored under key.
func (s settings) section(key string) (settings, bool, error) {
	raw, ok := s.lookup(key)
	if !ok || raw == nil {
		return nil, false, nil
	}
	switch v := raw.(type) {
	case map[string]interface{}:
		return newSettings(v), true, nil
	case map[interface{}]interface{}:
		out := make(settings, len(v))
		for k, val := range v {
			out[strings.ToLower(strings.TrimSpace(fmt.Sprint(k)))] = val
		}
		return out, true, nil
	default:
		return nil, false, fmt.Errorf("%s: expected a block of settings, got %T", key, raw)
	}
}

// text stores the trimmed string under keys[0] (or an alias) into dst.
func (s settings) text(dst *string, keys ...string) error {
	raw, ok := s.lookup(keys...)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(scalarString(raw))
	return nil
}

// keyword is text folded to lower case, for enumerated values like formats.
func (s settings) keyword(dst *string, keys ...string) error {
	if err := s.text(dst, keys...); err != nil {
		return err
	}
	*dst = strings.ToLower(*dst)
	return nil
}

// count stores a whole number such as a request budget or a user count.
// Fractional values are rejected rather than truncated.
func (s settings) count(dst *int, keys ...string) error {
	raw, ok := s.lookup(keys...)
	if !ok {
		return nil
	}
	n, err := wholeNumber(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", keys[0], err)
	}
	if n > math.MaxInt32 || n < math.MinInt32 {
		return fmt.Errorf("%s: %d is out of range", keys[0], n)
	}
	*dst = int(n)
	return nil
}

// seed stores the 64-bit selection seed.
func (s settings) seed(dst *int64, keys ...string) error {
	raw, ok := s.lookup(keys...)
	if !ok {
		return nil
	}
	n, err := wholeNumber(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", keys[0], err)
	}
	*dst = n
	return nil
}

// ratio stores a real number such as the trace sample rate.
func (s settings) ratio(dst *float64, keys ...string) error {
	raw, ok := s.lookup(keys...)
	if !ok {
		return nil
	}
	f, err := realNumber(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", keys[0], err)
	}
	*dst = f
	return nil
}

// toggle stores a boolean switch.
func (s settings) toggle(dst *bool, keys ...string) error {
	raw, ok := s.lookup(keys...)
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case bool:
		*dst = v
		return nil
	case nil:
		*dst = false
		return nil
	}
	str := strings.TrimSpace(scalarString(raw))
	if str == "" {
		*dst = false
		return nil
	}
	b, err := strconv.ParseBool(str)
	if err != nil {
		return fmt.Errorf("%s: %w", keys[0], err)
	}
	*dst = b
	return nil
}

// seconds stores a delay or timeout. Bare numbers are seconds, matching the
// CLI flags; strings may also use Go duration syntax ("250ms", "1m").
func (s settings) seconds(dst *time.Duration, keys ...string) error {
	raw, ok := s.lookup(keys...)
	if !ok {
		return nil
	}
	if d, isDur := raw.(time.Duration); isDur {
		*dst = d
		return nil
	}
	if str, isStr := raw.(string); isStr {
		str = strings.TrimSpace(str)
		if str == "" {
			*dst = 0
			return nil
		}
		if d, err := time.ParseDuration(str); err == nil {
			*dst = d
			return nil
		}
	}
	f, err := realNumber(raw)
	if err != nil {
		return fmt.Errorf("%s: invalid duration %v", keys[0], raw)
	}
	*dst = secondsToDuration(f)
	return nil
}

// list stores a candidate set. A YAML/JSON list is taken item by item; a
// single string, as supplied through the environment, is split on sep.
// Blank entries are dropped.
func (s settings) list(dst *[]string, sep string, keys ...string) error {
	raw, ok := s.lookup(keys...)
	if !ok {
		return nil
	}
	var items []string
	switch v := raw.(type) {
	case nil:
	case []string:
		items = v
	case []interface{}:
		for _, item := range v {
			items = append(items, scalarString(item))
		}
	case string:
		items = strings.Split(v, sep)
	default:
		return fmt.Errorf("%s: expected a list, got %T", keys[0], raw)
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	*dst = out
	return nil
}

func scalarString(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func wholeNumber(value interface{}) (int64, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, fmt.Errorf("%d is out of range", v)
		}
		return int64(v), nil
	case float32:
		return wholeNumber(float64(v))
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("%g is not a whole number", v)
		}
		return int64(v), nil
	case string:
		str := strings.TrimSpace(v)
		if str == "" {
			return 0, nil
		}
		n, err := strconv.ParseInt(str, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not a whole number", str)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("unsupported numeric type %T", value)
	}
}

func realNumber(value interface{}) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case string:
		str := strings.TrimSpace(v)
		if str == "" {
			return 0, nil
		}
		f, err := strconv.ParseFloat(str, 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not a number", str)
		}
		return f, nil
	default:
		n, err := wholeNumber(value)
		if err != nil {
			return 0, err
		}
		return float64(n), nil
	}
}
