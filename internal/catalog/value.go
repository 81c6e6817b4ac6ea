package catalog

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Kind discriminates the typed forms a desired or observed value can take.
type Kind int

const (
	// KindNone is the zero Value, used when a setting carries no scalar
	// value (the file backend derives its value from a template).
	KindNone Kind = iota
	KindString
	KindInt
	KindRecord
)

// Value is a typed setting value. Comparison is structural: numeric and
// byte-size representations that denote the same quantity compare equal,
// so formatting differences never produce false diffs.
type Value struct {
	kind Kind
	str  string
	num  int64
	rec  map[string]string
}

// StringValue builds a string-kinded value.
func StringValue(s string) Value { return Value{kind: KindString, str: s} }

// IntValue builds an integer-kinded value.
func IntValue(n int64) Value { return Value{kind: KindInt, num: n} }

// RecordValue builds a multi-field value for structured directives.
func RecordValue(fields map[string]string) Value {
	return Value{kind: KindRecord, rec: fields}
}

// Kind reports the value's type discriminator.
func (v Value) Kind() Kind { return v.kind }

// IsZero reports whether the value is unset. Used by yaml omitempty.
func (v Value) IsZero() bool { return v.kind == KindNone }

// Fields returns the record fields, or nil for scalar values.
func (v Value) Fields() map[string]string { return v.rec }

// String renders the canonical display form.
func (v Value) String() string {
	switch v.kind {
	case KindNone:
		return ""
	case KindInt:
		return strconv.FormatInt(v.num, 10)
	case KindRecord:
		keys := make([]string, 0, len(v.rec))
		for k := range v.rec {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+"="+v.rec[k])
		}
		return strings.Join(parts, " ")
	default:
		return v.str
	}
}

// Equal reports structural equality. Scalars are normalized before
// comparison: "65535" equals 65535, and "256mb" equals the value that
// parses to the same byte count. Records compare field-by-field.
func (v Value) Equal(o Value) bool {
	if v.kind == KindRecord || o.kind == KindRecord {
		if v.kind != o.kind {
			return false
		}
		if len(v.rec) != len(o.rec) {
			return false
		}
		for k, val := range v.rec {
			if other, ok := o.rec[k]; !ok || other != val {
				return false
			}
		}
		return true
	}

	if a, ok := v.asInt(); ok {
		if b, ok := o.asInt(); ok {
			return a == b
		}
	}
	if a, ok := v.asBytes(); ok {
		if b, ok := o.asBytes(); ok {
			return a == b
		}
	}
	return v.String() == o.String()
}

func (v Value) asInt() (int64, bool) {
	switch v.kind {
	case KindInt:
		return v.num, true
	case KindString:
		n, err := strconv.ParseInt(strings.TrimSpace(v.str), 10, 64)
		return n, err == nil
	}
	return 0, false
}

// asBytes normalizes byte-size spellings ("256mb", "4 GiB") to a count.
// Plain integers pass through so "268435456" can match "256mib".
func (v Value) asBytes() (uint64, bool) {
	switch v.kind {
	case KindInt:
		if v.num < 0 {
			return 0, false
		}
		return uint64(v.num), true
	case KindString:
		n, err := humanize.ParseBytes(strings.TrimSpace(v.str))
		return n, err == nil
	}
	return 0, false
}

// UnmarshalYAML decodes scalars into typed values and mappings into records.
// Non-integer scalars keep their literal spelling so values like "on" or
// "0755" round-trip unchanged.
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!int" {
			n, err := strconv.ParseInt(node.Value, 10, 64)
			if err != nil {
				return fmt.Errorf("parsing integer value '%s': %w", node.Value, err)
			}
			*v = IntValue(n)
			return nil
		}
		*v = StringValue(node.Value)
		return nil
	case yaml.MappingNode:
		fields := make(map[string]string)
		if err := node.Decode(&fields); err != nil {
			return fmt.Errorf("parsing record value: %w", err)
		}
		*v = RecordValue(fields)
		return nil
	default:
		return fmt.Errorf("unsupported value node at line %d: expected scalar or mapping", node.Line)
	}
}

// MarshalYAML emits the typed value in its natural yaml form.
func (v Value) MarshalYAML() (any, error) {
	switch v.kind {
	case KindNone:
		return nil, nil
	case KindInt:
		return v.num, nil
	case KindRecord:
		return v.rec, nil
	default:
		return v.str, nil
	}
}
