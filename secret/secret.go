// Package secret wraps sensitive credential material (card numbers, CVC
// values) so it cannot reach logs or serialized output by accident. A
// [Value] redacts itself everywhere Go formats or marshals it; the raw
// material is only reachable through an explicit [Value.Reveal] call at the
// provider boundary.
package secret

import (
	"encoding/json"
	"log/slog"
)

const redacted = "[redacted]"

// Value holds a sensitive string. The zero value is empty.
type Value struct {
	v string
}

// New wraps raw sensitive material.
func New(v string) Value {
	return Value{v: v}
}

// Reveal returns the raw material. Call sites should be limited to the
// boundary that actually needs it.
func (v Value) Reveal() string {
	return v.v
}

// IsZero reports whether the value is empty.
func (v Value) IsZero() bool {
	return v.v == ""
}

// String satisfies fmt.Stringer with a redaction marker.
func (v Value) String() string {
	return redacted
}

// GoString keeps %#v output redacted as well.
func (v Value) GoString() string {
	return redacted
}

// LogValue redacts the value in log/slog output.
func (v Value) LogValue() slog.Value {
	return slog.StringValue(redacted)
}

// MarshalJSON always emits the redaction marker, never the raw material.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(redacted)
}

// UnmarshalJSON captures inbound material from request payloads.
func (v *Value) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v.v = s
	return nil
}
