// Package jsontime provides time types for the wire protocol.
//
// The protocol carries instants as integer milliseconds since the Unix
// epoch and durations as integer milliseconds, matching what JavaScript
// clients produce with Date.now(). The same representation is used in
// msgpack-encoded archival records.
package jsontime

import (
	"encoding/json"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Millis is a time.Time that serializes to/from integer milliseconds
// since the Unix epoch in JSON. The zero value marshals as 0.
type Millis time.Time

// Now returns the current time as Millis.
func Now() Millis {
	return Millis(time.Now())
}

// MarshalJSON implements json.Marshaler.
func (m Millis) MarshalJSON() ([]byte, error) {
	t := time.Time(m)
	if t.IsZero() {
		return []byte("0"), nil
	}
	return json.Marshal(t.UnixMilli())
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Millis) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var ms int64
	if err := json.Unmarshal(b, &ms); err != nil {
		return err
	}
	if ms == 0 {
		*m = Millis(time.Time{})
		return nil
	}
	*m = Millis(time.UnixMilli(ms).UTC())
	return nil
}

// EncodeMsgpack implements msgpack.CustomEncoder.
func (m Millis) EncodeMsgpack(enc *msgpack.Encoder) error {
	t := time.Time(m)
	if t.IsZero() {
		return enc.EncodeInt64(0)
	}
	return enc.EncodeInt64(t.UnixMilli())
}

// DecodeMsgpack implements msgpack.CustomDecoder.
func (m *Millis) DecodeMsgpack(dec *msgpack.Decoder) error {
	ms, err := dec.DecodeInt64()
	if err != nil {
		return err
	}
	if ms == 0 {
		*m = Millis(time.Time{})
		return nil
	}
	*m = Millis(time.UnixMilli(ms).UTC())
	return nil
}

// Time returns the underlying time.Time value.
func (m Millis) Time() time.Time {
	return time.Time(m)
}

// IsZero reports whether the instant is the zero time.
func (m Millis) IsZero() bool {
	return time.Time(m).IsZero()
}

// Sub returns the duration m-u.
func (m Millis) Sub(u Millis) time.Duration {
	return time.Time(m).Sub(time.Time(u))
}

// DurationMS is a time.Duration that serializes to/from integer
// milliseconds in JSON.
type DurationMS time.Duration

// MarshalJSON implements json.Marshaler.
func (d DurationMS) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).Milliseconds())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *DurationMS) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var ms int64
	if err := json.Unmarshal(b, &ms); err != nil {
		return err
	}
	*d = DurationMS(time.Duration(ms) * time.Millisecond)
	return nil
}

// EncodeMsgpack implements msgpack.CustomEncoder.
func (d DurationMS) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.EncodeInt64(time.Duration(d).Milliseconds())
}

// DecodeMsgpack implements msgpack.CustomDecoder.
func (d *DurationMS) DecodeMsgpack(dec *msgpack.Decoder) error {
	ms, err := dec.DecodeInt64()
	if err != nil {
		return err
	}
	*d = DurationMS(time.Duration(ms) * time.Millisecond)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d DurationMS) Duration() time.Duration {
	return time.Duration(d)
}
