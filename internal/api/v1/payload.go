package v1

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Payload is the data field of a RawFrame. It remembers whether it arrived
// as a byte array, a legacy hex string or null so it marshals back
// unchanged.
type Payload struct {
	raw    []byte
	values []int // set only when an array element is outside 0..255
	text   string
	legacy bool
	null   bool
	valid  bool
}

// PayloadFromBytes wraps a byte array payload.
func PayloadFromBytes(b []byte) Payload {
	cp := make([]byte, len(b))
	copy(cp, b)
	return Payload{raw: cp, valid: true}
}

// PayloadFromHex wraps a legacy "00 01 27 10" payload. Malformed text is
// kept verbatim but yields no bytes.
func PayloadFromHex(s string) Payload {
	p := Payload{text: s, legacy: true}
	p.raw, p.valid = parseHexBytes(s)
	return p
}

// Bytes returns the normalized byte sequence. ok is false when a legacy
// string could not be parsed or an array element is not a byte.
func (p Payload) Bytes() ([]byte, bool) {
	if !p.valid {
		return nil, false
	}
	return p.raw, true
}

// Err describes why the payload yields no bytes. The zero Payload and null
// are not errors.
func (p Payload) Err() error {
	for i, v := range p.values {
		if v < 0 || v > 0xFF {
			return fmt.Errorf("data[%d] = %d is outside 0..255", i, v)
		}
	}
	if p.legacy && !p.valid {
		return fmt.Errorf("data %q is not space-separated hex bytes", p.text)
	}
	return nil
}

// Hex renders the bytes as upper-case space-separated hex.
func (p Payload) Hex() string {
	if p.legacy {
		return p.text
	}
	values := p.ints()
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%02X", v)
	}
	return strings.Join(parts, " ")
}

func (p Payload) MarshalJSON() ([]byte, error) {
	if p.null {
		return []byte("null"), nil
	}
	if p.legacy {
		return json.Marshal(p.text)
	}
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, v := range p.ints() {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Itoa(v))
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func (p Payload) ints() []int {
	if p.values != nil {
		return p.values
	}
	out := make([]int, len(p.raw))
	for i, b := range p.raw {
		out[i] = int(b)
	}
	return out
}

func (p *Payload) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*p = Payload{null: true, valid: true}
		return nil
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*p = PayloadFromHex(s)
		return nil
	case b[0] == '[':
		var values []int
		if err := json.Unmarshal(b, &values); err != nil {
			return fmt.Errorf("data: %w", err)
		}
		raw := make([]byte, len(values))
		for i, v := range values {
			if v < 0 || v > 0xFF {
				*p = Payload{values: values}
				return nil
			}
			raw[i] = byte(v)
		}
		*p = Payload{raw: raw, valid: true}
		return nil
	default:
		return fmt.Errorf("data must be a byte array or hex string")
	}
}

func parseHexBytes(s string) ([]byte, bool) {
	fields := strings.Fields(s)
	out := make([]byte, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseUint(f, 16, 8)
		if err != nil {
			return nil, false
		}
		out = append(out, byte(v))
	}
	return out, true
}
