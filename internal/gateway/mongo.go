package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// oid decodes an identifier that may be a plain string, a number, an
// extended-JSON {"$oid": "..."} or a populated reference {"_id": ...}.
type oid string

func (o *oid) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*o = ""
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*o = oid(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		*o = oid(n.String())
		return nil
	}

	var obj struct {
		OID string `json:"$oid"`
		ID  *oid   `json:"_id"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return fmt.Errorf("decoding id %s: %w", b, err)
	}
	switch {
	case obj.OID != "":
		*o = oid(obj.OID)
	case obj.ID != nil:
		*o = *obj.ID
	default:
		*o = ""
	}
	return nil
}

// stamp decodes a timestamp that may be an RFC 3339 string, an extended-JSON
// {"$date": ...} or epoch milliseconds.
type stamp time.Time

var stampLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04", "2006-01-02"}

func (t *stamp) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}

	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			return nil
		}
		for _, layout := range stampLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				*t = stamp(parsed)
				return nil
			}
		}
		return fmt.Errorf("unrecognized timestamp %q", s)
	case '{':
		var obj struct {
			Date json.RawMessage `json:"$date"`
		}
		if err := json.Unmarshal(b, &obj); err != nil {
			return err
		}
		var long struct {
			N string `json:"$numberLong"`
		}
		if json.Unmarshal(obj.Date, &long) == nil && long.N != "" {
			return t.UnmarshalJSON([]byte(long.N))
		}
		return t.UnmarshalJSON(obj.Date)
	default:
		ms, err := strconv.ParseInt(string(b), 10, 64)
		if err != nil {
			return fmt.Errorf("unrecognized timestamp %s", b)
		}
		*t = stamp(time.UnixMilli(ms).UTC())
		return nil
	}
}

func (t stamp) Time() time.Time { return time.Time(t) }

// ptr returns nil for a zero stamp.
func (t *stamp) ptr() *time.Time {
	if t == nil || time.Time(*t).IsZero() {
		return nil
	}
	v := time.Time(*t)
	return &v
}

// flexInt decodes a number that the backend sometimes sends as a string.
type flexInt int

func (n *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(b)), `"`)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("decoding number %s: %w", b, err)
	}
	*n = flexInt(f)
	return nil
}
