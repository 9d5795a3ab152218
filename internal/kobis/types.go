package kobis

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// Text accepts a JSON string or number and keeps its textual form.
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(strings.TrimSpace(s))
		return nil
	}
	*t = Text(data)
	return nil
}

// Count is a non-negative integer that the API sometimes renders as a string
// with thousands separators. Unparseable values decode as unknown.
type Count struct {
	Value int64
	Known bool
}

func (c *Count) UnmarshalJSON(data []byte) error {
	var t Text
	if err := t.UnmarshalJSON(data); err != nil {
		return err
	}
	n, err := strconv.ParseInt(strings.ReplaceAll(string(t), ",", ""), 10, 64)
	if err != nil || n < 0 {
		*c = Count{}
		return nil
	}
	*c = Count{Value: n, Known: true}
	return nil
}

func (c Count) MarshalJSON() ([]byte, error) {
	if !c.Known {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatInt(c.Value, 10)), nil
}

// Int returns the value, or 0 when unknown.
func (c Count) Int() int {
	if !c.Known {
		return 0
	}
	return int(c.Value)
}
