package mapcmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// StatRow is one key/value line of a statistics panel.
type StatRow struct {
	Key   string
	Value json.RawMessage
}

// Display renders the value for humans: strings unquoted, everything else as sent.
func (r StatRow) Display() string {
	var s string
	if err := json.Unmarshal(r.Value, &s); err == nil {
		return s
	}
	return string(r.Value)
}

// Stats keeps the key order of the JSON object it was decoded from.
type Stats []StatRow

func (s *Stats) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("stats must be an object")
	}

	rows := Stats{}
	seen := map[string]int{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("stats key is not a string")
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("stats value for %q: %w", key, err)
		}
		// a repeated key keeps its first position and its last value
		if i, dup := seen[key]; dup {
			rows[i].Value = value
			continue
		}
		seen[key] = len(rows)
		rows = append(rows, StatRow{Key: key, Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*s = rows
	return nil
}

func (s Stats) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, row := range s {
		if i > 0 {
			b.WriteByte(',')
		}
		key, err := json.Marshal(row.Key)
		if err != nil {
			return nil, err
		}
		b.Write(key)
		b.WriteByte(':')
		if len(row.Value) == 0 {
			b.WriteString("null")
		} else {
			b.Write(row.Value)
		}
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

// Keys lists the row keys in order.
func (s Stats) Keys() []string {
	keys := make([]string, len(s))
	for i, row := range s {
		keys[i] = row.Key
	}
	return keys
}

func (s Stats) String() string {
	parts := make([]string, len(s))
	for i, row := range s {
		parts[i] = row.Key + ": " + row.Display()
	}
	return strings.Join(parts, ", ")
}
