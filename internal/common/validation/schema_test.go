package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const idsSchema = `{
  "type": "object",
  "properties": {
    "ids":   {"type": "array", "items": {"type": "integer"}},
    "color": {"type": "string"}
  },
  "required": ["ids"]
}`

func TestSchema_ValidateBytes(t *testing.T) {
	s := MustCompile("ids", []byte(idsSchema))

	tests := []struct {
		name    string
		doc     string
		valid   bool
		errorOn string
	}{
		{"valid", `{"ids":[1,2],"color":"#fff"}`, true, ""},
		{"unknown fields allowed", `{"ids":[],"extra":true}`, true, ""},
		{"missing ids", `{"color":"#fff"}`, false, "(root)"},
		{"string id", `{"ids":["1"]}`, false, "ids.0"},
		{"wrong color type", `{"ids":[1],"color":3}`, false, "color"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.ValidateBytes([]byte(tt.doc))
			require.NoError(t, err)
			assert.Equal(t, tt.valid, res.Valid, res.Summary())
			if tt.errorOn != "" {
				assert.True(t, res.HasErrors(tt.errorOn), res.Summary())
			}
		})
	}
}

func TestSchema_ValidateValue(t *testing.T) {
	s := MustCompile("ids", []byte(idsSchema))
	res, err := s.ValidateValue(map[string]interface{}{"ids": []interface{}{1, 2}})
	require.NoError(t, err)
	assert.True(t, res.Valid)
}

func TestCompile_RejectsBrokenSchema(t *testing.T) {
	_, err := Compile("broken", []byte(`{"type": 12`))
	assert.Error(t, err)
	assert.Panics(t, func() { MustCompile("broken", []byte(`{`)) })
}

func TestSchema_ValidateBytes_MalformedDocument(t *testing.T) {
	s := MustCompile("ids", []byte(idsSchema))
	_, err := s.ValidateBytes([]byte(`{"ids":`))
	assert.Error(t, err)
}
