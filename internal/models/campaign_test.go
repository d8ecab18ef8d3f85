package models

import (
	"encoding/json"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeature_DecodeFromBackend(t *testing.T) {
	raw := `{
		"id": 12,
		"type": "traffic_sign",
		"condition": "poor",
		"confidence": 0.91,
		"geometry": {"type": "Point", "coordinates": [4.3517, 50.8503]},
		"attributes": {"sign_code": "B1"},
		"image_ids": [3, 4]
	}`

	var f Feature
	require.NoError(t, json.Unmarshal([]byte(raw), &f))

	assert.True(t, f.Known())
	p, ok := f.Point()
	require.True(t, ok)
	assert.Equal(t, orb.Point{4.3517, 50.8503}, p)
	assert.Equal(t, []int{3, 4}, f.ImageIDs)
}

func TestFeature_UnknownTypeAndMissingGeometry(t *testing.T) {
	f := Feature{ID: 1, Type: "guardrail"}
	assert.False(t, f.Known())
	_, ok := f.Point()
	assert.False(t, ok)
}

func TestConditionRank(t *testing.T) {
	tests := []struct {
		condition Condition
		want      int
	}{
		{ConditionGood, 0},
		{ConditionFair, 1},
		{ConditionPoor, 2},
		{ConditionDamaged, 3},
		{"unknown", -1},
	}
	for _, tt := range tests {
		t.Run(string(tt.condition), func(t *testing.T) {
			assert.Equal(t, tt.want, ConditionRank(tt.condition))
		})
	}
}
