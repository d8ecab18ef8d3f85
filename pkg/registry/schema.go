// pkg/registry/schema.go
package registry

import "encoding/json"

type CommandRegistry struct {
	Version     string    `json:"version"`
	LastUpdated string    `json:"lastUpdated"`
	Commands    []Command `json:"commands"`
}

// Command describes one map command variant as it appears on the wire.
type Command struct {
	Tag         string                 `json:"tag"`
	DisplayName string                 `json:"displayName"`
	Description string                 `json:"description"`
	Status      string                 `json:"status"` // implemented | deferred
	Defaults    map[string]interface{} `json:"defaults"`
	Schema      json.RawMessage        `json:"schema"`
}

const (
	StatusImplemented = "implemented"
	StatusDeferred    = "deferred"
)
