// pkg/registry/registry.go
package registry

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

//go:embed commands.json
var builtin []byte

func LoadRegistry(path string) (*CommandRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Default returns the registry compiled into the binary.
func Default() *CommandRegistry {
	reg, err := Parse(builtin)
	if err != nil {
		panic(fmt.Sprintf("embedded command registry: %v", err))
	}
	return reg
}

func Parse(data []byte) (*CommandRegistry, error) {
	var reg CommandRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(reg.Commands))
	for _, c := range reg.Commands {
		if c.Tag == "" {
			return nil, fmt.Errorf("command without tag")
		}
		if seen[c.Tag] {
			return nil, fmt.Errorf("duplicate command tag %q", c.Tag)
		}
		seen[c.Tag] = true
	}
	return &reg, nil
}

// Lookup finds a command by tag.
func (r *CommandRegistry) Lookup(tag string) (Command, bool) {
	for _, c := range r.Commands {
		if c.Tag == tag {
			return c, true
		}
	}
	return Command{}, false
}

// DefaultString returns a string default for a field, or "" when none is declared.
func (c Command) DefaultString(field string) string {
	if v, ok := c.Defaults[field].(string); ok {
		return v
	}
	return ""
}

// Tags lists command tags in alphabetical order.
func (r *CommandRegistry) Tags() []string {
	tags := make([]string, 0, len(r.Commands))
	for _, c := range r.Commands {
		tags = append(tags, c.Tag)
	}
	sort.Strings(tags)
	return tags
}
