// cmd/tools/registry-updater/main.go
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"mapping-viewer/internal/mapcmd"
	"mapping-viewer/pkg/registry"
)

const defaultPath = "pkg/registry/commands.json"

func main() {
	updateCmd := flag.NewFlagSet("update", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)

	updatePath := updateCmd.String("path", defaultPath, "Path to registry file")
	tag := updateCmd.String("tag", "", "Command tag (e.g., highlight_features)")
	field := updateCmd.String("field", "", "Field to update (status, displayName, description, color)")
	value := updateCmd.String("value", "", "New value for the field")

	validatePath := validateCmd.String("path", defaultPath, "Path to registry file")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "update":
		updateCmd.Parse(os.Args[2:])
		if *tag == "" || *field == "" || *value == "" {
			fmt.Println("Error: tag, field, and value are required for update.")
			updateCmd.Usage()
			os.Exit(1)
		}
		if err := updateCommand(*updatePath, *tag, *field, *value); err != nil {
			fmt.Printf("Error updating command: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Updated command %s, field %s to %s\n", *tag, *field, *value)

	case "validate":
		validateCmd.Parse(os.Args[2:])
		n, err := validateRegistry(*validatePath)
		if err != nil {
			fmt.Printf("Registry validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Registry validation passed. Found %d commands.\n", n)

	case "help":
		fallthrough
	default:
		help()
	}
}

func updateCommand(path, tag, field, value string) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	found := false
	for i := range reg.Commands {
		c := &reg.Commands[i]
		if c.Tag != tag {
			continue
		}
		found = true
		switch field {
		case "status":
			if value != registry.StatusImplemented && value != registry.StatusDeferred {
				return fmt.Errorf("invalid status %q", value)
			}
			c.Status = value
		case "displayName":
			c.DisplayName = value
		case "description":
			c.Description = value
		case "color":
			if c.Defaults == nil {
				c.Defaults = map[string]interface{}{}
			}
			c.Defaults["color"] = value
		default:
			return fmt.Errorf("unknown field: %s", field)
		}
		break
	}
	if !found {
		return fmt.Errorf("command %s not found", tag)
	}

	if _, err := mapcmd.NewDecoder(reg); err != nil {
		return fmt.Errorf("updated registry is invalid: %w", err)
	}
	reg.LastUpdated = time.Now().Format("2006-01-02")
	return saveRegistry(reg, path)
}

// validateRegistry checks every tag has a variant and every schema compiles.
func validateRegistry(path string) (int, error) {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return 0, fmt.Errorf("failed to load registry: %w", err)
	}
	if len(reg.Commands) == 0 {
		return 0, fmt.Errorf("registry contains no commands")
	}

	known := map[string]bool{}
	for _, tag := range mapcmd.Tags {
		known[tag] = true
	}
	for _, c := range reg.Commands {
		if !known[c.Tag] {
			return 0, fmt.Errorf("command %s has no decoder", c.Tag)
		}
		if c.DisplayName == "" {
			return 0, fmt.Errorf("command %s missing required field: displayName", c.Tag)
		}
		if c.Status != registry.StatusImplemented && c.Status != registry.StatusDeferred {
			return 0, fmt.Errorf("command %s has invalid status %q", c.Tag, c.Status)
		}
	}

	if _, err := mapcmd.NewDecoder(reg); err != nil {
		return 0, err
	}
	return len(reg.Commands), nil
}

func saveRegistry(reg *registry.CommandRegistry, path string) error {
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write registry file: %w", err)
	}
	return nil
}

func help() {
	fmt.Print(`
Usage: registry-updater <command> [flags]

Commands:
  update    Update a field of a map command
  validate  Validate the registry file
  help      Show this help message

Examples:
  registry-updater update -tag show_heatmap -field status -value implemented
  registry-updater update -tag highlight_features -field color -value "#E74C3C"
  registry-updater validate -path pkg/registry/commands.json

Use 'registry-updater <command> -h' for more information about a command.
`+"\n")
}
