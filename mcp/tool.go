// Remote tool descriptions.
//
// Information Hiding:
// - Schema parsing hidden

package mcp

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/richinex/flightops/tools"
)

// Parameters extracts tool parameters from the JSON schema.
// Returns parameters in sorted order for deterministic output.
func (t ToolInfo) Parameters() []tools.ToolParameter {
	var schema struct {
		Properties map[string]struct {
			Type        string `json:"type"`
			Description string `json:"description"`
		} `json:"properties"`
		Required []string `json:"required"`
	}

	if err := json.Unmarshal(t.InputSchema, &schema); err != nil {
		return nil
	}

	requiredSet := make(map[string]bool)
	for _, r := range schema.Required {
		requiredSet[r] = true
	}

	names := make([]string, 0, len(schema.Properties))
	for name := range schema.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	params := make([]tools.ToolParameter, 0, len(names))
	for _, name := range names {
		prop := schema.Properties[name]
		paramType := prop.Type
		if paramType == "" {
			paramType = "string"
		}

		params = append(params, tools.ToolParameter{
			Name:        name,
			Description: prop.Description,
			ParamType:   paramType,
			Required:    requiredSet[name],
		})
	}

	return params
}

// RenderTools lists remote tools one per line as
// "- name(arg, ...): description", in server order.
func RenderTools(infos []ToolInfo) string {
	lines := make([]string, len(infos))
	for i, info := range infos {
		params := info.Parameters()
		args := make([]string, len(params))
		for j, p := range params {
			args[j] = p.Name
		}
		lines[i] = fmt.Sprintf("- %s(%s): %s", info.Name, strings.Join(args, ", "), info.Description)
	}
	return strings.Join(lines, "\n")
}
