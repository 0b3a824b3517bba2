// Package prompt renders the LLM prompts from embedded YAML templates.
//
// Templates are built section by section in file order, then {variable}
// placeholders are replaced by explicit string substitution rather than
// text/template, so braces in Markdown, JSON examples and LaTeX survive
// untouched.
package prompt

import (
	"embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed templates
var templatesFS embed.FS

// Template names shipped with the binary.
const (
	TemplateValidation     = "validation"
	TemplateParsing        = "parsing"
	TemplateExtraction     = "extraction"
	TemplateClassification = "classification"
)

// excludedSections carry template metadata, not prompt content.
var excludedSections = map[string]bool{
	"variable_schema": true,
	"metadata":        true,
	"template_config": true,
}

var sectionLabels = map[string]string{
	"role":        "Role",
	"instruction": "Instruction",
	"goal":        "Goal",
	"context":     "Context",
	"background":  "Background",
}

// Build loads the named embedded template, renders its sections, and
// substitutes variables. Variables required by the template's
// variable_schema must all be present.
func Build(name string, variables map[string]string) (string, error) {
	raw, err := templatesFS.ReadFile("templates/" + name + ".yaml")
	if err != nil {
		return "", fmt.Errorf("prompt template %q not found: %w", name, err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return "", fmt.Errorf("invalid prompt template %q: %w", name, err)
	}
	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return "", fmt.Errorf("prompt template %q is not a mapping", name)
	}
	root := doc.Content[0]

	if err := checkRequiredVariables(root, variables); err != nil {
		return "", fmt.Errorf("prompt template %q: %w", name, err)
	}

	var sections []string
	for i := 0; i+1 < len(root.Content); i += 2 {
		key := root.Content[i].Value
		value := root.Content[i+1]
		if excludedSections[key] {
			continue
		}
		if s := renderSection(key, value); s != "" {
			sections = append(sections, s)
		}
	}

	return substitute(strings.Join(sections, "\n\n"), variables), nil
}

func renderSection(key string, value *yaml.Node) string {
	switch value.Kind {
	case yaml.ScalarNode:
		if value.Tag == "!!null" {
			return ""
		}
		return sectionLabel(key) + ": " + strings.TrimRight(value.Value, "\n")
	case yaml.SequenceNode:
		if len(value.Content) == 0 {
			return ""
		}
		lines := []string{sectionLabel(key) + ":"}
		for _, item := range value.Content {
			lines = append(lines, "  - "+item.Value)
		}
		return strings.Join(lines, "\n")
	case yaml.MappingNode:
		lines := []string{sectionLabel(key) + ":"}
		for i := 0; i+1 < len(value.Content); i += 2 {
			subKey := sectionLabel(value.Content[i].Value)
			subValue := value.Content[i+1]
			if subValue.Kind == yaml.SequenceNode {
				lines = append(lines, "  "+subKey+":")
				for _, item := range subValue.Content {
					lines = append(lines, "    - "+item.Value)
				}
			} else {
				lines = append(lines, "  "+subKey+": "+strings.TrimRight(subValue.Value, "\n"))
			}
		}
		return strings.Join(lines, "\n")
	}
	return ""
}

func sectionLabel(key string) string {
	if label, ok := sectionLabels[key]; ok {
		return label
	}
	words := strings.Split(key, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

func checkRequiredVariables(root *yaml.Node, variables map[string]string) error {
	var schema *yaml.Node
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value == "variable_schema" {
			schema = root.Content[i+1]
			break
		}
	}
	if schema == nil || schema.Kind != yaml.MappingNode {
		return nil
	}

	var missing []string
	for i := 0; i+1 < len(schema.Content); i += 2 {
		name := schema.Content[i].Value
		if _, ok := variables[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("missing required variables: %s", strings.Join(missing, ", "))
	}
	return nil
}

// substitute replaces only known {name} placeholders, leaving every other
// brace pair alone.
func substitute(text string, variables map[string]string) string {
	for name, value := range variables {
		text = strings.ReplaceAll(text, "{"+name+"}", value)
	}
	return text
}
