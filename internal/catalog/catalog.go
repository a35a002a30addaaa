// Package catalog implements the Tool Catalog (spec §4.4): the aggregated,
// namespaced map from public tool name to (upstream, native name), built
// once from every ready Upstream Session and read-only thereafter.
package catalog

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"mcpd/internal/domain"
)

// SessionTools is one ready upstream's contribution to the catalog.
type SessionTools struct {
	UpstreamID          string
	Prefix              string
	CategoryDescription string
	Tools               []domain.NativeTool
}

// Catalog is the immutable, namespaced aggregation of every upstream's
// native tools plus the built-in search_tools entry.
type Catalog struct {
	entries map[string]domain.PublicTool
	targets map[string]domain.ToolTarget
	ordered []string
}

// Build aggregates sessionTools into a Catalog. Under the default
// NamespacePrefixed strategy, a collision on public_name is fatal
// (domain.ErrCatalogConflict). Under NamespaceFlat, a colliding name is
// renamed with a "_<upstream_id>" suffix (falling back to a numeric
// counter), mirroring the teacher's resolveFlatConflict.
func Build(sessionTools []SessionTools, strategy domain.NamespaceStrategy) (*Catalog, error) {
	sorted := make([]SessionTools, len(sessionTools))
	copy(sorted, sessionTools)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].UpstreamID < sorted[j].UpstreamID })

	entries := make(map[string]domain.PublicTool)
	targets := make(map[string]domain.ToolTarget)

	for _, st := range sorted {
		tools := make([]domain.NativeTool, len(st.Tools))
		copy(tools, st.Tools)
		sort.Slice(tools, func(i, j int) bool { return tools[i].Name < tools[j].Name })

		prefix := st.Prefix
		if prefix == "" {
			prefix = st.UpstreamID
		}

		for _, tool := range tools {
			publicName := prefix + "." + tool.Name
			if _, exists := entries[publicName]; exists {
				if strategy != domain.NamespaceFlat {
					return nil, fmt.Errorf("%w: %q (upstream %q)", domain.ErrCatalogConflict, publicName, st.UpstreamID)
				}
				resolved, err := resolveFlatConflict(publicName, st.UpstreamID, entries)
				if err != nil {
					return nil, fmt.Errorf("%w: %q: %w", domain.ErrCatalogConflict, publicName, err)
				}
				publicName = resolved
			}

			entries[publicName] = domain.PublicTool{
				PublicName:          publicName,
				NativeName:          tool.Name,
				Description:         tool.Description,
				InputSchema:         tool.InputSchema,
				UpstreamID:          st.UpstreamID,
				CategoryDescription: st.CategoryDescription,
				EmbeddingText:       embeddingText(publicName, tool.Description, tool.InputSchema, st.CategoryDescription),
			}
			targets[publicName] = domain.ToolTarget{UpstreamID: st.UpstreamID, NativeName: tool.Name}
		}
	}

	builtinSchema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query":   map[string]any{"type": "string"},
			"context": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
		"required": []any{"query"},
	}
	entries[domain.BuiltinSearchToolName] = domain.PublicTool{
		PublicName:    domain.BuiltinSearchToolName,
		NativeName:    domain.BuiltinSearchToolName,
		Description:   "Search the aggregated tool catalog for tools relevant to a natural-language query.",
		InputSchema:   builtinSchema,
		Builtin:       true,
		EmbeddingText: embeddingText(domain.BuiltinSearchToolName, "Search the aggregated tool catalog for tools relevant to a natural-language query.", builtinSchema, ""),
	}

	ordered := make([]string, 0, len(entries))
	for name := range entries {
		ordered = append(ordered, name)
	}
	sort.Strings(ordered)

	return &Catalog{entries: entries, targets: targets, ordered: ordered}, nil
}

func resolveFlatConflict(name, upstreamID string, existing map[string]domain.PublicTool) (string, error) {
	base := fmt.Sprintf("%s_%s", name, upstreamID)
	if _, ok := existing[base]; !ok {
		return base, nil
	}
	for i := 2; i < 100; i++ {
		candidate := fmt.Sprintf("%s_%s_%d", name, upstreamID, i)
		if _, ok := existing[candidate]; !ok {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("could not resolve conflict for %s", name)
}

// embeddingText is the frozen template (DESIGN.md Open Question 2):
// public_name, description, rendered required parameters, category
// description, each on its own line.
func embeddingText(publicName, description string, schema map[string]any, categoryDescription string) string {
	var b strings.Builder
	b.WriteString(publicName)
	b.WriteByte('\n')
	b.WriteString(description)
	b.WriteByte('\n')
	b.WriteString(renderRequiredParams(schema))
	b.WriteByte('\n')
	b.WriteString(categoryDescription)
	return b.String()
}

// renderRequiredParams renders "name (type), name (type), ..." for every
// required property, sorted by name, from an opaque JSON-schema-shaped map.
func renderRequiredParams(schema map[string]any) string {
	if schema == nil {
		return ""
	}
	required, _ := schema["required"].([]any)
	if len(required) == 0 {
		return ""
	}
	properties, _ := schema["properties"].(map[string]any)

	names := make([]string, 0, len(required))
	for _, r := range required {
		if name, ok := r.(string); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		paramType := "any"
		if properties != nil {
			if prop, ok := properties[name].(map[string]any); ok {
				if t, ok := prop["type"].(string); ok && t != "" {
					paramType = t
				}
			}
		}
		parts = append(parts, fmt.Sprintf("%s (%s)", name, paramType))
	}
	return strings.Join(parts, ", ")
}

// Lookup resolves a public name to its upstream target. Not found for the
// built-in tool (it has no upstream) or an unknown name.
func (c *Catalog) Lookup(publicName string) (domain.ToolTarget, bool) {
	target, ok := c.targets[publicName]
	return target, ok
}

// Describe returns the full catalog entry for a public name.
func (c *Catalog) Describe(publicName string) (domain.PublicTool, bool) {
	entry, ok := c.entries[publicName]
	return entry, ok
}

// Entries returns every catalog entry sorted by public_name.
func (c *Catalog) Entries() []domain.PublicTool {
	out := make([]domain.PublicTool, 0, len(c.ordered))
	for _, name := range c.ordered {
		out = append(out, c.entries[name])
	}
	return out
}

// Size returns the number of catalog entries, including the built-in tool.
func (c *Catalog) Size() int {
	return len(c.entries)
}

// MarshalSchema renders an entry's opaque input schema as raw JSON, for
// callers building a tools/list wire response.
func MarshalSchema(schema map[string]any) (json.RawMessage, error) {
	if schema == nil {
		return json.RawMessage("{}"), nil
	}
	return json.Marshal(schema)
}
