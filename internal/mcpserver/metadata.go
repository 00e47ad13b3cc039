package mcpserver

import "github.com/vivekhaldar/mcpboot/internal/compile"

// CompiledToolsMetadata adapts a compile.CompiledTools table to the
// metadataSource interface _mcp_metadata answers from.
type CompiledToolsMetadata struct {
	tools *compile.CompiledTools
}

// NewCompiledToolsMetadata wraps tools for use as a Server's metadataSource.
func NewCompiledToolsMetadata(tools *compile.CompiledTools) CompiledToolsMetadata {
	return CompiledToolsMetadata{tools: tools}
}

// WhitelistDomains returns the domains the compiled tools were built against.
func (m CompiledToolsMetadata) WhitelistDomains() []string {
	return m.tools.WhitelistDomains
}

// ToolSources returns every compiled tool's name and handler source, in
// insertion order.
func (m CompiledToolsMetadata) ToolSources() []ToolSource {
	ordered := m.tools.Ordered()
	out := make([]ToolSource, 0, len(ordered))
	for _, t := range ordered {
		out = append(out, ToolSource{Name: t.Name, HandlerSource: t.HandlerSource})
	}
	return out
}
