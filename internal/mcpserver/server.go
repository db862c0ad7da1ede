package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer creates a configured MCP server with all sampling tools registered.
func NewMCPServer(cfg Config) *server.MCPServer {
	s := server.NewMCPServer("ledgersample", "1.0.0")
	client := NewAPIClient(cfg)
	h := NewHandlers(client)

	s.AddTool(ToolGeneratePlan, h.HandleGeneratePlan)
	s.AddTool(ToolPreviewSize, h.HandlePreviewSize)
	s.AddTool(ToolGetPlan, h.HandleGetPlan)
	s.AddTool(ToolListPlans, h.HandleListPlans)
	s.AddTool(ToolEngineHealth, h.HandleEngineHealth)

	return s
}
