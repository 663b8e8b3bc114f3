// Package mcp exposes engine introspection as Model Context Protocol
// tools: listAnalyzers, engineMessages, and reloadRules, so an AI-assistant
// operator can inspect and nudge a running engine the same way the HTTP
// API does.
package mcp

import (
	"context"
	"fmt"

	gosdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ruaan-deysel/eventwatch/daemon/dto"
	"github.com/ruaan-deysel/eventwatch/daemon/logger"
)

// Engine is the subset of AnalyzerEngine the MCP tools need.
type Engine interface {
	ListAnalyzers() []dto.AnalyzerStatus
	EngineMessages() []dto.EngineMessage
	ReloadRules(programName string)
}

// Server wraps an MCP server registered with the engine introspection
// tools.
type Server struct {
	engine    Engine
	mcpServer *gosdk.Server
}

// NewServer builds a Server bound to engine and registers its tools.
func NewServer(engine Engine) *Server {
	s := &Server{engine: engine}
	s.mcpServer = gosdk.NewServer(&gosdk.Implementation{
		Name:    "eventwatch",
		Version: "1.0.0",
	}, nil)
	s.registerTools()
	return s
}

type reloadRulesInput struct {
	ProgramName string `json:"programName" jsonschema:"the program whose rules should be reloaded; empty reloads every program"`
}

func (s *Server) registerTools() {
	gosdk.AddTool(s.mcpServer, &gosdk.Tool{
		Name:        "listAnalyzers",
		Description: "List every registered program analyzer and its lifecycle state.",
	}, func(ctx context.Context, req *gosdk.CallToolRequest, _ struct{}) (*gosdk.CallToolResult, any, error) {
		return textResult(s.engine.ListAnalyzers())
	})

	gosdk.AddTool(s.mcpServer, &gosdk.Tool{
		Name:        "engineMessages",
		Description: "Return recent engine diagnostic messages.",
	}, func(ctx context.Context, req *gosdk.CallToolRequest, _ struct{}) (*gosdk.CallToolResult, any, error) {
		return textResult(s.engine.EngineMessages())
	})

	gosdk.AddTool(s.mcpServer, &gosdk.Tool{
		Name:        "reloadRules",
		Description: "Reload rule definitions for one program, or every program when programName is empty.",
	}, func(ctx context.Context, req *gosdk.CallToolRequest, input reloadRulesInput) (*gosdk.CallToolResult, any, error) {
		s.engine.ReloadRules(input.ProgramName)
		logger.Info("MCP: reloadRules invoked for %q", input.ProgramName)
		return textResult(map[string]string{"status": "reloaded", "program": input.ProgramName})
	})
}

func textResult(v any) (*gosdk.CallToolResult, any, error) {
	return &gosdk.CallToolResult{
		Content: []gosdk.Content{&gosdk.TextContent{Text: fmt.Sprintf("%+v", v)}},
	}, v, nil
}

// RunStdio serves the MCP server over stdin/stdout until ctx is
// cancelled. This is the transport used by local AI clients (Claude
// Desktop, Cursor) running alongside the engine.
func (s *Server) RunStdio(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &gosdk.StdioTransport{})
}
