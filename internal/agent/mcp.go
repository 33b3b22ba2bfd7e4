package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Compile-time interface check.
var _ ToolSession = (*MCPSession)(nil)

// MCPSession adapts an MCP client session to the ToolSession interface.
// For in-process runs the session is connected over in-memory transports to
// the evidence tool server; serve-tools deployments connect over HTTP.
type MCPSession struct {
	session *mcp.ClientSession
}

// NewMCPSession wraps a connected MCP client session.
func NewMCPSession(session *mcp.ClientSession) *MCPSession {
	return &MCPSession{session: session}
}

// Tools lists the tools advertised by the server.
func (s *MCPSession) Tools(ctx context.Context) ([]ToolInfo, error) {
	res, err := s.session.ListTools(ctx, &mcp.ListToolsParams{})
	if err != nil {
		return nil, fmt.Errorf("mcp: list tools: %w", err)
	}
	out := make([]ToolInfo, 0, len(res.Tools))
	for _, t := range res.Tools {
		out = append(out, ToolInfo{Name: t.Name, Description: t.Description})
	}
	return out, nil
}

// CallTool invokes a tool and concatenates the text content of its result.
// A result flagged IsError is returned as a Go error carrying the text.
func (s *MCPSession) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	res, err := s.session.CallTool(ctx, &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		return "", fmt.Errorf("mcp: call %s: %w", name, err)
	}

	var parts []string
	for _, c := range res.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	text := strings.Join(parts, "\n")

	if res.IsError {
		return "", fmt.Errorf("mcp: tool %s failed: %s", name, text)
	}
	return text, nil
}

// Close terminates the underlying client session.
func (s *MCPSession) Close() error {
	return s.session.Close()
}
