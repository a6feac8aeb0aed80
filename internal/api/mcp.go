package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/yjkwon/devpin/internal/history"
	"github.com/yjkwon/devpin/internal/session"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Session *session.Session
}

// NewMCPServer creates an MCP server exposing the recorded requirements to
// development agents.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"devpin",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("devpin — browser feedback assistant. Records UI feedback as actionable development requirements."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("record_requirement",
			mcp.WithDescription("Record a development requirement in the history."),
			mcp.WithString("text", mcp.Description("The requirement text"), mcp.Required()),
			mcp.WithString("category", mcp.Description("Category: ui, function, style, bug or other (default other)")),
			mcp.WithString("location", mcp.Description("Where in the UI the requirement applies")),
			mcp.WithString("priority", mcp.Description("Priority: P0, P1 or P2 (default P1)")),
		),
		mcpRecordRequirement(deps),
	)

	s.AddTool(
		mcp.NewTool("search_requirements",
			mcp.WithDescription("Search recorded requirements by keyword; an empty query returns everything."),
			mcp.WithString("query", mcp.Description("Keyword matched against text and location")),
			mcp.WithString("category", mcp.Description("Restrict results to one category")),
		),
		mcpSearchRequirements(deps),
	)

	s.AddTool(
		mcp.NewTool("export_requirements",
			mcp.WithDescription("Export the full requirement history as a Markdown document."),
		),
		mcpExportRequirements(deps),
	)

	s.AddTool(
		mcp.NewTool("list_selections",
			mcp.WithDescription("List the UI locations currently selected in the preview."),
		),
		mcpListSelections(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"devpin://requirements",
			"Recorded Requirements",
			mcp.WithResourceDescription("All recorded requirements as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceRequirements(deps),
	)

	return s
}

func mcpRecordRequirement(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil || strings.TrimSpace(text) == "" {
			return mcpErrorResult("text is required"), nil
		}

		item := history.Item{
			Text:     text,
			Category: req.GetString("category", "other"),
			Location: req.GetString("location", "(no location)"),
			Priority: req.GetString("priority", "P1"),
		}
		if _, ok := deps.Session.History.SaveItem(item); !ok {
			return mcpErrorResult("failed to save requirement"), nil
		}

		return mcpTextResult(fmt.Sprintf("Recorded %s requirement: %s", item.Priority, text)), nil
	}
}

func mcpSearchRequirements(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query := req.GetString("query", "")
		items := deps.Session.History.Search(query)

		if category := req.GetString("category", ""); category != "" && category != "all" {
			filtered := items[:0]
			for _, item := range items {
				if item.Category == category {
					filtered = append(filtered, item)
				}
			}
			items = filtered
		}

		if len(items) == 0 {
			return mcpTextResult("[]"), nil
		}

		b, err := json.Marshal(items)
		if err != nil {
			return mcpErrorResult(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpTextResult(string(b)), nil
	}
}

func mcpExportRequirements(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcpTextResult(deps.Session.History.ExportToMarkdown()), nil
	}
}

func mcpListSelections(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		selections := deps.Session.Selections()
		if len(selections) == 0 {
			return mcpTextResult("[]"), nil
		}
		b, err := json.Marshal(selections)
		if err != nil {
			return mcpErrorResult(fmt.Sprintf("failed to marshal selections: %v", err)), nil
		}
		return mcpTextResult(string(b)), nil
	}
}

func mcpResourceRequirements(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		items := deps.Session.History.LoadAll()
		b, err := json.Marshal(items)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal requirements: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpTextResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpErrorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
