package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/openintake/plaint/internal/normalize"
)

// MCPDeps holds dependencies for the MCP server. It reuses the HTTP layer's
// dependency set; the MCP surface is a thin alternative transport.
type MCPDeps struct {
	Deps
}

// NewMCPServer creates an MCP server exposing the intake service to agents:
// submitting text complaints, similarity search, and browsing stored rows.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"plaint",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("plaint — complaint intake and triage: classify, store, and search customer complaints."),
		server.WithRecovery(),
	)

	// Tools
	s.AddTool(
		mcp.NewTool("submit_complaint",
			mcp.WithDescription("Submit a text complaint for classification and storage."),
			mcp.WithString("company", mcp.Description("Company the complaint is about"), mcp.Required()),
			mcp.WithString("text", mcp.Description("The complaint text"), mcp.Required()),
		),
		mcpSubmitComplaint(deps),
	)

	s.AddTool(
		mcp.NewTool("search_complaints",
			mcp.WithDescription("Semantically search stored complaints and return the most similar ones."),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 5)")),
		),
		mcpSearchComplaints(deps),
	)

	s.AddTool(
		mcp.NewTool("list_complaints",
			mcp.WithDescription("List stored complaints with their classification labels."),
			mcp.WithNumber("limit", mcp.Description("Maximum number of rows (default 20)")),
		),
		mcpListComplaints(deps),
	)

	// Resources
	s.AddResource(
		mcp.NewResource(
			"complaints://recent",
			"Recent Complaints",
			mcp.WithResourceDescription("Last 10 stored complaints (summaries only)"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceRecent(deps),
	)

	return s
}

func mcpSubmitComplaint(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		company, err := req.RequireString("company")
		if err != nil {
			return mcpError("company is required"), nil
		}
		text, err := req.RequireString("text")
		if err != nil {
			return mcpError("text is required"), nil
		}

		record, err := deps.Intake.Process(ctx, company, normalize.Submission{Text: text})
		if err != nil {
			return mcpError(fmt.Sprintf("submission failed: %v", err)), nil
		}

		b, err := json.Marshal(record)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal record: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpSearchComplaints(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		limit := req.GetInt("limit", 5)
		if limit <= 0 {
			limit = 5
		}
		if limit > 50 {
			limit = 50
		}

		matches, err := deps.Searcher.Search(ctx, query, limit)
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}

		if len(matches) == 0 {
			return mcpText("[]"), nil
		}

		results := make([]SearchResult, len(matches))
		for i, m := range matches {
			results[i] = SearchResult{PageContent: m.Text, Metadata: m.Metadata, Score: m.Score}
		}

		b, err := json.Marshal(results)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpListComplaints(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := req.GetInt("limit", 20)
		if limit <= 0 {
			limit = 20
		}
		if limit > 100 {
			limit = 100
		}

		complaints, err := deps.Store.GetRecentComplaints(limit)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list complaints: %v", err)), nil
		}

		if len(complaints) == 0 {
			return mcpText("[]"), nil
		}

		b, err := json.Marshal(complaints)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal complaints: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceRecent(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		complaints, err := deps.Store.GetRecentComplaints(10)
		if err != nil {
			return nil, fmt.Errorf("failed to get recent complaints: %w", err)
		}

		type complaintSummary struct {
			ID        int64  `json:"id"`
			Company   string `json:"company"`
			CreatedAt string `json:"created_at"`
			Summary   string `json:"summary"`
		}

		summaries := make([]complaintSummary, len(complaints))
		for i, c := range complaints {
			summary := c.Complaint
			if utf8.RuneCountInString(summary) > 200 {
				runes := []rune(summary)
				summary = string(runes[:200]) + "..."
			}
			summaries[i] = complaintSummary{
				ID:        c.ID,
				Company:   c.Company,
				CreatedAt: c.CreatedAt.Format(time.RFC3339),
				Summary:   summary,
			}
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal complaints: %w", err)
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

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
