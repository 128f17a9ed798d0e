package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/joescharf/issues/internal/issues"
	"github.com/joescharf/issues/internal/validate"
)

// Server exposes the issue service as MCP tools. Mutating tools act with
// the configured session token and go through the same checks as HTTP.
type Server struct {
	issues  *issues.Service
	token   string
	version string
	log     *slog.Logger
}

// NewServer creates the MCP server wrapper. token may be empty, in which case
// mutating tools report unauthorized.
func NewServer(svc *issues.Service, token, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{issues: svc, token: token, version: version, log: logger}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("issues", s.version, server.WithToolCapabilities(true))

	srv.AddTool(s.listIssuesTool())
	srv.AddTool(s.getIssueTool())
	srv.AddTool(s.createIssueTool())
	srv.AddTool(s.updateIssueTool())
	srv.AddTool(s.deleteIssueTool())
	srv.AddTool(s.listUsersTool())
	srv.AddTool(s.summaryTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	stdioServer := server.NewStdioServer(s.MCPServer())
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// toolError converts a service error into a tool result. Internal failures
// are logged and reported without detail.
func (s *Server) toolError(tool string, err error) *mcp.CallToolResult {
	var verr *validate.Errors
	switch {
	case errors.Is(err, issues.ErrUnauthorized):
		return mcp.NewToolResultError("unauthorized: set session.token (see 'issues user token')")
	case errors.As(err, &verr):
		return mcp.NewToolResultError(verr.Error())
	case errors.Is(err, issues.ErrNotFound):
		return mcp.NewToolResultError("issue not found")
	case errors.Is(err, issues.ErrInvalidReference):
		return mcp.NewToolResultError("invalid user")
	default:
		s.log.Error("tool failed", "tool", tool, "error", err)
		return mcp.NewToolResultError("internal error")
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// bodyFrom copies the named arguments that were supplied into a JSON object,
// so the validator sees exactly what the caller sent.
func bodyFrom(request mcp.CallToolRequest, keys ...string) []byte {
	args := request.GetArguments()
	body := make(map[string]any, len(keys))
	for _, k := range keys {
		if v, ok := args[k]; ok {
			body[k] = v
		}
	}
	data, _ := json.Marshal(body)
	return data
}

func issueID(request mcp.CallToolRequest) int64 {
	return int64(request.GetInt("id", 0))
}

// issues_list
func (s *Server) listIssuesTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("issues_list",
		mcp.WithDescription("List issues in creation order, one page at a time. Returns {issues, total, page, pageSize, pageCount}."),
		mcp.WithString("status", mcp.Description("Status filter: OPEN, IN_PROGRESS, CLOSED (omit for all)")),
		mcp.WithNumber("page", mcp.Description("1-based page number (default 1)")),
		mcp.WithNumber("page_size", mcp.Description("Issues per page (default 10, max 100)")),
	)
	return tool, s.handleListIssues
}

func (s *Server) handleListIssues(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	params := issues.ListParams{Status: request.GetString("status", "")}
	if page := request.GetInt("page", 0); page > 0 {
		params.Page = fmt.Sprint(page)
	}
	if size := request.GetInt("page_size", 0); size > 0 {
		params.PageSize = fmt.Sprint(size)
	}

	page, err := s.issues.List(ctx, params)
	if err != nil {
		return s.toolError("issues_list", err), nil
	}
	return jsonResult(map[string]any{
		"issues":    page.Issues,
		"total":     page.Total,
		"page":      page.Page,
		"pageSize":  page.PageSize,
		"pageCount": page.PageCount(),
	})
}

// issues_get
func (s *Server) getIssueTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("issues_get",
		mcp.WithDescription("Get a single issue by its numeric id."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Issue id")),
	)
	return tool, s.handleGetIssue
}

func (s *Server) handleGetIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	issue, err := s.issues.Get(ctx, issueID(request))
	if err != nil {
		return s.toolError("issues_get", err), nil
	}
	return jsonResult(issue)
}

// issues_create
func (s *Server) createIssueTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("issues_create",
		mcp.WithDescription("Create a new issue. New issues are OPEN and unassigned. Returns the created issue as JSON."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Issue title (1-255 characters)")),
		mcp.WithString("description", mcp.Required(), mcp.Description("Issue description (markdown)")),
	)
	return tool, s.handleCreateIssue
}

func (s *Server) handleCreateIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	issue, err := s.issues.Create(ctx, s.token, bodyFrom(request, "title", "description"))
	if err != nil {
		return s.toolError("issues_create", err), nil
	}
	return jsonResult(issue)
}

// issues_update
func (s *Server) updateIssueTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("issues_update",
		mcp.WithDescription("Edit or assign an issue. Only the fields supplied are changed. Pass assignedToUserId as null or \"\" to unassign. Returns the updated issue as JSON."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Issue id")),
		mcp.WithString("title", mcp.Description("New title")),
		mcp.WithString("description", mcp.Description("New description")),
		mcp.WithString("status", mcp.Description("New status: OPEN, IN_PROGRESS, CLOSED")),
		mcp.WithString("assignedToUserId", mcp.Description("User id to assign (see issues_list_users)")),
	)
	return tool, s.handleUpdateIssue
}

func (s *Server) handleUpdateIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	body := bodyFrom(request, "title", "description", "status", "assignedToUserId")
	issue, err := s.issues.Edit(ctx, s.token, issueID(request), body)
	if err != nil {
		return s.toolError("issues_update", err), nil
	}
	return jsonResult(issue)
}

// issues_delete
func (s *Server) deleteIssueTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("issues_delete",
		mcp.WithDescription("Permanently delete an issue."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Issue id")),
	)
	return tool, s.handleDeleteIssue
}

func (s *Server) handleDeleteIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := issueID(request)
	if err := s.issues.Delete(ctx, s.token, id); err != nil {
		return s.toolError("issues_delete", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted issue %d", id)), nil
}

// issues_list_users
func (s *Server) listUsersTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("issues_list_users",
		mcp.WithDescription("List users that issues can be assigned to. Returns a JSON array of {id, name, email}."),
	)
	return tool, s.handleListUsers
}

func (s *Server) handleListUsers(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	users, err := s.issues.ListUsers(ctx)
	if err != nil {
		return s.toolError("issues_list_users", err), nil
	}
	type userOut struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	out := make([]userOut, len(users))
	for i, u := range users {
		out[i] = userOut{ID: u.ID, Name: u.Name, Email: u.Email}
	}
	return jsonResult(out)
}

// issues_summary
func (s *Server) summaryTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("issues_summary",
		mcp.WithDescription("Count issues by status and score backlog health (0-100)."),
	)
	return tool, s.handleSummary
}

func (s *Server) handleSummary(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sum, err := s.issues.Summary(ctx)
	if err != nil {
		return s.toolError("issues_summary", err), nil
	}
	return jsonResult(sum)
}
