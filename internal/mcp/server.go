package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/joescharf/kanban/internal/board"
	"github.com/joescharf/kanban/internal/models"
	"github.com/joescharf/kanban/internal/review"
	"github.com/joescharf/kanban/internal/store"
)

// Server exposes board operations as MCP tools.
type Server struct {
	board   *board.Service
	version string
}

// NewServer creates the MCP server wrapper.
func NewServer(svc *board.Service, version string) *Server {
	if version == "" {
		version = "dev"
	}
	return &Server{board: svc, version: version}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("kanban", s.version, server.WithToolCapabilities(true))

	srv.AddTool(s.listIssuesTool())
	srv.AddTool(s.showIssueTool())
	srv.AddTool(s.activeIssueTool())
	srv.AddTool(s.checkMoveTool())
	srv.AddTool(s.moveIssueTool())
	srv.AddTool(s.setSpecStatusTool())
	srv.AddTool(s.parseReviewTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// ---------------------------------------------------------------------------
// JSON shapes
// ---------------------------------------------------------------------------

type checklistOut struct {
	Text    string `json:"text"`
	Checked bool   `json:"checked"`
}

type issueOut struct {
	Slug        string         `json:"slug"`
	Type        string         `json:"type"`
	Stage       string         `json:"stage"`
	Title       string         `json:"title"`
	Owner       string         `json:"owner,omitempty"`
	Created     string         `json:"created,omitempty"`
	Description string         `json:"description,omitempty"`
	DoD         []checklistOut `json:"definition_of_done,omitempty"`
}

type specOut struct {
	Name          string                `json:"name"`
	Status        string                `json:"status"`
	ReviewRound   int                   `json:"review_round"`
	Completed     string                `json:"completed,omitempty"`
	Dependencies  []string              `json:"dependencies,omitempty"`
	ReviewHistory []models.ReviewRecord `json:"review_history,omitempty"`
}

type guidanceOut struct {
	Status      string `json:"status"`
	LastUpdated string `json:"last_updated"`
}

func toIssueOut(i *models.Issue) issueOut {
	out := issueOut{
		Slug:        i.Slug,
		Type:        string(i.Type),
		Stage:       string(i.Stage),
		Title:       i.Title,
		Owner:       i.Owner,
		Description: i.Description,
	}
	if !i.Created.IsZero() {
		out.Created = i.Created.Format(models.DateLayout)
	}
	for _, item := range i.DoD {
		out.DoD = append(out.DoD, checklistOut{Text: item.Text, Checked: item.Checked})
	}
	return out
}

func toSpecOut(sp *models.Spec) specOut {
	out := specOut{
		Name:          sp.Name,
		Status:        string(sp.Status),
		ReviewRound:   sp.ReviewRound,
		Dependencies:  sp.Dependencies,
		ReviewHistory: sp.ReviewHistory,
	}
	if sp.Completed != nil {
		out.Completed = sp.Completed.Format(models.DateLayout)
	}
	return out
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

// kanban_list_issues
func (s *Server) listIssuesTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("kanban_list_issues",
		mcp.WithDescription("List board issues in stage order (backlog, todo, in-progress, review, done). Returns a JSON array with slug, type, stage, title, owner and Definition of Done progress."),
		mcp.WithString("stage", mcp.Description("Stage filter: backlog, todo, in-progress, review, done")),
		mcp.WithString("type", mcp.Description("Type filter: feature, bug, task")),
	)
	return tool, s.handleListIssues
}

func (s *Server) handleListIssues(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter := store.IssueListFilter{}
	if v := request.GetString("stage", ""); v != "" {
		st, err := models.ParseStage(v)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		filter.Stage = st
	}
	if v := request.GetString("type", ""); v != "" {
		typ, err := models.ParseIssueType(v)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		filter.Type = typ
	}

	issues, err := s.board.ListIssues(ctx, filter)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list issues: %v", err)), nil
	}
	out := make([]issueOut, len(issues))
	for i, issue := range issues {
		out[i] = toIssueOut(issue)
	}
	return jsonResult(out)
}

// kanban_show_issue
func (s *Server) showIssueTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("kanban_show_issue",
		mcp.WithDescription("Show one issue with its specs (status, review round, review history) and technical guidance status."),
		mcp.WithString("issue", mcp.Required(), mcp.Description("Issue slug")),
	)
	return tool, s.handleShowIssue
}

func (s *Server) handleShowIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	slug, err := request.RequireString("issue")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: issue"), nil
	}
	view, err := s.board.ShowIssue(ctx, slug)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	out := struct {
		issueOut
		Specs    []specOut    `json:"specs"`
		Guidance *guidanceOut `json:"guidance,omitempty"`
	}{issueOut: toIssueOut(view.Issue), Specs: []specOut{}}
	for _, sp := range view.Specs {
		out.Specs = append(out.Specs, toSpecOut(sp))
	}
	if view.Guidance != nil {
		out.Guidance = &guidanceOut{
			Status:      string(view.Guidance.Status),
			LastUpdated: view.Guidance.LastUpdated.Format(models.DateLayout),
		}
	}
	return jsonResult(out)
}

// kanban_active_issue
func (s *Server) activeIssueTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("kanban_active_issue",
		mcp.WithDescription("Return the single issue in in-progress. Fails when there are none or several."),
	)
	return tool, s.handleActiveIssue
}

func (s *Server) handleActiveIssue(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	issue, err := s.board.ActiveIssue(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(toIssueOut(issue))
}

// kanban_check_move
func (s *Server) checkMoveTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("kanban_check_move",
		mcp.WithDescription("Check whether an issue may move to a stage without moving it. Only adjacent stages are allowed; forward moves report every unmet condition."),
		mcp.WithString("issue", mcp.Required(), mcp.Description("Issue slug")),
		mcp.WithString("stage", mcp.Required(), mcp.Description("Target stage")),
	)
	return tool, s.handleCheckMove
}

func (s *Server) handleCheckMove(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	slug, to, errResult := issueAndStage(request)
	if errResult != nil {
		return errResult, nil
	}
	m, err := s.board.CheckMove(ctx, slug, to)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Issue %s can move %s -> %s", slug, m.From, m.To)), nil
}

// kanban_move_issue
func (s *Server) moveIssueTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("kanban_move_issue",
		mcp.WithDescription("Move an issue to an adjacent stage. Forward moves must satisfy every stage condition; the move is rejected with the full list otherwise."),
		mcp.WithString("issue", mcp.Required(), mcp.Description("Issue slug")),
		mcp.WithString("stage", mcp.Required(), mcp.Description("Target stage")),
	)
	return tool, s.handleMoveIssue
}

func (s *Server) handleMoveIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	slug, to, errResult := issueAndStage(request)
	if errResult != nil {
		return errResult, nil
	}
	m, err := s.board.MoveIssue(ctx, slug, to)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !m.Committed {
		return mcp.NewToolResultText(fmt.Sprintf("[dry-run] Issue %s would move %s -> %s", slug, m.From, m.To)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Moved issue %s: %s -> %s", slug, m.From, m.To)), nil
}

func issueAndStage(request mcp.CallToolRequest) (string, models.Stage, *mcp.CallToolResult) {
	slug, err := request.RequireString("issue")
	if err != nil {
		return "", "", mcp.NewToolResultError("missing required parameter: issue")
	}
	raw, err := request.RequireString("stage")
	if err != nil {
		return "", "", mcp.NewToolResultError("missing required parameter: stage")
	}
	st, err := models.ParseStage(raw)
	if err != nil {
		return "", "", mcp.NewToolResultError(err.Error())
	}
	return slug, st, nil
}

// kanban_set_spec_status
func (s *Server) setSpecStatusTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("kanban_set_spec_status",
		mcp.WithDescription("Change a spec's status: pending -> in-progress -> in-review -> completed. Leaving in-review reads the spec's last '## Review' section: completed needs an APPROVED verdict, in-progress needs NEEDS_WORK and starts the next review round."),
		mcp.WithString("issue", mcp.Required(), mcp.Description("Issue slug")),
		mcp.WithString("spec", mcp.Required(), mcp.Description("Spec name")),
		mcp.WithString("status", mcp.Required(), mcp.Description("Target status: pending, in-progress, in-review, completed")),
	)
	return tool, s.handleSetSpecStatus
}

func (s *Server) handleSetSpecStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	slug, err := request.RequireString("issue")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: issue"), nil
	}
	name, err := request.RequireString("spec")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: spec"), nil
	}
	raw, err := request.RequireString("status")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: status"), nil
	}
	to, err := models.ParseSpecStatus(raw)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res, err := s.board.SetSpecStatus(ctx, slug, name, to)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out := struct {
		From     string               `json:"from"`
		To       string               `json:"to"`
		NoOp     bool                 `json:"no_op,omitempty"`
		Spec     specOut              `json:"spec"`
		Appended *models.ReviewRecord `json:"appended,omitempty"`
	}{
		From:     string(res.From),
		To:       string(res.To),
		NoOp:     res.NoOp,
		Spec:     toSpecOut(res.Spec),
		Appended: res.Appended,
	}
	return jsonResult(out)
}

// kanban_parse_review
func (s *Server) parseReviewTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("kanban_parse_review",
		mcp.WithDescription("Parse the last '## Review' section of a spec into verdict, failed criteria, missing tests and concerns. Without a spec name, uses the issue's in-review spec (most recently modified if several)."),
		mcp.WithString("issue", mcp.Required(), mcp.Description("Issue slug")),
		mcp.WithString("spec", mcp.Description("Spec name (optional)")),
	)
	return tool, s.handleParseReview
}

func (s *Server) handleParseReview(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	slug, err := request.RequireString("issue")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: issue"), nil
	}
	view, err := s.board.ReviewSpec(ctx, slug, request.GetString("spec", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if view.Review == nil {
		return mcp.NewToolResultError(fmt.Sprintf("spec %s has no review section", view.Spec.Name)), nil
	}
	out := struct {
		Spec   string         `json:"spec"`
		Round  int            `json:"review_round"`
		Review *review.Parsed `json:"review"`
	}{Spec: view.Spec.Name, Round: view.Spec.ReviewRound, Review: view.Review}
	return jsonResult(out)
}
