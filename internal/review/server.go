// Package review exposes the human review channel as MCP tools: list the
// sessions waiting for a decision, inspect one, resume it with a decision,
// and retry a failed send.
package review

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/aescanero/dago-node-triage/internal/email"
	"github.com/aescanero/dago-node-triage/internal/session"
	"github.com/aescanero/dago-node-triage/internal/triage"
)

type workflow interface {
	Pending(ctx context.Context) ([]*session.Session, error)
	Session(ctx context.Context, sessionID string) (*session.Session, error)
	Resume(ctx context.Context, sessionID string, decision email.ReviewDecision) (*triage.Outcome, error)
	RetrySend(ctx context.Context, sessionID string) (*triage.Outcome, error)
}

// NewServer creates an MCP server with review tools.
func NewServer(wf workflow, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "triage-review", Version: version}, nil)

	tools := &Tools{wf: wf}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_pending",
		Description: "List triage sessions paused for human review",
	}, tools.ListPending)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_session",
		Description: "Get the stage, status, draft and processing log of a triage session",
	}, tools.GetSession)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "resume_session",
		Description: "Approve, edit or reject the draft of a paused session and continue it",
	}, tools.ResumeSession)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "retry_send",
		Description: "Retry sending the reply of a session whose send failed",
	}, tools.RetrySend)

	return server
}
