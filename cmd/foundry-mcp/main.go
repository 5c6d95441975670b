// Command foundry-mcp exposes the protocol review workflow as MCP
// tools over stdio, so agent hosts can drive drafting and human
// review as tool calls.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	mcp "trpc.group/trpc-go/trpc-mcp-go"

	"github.com/cerina/foundry-go/foundry"
	"github.com/cerina/foundry-go/workflow/emit"
	"github.com/cerina/foundry-go/workflow/store"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("foundry-mcp: %v", err)
	}
}

func run() error {
	_ = godotenv.Load()
	cfg := foundry.ConfigFromEnv()

	ctx := context.Background()

	chat, err := foundry.NewChatModel(ctx, cfg)
	if err != nil {
		return err
	}

	st, err := store.NewSQLiteStore[foundry.ProtocolState](cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	f, err := foundry.New(chat, foundry.NewAlerter(cfg), st, emit.NewLogEmitter(os.Stderr, true), nil)
	if err != nil {
		return err
	}

	tools := &toolServer{foundry: f}

	server := mcp.NewStdioServer("cerina-foundry", "1.0.0")
	server.RegisterTool(
		mcp.NewTool(
			"generate_cbt_protocol",
			mcp.WithDescription("Draft a CBT protocol for the given request and run it through safety and clinical review. Pauses for human approval."),
			mcp.WithString("user_query", mcp.Required(), mcp.Description("The protocol request, e.g. a condition or therapeutic goal.")),
			mcp.WithString("thread_id", mcp.Description("Session id to use. A fresh one is generated when omitted.")),
		),
		tools.handleGenerate,
	)
	server.RegisterTool(
		mcp.NewTool(
			"review_cbt_protocol",
			mcp.WithDescription("Submit a human approve/reject decision for a paused protocol session."),
			mcp.WithString("thread_id", mcp.Required(), mcp.Description("Session id of the paused review.")),
			mcp.WithString("action", mcp.Required(), mcp.Description("approve or reject.")),
			mcp.WithString("feedback", mcp.Description("Reviewer feedback; required in spirit when rejecting.")),
		),
		tools.handleReview,
	)
	server.RegisterTool(
		mcp.NewTool(
			"get_protocol_state",
			mcp.WithDescription("Read the current state of a protocol session without advancing it."),
			mcp.WithString("thread_id", mcp.Required(), mcp.Description("Session id to inspect.")),
		),
		tools.handleState,
	)

	return server.Start()
}

type toolServer struct {
	foundry *foundry.Foundry
}

type generateArgs struct {
	UserQuery string `json:"user_query"`
	ThreadID  string `json:"thread_id"`
}

type reviewArgs struct {
	ThreadID string `json:"thread_id"`
	Action   string `json:"action"`
	Feedback string `json:"feedback"`
}

type stateArgs struct {
	ThreadID string `json:"thread_id"`
}

// toolReport is the Report plus the session id, so the caller can
// carry the id into follow-up tool calls.
type toolReport struct {
	ThreadID string `json:"thread_id"`
	foundry.Report
}

func (t *toolServer) handleGenerate(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args generateArgs
	if err := parseArgs(req, &args); err != nil {
		return nil, err
	}
	if args.UserQuery == "" {
		return nil, fmt.Errorf("user_query is empty")
	}
	if args.ThreadID == "" {
		args.ThreadID = "mcp_" + uuid.NewString()[:8]
	}

	report, err := t.foundry.Start(ctx, args.ThreadID, args.UserQuery)
	if err != nil {
		return nil, err
	}
	return textResult(toolReport{ThreadID: args.ThreadID, Report: report})
}

func (t *toolServer) handleReview(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args reviewArgs
	if err := parseArgs(req, &args); err != nil {
		return nil, err
	}
	if args.ThreadID == "" {
		return nil, fmt.Errorf("thread_id is empty")
	}
	if args.Action != foundry.ActionApprove && args.Action != foundry.ActionReject {
		return nil, fmt.Errorf("action must be approve or reject, got %q", args.Action)
	}

	report, err := t.foundry.Review(ctx, args.ThreadID, foundry.Decision{
		Action:   args.Action,
		Feedback: args.Feedback,
	})
	if err != nil {
		return nil, err
	}
	return textResult(toolReport{ThreadID: args.ThreadID, Report: report})
}

func (t *toolServer) handleState(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args stateArgs
	if err := parseArgs(req, &args); err != nil {
		return nil, err
	}
	if args.ThreadID == "" {
		return nil, fmt.Errorf("thread_id is empty")
	}

	report, err := t.foundry.State(ctx, args.ThreadID)
	if err != nil {
		return nil, err
	}
	return textResult(toolReport{ThreadID: args.ThreadID, Report: report})
}

func parseArgs(req *mcp.CallToolRequest, out interface{}) error {
	if req == nil || req.Params.Arguments == nil {
		return fmt.Errorf("missing arguments")
	}
	data, err := json.Marshal(req.Params.Arguments)
	if err != nil {
		return fmt.Errorf("marshal arguments: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("unmarshal arguments: %w", err)
	}
	return nil
}

func textResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return mcp.NewTextResult(string(data)), nil
}
