// Command foundry runs a protocol review session interactively from
// the terminal: it drafts, pauses for review, and reads the
// approve/reject decision from stdin.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/cerina/foundry-go/foundry"
	"github.com/cerina/foundry-go/workflow/emit"
	"github.com/cerina/foundry-go/workflow/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	query := flag.String("query", "Create a CBT protocol for managing social anxiety.", "protocol request to draft")
	session := flag.String("session", "", "session id (default: random)")
	verbose := flag.Bool("v", false, "log workflow steps to stderr")
	flag.Parse()

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

	var emitter emit.Emitter = emit.NewNullEmitter()
	if *verbose {
		emitter = emit.NewLogEmitter(os.Stderr, false)
	}

	f, err := foundry.New(chat, foundry.NewAlerter(cfg), st, emitter, nil)
	if err != nil {
		return err
	}

	sessionID := *session
	if sessionID == "" {
		sessionID = "cli_" + uuid.NewString()[:8]
	}
	fmt.Printf("session %s\n\n", sessionID)

	report, err := f.Start(ctx, sessionID, *query)
	if err != nil {
		return err
	}

	reader := bufio.NewReader(os.Stdin)
	for report.Status == foundry.ReportPaused {
		printReview(report)

		decision, err := readDecision(reader)
		if err != nil {
			return err
		}

		report, err = f.Review(ctx, sessionID, decision)
		if err != nil {
			return err
		}
	}

	fmt.Printf("=== %s (%s) ===\n\n%s\n", report.Status, report.FinalStatus, report.FinalDraft)
	return nil
}

func printReview(report foundry.Report) {
	fmt.Println("=== DRAFT FOR REVIEW ===")
	fmt.Println()
	fmt.Println(report.Draft)
	fmt.Println()
	if len(report.Critiques) > 0 {
		fmt.Println("--- critiques ---")
		for _, c := range report.Critiques {
			fmt.Printf("  [%s] %s (score %d): %s\n", c.Status, c.AgentName, c.Score, c.Feedback)
		}
		fmt.Println()
	}
}

func readDecision(reader *bufio.Reader) (foundry.Decision, error) {
	for {
		fmt.Print("approve or reject? ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return foundry.Decision{}, err
		}

		switch strings.TrimSpace(strings.ToLower(line)) {
		case "approve", "a":
			return foundry.Decision{Action: foundry.ActionApprove}, nil
		case "reject", "r":
			fmt.Print("feedback: ")
			feedback, err := reader.ReadString('\n')
			if err != nil {
				return foundry.Decision{}, err
			}
			return foundry.Decision{
				Action:   foundry.ActionReject,
				Feedback: strings.TrimSpace(feedback),
			}, nil
		}
		fmt.Println("please answer approve or reject")
	}
}
