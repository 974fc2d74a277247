// Triage demo runs every email of a YAML inbox through the triage workflow
// in memory and asks for review decisions on the terminal.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aescanero/dago-node-triage/internal/app"
	"github.com/aescanero/dago-node-triage/internal/config"
	"github.com/aescanero/dago-node-triage/internal/email"
	"github.com/aescanero/dago-node-triage/internal/inbox"
	"github.com/aescanero/dago-node-triage/internal/session"
	"github.com/aescanero/dago-node-triage/internal/triage"
)

func main() {
	inboxFile := flag.String("inbox", "configs/inbox.yaml", "Path to YAML inbox")
	envFile := flag.String("env-file", "", "Path to env file")
	autoApprove := flag.Bool("auto-approve", false, "Approve every draft without prompting")
	flag.Parse()

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load env file: %v\n", err)
			os.Exit(1)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	cfg.SessionBackend = "memory"

	logger, err := initLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	wf, err := app.NewWorkflow(ctx, cfg, app.NewSessionStore(cfg, nil, logger), logger)
	if err != nil {
		logger.Fatal("failed to initialize workflow", zap.Error(err))
	}

	messages, err := inbox.NewFileSource(*inboxFile).Fetch(ctx)
	if err != nil {
		logger.Fatal("failed to read inbox", zap.Error(err))
	}

	var decide decider = autoDecider{}
	if !*autoApprove {
		decide = newPromptDecider(os.Stdin, os.Stdout)
	}

	for _, msg := range messages {
		if err := triageOne(ctx, wf, msg, decide, os.Stdout); err != nil {
			fmt.Fprintf(os.Stdout, "  error: %v\n", err)
		}
	}
}

// decider supplies review decisions for paused sessions
type decider interface {
	Decide(outcome *triage.Outcome) (email.ReviewDecision, error)
}

type autoDecider struct{}

func (autoDecider) Decide(*triage.Outcome) (email.ReviewDecision, error) {
	return email.ReviewDecision{Approved: true}, nil
}

// promptDecider asks on the terminal
type promptDecider struct {
	in  *bufio.Scanner
	out io.Writer
}

func newPromptDecider(in io.Reader, out io.Writer) *promptDecider {
	return &promptDecider{in: bufio.NewScanner(in), out: out}
}

func (p *promptDecider) Decide(outcome *triage.Outcome) (email.ReviewDecision, error) {
	fmt.Fprintf(p.out, "\n  --- draft for review ---\n%s  ------------------------\n", indent(outcome.Draft))
	if outcome.LastError != "" {
		fmt.Fprintf(p.out, "  escalated: %s\n", outcome.LastError)
	}

	for {
		fmt.Fprint(p.out, "  [a]pprove, [e]dit or [r]eject? ")
		line, err := p.readLine()
		if err != nil {
			return email.ReviewDecision{}, err
		}

		switch strings.ToLower(strings.TrimSpace(line)) {
		case "a", "approve":
			return email.ReviewDecision{Approved: true}, nil
		case "r", "reject":
			return email.ReviewDecision{Approved: false}, nil
		case "e", "edit":
			fmt.Fprintln(p.out, "  enter the reply, end with a single '.' line:")
			body, err := p.readBody()
			if err != nil {
				return email.ReviewDecision{}, err
			}
			return email.ReviewDecision{Approved: true, EditedResponse: body}, nil
		}
	}
}

func (p *promptDecider) readLine() (string, error) {
	if !p.in.Scan() {
		if err := p.in.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return p.in.Text(), nil
}

func (p *promptDecider) readBody() (string, error) {
	var lines []string
	for {
		line, err := p.readLine()
		if err != nil {
			return "", err
		}
		if line == "." {
			break
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n") + "\n", nil
}

// triageOne processes msg and resolves a review pause with decide
func triageOne(ctx context.Context, wf *triage.Workflow, msg inbox.Message, decide decider, out io.Writer) error {
	fmt.Fprintf(out, "\n== %s from %s: %s\n", msg.ID, msg.From, firstLine(msg.Body))

	outcome, err := wf.Process(ctx, msg)
	if err != nil {
		return err
	}

	if c := outcome.Classification; c != nil {
		fmt.Fprintf(out, "  classified: intent=%s urgency=%s topic=%q\n", c.Intent, c.Urgency, c.Topic)
	}

	if outcome.Paused() {
		decision, err := decide.Decide(outcome)
		if err != nil {
			return fmt.Errorf("review aborted: %w", err)
		}

		outcome, err = wf.Resume(ctx, outcome.SessionID, decision)
		if err != nil {
			return err
		}
	}

	fmt.Fprintf(out, "  path: %s\n", email.FormatTrail(outcome.Trail))
	if outcome.Status != session.StatusCompleted {
		return errors.New("session did not complete")
	}
	return nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func indent(s string) string {
	var b strings.Builder
	for _, line := range strings.SplitAfter(s, "\n") {
		if line == "" {
			continue
		}
		b.WriteString("  ")
		b.WriteString(line)
	}
	return b.String()
}

// initLogger logs to stderr so replies on stdout stay readable
func initLogger(level string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	return config.Build()
}
