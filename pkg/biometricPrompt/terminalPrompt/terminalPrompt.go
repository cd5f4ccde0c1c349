package terminalPrompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/types"
	"go.uber.org/zap"
	"golang.org/x/term"
)

const DefaultMaxAttempts = 3

var ErrNoInteractiveTerminal = errors.New("terminal prompt: stdin is not an interactive terminal")

// TerminalPrompt asks an operator at a terminal to confirm presence. It stands in
// for a platform biometric sheet on hosts that have none: "y" approves, "n"
// counts as a failed match, "c" or an empty line cancels.
type TerminalPrompt struct {
	logger      *zap.Logger
	out         io.Writer
	modalities  []string
	maxAttempts int

	startOnce sync.Once
	in        io.Reader
	lines     chan lineResult
}

type lineResult struct {
	line string
	err  error
}

func NewTerminalPrompt(in io.Reader, out io.Writer, modalities []string, maxAttempts int, logger *zap.Logger) *TerminalPrompt {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &TerminalPrompt{
		logger:      logger,
		out:         out,
		in:          in,
		modalities:  modalities,
		maxAttempts: maxAttempts,
		lines:       make(chan lineResult),
	}
}

// NewStdioTerminalPrompt binds to the process stdin/stderr and refuses to start
// when stdin is not a terminal.
func NewStdioTerminalPrompt(modalities []string, maxAttempts int, logger *zap.Logger) (*TerminalPrompt, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil, ErrNoInteractiveTerminal
	}
	return NewTerminalPrompt(os.Stdin, os.Stderr, modalities, maxAttempts, logger), nil
}

// readLoop owns the reader for the life of the prompt so an abandoned challenge
// never leaves a blocked read that would swallow the next answer.
func (t *TerminalPrompt) readLoop() {
	r := bufio.NewReader(t.in)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			if err == io.EOF && line != "" {
				t.lines <- lineResult{line: line}
			}
			t.lines <- lineResult{err: err}
			close(t.lines)
			return
		}
		t.lines <- lineResult{line: line}
	}
}

func (t *TerminalPrompt) Authenticate(ctx context.Context, challenge *types.Challenge) (*types.ChallengeResult, error) {
	t.startOnce.Do(func() { go t.readLoop() })

	if len(t.modalities) == 0 {
		return &types.ChallengeResult{
			Outcome: types.ChallengeOutcomeError,
			Detail:  challenge.Dialog.NoBiometricsEnrolledMessage,
		}, nil
	}

	t.render(challenge)

	for attempt := 1; attempt <= t.maxAttempts; attempt++ {
		_, _ = fmt.Fprintf(t.out, "Approve? [y]es / [n]o / [c]ancel (%s): ", challenge.Dialog.NegativeButton)

		var res lineResult
		var ok bool
		select {
		case res, ok = <-t.lines:
		case <-ctx.Done():
			_, _ = fmt.Fprintln(t.out)
			return &types.ChallengeResult{Outcome: types.ChallengeOutcomeCancelled, Detail: "prompt abandoned"}, nil
		}
		if !ok || res.err == io.EOF {
			return &types.ChallengeResult{Outcome: types.ChallengeOutcomeCancelled, Detail: "input closed"}, nil
		}
		if res.err != nil {
			return &types.ChallengeResult{Outcome: types.ChallengeOutcomeError, Detail: res.err.Error()}, nil
		}

		switch strings.ToLower(strings.TrimSpace(res.line)) {
		case "y", "yes":
			return &types.ChallengeResult{Outcome: types.ChallengeOutcomeApproved}, nil
		case "", "c", "cancel":
			return &types.ChallengeResult{Outcome: types.ChallengeOutcomeCancelled}, nil
		default:
			if t.logger != nil {
				t.logger.Sugar().Debugw("Terminal challenge attempt rejected", "challenge_id", challenge.ID, "attempt", attempt)
			}
			if attempt < t.maxAttempts {
				_, _ = fmt.Fprintln(t.out, "Not recognized, try again.")
			}
		}
	}

	_, _ = fmt.Fprintln(t.out, challenge.Dialog.LockoutMessage)
	return &types.ChallengeResult{Outcome: types.ChallengeOutcomeDenied, Detail: challenge.Dialog.LockoutMessage}, nil
}

func (t *TerminalPrompt) render(challenge *types.Challenge) {
	d := challenge.Dialog
	_, _ = fmt.Fprintf(t.out, "\n== %s ==\n", d.Title)
	if d.Subtitle != "" {
		_, _ = fmt.Fprintln(t.out, d.Subtitle)
	}
	_, _ = fmt.Fprintln(t.out, challenge.Reason)
	if d.Description != "" {
		_, _ = fmt.Fprintln(t.out, d.Description)
	}
	if d.Hint != "" {
		_, _ = fmt.Fprintf(t.out, "(%s)\n", d.Hint)
	}
}

func (t *TerminalPrompt) EnrolledModalities(ctx context.Context) ([]string, error) {
	return append([]string(nil), t.modalities...), nil
}
