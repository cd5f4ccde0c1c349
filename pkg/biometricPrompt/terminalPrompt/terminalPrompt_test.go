package terminalPrompt

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testChallenge() *types.Challenge {
	return &types.Challenge{
		ID:     "challenge-1",
		Reason: "Confirm identity",
		Dialog: types.DialogMessages{Title: "Sign in"}.WithDefaults(),
	}
}

func TestTerminalPrompt_Outcomes(t *testing.T) {
	cases := []struct {
		name    string
		input   string
		outcome types.ChallengeOutcome
	}{
		{"approve", "y\n", types.ChallengeOutcomeApproved},
		{"approve word", "YES\n", types.ChallengeOutcomeApproved},
		{"cancel", "c\n", types.ChallengeOutcomeCancelled},
		{"empty line cancels", "\n", types.ChallengeOutcomeCancelled},
		{"retry then approve", "n\ny\n", types.ChallengeOutcomeApproved},
		{"lockout", "n\nn\nn\n", types.ChallengeOutcomeDenied},
		{"eof cancels", "", types.ChallengeOutcomeCancelled},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			p := NewTerminalPrompt(strings.NewReader(tc.input), &out, []string{"fingerprint"}, 3, zap.NewNop())

			res, err := p.Authenticate(context.Background(), testChallenge())
			require.NoError(t, err)
			assert.Equal(t, tc.outcome, res.Outcome)
			assert.Empty(t, res.Signature)
		})
	}
}

func TestTerminalPrompt_RendersDialog(t *testing.T) {
	var out bytes.Buffer
	p := NewTerminalPrompt(strings.NewReader("y\n"), &out, []string{"face"}, 1, nil)

	_, err := p.Authenticate(context.Background(), testChallenge())
	require.NoError(t, err)

	assert.Contains(t, out.String(), "== Sign in ==")
	assert.Contains(t, out.String(), "Confirm identity")
	assert.Contains(t, out.String(), types.DefaultDialogHint)
}

func TestTerminalPrompt_LockoutUsesDialogMessage(t *testing.T) {
	var out bytes.Buffer
	p := NewTerminalPrompt(strings.NewReader("n\n"), &out, []string{"face"}, 1, nil)

	res, err := p.Authenticate(context.Background(), testChallenge())
	require.NoError(t, err)
	assert.Equal(t, types.ChallengeOutcomeDenied, res.Outcome)
	assert.Equal(t, types.DefaultDialogLockoutMessage, res.Detail)
}

func TestTerminalPrompt_NoModalities(t *testing.T) {
	p := NewTerminalPrompt(strings.NewReader("y\n"), io.Discard, nil, 1, nil)

	res, err := p.Authenticate(context.Background(), testChallenge())
	require.NoError(t, err)
	assert.Equal(t, types.ChallengeOutcomeError, res.Outcome)
	assert.Equal(t, types.DefaultDialogNoBiometricsEnrolledMessage, res.Detail)
}

func TestTerminalPrompt_AbandonedResolvesCancelled(t *testing.T) {
	pr, pw := io.Pipe()
	defer func() { _ = pw.Close() }()
	p := NewTerminalPrompt(pr, io.Discard, []string{"face"}, 1, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	res, err := p.Authenticate(ctx, testChallenge())
	require.NoError(t, err)
	assert.Equal(t, types.ChallengeOutcomeCancelled, res.Outcome)
}
