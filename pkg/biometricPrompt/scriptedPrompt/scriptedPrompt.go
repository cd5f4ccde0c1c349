package scriptedPrompt

import (
	"context"
	"sync"
	"time"

	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/types"
)

// ScriptedPrompt resolves challenges from a scripted queue of outcomes instead of
// asking a human. Used by tests and by headless deployments that approve every
// challenge (e.g. CI signers).
type ScriptedPrompt struct {
	mu             sync.Mutex
	queue          []types.ChallengeOutcome
	defaultOutcome types.ChallengeOutcome
	modalities     []string
	modalitiesErr  error
	delay          time.Duration
	hold           <-chan struct{}

	inFlight    int
	maxInFlight int
	presented   []types.Challenge
}

func NewScriptedPrompt(defaultOutcome types.ChallengeOutcome, modalities ...string) *ScriptedPrompt {
	return &ScriptedPrompt{
		defaultOutcome: defaultOutcome,
		modalities:     modalities,
	}
}

// Enqueue appends outcomes consumed one per challenge before falling back to the default.
func (s *ScriptedPrompt) Enqueue(outcomes ...types.ChallengeOutcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, outcomes...)
}

func (s *ScriptedPrompt) SetModalities(modalities []string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modalities = modalities
	s.modalitiesErr = err
}

// SetDelay makes every challenge take d before resolving, simulating user latency.
func (s *ScriptedPrompt) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// HoldUntil blocks every challenge until ch is closed.
func (s *ScriptedPrompt) HoldUntil(ch <-chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hold = ch
}

func (s *ScriptedPrompt) Authenticate(ctx context.Context, challenge *types.Challenge) (*types.ChallengeResult, error) {
	s.mu.Lock()
	s.inFlight++
	if s.inFlight > s.maxInFlight {
		s.maxInFlight = s.inFlight
	}
	if challenge != nil {
		s.presented = append(s.presented, *challenge)
	}
	delay, hold := s.delay, s.hold
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inFlight--
		s.mu.Unlock()
	}()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return &types.ChallengeResult{Outcome: types.ChallengeOutcomeCancelled, Detail: "prompt abandoned"}, nil
		}
	}
	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return &types.ChallengeResult{Outcome: types.ChallengeOutcomeCancelled, Detail: "prompt abandoned"}, nil
		}
	}

	return &types.ChallengeResult{Outcome: s.next()}, nil
}

func (s *ScriptedPrompt) next() types.ChallengeOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return s.defaultOutcome
	}
	o := s.queue[0]
	s.queue = s.queue[1:]
	return o
}

func (s *ScriptedPrompt) EnrolledModalities(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.modalitiesErr != nil {
		return nil, s.modalitiesErr
	}
	return append([]string(nil), s.modalities...), nil
}

// MaxInFlight is the highest number of challenges that were ever open at once.
func (s *ScriptedPrompt) MaxInFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxInFlight
}

func (s *ScriptedPrompt) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

// Presented returns copies of every challenge shown so far, in order.
func (s *ScriptedPrompt) Presented() []types.Challenge {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.Challenge(nil), s.presented...)
}
