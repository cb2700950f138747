package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"calassist/internal/models"
)

var (
	// ErrNoPending is returned by Confirm when no delete is waiting.
	ErrNoPending = errors.New("no pending deletion")
	// ErrSelection is returned by Confirm for a selection outside the list.
	ErrSelection = errors.New("selection out of range")
)

// PendingDeletion is a delete request waiting for the user to pick a candidate.
type PendingDeletion struct {
	Request    models.ClassificationResult `json:"request"`
	Candidates []models.ParsedEvent        `json:"candidates"`
	CreatedAt  time.Time                   `json:"createdAt"`
}

// StateFile persists the pending deletion between invocations.
type StateFile struct {
	Path string
}

// Save replaces the pending deletion.
func (s StateFile) Save(p PendingDeletion) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal pending deletion: %w", err)
	}
	return os.WriteFile(s.Path, data, 0600)
}

// Load reads the pending deletion, returning ErrNoPending when there is none.
func (s StateFile) Load() (PendingDeletion, error) {
	var p PendingDeletion
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return p, ErrNoPending
		}
		return p, fmt.Errorf("failed to read pending deletion: %w", err)
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("failed to parse pending deletion: %w", err)
	}
	return p, nil
}

// Clear forgets the pending deletion.
func (s StateFile) Clear() error {
	if err := os.Remove(s.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear pending deletion: %w", err)
	}
	return nil
}

// Confirm deletes the n-th (1-based) candidate of the pending deletion and
// clears it. Zero deletes every candidate.
func (a *Assistant) Confirm(ctx context.Context, state StateFile, n int) ([]models.ParsedEvent, error) {
	pending, err := state.Load()
	if err != nil {
		return nil, err
	}
	if n < 0 || n > len(pending.Candidates) {
		return nil, fmt.Errorf("%w: %d of %d", ErrSelection, n, len(pending.Candidates))
	}

	chosen := pending.Candidates
	if n > 0 {
		chosen = pending.Candidates[n-1 : n]
	}
	if err := a.Delete(ctx, chosen...); err != nil {
		return nil, err
	}
	a.logger.Info("Confirmed deletion", "count", len(chosen))

	if a.dryRun {
		return chosen, nil
	}
	return chosen, state.Clear()
}
