package ledger

import (
	"encoding/json"
	"fmt"

	"github.com/gregorybednov/bountychain/account"
	"github.com/gregorybednov/bountychain/fault"
	"github.com/gregorybednov/bountychain/kv"
)

// SubmitSolution records the caller's solution to an Active bounty and
// returns its per-bounty id. Each developer may submit once per bounty.
// The bounty deadline is not checked here.
func (l *Ledger) SubmitSolution(env Env, bountyID uint64, solutionURL, description string) (uint64, error) {
	var id uint64
	err := l.atomic(func() error {
		b, err := l.getBounty(bountyID)
		if err != nil {
			return err
		}
		if b.Status != StatusActive {
			return fault.ErrBountyNotActive
		}
		if solutionURL == "" {
			return fault.ErrEmptySolutionURL
		}
		dup, err := kv.Has(l.store, submitterKey(bountyID, env.Caller))
		if err != nil {
			return err
		}
		if dup {
			return fault.ErrAlreadySubmitted
		}

		s := &Submission{
			ID:          b.SubmissionCount + 1,
			BountyID:    bountyID,
			Developer:   env.Caller,
			SolutionURL: solutionURL,
			Description: description,
			Timestamp:   env.Now,
		}
		b.SubmissionCount = s.ID

		if err := l.putSubmission(s); err != nil {
			return err
		}
		if err := l.store.Set(submitterKey(bountyID, env.Caller), []byte(u64(s.ID))); err != nil {
			return err
		}
		if err := l.store.Set(developerKey(env.Caller, bountyID), nil); err != nil {
			return err
		}
		if err := l.putBounty(b); err != nil {
			return err
		}

		id = s.ID
		l.emit(submissionCreated(s))
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// GetSubmission returns submission subID of bounty bountyID.
func (l *Ledger) GetSubmission(bountyID, subID uint64) (*Submission, error) {
	if _, err := l.getBounty(bountyID); err != nil {
		return nil, err
	}
	return l.getSubmission(bountyID, subID)
}

// GetUserSubmissions returns the ids of the bounties developer has
// submitted to, in ascending order.
func (l *Ledger) GetUserSubmissions(developer account.Address) ([]uint64, error) {
	return indexIDs(l.store, developerPrefix(developer))
}

// ListSubmissions returns every submission of a bounty in id order.
func (l *Ledger) ListSubmissions(bountyID uint64) ([]*Submission, error) {
	if _, err := l.getBounty(bountyID); err != nil {
		return nil, err
	}
	out := []*Submission{}
	err := l.store.Iterate(submissionPrefix(bountyID), func(k, v []byte) error {
		var s Submission
		if err := json.Unmarshal(v, &s); err != nil {
			return fmt.Errorf("corrupted record %q: %w", k, err)
		}
		out = append(out, &s)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
