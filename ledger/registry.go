package ledger

import (
	"encoding/json"
	"fmt"

	"github.com/gregorybednov/bountychain/account"
	"github.com/gregorybednov/bountychain/fault"
)

// CreateBounty escrows the reward from the caller and records a new
// Active bounty. The caller must have approved CustodyAddress for at
// least p.RewardAmount of p.RewardToken.
func (l *Ledger) CreateBounty(env Env, p CreateBountyParams) (uint64, error) {
	var id uint64
	err := l.atomic(func() error {
		if p.Title == "" {
			return fault.ErrEmptyTitle
		}
		if p.Deadline <= env.Now {
			return fault.ErrPastDeadline
		}
		if p.RewardAmount == nil || p.RewardAmount.Sign() < 0 {
			return fault.ErrInvalidAmount
		}

		if err := l.deposit(env.Caller, p.RewardToken, p.RewardAmount); err != nil {
			return err
		}

		last, err := getCounter(l.store, bountyCountKey)
		if err != nil {
			return err
		}
		b := &Bounty{
			ID:           last + 1,
			Creator:      env.Caller,
			Title:        p.Title,
			Description:  p.Description,
			Requirements: p.Requirements,
			RewardToken:  p.RewardToken,
			RewardAmount: p.RewardAmount,
			Deadline:     p.Deadline,
			Status:       StatusActive,
		}
		if err := putCounter(l.store, bountyCountKey, b.ID); err != nil {
			return err
		}
		if err := l.putBounty(b); err != nil {
			return err
		}
		if err := l.store.Set(creatorKey(b.Creator, b.ID), nil); err != nil {
			return err
		}

		id = b.ID
		l.emit(bountyCreated(b))
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// GetBountyDetails returns the bounty with the given id.
func (l *Ledger) GetBountyDetails(id uint64) (*Bounty, error) {
	return l.getBounty(id)
}

// GetTotalBounties returns the number of bounties ever created.
func (l *Ledger) GetTotalBounties() (uint64, error) {
	return getCounter(l.store, bountyCountKey)
}

// GetUserBounties returns the ids of the bounties created by creator, in
// ascending order.
func (l *Ledger) GetUserBounties(creator account.Address) ([]uint64, error) {
	return indexIDs(l.store, creatorPrefix(creator))
}

// Filter selects bounties in ListBounties.
type Filter string

const (
	FilterAll       Filter = "all"
	FilterActive    Filter = "active"
	FilterCompleted Filter = "completed"
	FilterCancelled Filter = "cancelled"
	// FilterExpired is Active bounties past their deadline. The deadline
	// is advisory: such bounties still accept submissions and can still
	// be resolved.
	FilterExpired Filter = "expired"
)

// ParseFilter validates a filter name; the empty name means FilterAll.
func ParseFilter(s string) (Filter, error) {
	switch f := Filter(s); f {
	case "":
		return FilterAll, nil
	case FilterAll, FilterActive, FilterCompleted, FilterCancelled, FilterExpired:
		return f, nil
	}
	return "", fault.ErrUnknownFilter
}

func (f Filter) match(b *Bounty, now int64) bool {
	expired := now > b.Deadline
	switch f {
	case FilterActive:
		return b.Status == StatusActive && !expired
	case FilterCompleted:
		return b.Status == StatusCompleted
	case FilterCancelled:
		return b.Status == StatusCancelled
	case FilterExpired:
		return b.Status == StatusActive && expired
	}
	return true
}

// ListBounties returns the bounties matching f in id order. now is used
// to decide expiry.
func (l *Ledger) ListBounties(f Filter, now int64) ([]*Bounty, error) {
	out := []*Bounty{}
	prefix := bountyPrefix()
	err := l.store.Iterate(prefix, func(k, v []byte) error {
		var b Bounty
		if err := json.Unmarshal(v, &b); err != nil {
			return fmt.Errorf("corrupted record %q: %w", k, err)
		}
		if f.match(&b, now) {
			out = append(out, &b)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
