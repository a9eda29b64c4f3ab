package ledger

import (
	"math/big"
	"strconv"

	"github.com/gregorybednov/bountychain/account"
)

// event types
const (
	EventBountyCreated        = "bounty_created"
	EventSubmissionCreated    = "submission_created"
	EventBountyCompleted      = "bounty_completed"
	EventBountyCancelled      = "bounty_cancelled"
	EventOwnershipTransferred = "ownership_transferred"
)

// Attribute is a single key/value pair of an Event.
type Attribute struct {
	Key   string
	Value string
}

// Event records a committed state change for external observers.
type Event struct {
	Type       string
	Attributes []Attribute
}

// Get returns the value of the named attribute.
func (e Event) Get(key string) (string, bool) {
	for _, a := range e.Attributes {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

func u64(n uint64) string { return strconv.FormatUint(n, 10) }

func bountyCreated(b *Bounty) Event {
	return Event{
		Type: EventBountyCreated,
		Attributes: []Attribute{
			{"bounty_id", u64(b.ID)},
			{"creator", b.Creator.String()},
			{"title", b.Title},
			{"reward_token", b.RewardToken.String()},
			{"reward_amount", b.RewardAmount.String()},
			{"deadline", strconv.FormatInt(b.Deadline, 10)},
		},
	}
}

func submissionCreated(s *Submission) Event {
	return Event{
		Type: EventSubmissionCreated,
		Attributes: []Attribute{
			{"bounty_id", u64(s.BountyID)},
			{"submission_id", u64(s.ID)},
			{"developer", s.Developer.String()},
			{"solution_url", s.SolutionURL},
		},
	}
}

func bountyCompleted(b *Bounty, paid *big.Int) Event {
	return Event{
		Type: EventBountyCompleted,
		Attributes: []Attribute{
			{"bounty_id", u64(b.ID)},
			{"winner", b.Winner.String()},
			{"reward_token", b.RewardToken.String()},
			{"amount_paid", paid.String()},
		},
	}
}

func bountyCancelled(b *Bounty) Event {
	return Event{
		Type: EventBountyCancelled,
		Attributes: []Attribute{
			{"bounty_id", u64(b.ID)},
			{"reward_token", b.RewardToken.String()},
			{"amount_refunded", b.RewardAmount.String()},
		},
	}
}

func ownershipTransferred(previous, next account.Address) Event {
	return Event{
		Type: EventOwnershipTransferred,
		Attributes: []Attribute{
			{"previous_owner", previous.String()},
			{"new_owner", next.String()},
		},
	}
}
