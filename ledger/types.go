package ledger

import (
	"math/big"

	"github.com/gregorybednov/bountychain/account"
)

// Status is the lifecycle state of a bounty. Only Active can change.
type Status uint8

const (
	StatusActive Status = iota
	StatusCompleted
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusCompleted:
		return "completed"
	case StatusCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Bounty is the canonical record of a funded task.
type Bounty struct {
	ID              uint64          `json:"id"`
	Creator         account.Address `json:"creator"`
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	Requirements    string          `json:"requirements"`
	RewardToken     account.Address `json:"reward_token"`
	RewardAmount    *big.Int        `json:"reward_amount"`
	Deadline        int64           `json:"deadline"`
	Status          Status          `json:"status"`
	Winner          account.Address `json:"winner"`
	SubmissionCount uint64          `json:"submission_count"`
}

// Submission is one developer's answer to a bounty.
type Submission struct {
	ID          uint64          `json:"id"`
	BountyID    uint64          `json:"bounty_id"`
	Developer   account.Address `json:"developer"`
	SolutionURL string          `json:"solution_url"`
	Description string          `json:"description"`
	Timestamp   int64           `json:"timestamp"`
	IsWinner    bool            `json:"is_winner"`
}

// FeeConfig is the platform wide fee and admin record.
type FeeConfig struct {
	Owner          account.Address `json:"owner"`
	FeeRecipient   account.Address `json:"fee_recipient"`
	PlatformFeeBps uint64          `json:"platform_fee_bps"`
}

// Env is the execution context of a single call: who is calling and the
// time the call is executed at (block time on chain).
type Env struct {
	Caller account.Address
	Now    int64
}

// CreateBountyParams are the caller supplied fields of a new bounty.
type CreateBountyParams struct {
	Title        string
	Description  string
	Requirements string
	RewardToken  account.Address
	RewardAmount *big.Int
	Deadline     int64
}
