package ledger

import (
	"errors"

	"github.com/gregorybednov/bountychain/account"
	"github.com/gregorybednov/bountychain/fault"
	"github.com/gregorybednov/bountychain/kv"
)

// SelectWinner completes a bounty in favour of one of its submissions and
// pays the escrowed reward, less the platform fee, to its developer.
// Only the bounty creator may call it, once.
func (l *Ledger) SelectWinner(env Env, bountyID, subID uint64) error {
	return l.atomic(func() error {
		b, err := l.getBounty(bountyID)
		if err != nil {
			return err
		}
		if env.Caller != b.Creator {
			return fault.ErrNotBountyCreator
		}
		if b.Status != StatusActive {
			return fault.ErrBountyNotActive
		}
		if subID < 1 || subID > b.SubmissionCount {
			return fault.ErrInvalidSubmissionID
		}
		s, err := l.getSubmission(bountyID, subID)
		if err != nil {
			return err
		}
		cfg, err := l.feeConfig()
		if err != nil {
			return err
		}

		// effects first: a reentrant call must find the bounty closed
		b.Status = StatusCompleted
		b.Winner = s.Developer
		s.IsWinner = true
		if err := l.putBounty(b); err != nil {
			return err
		}
		if err := l.putSubmission(s); err != nil {
			return err
		}

		paid, err := l.payout(b.RewardToken, b.RewardAmount, b.Winner, cfg.FeeRecipient, cfg.PlatformFeeBps)
		if err != nil {
			return err
		}
		l.emit(bountyCompleted(b, paid))
		return nil
	})
}

// CancelBounty closes an Active bounty and refunds the whole reward to
// its creator.
func (l *Ledger) CancelBounty(env Env, bountyID uint64) error {
	return l.atomic(func() error {
		b, err := l.getBounty(bountyID)
		if err != nil {
			return err
		}
		if env.Caller != b.Creator {
			return fault.ErrNotBountyCreator
		}
		if b.Status != StatusActive {
			return fault.ErrBountyNotActive
		}

		b.Status = StatusCancelled
		if err := l.putBounty(b); err != nil {
			return err
		}

		if err := l.refund(b.RewardToken, b.RewardAmount, b.Creator); err != nil {
			return err
		}
		l.emit(bountyCancelled(b))
		return nil
	})
}

// SetPlatformFee sets the fee rate applied at winner selection.
func (l *Ledger) SetPlatformFee(env Env, feeBps uint64) error {
	return l.updateFeeConfig(env, func(cfg *FeeConfig) error {
		if feeBps > MaxPlatformFeeBps {
			return fault.ErrFeeTooHigh
		}
		cfg.PlatformFeeBps = feeBps
		return nil
	})
}

// SetFeeRecipient sets the account that receives platform fees.
func (l *Ledger) SetFeeRecipient(env Env, recipient account.Address) error {
	return l.updateFeeConfig(env, func(cfg *FeeConfig) error {
		if recipient.IsZero() {
			return fault.ErrZeroAddress
		}
		cfg.FeeRecipient = recipient
		return nil
	})
}

// TransferOwnership hands the admin role to another account.
func (l *Ledger) TransferOwnership(env Env, newOwner account.Address) error {
	return l.updateFeeConfig(env, func(cfg *FeeConfig) error {
		if newOwner.IsZero() {
			return fault.ErrZeroAddress
		}
		l.emit(ownershipTransferred(cfg.Owner, newOwner))
		cfg.Owner = newOwner
		return nil
	})
}

// FeeConfig returns the current fee configuration.
func (l *Ledger) FeeConfig() (*FeeConfig, error) {
	return l.feeConfig()
}

func (l *Ledger) feeConfig() (*FeeConfig, error) {
	var cfg FeeConfig
	err := getJSON(l.store, feeConfigKey, &cfg)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, errors.New("fee configuration missing: ledger has no genesis")
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (l *Ledger) updateFeeConfig(env Env, update func(*FeeConfig) error) error {
	return l.atomic(func() error {
		cfg, err := l.feeConfig()
		if err != nil {
			return err
		}
		if env.Caller != cfg.Owner {
			return fault.ErrNotOwner
		}
		if err := update(cfg); err != nil {
			return err
		}
		return putJSON(l.store, feeConfigKey, cfg)
	})
}
