package ledger

import (
	"math/big"

	"github.com/gregorybednov/bountychain/account"
	"github.com/gregorybednov/bountychain/fault"
)

// SplitFee divides amount between the winner and the fee recipient:
// fee = floor(amount * feeBps / 10000) and winner + fee == amount.
func SplitFee(amount *big.Int, feeBps uint64) (winner, fee *big.Int) {
	fee = new(big.Int).Mul(amount, new(big.Int).SetUint64(feeBps))
	fee.Quo(fee, new(big.Int).SetUint64(BasisPoints))
	winner = new(big.Int).Sub(amount, fee)
	return winner, fee
}

func (l *Ledger) token(addr account.Address, failure error) (Token, error) {
	t, err := l.tokens.Token(l.store, addr)
	if fault.IsErrNotFound(err) || fault.IsErrInvalidInput(err) {
		return nil, failure
	}
	return t, err
}

// deposit pulls amount of token from payer into custody.
func (l *Ledger) deposit(payer, tokenAddr account.Address, amount *big.Int) error {
	t, err := l.token(tokenAddr, fault.ErrDepositFailed)
	if err != nil {
		return err
	}
	ok, err := t.TransferFrom(CustodyAddress, payer, CustodyAddress, amount)
	if err != nil {
		return err
	}
	if !ok {
		return fault.ErrDepositFailed
	}
	return nil
}

// payout releases amount from custody: the fee share to feeRecipient and
// the rest to winner. It returns the winner's share. The caller must have
// written the bounty's terminal status before calling.
func (l *Ledger) payout(tokenAddr account.Address, amount *big.Int, winner, feeRecipient account.Address, feeBps uint64) (*big.Int, error) {
	t, err := l.token(tokenAddr, fault.ErrPayoutFailed)
	if err != nil {
		return nil, err
	}
	share, fee := SplitFee(amount, feeBps)

	ok, err := t.Transfer(CustodyAddress, winner, share)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fault.ErrPayoutFailed
	}

	if fee.Sign() > 0 {
		ok, err = t.Transfer(CustodyAddress, feeRecipient, fee)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fault.ErrFeeFailed
		}
	}
	return share, nil
}

// refund returns amount from custody to recipient. The caller must have
// written the bounty's terminal status before calling.
func (l *Ledger) refund(tokenAddr account.Address, amount *big.Int, recipient account.Address) error {
	t, err := l.token(tokenAddr, fault.ErrRefundFailed)
	if err != nil {
		return err
	}
	ok, err := t.Transfer(CustodyAddress, recipient, amount)
	if err != nil {
		return err
	}
	if !ok {
		return fault.ErrRefundFailed
	}
	return nil
}
