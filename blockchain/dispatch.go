package blockchain

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/gregorybednov/bountychain/account"
	"github.com/gregorybednov/bountychain/blockchain/types"
	"github.com/gregorybednov/bountychain/fault"
	"github.com/gregorybednov/bountychain/kv"
	"github.com/gregorybednov/bountychain/ledger"
	"github.com/gregorybednov/bountychain/token"
)

// token event types
const (
	EventTokenTransfer = "token_transfer"
	EventTokenApproval = "token_approval"
	EventTokenMint     = "token_mint"

	EventTokenOwnershipTransferred = "token_ownership_transferred"
)

// nativeTokens resolves token addresses to tokens hosted on this chain.
type nativeTokens struct{}

func (nativeTokens) Token(st kv.Store, addr account.Address) (ledger.Token, error) {
	t, err := token.Load(st, addr)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// execute applies one verified transaction to st. It returns the DeliverTx
// data and the events to publish. st is left half written on error; the
// caller discards it.
func execute(st kv.Store, env ledger.Env, tx *signedTx) ([]byte, []ledger.Event, error) {
	l := ledger.New(st, nativeTokens{})

	var (
		result types.Result
		events []ledger.Event
		err    error
	)
	switch p := tx.Payload.(type) {
	case *types.CreateBounty:
		result.BountyID, err = createBounty(l, env, p)
	case *types.SubmitSolution:
		result.SubmissionID, err = l.SubmitSolution(env, p.BountyID, p.SolutionURL, p.Description)
		result.BountyID = p.BountyID
	case *types.SelectWinner:
		err = l.SelectWinner(env, p.BountyID, p.SubmissionID)
	case *types.CancelBounty:
		err = l.CancelBounty(env, p.BountyID)
	case *types.SetPlatformFee:
		err = l.SetPlatformFee(env, p.FeeBps)
	case *types.SetFeeRecipient:
		var to account.Address
		if to, err = account.Parse(p.Recipient); err == nil {
			err = l.SetFeeRecipient(env, to)
		}
	case *types.TransferOwnership:
		var to account.Address
		if to, err = account.Parse(p.NewOwner); err == nil {
			err = l.TransferOwnership(env, to)
		}
	case *types.TokenTransfer:
		events, err = tokenTransfer(st, env, p)
	case *types.TokenApprove:
		events, err = tokenApprove(st, env, p)
	case *types.TokenMint:
		events, err = tokenMint(st, env, p)
	case *types.TokenTransferOwnership:
		events, err = tokenTransferOwnership(st, env, p)
	default:
		return nil, nil, fmt.Errorf("no handler for %T", tx.Payload)
	}
	if err != nil {
		return nil, nil, err
	}

	events = append(l.Events(), events...)
	if result == (types.Result{}) {
		return nil, events, nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return nil, nil, err
	}
	return data, events, nil
}

func createBounty(l *ledger.Ledger, env ledger.Env, p *types.CreateBounty) (uint64, error) {
	tok, err := parseToken(p.RewardToken)
	if err != nil {
		return 0, err
	}
	amount, err := parseAmount(p.RewardAmount)
	if err != nil {
		return 0, err
	}
	return l.CreateBounty(env, ledger.CreateBountyParams{
		Title:        p.Title,
		Description:  p.Description,
		Requirements: p.Requirements,
		RewardToken:  tok,
		RewardAmount: amount,
		Deadline:     p.Deadline,
	})
}

// loadTokenArgs resolves the token, counterparty and amount shared by the
// token transactions.
func loadTokenArgs(st kv.Store, tokenField, who, amountField string) (*token.Token, account.Address, *big.Int, error) {
	addr, err := parseToken(tokenField)
	if err != nil {
		return nil, "", nil, err
	}
	other, err := account.Parse(who)
	if err != nil {
		return nil, "", nil, err
	}
	amount, err := parseAmount(amountField)
	if err != nil {
		return nil, "", nil, err
	}
	t, err := token.Load(st, addr)
	if err != nil {
		return nil, "", nil, err
	}
	return t, other, amount, nil
}

func tokenEvent(typ string, tok account.Address, pairs ...string) ledger.Event {
	e := ledger.Event{
		Type:       typ,
		Attributes: []ledger.Attribute{{Key: "token", Value: tok.String()}},
	}
	for i := 0; i+1 < len(pairs); i += 2 {
		e.Attributes = append(e.Attributes, ledger.Attribute{Key: pairs[i], Value: pairs[i+1]})
	}
	return e
}

func tokenTransfer(st kv.Store, env ledger.Env, p *types.TokenTransfer) ([]ledger.Event, error) {
	t, to, amount, err := loadTokenArgs(st, p.Token, p.To, p.Amount)
	if err != nil {
		return nil, err
	}
	ok, err := t.Transfer(env.Caller, to, amount)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fault.ErrTransferFailed
	}
	return []ledger.Event{tokenEvent(EventTokenTransfer, t.Info().Address,
		"from", env.Caller.String(), "to", to.String(), "amount", amount.String())}, nil
}

func tokenApprove(st kv.Store, env ledger.Env, p *types.TokenApprove) ([]ledger.Event, error) {
	t, spender, amount, err := loadTokenArgs(st, p.Token, p.Spender, p.Amount)
	if err != nil {
		return nil, err
	}
	if err := t.Approve(env.Caller, spender, amount); err != nil {
		return nil, err
	}
	return []ledger.Event{tokenEvent(EventTokenApproval, t.Info().Address,
		"owner", env.Caller.String(), "spender", spender.String(), "amount", amount.String())}, nil
}

func tokenTransferOwnership(st kv.Store, env ledger.Env, p *types.TokenTransferOwnership) ([]ledger.Event, error) {
	addr, err := parseToken(p.Token)
	if err != nil {
		return nil, err
	}
	newOwner, err := account.Parse(p.NewOwner)
	if err != nil {
		return nil, err
	}
	t, err := token.Load(st, addr)
	if err != nil {
		return nil, err
	}
	previous := t.Info().Owner
	if err := t.TransferOwnership(env.Caller, newOwner); err != nil {
		return nil, err
	}
	return []ledger.Event{tokenEvent(EventTokenOwnershipTransferred, addr,
		"previous_owner", previous.String(), "new_owner", newOwner.String())}, nil
}

func tokenMint(st kv.Store, env ledger.Env, p *types.TokenMint) ([]ledger.Event, error) {
	t, to, amount, err := loadTokenArgs(st, p.Token, p.To, p.Amount)
	if err != nil {
		return nil, err
	}
	if err := t.Mint(env.Caller, to, amount); err != nil {
		return nil, err
	}
	return []ledger.Event{tokenEvent(EventTokenMint, t.Info().Address,
		"to", to.String(), "amount", amount.String())}, nil
}
