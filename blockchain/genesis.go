package blockchain

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gregorybednov/bountychain/account"
	"github.com/gregorybednov/bountychain/blockchain/types"
	"github.com/gregorybednov/bountychain/kv"
	"github.com/gregorybednov/bountychain/ledger"
	"github.com/gregorybednov/bountychain/token"
)

// ParseAppState decodes the app_state of genesis.json.
func ParseAppState(raw []byte) (*types.AppState, error) {
	if len(raw) == 0 {
		return nil, errors.New("genesis app_state is empty")
	}
	var state types.AppState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("invalid genesis app_state: %w", err)
	}
	return &state, nil
}

// applyGenesis writes the fee configuration and the native tokens of
// state into st.
func applyGenesis(st kv.Store, state *types.AppState) error {
	owner, err := account.Parse(state.Owner)
	if err != nil {
		return fmt.Errorf("genesis owner: %w", err)
	}
	recipient := owner
	if state.FeeRecipient != "" {
		if recipient, err = account.Parse(state.FeeRecipient); err != nil {
			return fmt.Errorf("genesis fee_recipient: %w", err)
		}
	}
	fee := ledger.DefaultFeeBps
	if state.PlatformFeeBps != nil {
		fee = *state.PlatformFeeBps
	}

	l := ledger.New(st, nativeTokens{})
	if err := l.InitGenesis(ledger.FeeConfig{
		Owner:          owner,
		FeeRecipient:   recipient,
		PlatformFeeBps: fee,
	}); err != nil {
		return err
	}

	for _, gt := range state.Tokens {
		tokOwner, err := account.Parse(gt.Owner)
		if err != nil {
			return fmt.Errorf("genesis token %s owner: %w", gt.Symbol, err)
		}
		t, err := token.Create(st, gt.Symbol, gt.Name, gt.Decimals, tokOwner)
		if err != nil {
			return fmt.Errorf("genesis token %s: %w", gt.Symbol, err)
		}
		for _, b := range gt.Balances {
			holder, err := account.Parse(b.Address)
			if err != nil {
				return fmt.Errorf("genesis token %s holder: %w", gt.Symbol, err)
			}
			amount, err := parseAmount(b.Amount)
			if err != nil {
				return fmt.Errorf("genesis token %s balance of %s: %w", gt.Symbol, holder, err)
			}
			if err := t.Allocate(holder, amount); err != nil {
				return fmt.Errorf("genesis token %s balance of %s: %w", gt.Symbol, holder, err)
			}
		}
	}
	return nil
}
