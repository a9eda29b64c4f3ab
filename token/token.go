// Package token is the chain's native fungible token: balances,
// allowances and owner-only minting, kept in the same store as the bounty
// ledger so that both commit or roll back together.
package token

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/gregorybednov/bountychain/account"
	"github.com/gregorybednov/bountychain/fault"
	"github.com/gregorybednov/bountychain/kv"
)

// MaxAmount is the largest representable balance, 2^256-1.
var MaxAmount = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// Info describes a token.
type Info struct {
	Address     account.Address `json:"address"`
	Symbol      string          `json:"symbol"`
	Name        string          `json:"name"`
	Decimals    uint8           `json:"decimals"`
	Owner       account.Address `json:"owner"`
	TotalSupply *big.Int        `json:"total_supply"`
}

// Token is a handle on one token's state in a store.
type Token struct {
	store kv.Store
	info  Info
}

// AddressFor returns the address of the native token with symbol.
func AddressFor(symbol string) account.Address {
	return account.FromName("token/" + symbol)
}

func infoKey(addr account.Address) []byte {
	return []byte(fmt.Sprintf("token:%s", addr))
}

func balanceKey(tok, owner account.Address) []byte {
	return []byte(fmt.Sprintf("balance:%s:%s", tok, owner))
}

func allowanceKey(tok, owner, spender account.Address) []byte {
	return []byte(fmt.Sprintf("allowance:%s:%s:%s", tok, owner, spender))
}

// Create registers a new token with zero supply. Its address is derived
// from the symbol.
func Create(st kv.Store, symbol, name string, decimals uint8, owner account.Address) (*Token, error) {
	if symbol == "" {
		return nil, fault.InvalidInputError("token symbol cannot be empty")
	}
	if owner.IsZero() {
		return nil, fault.ErrZeroAddress
	}
	addr := AddressFor(symbol)
	exists, err := kv.Has(st, infoKey(addr))
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fault.ErrTokenExists
	}
	t := &Token{
		store: st,
		info: Info{
			Address:     addr,
			Symbol:      symbol,
			Name:        name,
			Decimals:    decimals,
			Owner:       owner,
			TotalSupply: new(big.Int),
		},
	}
	return t, t.saveInfo()
}

// Load opens an existing token.
func Load(st kv.Store, addr account.Address) (*Token, error) {
	data, err := st.Get(infoKey(addr))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, fault.ErrTokenNotFound
	}
	if err != nil {
		return nil, err
	}
	t := &Token{store: st}
	if err := json.Unmarshal(data, &t.info); err != nil {
		return nil, fmt.Errorf("corrupted token %s: %w", addr, err)
	}
	return t, nil
}

// Info returns a copy of the token description.
func (t *Token) Info() Info {
	info := t.info
	info.TotalSupply = new(big.Int).Set(t.info.TotalSupply)
	return info
}

func (t *Token) saveInfo() error {
	data, err := json.Marshal(&t.info)
	if err != nil {
		return err
	}
	return t.store.Set(infoKey(t.info.Address), data)
}

func (t *Token) getAmount(key []byte) (*big.Int, error) {
	data, err := t.store.Get(key)
	if errors.Is(err, kv.ErrNotFound) {
		return new(big.Int), nil
	}
	if err != nil {
		return nil, err
	}
	n, ok := new(big.Int).SetString(string(data), 10)
	if !ok {
		return nil, fmt.Errorf("corrupted amount at %q", key)
	}
	return n, nil
}

func (t *Token) putAmount(key []byte, n *big.Int) error {
	if n.Sign() == 0 {
		return t.store.Delete(key)
	}
	return t.store.Set(key, []byte(n.String()))
}

func validAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 || amount.Cmp(MaxAmount) > 0 {
		return fault.ErrInvalidAmount
	}
	return nil
}

func (t *Token) BalanceOf(owner account.Address) (*big.Int, error) {
	return t.getAmount(balanceKey(t.info.Address, owner))
}

func (t *Token) Allowance(owner, spender account.Address) (*big.Int, error) {
	return t.getAmount(allowanceKey(t.info.Address, owner, spender))
}

// Approve sets the amount spender may move out of owner's balance.
func (t *Token) Approve(owner, spender account.Address, amount *big.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	if owner.IsZero() || spender.IsZero() {
		return fault.ErrZeroAddress
	}
	return t.putAmount(allowanceKey(t.info.Address, owner, spender), amount)
}

// Transfer moves amount from sender to to. It reports false when the
// sender's balance is too small or to is empty.
func (t *Token) Transfer(sender, to account.Address, amount *big.Int) (bool, error) {
	if err := validAmount(amount); err != nil {
		return false, err
	}
	return t.move(sender, to, amount)
}

// TransferFrom moves amount from from to to on behalf of spender, using
// up spender's allowance. An allowance of MaxAmount is never decreased.
func (t *Token) TransferFrom(spender, from, to account.Address, amount *big.Int) (bool, error) {
	if err := validAmount(amount); err != nil {
		return false, err
	}
	allowed, err := t.Allowance(from, spender)
	if err != nil {
		return false, err
	}
	if allowed.Cmp(amount) < 0 {
		return false, nil
	}
	ok, err := t.move(from, to, amount)
	if err != nil || !ok {
		return ok, err
	}
	if allowed.Cmp(MaxAmount) != 0 {
		left := new(big.Int).Sub(allowed, amount)
		if err := t.putAmount(allowanceKey(t.info.Address, from, spender), left); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (t *Token) move(from, to account.Address, amount *big.Int) (bool, error) {
	if from.IsZero() || to.IsZero() {
		return false, nil
	}
	fromBal, err := t.BalanceOf(from)
	if err != nil {
		return false, err
	}
	if fromBal.Cmp(amount) < 0 {
		return false, nil
	}
	if from == to {
		return true, nil
	}
	toBal, err := t.BalanceOf(to)
	if err != nil {
		return false, err
	}
	if err := t.putAmount(balanceKey(t.info.Address, from), fromBal.Sub(fromBal, amount)); err != nil {
		return false, err
	}
	if err := t.putAmount(balanceKey(t.info.Address, to), toBal.Add(toBal, amount)); err != nil {
		return false, err
	}
	return true, nil
}

// Mint creates amount new tokens for to. Only the token owner may mint.
func (t *Token) Mint(caller, to account.Address, amount *big.Int) error {
	if caller != t.info.Owner {
		return fault.ErrNotTokenOwner
	}
	return t.mint(to, amount)
}

// TransferOwnership hands the right to mint to newOwner. Only the token
// owner may call it.
func (t *Token) TransferOwnership(caller, newOwner account.Address) error {
	if caller != t.info.Owner {
		return fault.ErrNotTokenOwner
	}
	if newOwner.IsZero() {
		return fault.ErrZeroAddress
	}
	t.info.Owner = newOwner
	return t.saveInfo()
}

func (t *Token) mint(to account.Address, amount *big.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	if to.IsZero() {
		return fault.ErrZeroAddress
	}
	supply := new(big.Int).Add(t.info.TotalSupply, amount)
	if supply.Cmp(MaxAmount) > 0 {
		return fault.ErrInvalidAmount
	}
	bal, err := t.BalanceOf(to)
	if err != nil {
		return err
	}
	if err := t.putAmount(balanceKey(t.info.Address, to), bal.Add(bal, amount)); err != nil {
		return err
	}
	t.info.TotalSupply = supply
	return t.saveInfo()
}

// Allocate mints amount to holder without an owner check. It is used to
// apply genesis balances.
func (t *Token) Allocate(holder account.Address, amount *big.Int) error {
	return t.mint(holder, amount)
}
