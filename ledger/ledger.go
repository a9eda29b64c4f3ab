// Package ledger is the bounty escrow state machine.
//
// A Ledger runs every mutating call as one atomic unit over a kv.Store:
// writes go to a buffer that is flushed only when the call succeeds, so a
// failed call leaves the store exactly as it found it. Terminal bounty
// status is written before any token transfer is issued, and reentrant
// calls made by a token during that transfer see the new status.
//
// A Ledger is not safe for concurrent use; the caller serialises calls
// (on chain, the ABCI connection does).
package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strconv"

	"github.com/gregorybednov/bountychain/account"
	"github.com/gregorybednov/bountychain/fault"
	"github.com/gregorybednov/bountychain/kv"
)

// Fee limits, in basis points.
const (
	BasisPoints       uint64 = 10000
	MaxPlatformFeeBps uint64 = 1000
	DefaultFeeBps     uint64 = 250
)

// CustodyAddress is the module account holding escrowed rewards.
var CustodyAddress = account.FromName("bounty-escrow")

// Token is the fungible token collaborator. Transfer and TransferFrom
// report an insufficient balance or allowance as false; errors are
// reserved for storage failures.
type Token interface {
	BalanceOf(owner account.Address) (*big.Int, error)
	Allowance(owner, spender account.Address) (*big.Int, error)
	Transfer(sender, to account.Address, amount *big.Int) (bool, error)
	TransferFrom(spender, from, to account.Address, amount *big.Int) (bool, error)
}

// Tokens resolves a token address to a Token operating on st.
type Tokens interface {
	Token(st kv.Store, addr account.Address) (Token, error)
}

type Ledger struct {
	store  kv.Store
	tokens Tokens
	events []Event
}

func New(store kv.Store, tokens Tokens) *Ledger {
	return &Ledger{
		store:  store,
		tokens: tokens,
	}
}

// Store returns the store current calls operate on; inside a call this is
// the call's write buffer.
func (l *Ledger) Store() kv.Store { return l.store }

// Events returns and clears the events of the calls that succeeded since
// the last call to Events.
func (l *Ledger) Events() []Event {
	ev := l.events
	l.events = nil
	return ev
}

func (l *Ledger) emit(e Event) {
	l.events = append(l.events, e)
}

// atomic runs fn against a write buffer layered over the current store.
// Nested (reentrant) calls stack another buffer on top, so they observe
// every effect fn has written so far.
func (l *Ledger) atomic(fn func() error) error {
	parent := l.store
	cache := kv.NewCache(parent)
	mark := len(l.events)

	l.store = cache
	err := fn()
	l.store = parent

	if err != nil {
		cache.Discard()
		l.events = l.events[:mark]
		return err
	}
	if err := cache.Write(); err != nil {
		l.events = l.events[:mark]
		return fmt.Errorf("flush ledger writes: %w", err)
	}
	return nil
}

// InitGenesis stores the initial fee configuration. It fails if one is
// already present.
func (l *Ledger) InitGenesis(cfg FeeConfig) error {
	return l.atomic(func() error {
		ok, err := kv.Has(l.store, feeConfigKey)
		if err != nil {
			return err
		}
		if ok {
			return fault.ErrAlreadyGenesis
		}
		if cfg.Owner.IsZero() || cfg.FeeRecipient.IsZero() {
			return fault.ErrZeroAddress
		}
		if cfg.PlatformFeeBps > MaxPlatformFeeBps {
			return fault.ErrFeeTooHigh
		}
		return putJSON(l.store, feeConfigKey, &cfg)
	})
}

// store layout
var (
	bountyCountKey = []byte("meta:bounty_count")
	feeConfigKey   = []byte("meta:fee_config")
)

func bountyKey(id uint64) []byte {
	return []byte(fmt.Sprintf("bounty:%020d", id))
}

func bountyPrefix() []byte { return []byte("bounty:") }

func submissionKey(bountyID, subID uint64) []byte {
	return []byte(fmt.Sprintf("submission:%020d:%020d", bountyID, subID))
}

func submissionPrefix(bountyID uint64) []byte {
	return []byte(fmt.Sprintf("submission:%020d:", bountyID))
}

func submitterKey(bountyID uint64, developer account.Address) []byte {
	return []byte(fmt.Sprintf("submitter:%020d:%s", bountyID, developer))
}

func creatorKey(creator account.Address, bountyID uint64) []byte {
	return []byte(fmt.Sprintf("creator:%s:%020d", creator, bountyID))
}

func creatorPrefix(creator account.Address) []byte {
	return []byte(fmt.Sprintf("creator:%s:", creator))
}

func developerKey(developer account.Address, bountyID uint64) []byte {
	return []byte(fmt.Sprintf("developer:%s:%020d", developer, bountyID))
}

func developerPrefix(developer account.Address) []byte {
	return []byte(fmt.Sprintf("developer:%s:", developer))
}

func getJSON(s kv.Store, key []byte, v interface{}) error {
	data, err := s.Get(key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("corrupted record %q: %w", key, err)
	}
	return nil
}

func putJSON(s kv.Store, key []byte, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.Set(key, data)
}

func getCounter(s kv.Store, key []byte) (uint64, error) {
	data, err := s.Get(key)
	if errors.Is(err, kv.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(string(data), 10, 64)
}

func putCounter(s kv.Store, key []byte, n uint64) error {
	return s.Set(key, []byte(strconv.FormatUint(n, 10)))
}

// indexIDs reads the trailing id of every index key under prefix.
func indexIDs(s kv.Store, prefix []byte) ([]uint64, error) {
	ids := []uint64{}
	err := s.Iterate(prefix, func(k, _ []byte) error {
		id, err := strconv.ParseUint(string(k[len(prefix):]), 10, 64)
		if err != nil {
			return fmt.Errorf("corrupted index key %q: %w", k, err)
		}
		ids = append(ids, id)
		return nil
	})
	return ids, err
}

func (l *Ledger) getBounty(id uint64) (*Bounty, error) {
	var b Bounty
	err := getJSON(l.store, bountyKey(id), &b)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, fault.ErrBountyNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (l *Ledger) putBounty(b *Bounty) error {
	return putJSON(l.store, bountyKey(b.ID), b)
}

func (l *Ledger) getSubmission(bountyID, subID uint64) (*Submission, error) {
	var s Submission
	err := getJSON(l.store, submissionKey(bountyID, subID), &s)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, fault.ErrSubmissionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (l *Ledger) putSubmission(s *Submission) error {
	return putJSON(l.store, submissionKey(s.BountyID, s.ID), s)
}
