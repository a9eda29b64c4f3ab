package token_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gregorybednov/bountychain/account"
	"github.com/gregorybednov/bountychain/fault"
	"github.com/gregorybednov/bountychain/kv"
	"github.com/gregorybednov/bountychain/token"
)

var (
	owner = account.FromName("owner")
	alice = account.FromName("alice")
	bob   = account.FromName("bob")
)

func setupToken(t *testing.T) (*token.Token, kv.Store) {
	t.Helper()
	st := kv.NewMemory()
	tok, err := token.Create(st, "BOUNTY", "Bounty Token", 18, owner)
	require.NoError(t, err)
	require.NoError(t, tok.Allocate(alice, big.NewInt(1000)))
	return tok, st
}

func balance(t *testing.T, tok *token.Token, a account.Address) int64 {
	t.Helper()
	b, err := tok.BalanceOf(a)
	require.NoError(t, err)
	return b.Int64()
}

func TestCreateAndLoad(t *testing.T) {
	tok, st := setupToken(t)

	loaded, err := token.Load(st, token.AddressFor("BOUNTY"))
	require.NoError(t, err)
	info := loaded.Info()
	assert.Equal(t, tok.Info().Address, info.Address)
	assert.Equal(t, "Bounty Token", info.Name)
	assert.Equal(t, uint8(18), info.Decimals)
	assert.Equal(t, int64(1000), info.TotalSupply.Int64())

	_, err = token.Create(st, "BOUNTY", "again", 18, owner)
	assert.Equal(t, fault.ErrTokenExists, err)

	_, err = token.Load(st, token.AddressFor("NOPE"))
	assert.Equal(t, fault.ErrTokenNotFound, err)
}

func TestTransfer(t *testing.T) {
	tok, _ := setupToken(t)

	ok, err := tok.Transfer(alice, bob, big.NewInt(400))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(600), balance(t, tok, alice))
	assert.Equal(t, int64(400), balance(t, tok, bob))

	ok, err = tok.Transfer(bob, alice, big.NewInt(401))
	require.NoError(t, err)
	assert.False(t, ok, "insufficient balance reports false")
	assert.Equal(t, int64(400), balance(t, tok, bob))

	ok, err = tok.Transfer(alice, "", big.NewInt(1))
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = tok.Transfer(alice, bob, big.NewInt(-1))
	assert.Equal(t, fault.ErrInvalidAmount, err)
}

func TestTransferFromUsesAllowance(t *testing.T) {
	tok, _ := setupToken(t)

	ok, err := tok.TransferFrom(bob, alice, bob, big.NewInt(10))
	require.NoError(t, err)
	assert.False(t, ok, "no allowance")

	require.NoError(t, tok.Approve(alice, bob, big.NewInt(100)))
	ok, err = tok.TransferFrom(bob, alice, bob, big.NewInt(60))
	require.NoError(t, err)
	assert.True(t, ok)

	left, err := tok.Allowance(alice, bob)
	require.NoError(t, err)
	assert.Equal(t, int64(40), left.Int64())

	ok, err = tok.TransferFrom(bob, alice, bob, big.NewInt(41))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int64(60), balance(t, tok, bob))
}

func TestInfiniteAllowanceIsNotConsumed(t *testing.T) {
	tok, _ := setupToken(t)
	require.NoError(t, tok.Approve(alice, bob, token.MaxAmount))

	ok, err := tok.TransferFrom(bob, alice, bob, big.NewInt(5))
	require.NoError(t, err)
	assert.True(t, ok)

	left, err := tok.Allowance(alice, bob)
	require.NoError(t, err)
	assert.Equal(t, 0, left.Cmp(token.MaxAmount))
}

func TestMintIsOwnerOnly(t *testing.T) {
	tok, _ := setupToken(t)

	err := tok.Mint(alice, alice, big.NewInt(1))
	assert.Equal(t, fault.ErrNotTokenOwner, err)

	require.NoError(t, tok.Mint(owner, bob, big.NewInt(7)))
	assert.Equal(t, int64(7), balance(t, tok, bob))
	assert.Equal(t, int64(1007), tok.Info().TotalSupply.Int64())

	err = tok.Mint(owner, bob, token.MaxAmount)
	assert.Equal(t, fault.ErrInvalidAmount, err, "supply may not exceed 2^256-1")
}

func TestTransferOwnershipMovesMintRight(t *testing.T) {
	tok, st := setupToken(t)

	assert.Equal(t, fault.ErrNotTokenOwner, tok.TransferOwnership(alice, alice))
	assert.Equal(t, fault.ErrZeroAddress, tok.TransferOwnership(owner, ""))
	require.NoError(t, tok.TransferOwnership(owner, bob))

	assert.Equal(t, fault.ErrNotTokenOwner, tok.Mint(owner, owner, big.NewInt(1)))
	require.NoError(t, tok.Mint(bob, bob, big.NewInt(3)))

	loaded, err := token.Load(st, tok.Info().Address)
	require.NoError(t, err)
	assert.Equal(t, bob, loaded.Info().Owner)
}
