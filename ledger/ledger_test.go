package ledger_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gregorybednov/bountychain/account"
	"github.com/gregorybednov/bountychain/fault"
	"github.com/gregorybednov/bountychain/kv"
	"github.com/gregorybednov/bountychain/ledger"
	"github.com/gregorybednov/bountychain/token"
)

const now int64 = 1_700_000_000

var (
	owner        = account.FromName("owner")
	feeRecipient = account.FromName("fee-recipient")
	creator      = account.FromName("creator")
	developer1   = account.FromName("developer1")
	developer2   = account.FromName("developer2")
	bountyToken  = token.AddressFor("BOUNTY")
)

// nativeTokens resolves addresses to the chain's native tokens.
type nativeTokens struct{}

func (nativeTokens) Token(st kv.Store, addr account.Address) (ledger.Token, error) {
	t, err := token.Load(st, addr)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

func env(caller account.Address) ledger.Env {
	return ledger.Env{Caller: caller, Now: now}
}

type fixture struct {
	store  *kv.Cache
	ledger *ledger.Ledger
}

func setupFixture(t *testing.T, tokens ledger.Tokens) *fixture {
	t.Helper()
	st := kv.NewMemory()
	tok, err := token.Create(st, "BOUNTY", "Bounty Token", 18, owner)
	require.NoError(t, err)
	require.NoError(t, tok.Allocate(creator, ether(10000)))

	l := ledger.New(st, tokens)
	require.NoError(t, l.InitGenesis(ledger.FeeConfig{
		Owner:          owner,
		FeeRecipient:   feeRecipient,
		PlatformFeeBps: ledger.DefaultFeeBps,
	}))
	return &fixture{store: st, ledger: l}
}

func (f *fixture) token(t *testing.T) *token.Token {
	t.Helper()
	tok, err := token.Load(f.store, bountyToken)
	require.NoError(t, err)
	return tok
}

func (f *fixture) balance(t *testing.T, a account.Address) *big.Int {
	t.Helper()
	b, err := f.token(t).BalanceOf(a)
	require.NoError(t, err)
	return b
}

func (f *fixture) approve(t *testing.T, from account.Address, amount *big.Int) {
	t.Helper()
	require.NoError(t, f.token(t).Approve(from, ledger.CustodyAddress, amount))
}

func (f *fixture) dump(t *testing.T) map[string]string {
	t.Helper()
	d, err := kv.Dump(f.store)
	require.NoError(t, err)
	return d
}

func (f *fixture) createBounty(t *testing.T, reward *big.Int) uint64 {
	t.Helper()
	f.approve(t, creator, reward)
	id, err := f.ledger.CreateBounty(env(creator), ledger.CreateBountyParams{
		Title:        "Test Bounty",
		Description:  "Test Description",
		Requirements: "Test Requirements",
		RewardToken:  bountyToken,
		RewardAmount: reward,
		Deadline:     now + 86400,
	})
	require.NoError(t, err)
	f.ledger.Events()
	return id
}

func TestCreateBounty(t *testing.T) {
	f := setupFixture(t, nativeTokens{})
	f.approve(t, creator, ether(100))

	id, err := f.ledger.CreateBounty(env(creator), ledger.CreateBountyParams{
		Title:        "Test Bounty",
		Description:  "Test Description",
		Requirements: "Test Requirements",
		RewardToken:  bountyToken,
		RewardAmount: ether(100),
		Deadline:     now + 86400,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id)

	assert.Equal(t, ether(9900), f.balance(t, creator))
	assert.Equal(t, ether(100), f.balance(t, ledger.CustodyAddress))

	b, err := f.ledger.GetBountyDetails(id)
	require.NoError(t, err)
	assert.Equal(t, creator, b.Creator)
	assert.Equal(t, "Test Bounty", b.Title)
	assert.Equal(t, "Test Requirements", b.Requirements)
	assert.Equal(t, 0, b.RewardAmount.Cmp(ether(100)))
	assert.Equal(t, ledger.StatusActive, b.Status)
	assert.True(t, b.Winner.IsZero())
	assert.Equal(t, uint64(0), b.SubmissionCount)

	total, err := f.ledger.GetTotalBounties()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), total)

	ids, err := f.ledger.GetUserBounties(creator)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1}, ids)

	events := f.ledger.Events()
	require.Len(t, events, 1)
	assert.Equal(t, ledger.EventBountyCreated, events[0].Type)
	v, _ := events[0].Get("reward_amount")
	assert.Equal(t, ether(100).String(), v)
	v, _ = events[0].Get("creator")
	assert.Equal(t, creator.String(), v)
}

func TestCreateBountyIdsAreSequential(t *testing.T) {
	f := setupFixture(t, nativeTokens{})
	assert.Equal(t, uint64(1), f.createBounty(t, ether(1)))
	assert.Equal(t, uint64(2), f.createBounty(t, ether(1)))
	assert.Equal(t, uint64(3), f.createBounty(t, ether(1)))

	ids, err := f.ledger.GetUserBounties(creator)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2, 3}, ids)

	ids, err = f.ledger.GetUserBounties(developer1)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestCreateBountyRejectsBadInput(t *testing.T) {
	f := setupFixture(t, nativeTokens{})
	f.approve(t, creator, ether(100))
	before := f.dump(t)

	params := ledger.CreateBountyParams{
		Title:        "Test Bounty",
		RewardToken:  bountyToken,
		RewardAmount: ether(100),
		Deadline:     now + 86400,
	}

	p := params
	p.Title = ""
	_, err := f.ledger.CreateBounty(env(creator), p)
	assert.Equal(t, fault.ErrEmptyTitle, err)

	p = params
	p.Deadline = now - 86400
	_, err = f.ledger.CreateBounty(env(creator), p)
	assert.Equal(t, fault.ErrPastDeadline, err)

	p.Deadline = now
	_, err = f.ledger.CreateBounty(env(creator), p)
	assert.Equal(t, fault.ErrPastDeadline, err, "deadline equal to now is not in the future")

	p = params
	p.RewardAmount = ether(101)
	_, err = f.ledger.CreateBounty(env(creator), p)
	assert.Equal(t, fault.ErrDepositFailed, err, "allowance too small")

	p = params
	p.RewardToken = token.AddressFor("UNKNOWN")
	_, err = f.ledger.CreateBounty(env(creator), p)
	assert.Equal(t, fault.ErrDepositFailed, err)

	_, err = f.ledger.CreateBounty(env(developer1), params)
	assert.True(t, fault.IsErrTransfer(err), "no balance")

	assert.Equal(t, before, f.dump(t))
	assert.Empty(t, f.ledger.Events())
}

func TestGetBountyDetailsNotFound(t *testing.T) {
	f := setupFixture(t, nativeTokens{})
	_, err := f.ledger.GetBountyDetails(0)
	assert.Equal(t, fault.ErrBountyNotFound, err)
	_, err = f.ledger.GetBountyDetails(1)
	assert.Equal(t, fault.ErrBountyNotFound, err)
}

func TestSubmitSolution(t *testing.T) {
	f := setupFixture(t, nativeTokens{})
	id := f.createBounty(t, ether(100))

	s1, err := f.ledger.SubmitSolution(env(developer1), id, "https://github.com/test/solution", "My solution")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), s1)

	s2, err := f.ledger.SubmitSolution(env(developer2), id, "https://github.com/dev2/solution", "")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), s2)

	sub, err := f.ledger.GetSubmission(id, 1)
	require.NoError(t, err)
	assert.Equal(t, developer1, sub.Developer)
	assert.Equal(t, "https://github.com/test/solution", sub.SolutionURL)
	assert.Equal(t, now, sub.Timestamp)
	assert.False(t, sub.IsWinner)

	b, err := f.ledger.GetBountyDetails(id)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), b.SubmissionCount)

	ids, err := f.ledger.GetUserSubmissions(developer1)
	require.NoError(t, err)
	assert.Equal(t, []uint64{id}, ids)

	all, err := f.ledger.ListSubmissions(id)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, developer2, all[1].Developer)

	events := f.ledger.Events()
	require.Len(t, events, 2)
	assert.Equal(t, ledger.EventSubmissionCreated, events[0].Type)
	v, _ := events[1].Get("submission_id")
	assert.Equal(t, "2", v)
}

func TestSubmitSolutionRejections(t *testing.T) {
	f := setupFixture(t, nativeTokens{})
	id := f.createBounty(t, ether(100))

	_, err := f.ledger.SubmitSolution(env(developer1), 42, "https://x", "")
	assert.Equal(t, fault.ErrBountyNotFound, err)

	_, err = f.ledger.SubmitSolution(env(developer1), id, "", "My solution")
	assert.Equal(t, fault.ErrEmptySolutionURL, err)

	_, err = f.ledger.SubmitSolution(env(developer1), id, "https://first", "")
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		other := account.FromName("other" + string(rune('a'+i)))
		_, err = f.ledger.SubmitSolution(env(other), id, "https://other", "")
		require.NoError(t, err)
	}

	before := f.dump(t)
	_, err = f.ledger.SubmitSolution(env(developer1), id, "https://second", "")
	assert.Equal(t, fault.ErrAlreadySubmitted, err)
	assert.Equal(t, before, f.dump(t))

	_, err = f.ledger.GetSubmission(id, 7)
	assert.Equal(t, fault.ErrSubmissionNotFound, err)
	_, err = f.ledger.GetSubmission(id, 0)
	assert.Equal(t, fault.ErrSubmissionNotFound, err)
	_, err = f.ledger.GetSubmission(99, 1)
	assert.Equal(t, fault.ErrBountyNotFound, err)
}

func TestSubmitSolutionIgnoresDeadline(t *testing.T) {
	f := setupFixture(t, nativeTokens{})
	id := f.createBounty(t, ether(100))

	late := ledger.Env{Caller: developer1, Now: now + 10*86400}
	_, err := f.ledger.SubmitSolution(late, id, "https://late", "")
	assert.NoError(t, err)
}

func TestSubmitSolutionOnClosedBounty(t *testing.T) {
	f := setupFixture(t, nativeTokens{})
	id := f.createBounty(t, ether(100))
	require.NoError(t, f.ledger.CancelBounty(env(creator), id))

	_, err := f.ledger.SubmitSolution(env(developer1), id, "https://x", "")
	assert.Equal(t, fault.ErrBountyNotActive, err)
}

func TestSelectWinnerScenario(t *testing.T) {
	f := setupFixture(t, nativeTokens{})
	id := f.createBounty(t, ether(100))
	_, err := f.ledger.SubmitSolution(env(developer1), id, "https://github.com/dev1/solution", "")
	require.NoError(t, err)
	_, err = f.ledger.SubmitSolution(env(developer2), id, "https://github.com/dev2/solution", "")
	require.NoError(t, err)
	f.ledger.Events()

	require.NoError(t, f.ledger.SelectWinner(env(creator), id, 1))

	// 97.5 to the winner, 2.5 to the platform
	winnerShare, _ := new(big.Int).SetString("97500000000000000000", 10)
	feeShare, _ := new(big.Int).SetString("2500000000000000000", 10)
	assert.Equal(t, 0, f.balance(t, developer1).Cmp(winnerShare))
	assert.Equal(t, 0, f.balance(t, feeRecipient).Cmp(feeShare))
	assert.Equal(t, 0, f.balance(t, ledger.CustodyAddress).Sign())
	assert.Equal(t, 0, f.balance(t, developer2).Sign())

	b, err := f.ledger.GetBountyDetails(id)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusCompleted, b.Status)
	assert.Equal(t, developer1, b.Winner)

	sub, err := f.ledger.GetSubmission(id, 1)
	require.NoError(t, err)
	assert.True(t, sub.IsWinner)
	sub, err = f.ledger.GetSubmission(id, 2)
	require.NoError(t, err)
	assert.False(t, sub.IsWinner)

	events := f.ledger.Events()
	require.Len(t, events, 1)
	assert.Equal(t, ledger.EventBountyCompleted, events[0].Type)
	v, _ := events[0].Get("amount_paid")
	assert.Equal(t, winnerShare.String(), v)
	v, _ = events[0].Get("winner")
	assert.Equal(t, developer1.String(), v)
}

func TestSelectWinnerTwiceFails(t *testing.T) {
	f := setupFixture(t, nativeTokens{})
	id := f.createBounty(t, ether(100))
	_, err := f.ledger.SubmitSolution(env(developer1), id, "https://1", "")
	require.NoError(t, err)
	_, err = f.ledger.SubmitSolution(env(developer2), id, "https://2", "")
	require.NoError(t, err)
	require.NoError(t, f.ledger.SelectWinner(env(creator), id, 1))
	f.ledger.Events()

	before := f.dump(t)
	err = f.ledger.SelectWinner(env(creator), id, 2)
	assert.Equal(t, fault.ErrBountyNotActive, err)
	err = f.ledger.CancelBounty(env(creator), id)
	assert.Equal(t, fault.ErrBountyNotActive, err)
	assert.Equal(t, before, f.dump(t))
	assert.Empty(t, f.ledger.Events())
}

func TestSelectWinnerRejections(t *testing.T) {
	f := setupFixture(t, nativeTokens{})
	id := f.createBounty(t, ether(100))
	_, err := f.ledger.SubmitSolution(env(developer1), id, "https://1", "")
	require.NoError(t, err)
	before := f.dump(t)

	assert.Equal(t, fault.ErrBountyNotFound, f.ledger.SelectWinner(env(creator), 5, 1))
	assert.Equal(t, fault.ErrNotBountyCreator, f.ledger.SelectWinner(env(developer1), id, 1))
	assert.Equal(t, fault.ErrInvalidSubmissionID, f.ledger.SelectWinner(env(creator), id, 99))
	assert.Equal(t, fault.ErrInvalidSubmissionID, f.ledger.SelectWinner(env(creator), id, 0))

	assert.Equal(t, before, f.dump(t))
}

func TestCancelBounty(t *testing.T) {
	f := setupFixture(t, nativeTokens{})
	id := f.createBounty(t, ether(100))
	_, err := f.ledger.SubmitSolution(env(developer1), id, "https://1", "")
	require.NoError(t, err)
	f.ledger.Events()

	assert.Equal(t, fault.ErrNotBountyCreator, f.ledger.CancelBounty(env(developer1), id))
	require.NoError(t, f.ledger.CancelBounty(env(creator), id))

	assert.Equal(t, ether(10000), f.balance(t, creator))
	assert.Equal(t, 0, f.balance(t, ledger.CustodyAddress).Sign())

	b, err := f.ledger.GetBountyDetails(id)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusCancelled, b.Status)
	assert.True(t, b.Winner.IsZero())

	events := f.ledger.Events()
	require.Len(t, events, 1)
	assert.Equal(t, ledger.EventBountyCancelled, events[0].Type)

	before := f.dump(t)
	assert.Equal(t, fault.ErrBountyNotActive, f.ledger.SelectWinner(env(creator), id, 1))
	assert.Equal(t, fault.ErrBountyNotActive, f.ledger.CancelBounty(env(creator), id))
	assert.Equal(t, before, f.dump(t))
}

func TestAdministration(t *testing.T) {
	f := setupFixture(t, nativeTokens{})

	assert.Equal(t, fault.ErrFeeTooHigh, f.ledger.SetPlatformFee(env(owner), 1001))
	assert.Equal(t, fault.ErrNotOwner, f.ledger.SetPlatformFee(env(creator), 500))
	require.NoError(t, f.ledger.SetPlatformFee(env(owner), 1000))

	cfg, err := f.ledger.FeeConfig()
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), cfg.PlatformFeeBps)

	assert.Equal(t, fault.ErrNotOwner, f.ledger.SetFeeRecipient(env(creator), developer1))
	assert.Equal(t, fault.ErrZeroAddress, f.ledger.SetFeeRecipient(env(owner), ""))
	require.NoError(t, f.ledger.SetFeeRecipient(env(owner), developer1))

	cfg, err = f.ledger.FeeConfig()
	require.NoError(t, err)
	assert.Equal(t, developer1, cfg.FeeRecipient)

	require.NoError(t, f.ledger.TransferOwnership(env(owner), developer2))
	assert.Equal(t, fault.ErrNotOwner, f.ledger.SetPlatformFee(env(owner), 0))
	require.NoError(t, f.ledger.SetPlatformFee(env(developer2), 0))

	events := f.ledger.Events()
	require.Len(t, events, 1)
	assert.Equal(t, ledger.EventOwnershipTransferred, events[0].Type)
}

func TestInitGenesisOnce(t *testing.T) {
	f := setupFixture(t, nativeTokens{})
	err := f.ledger.InitGenesis(ledger.FeeConfig{Owner: owner, FeeRecipient: owner})
	assert.Equal(t, fault.ErrAlreadyGenesis, err)

	l := ledger.New(kv.NewMemory(), nativeTokens{})
	err = l.InitGenesis(ledger.FeeConfig{Owner: owner, FeeRecipient: owner, PlatformFeeBps: 1001})
	assert.Equal(t, fault.ErrFeeTooHigh, err)
}

func TestSelectWinnerUsesCurrentFee(t *testing.T) {
	f := setupFixture(t, nativeTokens{})
	id := f.createBounty(t, big.NewInt(999))
	_, err := f.ledger.SubmitSolution(env(developer1), id, "https://1", "")
	require.NoError(t, err)
	require.NoError(t, f.ledger.SetPlatformFee(env(owner), 1000))

	require.NoError(t, f.ledger.SelectWinner(env(creator), id, 1))
	assert.Equal(t, int64(900), f.balance(t, developer1).Int64())
	assert.Equal(t, int64(99), f.balance(t, feeRecipient).Int64())
}

func TestZeroFeeSkipsFeeTransfer(t *testing.T) {
	f := setupFixture(t, nativeTokens{})
	require.NoError(t, f.ledger.SetPlatformFee(env(owner), 0))
	id := f.createBounty(t, ether(3))
	_, err := f.ledger.SubmitSolution(env(developer1), id, "https://1", "")
	require.NoError(t, err)

	require.NoError(t, f.ledger.SelectWinner(env(creator), id, 1))
	assert.Equal(t, ether(3), f.balance(t, developer1))
	assert.Equal(t, 0, f.balance(t, feeRecipient).Sign())
}

func TestListBounties(t *testing.T) {
	f := setupFixture(t, nativeTokens{})
	active := f.createBounty(t, ether(1))
	completed := f.createBounty(t, ether(1))
	cancelled := f.createBounty(t, ether(1))

	_, err := f.ledger.SubmitSolution(env(developer1), completed, "https://1", "")
	require.NoError(t, err)
	require.NoError(t, f.ledger.SelectWinner(env(creator), completed, 1))
	require.NoError(t, f.ledger.CancelBounty(env(creator), cancelled))

	ids := func(filter ledger.Filter, at int64) []uint64 {
		list, err := f.ledger.ListBounties(filter, at)
		require.NoError(t, err)
		out := []uint64{}
		for _, b := range list {
			out = append(out, b.ID)
		}
		return out
	}

	assert.Equal(t, []uint64{active, completed, cancelled}, ids(ledger.FilterAll, now))
	assert.Equal(t, []uint64{active}, ids(ledger.FilterActive, now))
	assert.Equal(t, []uint64{completed}, ids(ledger.FilterCompleted, now))
	assert.Equal(t, []uint64{cancelled}, ids(ledger.FilterCancelled, now))
	assert.Empty(t, ids(ledger.FilterExpired, now))
	assert.Equal(t, []uint64{active}, ids(ledger.FilterExpired, now+2*86400))
	assert.Empty(t, ids(ledger.FilterActive, now+2*86400))

	_, err = ledger.ParseFilter("open")
	assert.Equal(t, fault.ErrUnknownFilter, err)
	filter, err := ledger.ParseFilter("")
	require.NoError(t, err)
	assert.Equal(t, ledger.FilterAll, filter)
}
