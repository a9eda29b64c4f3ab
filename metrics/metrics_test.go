package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gregorybednov/bountychain/ledger"
	"github.com/gregorybednov/bountychain/metrics"
)

func event(typ string, attrs ...string) ledger.Event {
	e := ledger.Event{Type: typ}
	for i := 0; i+1 < len(attrs); i += 2 {
		e.Attributes = append(e.Attributes, ledger.Attribute{Key: attrs[i], Value: attrs[i+1]})
	}
	return e
}

func TestRegisterTwiceFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := metrics.New()
	require.NoError(t, c.Register(reg))
	assert.Error(t, c.Register(reg))
}

func TestObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := metrics.New()
	require.NoError(t, c.Register(reg))

	c.Observe(event(ledger.EventBountyCreated, "reward_token", "tok", "reward_amount", "100"))
	c.Observe(event(ledger.EventBountyCreated, "reward_token", "tok", "reward_amount", "50"))
	c.Observe(event(ledger.EventSubmissionCreated, "bounty_id", "1"))
	c.Observe(event(ledger.EventBountyCompleted, "reward_token", "tok", "amount_paid", "97"))
	c.Observe(event(ledger.EventBountyCancelled, "reward_token", "tok", "amount_refunded", "50"))
	c.Observe(event(ledger.EventOwnershipTransferred))

	n, err := testutil.GatherAndCount(reg, "bountychain_bounties_total")
	require.NoError(t, err)
	assert.Equal(t, 3, n, "one series per status")

	assert.Equal(t, 1.0, testutil.ToFloat64(c.SubmissionsCounter()))
	assert.Equal(t, 150.0, testutil.ToFloat64(c.EscrowedCounter("tok")))
	assert.Equal(t, 97.0, testutil.ToFloat64(c.PaidCounter("tok")))
}

func TestCommittedAndTxs(t *testing.T) {
	c := metrics.New()
	c.Committed(42)
	c.TxDelivered("create_bounty", "0")
	c.TxDelivered("create_bounty", "0")
	c.TxDelivered("create_bounty", "7")

	assert.Equal(t, 42.0, testutil.ToFloat64(c.HeightGauge()))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.TxCounter("create_bounty", "0")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.TxCounter("create_bounty", "7")))
}

func TestMalformedAmountIsIgnored(t *testing.T) {
	c := metrics.New()
	c.Observe(event(ledger.EventBountyCreated, "reward_token", "tok", "reward_amount", "lots"))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.EscrowedCounter("tok")))
}
