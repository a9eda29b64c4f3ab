// Package metrics exposes bounty ledger activity as Prometheus
// collectors. Registered on the default registry they are served by the
// node's own instrumentation endpoint (instrumentation.prometheus in
// config.toml).
package metrics

import (
	"math/big"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gregorybednov/bountychain/ledger"
)

const namespace = "bountychain"

type Collector struct {
	bounties    *prometheus.CounterVec
	submissions prometheus.Counter
	escrowed    *prometheus.CounterVec
	paid        *prometheus.CounterVec
	refunded    *prometheus.CounterVec
	txs         *prometheus.CounterVec
	height      prometheus.Gauge
}

func New() *Collector {
	return &Collector{
		bounties: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bounties_total",
			Help:      "Bounty lifecycle transitions by resulting status.",
		}, []string{"status"}),
		submissions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Solutions submitted.",
		}),
		escrowed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "escrowed_amount_total",
			Help:      "Reward amount taken into escrow, in token base units.",
		}, []string{"token"}),
		paid: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "paid_amount_total",
			Help:      "Reward amount paid to winners, in token base units.",
		}, []string{"token"}),
		refunded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refunded_amount_total",
			Help:      "Reward amount refunded to creators, in token base units.",
		}, []string{"token"}),
		txs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivered_txs_total",
			Help:      "Delivered transactions by type and result code.",
		}, []string{"type", "code"}),
		height: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "committed_height",
			Help:      "Height of the last committed block.",
		}),
	}
}

// Register adds every collector to r.
func (c *Collector) Register(r prometheus.Registerer) error {
	for _, col := range []prometheus.Collector{
		c.bounties, c.submissions, c.escrowed, c.paid, c.refunded, c.txs, c.height,
	} {
		if err := r.Register(col); err != nil {
			return err
		}
	}
	return nil
}

// Observe accounts for one ledger event.
func (c *Collector) Observe(e ledger.Event) {
	tok, _ := e.Get("reward_token")
	switch e.Type {
	case ledger.EventBountyCreated:
		c.bounties.WithLabelValues(ledger.StatusActive.String()).Inc()
		c.escrowed.WithLabelValues(tok).Add(amount(e, "reward_amount"))
	case ledger.EventSubmissionCreated:
		c.submissions.Inc()
	case ledger.EventBountyCompleted:
		c.bounties.WithLabelValues(ledger.StatusCompleted.String()).Inc()
		c.paid.WithLabelValues(tok).Add(amount(e, "amount_paid"))
	case ledger.EventBountyCancelled:
		c.bounties.WithLabelValues(ledger.StatusCancelled.String()).Inc()
		c.refunded.WithLabelValues(tok).Add(amount(e, "amount_refunded"))
	}
}

// TxDelivered counts a delivered transaction.
func (c *Collector) TxDelivered(txType, code string) {
	c.txs.WithLabelValues(txType, code).Inc()
}

// Committed records the height of a committed block.
func (c *Collector) Committed(height int64) {
	c.height.Set(float64(height))
}

// amount reads a decimal attribute as a float. Precision is lost above
// 2^53 base units, which is fine for dashboards.
func amount(e ledger.Event, key string) float64 {
	v, ok := e.Get(key)
	if !ok {
		return 0
	}
	n, ok := new(big.Float).SetString(v)
	if !ok || n.Sign() < 0 {
		return 0
	}
	f, _ := n.Float64()
	return f
}
