package metrics

import "github.com/prometheus/client_golang/prometheus"

func (c *Collector) SubmissionsCounter() prometheus.Counter { return c.submissions }

func (c *Collector) EscrowedCounter(token string) prometheus.Counter {
	return c.escrowed.WithLabelValues(token)
}

func (c *Collector) PaidCounter(token string) prometheus.Counter {
	return c.paid.WithLabelValues(token)
}

func (c *Collector) TxCounter(txType, code string) prometheus.Counter {
	return c.txs.WithLabelValues(txType, code)
}

func (c *Collector) HeightGauge() prometheus.Gauge { return c.height }
