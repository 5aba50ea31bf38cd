/*
metrics.go - Prometheus instrumentation

PURPOSE:
  Counters for the operations that matter operationally: balance
  mutations, reward settlements by outcome, and reset runs by trigger.
  Exposed on /metrics via promhttp (see server.go).
*/
package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	balanceMutations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coinledger_balance_mutations_total",
		Help: "Balance writes, each paired with one log entry.",
	})

	rewardsSettled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coinledger_rewards_settled_total",
		Help: "Pending rewards settled, by outcome.",
	}, []string{"outcome"})

	resetRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coinledger_reset_runs_total",
		Help: "Settlement passes, by trigger.",
	}, []string{"trigger"})
)
