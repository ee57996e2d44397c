// Package models defines the domain models for the GTS token service.
// This file contains the circuit breaker state record and its transitions.
package models

import "time"

// BreakerState represents the state of one operation's circuit.
// BreakerState 表示单个操作熔断器的状态。
type BreakerState string

const (
	// BreakerClosed passes calls through and counts consecutive failures.
	BreakerClosed BreakerState = "closed"

	// BreakerOpen rejects calls without reaching the upstream.
	BreakerOpen BreakerState = "open"

	// BreakerHalfOpen allows exactly one probe call through.
	BreakerHalfOpen BreakerState = "half_open"
)

// BreakerRecord is the persisted state of one operation's circuit. Records
// are created lazily on first use, mutated on every observed outcome, and
// never destroyed. Version is the optimistic concurrency token: every
// transition increments it, and stores reject writes whose expected version
// does not match.
// BreakerRecord 是单个操作熔断器的持久化状态。Version 是乐观并发令牌。
type BreakerRecord struct {
	Operation            string       `json:"operation"`
	State                BreakerState `json:"state"`
	ConsecutiveFailures  int          `json:"consecutive_failures"`
	ConsecutiveSuccesses int          `json:"consecutive_successes"`

	// Zero time values mean the event has never happened.
	LastFailureAt time.Time `json:"last_failure_at"`
	LastSuccessAt time.Time `json:"last_success_at"`
	OpenedAt      time.Time `json:"opened_at"`

	Version int64 `json:"version"`
}

// NewBreakerRecord returns the initial closed record for an operation.
func NewBreakerRecord(operation string) BreakerRecord {
	return BreakerRecord{
		Operation: operation,
		State:     BreakerClosed,
	}
}

// Succeed derives the record after a successful (or business-outcome) call.
// Any success closes the circuit and clears the failure streak.
// Succeed 推导一次成功调用之后的记录。任何成功都会关闭熔断器。
func (r BreakerRecord) Succeed(now time.Time) BreakerRecord {
	next := r
	next.State = BreakerClosed
	next.ConsecutiveFailures = 0
	next.ConsecutiveSuccesses++
	next.LastSuccessAt = now
	next.OpenedAt = time.Time{}
	next.Version++
	return next
}

// Fail derives the record after an infrastructure failure. The circuit opens
// when the failure streak reaches threshold, and a failed half-open probe
// reopens it immediately with a fresh OpenedAt.
// Fail 推导一次基础设施故障之后的记录。失败次数达到阈值时熔断器打开。
func (r BreakerRecord) Fail(now time.Time, threshold int) BreakerRecord {
	next := r
	next.ConsecutiveFailures++
	next.ConsecutiveSuccesses = 0
	next.LastFailureAt = now
	if next.State == BreakerHalfOpen || next.ConsecutiveFailures >= threshold {
		next.State = BreakerOpen
		next.OpenedAt = now
	}
	next.Version++
	return next
}

// ToHalfOpen derives the record entering the probe state. The caller that
// wins the compare-and-swap on this transition owns the single probe call.
func (r BreakerRecord) ToHalfOpen() BreakerRecord {
	next := r
	next.State = BreakerHalfOpen
	next.Version++
	return next
}

// ReadyForProbe reports whether an open circuit has cooled down long enough
// to attempt a half-open probe.
func (r BreakerRecord) ReadyForProbe(resetTimeout time.Duration, now time.Time) bool {
	return r.State == BreakerOpen && !r.OpenedAt.IsZero() && now.Sub(r.OpenedAt) >= resetTimeout
}
