// Package classify maps executor failures to error categories and a
// retry decision. Classification is an ordered rule table evaluated
// top-down: explicit non-retryable patterns are checked first, then
// explicit retryable patterns, and anything unmatched defaults to
// retryable — an ambiguous error must not be permanently abandoned
// unless it unambiguously cannot succeed on retry.
package classify

import (
	"context"
	"errors"
	"strings"
)

// Category is the classified failure category.
type Category string

const (
	CategoryNetwork           Category = "network_error"
	CategoryInsufficientFunds Category = "insufficient_funds"
	CategoryGas               Category = "gas_error"
	CategoryNonce             Category = "nonce_error"
	CategoryRateLimited       Category = "rate_limited"
	CategoryCooldown          Category = "cooldown_active"
	CategoryBlacklisted       Category = "blacklisted"
	CategoryUnauthorized      Category = "unauthorized"
	CategoryReverted          Category = "reverted"
	CategoryUnknown           Category = "unknown"
)

// Result is the outcome of classifying one execution failure.
type Result struct {
	Category  Category
	Retryable bool
}

// rule matches an executor error message by substring. Rules are
// evaluated in declaration order; the first match wins.
type rule struct {
	substrings []string
	category   Category
	retryable  bool
}

// Matching on human-readable executor error text is the contract we
// have today; a structured error code from the executor could be
// matched through the same table without changing callers.
var rules = []rule{
	// Non-retryable first: these cannot succeed on retry.
	{[]string{"insufficient funds", "insufficient balance", "faucet empty"}, CategoryInsufficientFunds, false},
	{[]string{"cooldown", "claimed recently", "claim too soon"}, CategoryCooldown, false},
	{[]string{"blacklist", "denylist", "address banned"}, CategoryBlacklisted, false},
	{[]string{"invalid address", "invalid recipient", "invalid asset", "unknown token"}, CategoryReverted, false},
	{[]string{"unauthorized", "forbidden", "not allowed"}, CategoryUnauthorized, false},
	{[]string{"execution reverted", "reverted"}, CategoryReverted, false},

	// Retryable: transient conditions worth another attempt.
	{[]string{"network", "timeout", "timed out", "connection refused", "connection reset", "unreachable", "eof"}, CategoryNetwork, true},
	{[]string{"rate limit", "too many requests", "429"}, CategoryRateLimited, true},
	{[]string{"gas", "underpriced", "fee too low"}, CategoryGas, true},
	{[]string{"nonce"}, CategoryNonce, true},
}

// Classify maps an execution failure to a category and retry decision.
// A submission timeout (context.DeadlineExceeded) is a network error
// and retryable. Unmatched errors default to retryable Unknown.
func Classify(err error) Result {
	if err == nil {
		return Result{Category: CategoryUnknown, Retryable: false}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return Result{Category: CategoryNetwork, Retryable: true}
	}

	msg := strings.ToLower(err.Error())
	for _, r := range rules {
		for _, sub := range r.substrings {
			if strings.Contains(msg, sub) {
				return Result{Category: r.category, Retryable: r.retryable}
			}
		}
	}

	return Result{Category: CategoryUnknown, Retryable: true}
}
