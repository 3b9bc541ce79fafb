// Package errs holds the error taxonomy shared by the chain adapters,
// checkpoint managers, and supervisors so callers can classify a failure
// with errors.Is regardless of which layer produced it.
package errs

import "golang.org/x/xerrors"

// Transient is a network hiccup or temporary RPC unavailability. Never
// fatal; the caller retries at the next poll tick.
var ErrTransient = xerrors.New("transient chain error")

// AlreadyVoted is an idempotent no-op: the validator's vote for this slot is
// already on chain.
var ErrAlreadyVoted = xerrors.New("validator already voted for this epoch")

// MessageGap is a detected top-down nonce discontinuity. The submission is
// skipped this tick and retried next tick.
var ErrMessageGap = xerrors.New("top-down message nonce gap")

// ReceiptUnknown means a transaction was broadcast but its receipt could not
// be confirmed within the retry budget.
var ErrReceiptUnknown = xerrors.New("transaction receipt unknown after retry budget exhausted")

// AddressConversion is a malformed address class at the native/EVM boundary.
// While the subsystem sets up a pair it causes that pair alone to be skipped;
// inside a pair supervisor's poll loop it is logged and retried next tick
// like any other error.
var ErrAddressConversion = xerrors.New("address not convertible between chain backends")

// Configuration covers a missing parent, wrong network, or gateway mismatch.
// While the subsystem sets up a pair it causes that pair alone to be skipped;
// inside a pair supervisor's poll loop it is logged and retried next tick.
var ErrConfiguration = xerrors.New("invalid subnet configuration")

// Fatal is an invariant violation (e.g. a multi-CID tipset). It never stops
// the whole subsystem. A pair supervisor does not treat it specially: it is
// logged and retried next tick, and the supervisor keeps running.
var ErrFatal = xerrors.New("fatal chain invariant violation")
