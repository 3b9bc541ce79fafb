package chainadapter

import (
	"context"
	"time"

	"golang.org/x/xerrors"

	"github.com/consensus-shipyard/ipc-checkpoint-agent/errs"
)

// ReceiptRetries is the bounded retry budget for polling a submitted
// transaction's receipt.
const ReceiptRetries = 10

// receiptBaseDelay is the first backoff interval; each subsequent attempt
// doubles it, capped by receiptMaxDelay.
const receiptBaseDelay = 500 * time.Millisecond
const receiptMaxDelay = 8 * time.Second

// PollReceipt calls poll up to ReceiptRetries times with exponential
// backoff, stopping as soon as poll returns a non-nil result. If the budget
// is exhausted without a result, it returns errs.ErrReceiptUnknown.
func PollReceipt[T any](ctx context.Context, poll func(context.Context) (T, bool, error)) (T, error) {
	var zero T
	delay := receiptBaseDelay
	for attempt := 0; attempt < ReceiptRetries; attempt++ {
		result, ok, err := poll(ctx)
		if err != nil {
			return zero, err
		}
		if ok {
			return result, nil
		}

		if attempt == ReceiptRetries-1 {
			break
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > receiptMaxDelay {
			delay = receiptMaxDelay
		}
	}
	return zero, xerrors.Errorf("%w: exhausted %d attempts", errs.ErrReceiptUnknown, ReceiptRetries)
}
