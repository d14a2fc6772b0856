// Package platform defines the contract chat transports implement. The flow
// engine and router are transport neutral; each adapter translates its
// platform's updates into router calls and renders the responses back.
package platform

import (
	"context"
	"sync"
)

// Transport is one messaging channel (Telegram, WhatsApp).
type Transport interface {
	// Name identifies the transport in logs and request IDs.
	Name() string

	// SupportsEdit reports whether the platform can edit a previously sent
	// message in place. Adapters without it fall back to sending new messages.
	SupportsEdit() bool

	// Run serves the transport until ctx is done. It blocks.
	Run(ctx context.Context) error
}

// RunAll runs every transport concurrently and blocks until all have
// stopped. The first failure cancels the rest; context cancellation is a
// clean shutdown, not an error.
func RunAll(ctx context.Context, transports ...Transport) error {
	if len(transports) == 0 {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	for _, t := range transports {
		wg.Add(1)
		go func(t Transport) {
			defer wg.Done()
			if err := t.Run(runCtx); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				cancel()
			}
		}(t)
	}
	wg.Wait()
	return firstErr
}
