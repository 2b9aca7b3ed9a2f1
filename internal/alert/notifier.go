// Package alert delivers operator notifications from the batch loops. The
// loops are unattended, so email is the only failure surface they have.
package alert

import "context"

// Notifier sends a human-readable alert. Fire-and-forget: failures are
// logged by callers but never retried.
type Notifier interface {
	Send(ctx context.Context, subject string, body string) error
}

// NoOpNotifier discards alerts. Used in tests and local runs without SMTP
// credentials.
type NoOpNotifier struct{}

func (NoOpNotifier) Send(ctx context.Context, subject string, body string) error {
	return nil
}
