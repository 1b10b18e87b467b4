package notify

import (
	"context"

	"go.uber.org/multierr"
)

type Notifier interface {
	Send(ctx context.Context, title, text string) error
}

// Multi fans a notification out to every non-nil notifier and returns the
// combined error of those that failed.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, title, text string) error {
	var err error
	for _, n := range m {
		if n == nil {
			continue
		}
		err = multierr.Append(err, n.Send(ctx, title, text))
	}
	return err
}
