package credentials

import (
	"context"
	"strings"
)

// ChainError aggregates the failure of every member of a Chain.
// Causes are in the same order as the chain's sources.
type ChainError struct {
	Causes []error
}

func (e *ChainError) Error() string {
	var b strings.Builder
	b.WriteString("no source in the credentials chain could resolve credentials:")
	for _, cause := range e.Causes {
		b.WriteString("\n\t")
		b.WriteString(cause.Error())
	}

	return b.String()
}

// Unwrap exposes every suppressed cause to errors.Is and errors.As.
func (e *ChainError) Unwrap() []error { return e.Causes }

// Chain implements Source by trying each source in order from first to last.
// The first success wins. If every source fails the returned error is a
// *ChainError carrying each cause in order.
type Chain []Source

func (c Chain) Resolve(ctx context.Context) (Credentials, error) {
	var causes []error
	for _, source := range c {
		creds, err := source.Resolve(ctx)
		if err == nil {
			return creds, nil
		}
		if ctx.Err() != nil {
			return Credentials{}, ctx.Err()
		}

		causes = append(causes, err)
	}

	return Credentials{}, &ChainError{Causes: causes}
}
