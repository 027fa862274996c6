package port

import "context"

type TokenSource interface {
	// Token returns the current bearer credential, or "" when none is available
	Token(ctx context.Context) (string, error)
}
