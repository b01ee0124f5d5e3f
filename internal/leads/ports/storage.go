package ports

import "context"

// ImagePresigner turns a stored object key into a time-limited read URL.
type ImagePresigner interface {
	PresignGet(ctx context.Context, key string) (string, error)
}
