package interfaces

import (
	"context"
)

// CaptchaSolver obtains the text for a challenge image, keyed by product URL
type CaptchaSolver interface {
	RequestAnswer(ctx context.Context, key string, imageRef string) (string, error)
}
