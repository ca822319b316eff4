package interfaces

import (
	"context"
	"errors"

	"github.com/RevoLand/amazon-client/internal/models"
)

// ErrCookieJarNotFound is returned when no jar was saved for a domain key
var ErrCookieJarNotFound = errors.New("cookie jar not found")

// CookieJarStorage persists browser cookies per domain key.
// Put replaces the stored set wholesale; implementations must be safe for concurrent use.
type CookieJarStorage interface {
	Get(ctx context.Context, domainKey string) ([]models.Cookie, error)
	Put(ctx context.Context, domainKey string, cookies []models.Cookie) error
}
