package interfaces

import (
	"context"
	"errors"

	"github.com/RevoLand/amazon-client/internal/models"
)

// ErrInvalidSnapshot is returned when extraction produced a snapshot without a usable identifier
var ErrInvalidSnapshot = errors.New("extracted snapshot has no identifier")

// ProductScraper produces a snapshot for one product URL.
// A nil snapshot is always accompanied by an error.
type ProductScraper interface {
	Scrape(ctx context.Context, url string) (*models.ProductSnapshot, error)
}
