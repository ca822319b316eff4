package interfaces

import (
	"context"

	"github.com/RevoLand/amazon-client/internal/models"
)

// BrowserSession is one isolated headless browser tab
type BrowserSession interface {
	SetCookies(ctx context.Context, targetURL string, cookies []models.Cookie) error
	Cookies(ctx context.Context, targetURL string) ([]models.Cookie, error)
	Navigate(ctx context.Context, url string) error
	Exists(ctx context.Context, selector string) (bool, error)
	Click(ctx context.Context, selector string) error
	Type(ctx context.Context, selector string, text string) error
	// ClickAndWaitNavigation clicks selector and returns once the resulting page has loaded
	ClickAndWaitNavigation(ctx context.Context, selector string) error
	HTML(ctx context.Context) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)
	Close() error
}

// BrowserLauncher creates browser sessions
type BrowserLauncher interface {
	Launch(ctx context.Context) (BrowserSession, error)
}
