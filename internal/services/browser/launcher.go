package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RevoLand/amazon-client/internal/common"
	"github.com/RevoLand/amazon-client/internal/interfaces"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
)

// ErrStartupTimeout is returned when Chrome does not come up within the launch bound
var ErrStartupTimeout = errors.New("browser did not start in time")

const defaultStartupTimeout = 30 * time.Second

// Launcher starts one Chrome process per session so sessions share no state
type Launcher struct {
	config         *common.BrowserConfig
	logger         arbor.ILogger
	startupTimeout time.Duration
}

var _ interfaces.BrowserLauncher = (*Launcher)(nil)

// NewLauncher creates a launcher for the [browser] config section
func NewLauncher(config *common.BrowserConfig, logger arbor.ILogger) *Launcher {
	return &Launcher{
		config:         config,
		logger:         logger,
		startupTimeout: defaultStartupTimeout,
	}
}

// Launch starts a browser with the client signature, viewport and request interception applied
func (l *Launcher) Launch(ctx context.Context) (interfaces.BrowserSession, error) {
	startTime := time.Now()

	allocatorOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", l.config.Headless),
		chromedp.Flag("no-sandbox", l.config.NoSandbox),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(l.config.UserAgent),
		chromedp.WindowSize(l.config.ViewportWidth, l.config.ViewportHeight),
	)

	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), allocatorOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)

	session := &ChromeSession{
		ctx: browserCtx,
		cancel: func() {
			browserCancel()
			allocatorCancel()
		},
		logger: l.logger,
	}

	session.interceptRequests(newResourceBlocker(l.config.BlockedResourceTypes))

	err := session.start(ctx, l.startupTimeout,
		fetch.Enable(),
		emulation.SetUserAgentOverride(l.config.UserAgent),
		emulation.SetDeviceMetricsOverride(int64(l.config.ViewportWidth), int64(l.config.ViewportHeight), 1.0, false),
	)
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	l.logger.Debug().
		Dur("startup_time", time.Since(startTime)).
		Strs("blocked_types", l.config.BlockedResourceTypes).
		Msg("Browser session launched")

	return session, nil
}
