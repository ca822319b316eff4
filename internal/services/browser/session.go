package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/RevoLand/amazon-client/internal/interfaces"
	"github.com/RevoLand/amazon-client/internal/models"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
)

// ChromeSession is one isolated browser: its own allocator, one tab
type ChromeSession struct {
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	logger    arbor.ILogger
}

var _ interfaces.BrowserSession = (*ChromeSession)(nil)

// start runs the first actions, which allocate the browser process and tab.
// chromedp binds both to the context of the first Run, so it must be the
// session context itself. The caller's ctx and timeout are enforced by
// closing the session instead.
func (s *ChromeSession) start(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	done := make(chan error, 1)
	go func() {
		done <- chromedp.Run(s.ctx, actions...)
	}()

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		s.Close()
		<-done
		return ctx.Err()
	case <-expired:
		s.Close()
		<-done
		return ErrStartupTimeout
	}
}

// run executes actions on an already started tab, bounded by the caller's ctx as well as the session
func (s *ChromeSession) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// interceptRequests aborts paused requests whose resource type is blocked and continues the rest.
// It must be registered before the first run so the listener outlives setup.
func (s *ChromeSession) interceptRequests(blocked *resourceBlocker) {
	chromedp.ListenTarget(s.ctx, func(event interface{}) {
		ev, ok := event.(*fetch.EventRequestPaused)
		if !ok {
			return
		}

		go func() {
			cmdCtx, cancel := context.WithTimeout(s.ctx, 2*time.Second)
			defer cancel()

			c := chromedp.FromContext(cmdCtx)
			if c == nil || c.Target == nil {
				return
			}
			executor := cdp.WithExecutor(cmdCtx, c.Target)

			if blocked.Blocks(ev.ResourceType) {
				if err := fetch.FailRequest(ev.RequestID, network.ErrorReasonAborted).Do(executor); err != nil {
					s.logger.Trace().Err(err).Str("url", ev.Request.URL).Msg("Failed to abort request")
				}
				return
			}

			if err := fetch.ContinueRequest(ev.RequestID).Do(executor); err != nil {
				s.logger.Trace().Err(err).Str("url", ev.Request.URL).Msg("Failed to continue request, aborting")
				fetch.FailRequest(ev.RequestID, network.ErrorReasonAborted).Do(executor)
			}
		}()
	})
}

// SetCookies preloads cookies before navigation
func (s *ChromeSession) SetCookies(ctx context.Context, targetURL string, cookies []models.Cookie) error {
	if len(cookies) == 0 {
		return nil
	}

	params := toCookieParams(targetURL, cookies)
	return s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.SetCookies(params).Do(ctx); err != nil {
			return fmt.Errorf("failed to set cookies: %w", err)
		}
		return nil
	}))
}

// Cookies returns the cookies the browser would send to targetURL
func (s *ChromeSession) Cookies(ctx context.Context, targetURL string) ([]models.Cookie, error) {
	var cookies []*network.Cookie
	err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = network.GetCookies().WithURLs([]string{targetURL}).Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to read cookies: %w", err)
	}
	return fromNetworkCookies(cookies), nil
}

// Navigate loads url and waits for the page load event
func (s *ChromeSession) Navigate(ctx context.Context, url string) error {
	if err := s.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return nil
}

// Exists reports whether selector matches anything, without waiting
func (s *ChromeSession) Exists(ctx context.Context, selector string) (bool, error) {
	var nodes []*cdp.Node
	if err := s.run(ctx, chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0))); err != nil {
		return false, err
	}
	return len(nodes) > 0, nil
}

func (s *ChromeSession) Click(ctx context.Context, selector string) error {
	return s.run(ctx, chromedp.Click(selector, chromedp.ByQuery))
}

func (s *ChromeSession) Type(ctx context.Context, selector string, text string) error {
	return s.run(ctx, chromedp.SendKeys(selector, text, chromedp.ByQuery))
}

// ClickAndWaitNavigation clicks selector and waits for the next page load
func (s *ChromeSession) ClickAndWaitNavigation(ctx context.Context, selector string) error {
	listenCtx, stopListening := context.WithCancel(s.ctx)
	defer stopListening()

	loaded := make(chan struct{}, 1)
	chromedp.ListenTarget(listenCtx, func(event interface{}) {
		if _, ok := event.(*page.EventLoadEventFired); ok {
			select {
			case loaded <- struct{}{}:
			default:
			}
		}
	})

	if err := s.Click(ctx, selector); err != nil {
		return fmt.Errorf("failed to click %s: %w", selector, err)
	}

	select {
	case <-loaded:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ctx.Done():
		return s.ctx.Err()
	}
}

// HTML returns the full rendered markup
func (s *ChromeSession) HTML(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to read page markup: %w", err)
	}
	return html, nil
}

// Screenshot captures the full page as PNG
func (s *ChromeSession) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := s.run(ctx, chromedp.FullScreenshot(&buf, 100)); err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", err)
	}
	return buf, nil
}

// Close shuts the tab and its browser process. Safe to call more than once.
func (s *ChromeSession) Close() error {
	s.closeOnce.Do(s.cancel)
	return nil
}

// resourceBlocker matches CDP resource types case-insensitively
type resourceBlocker struct {
	types map[string]bool
}

func newResourceBlocker(types []string) *resourceBlocker {
	b := &resourceBlocker{types: make(map[string]bool, len(types))}
	for _, t := range types {
		if t = strings.TrimSpace(t); t != "" {
			b.types[strings.ToLower(t)] = true
		}
	}
	return b
}

func (b *resourceBlocker) Blocks(resourceType network.ResourceType) bool {
	return b.types[strings.ToLower(string(resourceType))]
}

func toCookieParams(targetURL string, cookies []models.Cookie) []*network.CookieParam {
	params := make([]*network.CookieParam, 0, len(cookies))
	for _, c := range cookies {
		param := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		}
		if c.Domain == "" {
			param.URL = targetURL
		}
		if !c.Session && c.Expires > 0 {
			sec := int64(c.Expires)
			nsec := int64((c.Expires - float64(sec)) * 1e9)
			expires := cdp.TimeSinceEpoch(time.Unix(sec, nsec))
			param.Expires = &expires
		}
		switch strings.ToLower(c.SameSite) {
		case "strict":
			param.SameSite = network.CookieSameSiteStrict
		case "lax":
			param.SameSite = network.CookieSameSiteLax
		case "none":
			param.SameSite = network.CookieSameSiteNone
		}
		params = append(params, param)
	}
	return params
}

func fromNetworkCookies(cookies []*network.Cookie) []models.Cookie {
	result := make([]models.Cookie, 0, len(cookies))
	for _, c := range cookies {
		if c == nil {
			continue
		}
		result = append(result, models.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			Session:  c.Session,
			SameSite: string(c.SameSite),
		})
	}
	return result
}
