package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RevoLand/amazon-client/internal/common"
	"github.com/RevoLand/amazon-client/internal/interfaces"
	"github.com/RevoLand/amazon-client/internal/metrics"
	"github.com/RevoLand/amazon-client/internal/models"
	"github.com/ternarybob/arbor"
)

const (
	consentSelector       = `#sp-cc-accept`
	captchaInputSelector  = `#captchacharacters`
	captchaSubmitSelector = `button[type="submit"]`
)

// Orchestrator runs one scrape attempt per call: launch a session, preload
// cookies, navigate, clear consent and captcha interstitials, then extract.
type Orchestrator struct {
	launcher          interfaces.BrowserLauncher
	cookies           interfaces.CookieJarStorage
	captcha           interfaces.CaptchaSolver
	diagnostics       *Diagnostics
	navigationTimeout time.Duration
	logger            arbor.ILogger
}

var _ interfaces.ProductScraper = (*Orchestrator)(nil)

// NewOrchestrator creates the scrape orchestrator
func NewOrchestrator(
	launcher interfaces.BrowserLauncher,
	cookies interfaces.CookieJarStorage,
	captcha interfaces.CaptchaSolver,
	diagnostics *Diagnostics,
	navigationTimeout time.Duration,
	logger arbor.ILogger,
) *Orchestrator {
	return &Orchestrator{
		launcher:          launcher,
		cookies:           cookies,
		captcha:           captcha,
		diagnostics:       diagnostics,
		navigationTimeout: navigationTimeout,
		logger:            logger,
	}
}

// Scrape produces a validated snapshot for url. Invalid extractions return
// ErrInvalidSnapshot after the page has been captured to diagnostics.
func (o *Orchestrator) Scrape(ctx context.Context, url string) (snapshot *models.ProductSnapshot, err error) {
	domainKey, err := common.DomainKey(url)
	if err != nil {
		return nil, err
	}

	startTime := time.Now()
	defer func() {
		outcome := "success"
		r := recover()
		switch {
		case r != nil:
			outcome = "panic"
		case errors.Is(err, interfaces.ErrInvalidSnapshot):
			outcome = "invalid"
		case err != nil:
			outcome = "error"
		}
		metrics.ScrapesTotal.WithLabelValues(outcome).Inc()
		metrics.ScrapeDuration.WithLabelValues(metrics.DomainLabel(domainKey)).Observe(time.Since(startTime).Seconds())
		if r != nil {
			panic(r)
		}
	}()

	session, err := o.launcher.Launch(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser session: %w", err)
	}
	defer func() {
		if closeErr := session.Close(); closeErr != nil {
			o.logger.Warn().Err(closeErr).Str("url", url).Msg("Failed to close browser session")
		}
	}()

	o.preloadCookies(ctx, session, url, domainKey)

	navCtx, cancel := context.WithTimeout(ctx, o.navigationTimeout)
	err = session.Navigate(navCtx, url)
	cancel()
	if err != nil {
		return nil, err
	}

	if err := o.clearInterstitials(ctx, session, url, domainKey); err != nil {
		return nil, err
	}

	html, err := session.HTML(ctx)
	if err != nil {
		return nil, err
	}

	snapshot, err = ExtractProduct(html)
	if err != nil {
		return nil, err
	}

	if !snapshot.IsValid() {
		path, captureErr := o.diagnostics.Capture(ctx, session, html)
		if captureErr != nil {
			o.logger.Warn().Err(captureErr).Str("url", url).Msg("Failed to capture diagnostics")
		}
		o.logger.Error().
			Str("url", url).
			Str("asin", snapshot.ASIN).
			Str("title", snapshot.Title).
			Str("diagnostics", path).
			Msg("Product identifier not found on page")
		return nil, interfaces.ErrInvalidSnapshot
	}

	o.logger.Debug().
		Str("url", url).
		Str("asin", snapshot.ASIN).
		Dur("elapsed", time.Since(startTime)).
		Msg("Product extracted")

	return snapshot, nil
}

// preloadCookies applies the saved jar for the domain. Failures only cost the session its history.
func (o *Orchestrator) preloadCookies(ctx context.Context, session interfaces.BrowserSession, url, domainKey string) {
	cookies, err := o.cookies.Get(ctx, domainKey)
	if err != nil {
		if !errors.Is(err, interfaces.ErrCookieJarNotFound) {
			o.logger.Warn().Err(err).Str("domain_key", domainKey).Msg("Failed to load cookie jar")
		}
		return
	}

	if err := session.SetCookies(ctx, url, cookies); err != nil {
		o.logger.Warn().Err(err).Str("domain_key", domainKey).Msg("Failed to preload cookies")
		return
	}

	o.logger.Trace().Str("domain_key", domainKey).Int("cookies", len(cookies)).Msg("Cookies preloaded")
}

// clearInterstitials accepts the consent banner and solves captcha pages until
// the product page is reached. Consent is retried before every captcha check.
func (o *Orchestrator) clearInterstitials(ctx context.Context, session interfaces.BrowserSession, url, domainKey string) error {
	for attempt := 1; ; attempt++ {
		o.acceptConsent(ctx, session)

		challenged, err := session.Exists(ctx, captchaInputSelector)
		if err != nil {
			return fmt.Errorf("failed to check for captcha: %w", err)
		}
		if !challenged {
			return nil
		}

		o.logger.Info().Str("url", url).Int("attempt", attempt).Msg("Captcha challenge detected")

		if err := o.solveCaptcha(ctx, session, url); err != nil {
			return err
		}

		o.saveCookies(ctx, session, url, domainKey)
	}
}

func (o *Orchestrator) acceptConsent(ctx context.Context, session interfaces.BrowserSession) {
	present, err := session.Exists(ctx, consentSelector)
	if err != nil || !present {
		return
	}
	if err := session.Click(ctx, consentSelector); err != nil {
		o.logger.Debug().Err(err).Msg("Failed to accept cookie consent")
	}
}

func (o *Orchestrator) solveCaptcha(ctx context.Context, session interfaces.BrowserSession, url string) error {
	html, err := session.HTML(ctx)
	if err != nil {
		return fmt.Errorf("failed to read captcha page: %w", err)
	}

	imageRef, err := ExtractCaptchaImage(html)
	if err != nil {
		return err
	}

	answer, err := o.captcha.RequestAnswer(ctx, url, imageRef)
	if err != nil {
		return fmt.Errorf("captcha not answered: %w", err)
	}

	if err := session.Type(ctx, captchaInputSelector, answer); err != nil {
		return fmt.Errorf("failed to enter captcha answer: %w", err)
	}

	navCtx, cancel := context.WithTimeout(ctx, o.navigationTimeout)
	defer cancel()
	if err := session.ClickAndWaitNavigation(navCtx, captchaSubmitSelector); err != nil {
		return fmt.Errorf("failed to submit captcha answer: %w", err)
	}

	return nil
}

// saveCookies persists the session's cookies so later sessions skip solved challenges
func (o *Orchestrator) saveCookies(ctx context.Context, session interfaces.BrowserSession, url, domainKey string) {
	cookies, err := session.Cookies(ctx, url)
	if err != nil {
		o.logger.Warn().Err(err).Str("domain_key", domainKey).Msg("Failed to read session cookies")
		return
	}

	if err := o.cookies.Put(ctx, domainKey, cookies); err != nil {
		o.logger.Warn().Err(err).Str("domain_key", domainKey).Msg("Failed to save cookie jar")
		return
	}

	o.logger.Debug().Str("domain_key", domainKey).Int("cookies", len(cookies)).Msg("Cookie jar saved")
}
