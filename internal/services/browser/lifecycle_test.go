package browser

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/RevoLand/amazon-client/internal/common"
	"github.com/RevoLand/amazon-client/internal/models"
	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

const testUserAgent = "amazon-client-test/1.0"

// findChrome returns a Chrome binary on PATH, skipping the test when none exists
func findChrome(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("browser lifecycle test skipped in short mode")
	}
	for _, name := range []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser", "headless-shell", "chrome"} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	t.Skip("no Chrome binary found on PATH")
	return ""
}

// productSite serves one page that references a stylesheet and counts what the browser fetched
type productSite struct {
	*httptest.Server
	stylesheetHits atomic.Int32
	userAgent      atomic.Value
}

func newProductSite(t *testing.T) *productSite {
	site := &productSite{}
	mux := http.NewServeMux()
	mux.HandleFunc("/dp/B000TEST", func(w http.ResponseWriter, r *http.Request) {
		site.userAgent.Store(r.UserAgent())
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head><link rel="stylesheet" href="/style.css"></head>
<body><span id="productTitle">Lifecycle Kindle</span><input type="hidden" id="ASIN" value="B000TEST"></body></html>`)
	})
	mux.HandleFunc("/style.css", func(w http.ResponseWriter, r *http.Request) {
		site.stylesheetHits.Add(1)
		w.Header().Set("Content-Type", "text/css")
		fmt.Fprint(w, "body { color: red; }")
	})
	site.Server = httptest.NewServer(mux)
	t.Cleanup(site.Close)
	return site
}

func TestChromeSession_Lifecycle(t *testing.T) {
	findChrome(t)
	site := newProductSite(t)

	launcher := NewLauncher(&common.BrowserConfig{
		UserAgent:            testUserAgent,
		ViewportWidth:        1280,
		ViewportHeight:       720,
		Headless:             true,
		NoSandbox:            true,
		BlockedResourceTypes: []string{"Stylesheet", "Font", "Image"},
	}, arbor.NewLogger())

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	launchCtx, launchCancel := context.WithCancel(ctx)
	session, err := launcher.Launch(launchCtx)
	// The browser must outlive the context it was launched with
	launchCancel()
	require.NoError(t, err)
	defer session.Close()

	pageURL := site.URL + "/dp/B000TEST"

	require.NoError(t, session.SetCookies(ctx, pageURL, []models.Cookie{{Name: "session-id", Value: "123-456", Path: "/"}}))
	require.NoError(t, session.Navigate(ctx, pageURL))

	html, err := session.HTML(ctx)
	require.NoError(t, err)
	assert.Contains(t, html, "Lifecycle Kindle")

	found, err := session.Exists(ctx, "#productTitle")
	require.NoError(t, err)
	assert.True(t, found)

	found, err = session.Exists(ctx, "#captchacharacters")
	require.NoError(t, err)
	assert.False(t, found)

	cookies, err := session.Cookies(ctx, pageURL)
	require.NoError(t, err)
	names := make([]string, 0, len(cookies))
	for _, c := range cookies {
		names = append(names, c.Name)
	}
	assert.Contains(t, names, "session-id")

	assert.Equal(t, testUserAgent, site.userAgent.Load())
	assert.Equal(t, int32(0), site.stylesheetHits.Load(), "stylesheet request should be aborted")

	png, err := session.Screenshot(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, png)

	require.NoError(t, session.Close())
	require.NoError(t, session.Close())

	assert.Error(t, session.Navigate(ctx, pageURL))
}

// stubChrome writes an executable that never announces a DevTools endpoint
func stubChrome(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("stub browser requires a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "stub-chrome")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\nsleep 30\n"), 0755))
	return path
}

func newStubSession(t *testing.T) *ChromeSession {
	t.Helper()
	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), chromedp.ExecPath(stubChrome(t)))
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)
	return &ChromeSession{
		ctx: browserCtx,
		cancel: func() {
			browserCancel()
			allocatorCancel()
		},
		logger: arbor.NewLogger(),
	}
}

func TestChromeSession_StartIsBoundedByTimeout(t *testing.T) {
	session := newStubSession(t)

	started := time.Now()
	err := session.start(context.Background(), 200*time.Millisecond, chromedp.Navigate("about:blank"))

	assert.ErrorIs(t, err, ErrStartupTimeout)
	assert.Less(t, time.Since(started), 10*time.Second)
	assert.Error(t, session.ctx.Err(), "session should be closed after a failed start")
}

func TestChromeSession_StartHonorsCallerContext(t *testing.T) {
	session := newStubSession(t)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	err := session.start(ctx, time.Minute, chromedp.Navigate("about:blank"))

	assert.ErrorIs(t, err, context.Canceled)
	assert.Error(t, session.ctx.Err())
}
