package scraper

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/RevoLand/amazon-client/internal/interfaces"
	"github.com/RevoLand/amazon-client/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

const captchaPage = `<html><body><form action="/errors/validateCaptcha">
<img src="https://images-na.ssl-images-amazon.com/captcha/abc.jpg">
<input id="captchacharacters"><button type="submit">Continue</button></form></body></html>`

// fakeSession replays a scripted sequence of pages
type fakeSession struct {
	mu          sync.Mutex
	pages       []string // pages[0] is current; a submit advances
	consent     bool
	navigateErr error
	panicOn     string

	preloaded  []models.Cookie
	cookies    []models.Cookie
	navigated  []string
	typed      []string
	clicks     []string
	closed     int
	screenshot []byte
}

func (f *fakeSession) current() string {
	if len(f.pages) == 0 {
		return ""
	}
	return f.pages[0]
}

func (f *fakeSession) SetCookies(ctx context.Context, targetURL string, cookies []models.Cookie) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.preloaded = cookies
	return nil
}

func (f *fakeSession) Cookies(ctx context.Context, targetURL string) ([]models.Cookie, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cookies, nil
}

func (f *fakeSession) Navigate(ctx context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.navigated = append(f.navigated, url)
	if f.panicOn == "navigate" {
		panic("renderer crashed")
	}
	if f.navigateErr != nil {
		return f.navigateErr
	}
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("navigation must be bounded")
	}
	return nil
}

func (f *fakeSession) Exists(ctx context.Context, selector string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch selector {
	case consentSelector:
		return f.consent, nil
	case captchaInputSelector:
		return f.current() == captchaPage, nil
	}
	return false, nil
}

func (f *fakeSession) Click(ctx context.Context, selector string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clicks = append(f.clicks, selector)
	if selector == consentSelector {
		f.consent = false
	}
	return nil
}

func (f *fakeSession) Type(ctx context.Context, selector string, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.typed = append(f.typed, selector+"="+text)
	return nil
}

func (f *fakeSession) ClickAndWaitNavigation(ctx context.Context, selector string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clicks = append(f.clicks, selector)
	if len(f.pages) > 1 {
		f.pages = f.pages[1:]
	}
	return nil
}

func (f *fakeSession) HTML(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current(), nil
}

func (f *fakeSession) Screenshot(ctx context.Context) ([]byte, error) {
	return f.screenshot, nil
}

func (f *fakeSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

type fakeLauncher struct {
	session *fakeSession
	err     error
}

func (l *fakeLauncher) Launch(ctx context.Context) (interfaces.BrowserSession, error) {
	if l.err != nil {
		return nil, l.err
	}
	return l.session, nil
}

// MockCaptchaSolver is a mock implementation of CaptchaSolver
type MockCaptchaSolver struct {
	mock.Mock
}

func (m *MockCaptchaSolver) RequestAnswer(ctx context.Context, key string, imageRef string) (string, error) {
	args := m.Called(ctx, key, imageRef)
	return args.String(0), args.Error(1)
}

// memoryJars is an in-memory CookieJarStorage
type memoryJars struct {
	mu   sync.Mutex
	jars map[string][]models.Cookie
	puts int
}

func newMemoryJars() *memoryJars {
	return &memoryJars{jars: make(map[string][]models.Cookie)}
}

func (m *memoryJars) Get(ctx context.Context, domainKey string) ([]models.Cookie, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cookies, ok := m.jars[domainKey]
	if !ok {
		return nil, interfaces.ErrCookieJarNotFound
	}
	return cookies, nil
}

func (m *memoryJars) Put(ctx context.Context, domainKey string, cookies []models.Cookie) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jars[domainKey] = cookies
	m.puts++
	return nil
}

const productURL = "https://www.amazon.com.tr/dp/B08N5WRWNW"

func newTestOrchestrator(t *testing.T, session *fakeSession, solver interfaces.CaptchaSolver, jars interfaces.CookieJarStorage) (*Orchestrator, string) {
	t.Helper()
	dir := t.TempDir()
	logger := arbor.NewLogger()
	diagnostics := NewDiagnostics(dir, logger)
	diagnostics.now = func() time.Time { return time.Unix(1700000000, 0) }
	return NewOrchestrator(&fakeLauncher{session: session}, jars, solver, diagnostics, time.Minute, logger), dir
}

func TestOrchestrator_ExtractsValidProduct(t *testing.T) {
	session := &fakeSession{pages: []string{productPage}, consent: true}
	jars := newMemoryJars()
	jars.jars[".com.tr"] = []models.Cookie{{Name: "session-id", Value: "1"}}
	solver := new(MockCaptchaSolver)

	orchestrator, _ := newTestOrchestrator(t, session, solver, jars)
	snapshot, err := orchestrator.Scrape(context.Background(), productURL)
	require.NoError(t, err)

	assert.Equal(t, "B08N5WRWNW", snapshot.ASIN)
	assert.Equal(t, []models.Cookie{{Name: "session-id", Value: "1"}}, session.preloaded)
	assert.Equal(t, []string{productURL}, session.navigated)
	assert.Contains(t, session.clicks, consentSelector)
	assert.Equal(t, 1, session.closed)
	solver.AssertNotCalled(t, "RequestAnswer", mock.Anything, mock.Anything, mock.Anything)
}

func TestOrchestrator_SolvesCaptchaThenExtracts(t *testing.T) {
	session := &fakeSession{
		pages:   []string{captchaPage, captchaPage, productPage},
		cookies: []models.Cookie{{Name: "solved", Value: "yes"}},
	}
	jars := newMemoryJars()
	solver := new(MockCaptchaSolver)
	solver.On("RequestAnswer", mock.Anything, productURL, "https://images-na.ssl-images-amazon.com/captcha/abc.jpg").
		Return("XKCD42", nil).Twice()

	orchestrator, _ := newTestOrchestrator(t, session, solver, jars)
	snapshot, err := orchestrator.Scrape(context.Background(), productURL)
	require.NoError(t, err)
	assert.True(t, snapshot.IsValid())

	assert.Equal(t, []string{"#captchacharacters=XKCD42", "#captchacharacters=XKCD42"}, session.typed)
	assert.Equal(t, []string{captchaSubmitSelector, captchaSubmitSelector}, session.clicks)

	// Cookies are saved after every solved challenge
	assert.Equal(t, 2, jars.puts)
	saved, err := jars.Get(context.Background(), ".com.tr")
	require.NoError(t, err)
	assert.Equal(t, session.cookies, saved)

	assert.Equal(t, 1, session.closed)
	solver.AssertExpectations(t)
}

func TestOrchestrator_CaptchaFailureAbortsAttempt(t *testing.T) {
	session := &fakeSession{pages: []string{captchaPage}}
	solver := new(MockCaptchaSolver)
	solver.On("RequestAnswer", mock.Anything, productURL, mock.Anything).Return("", context.DeadlineExceeded)

	orchestrator, _ := newTestOrchestrator(t, session, solver, newMemoryJars())
	snapshot, err := orchestrator.Scrape(context.Background(), productURL)

	assert.Nil(t, snapshot)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, session.typed)
	assert.Equal(t, 1, session.closed)
}

func TestOrchestrator_InvalidSnapshotWritesDiagnostics(t *testing.T) {
	page := `<html><body><span id="productTitle">Gone</span></body></html>`
	session := &fakeSession{pages: []string{page}, screenshot: []byte("png-bytes")}

	orchestrator, dir := newTestOrchestrator(t, session, new(MockCaptchaSolver), newMemoryJars())
	snapshot, err := orchestrator.Scrape(context.Background(), productURL)

	assert.Nil(t, snapshot)
	assert.ErrorIs(t, err, interfaces.ErrInvalidSnapshot)
	assert.Equal(t, 1, session.closed)

	png, err := os.ReadFile(filepath.Join(dir, "1700000000.png"))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(png))

	html, err := os.ReadFile(filepath.Join(dir, "1700000000.html"))
	require.NoError(t, err)
	assert.Equal(t, page, string(html))
}

func TestOrchestrator_NavigationFailureReleasesSession(t *testing.T) {
	session := &fakeSession{pages: []string{productPage}, navigateErr: context.DeadlineExceeded}

	orchestrator, _ := newTestOrchestrator(t, session, new(MockCaptchaSolver), newMemoryJars())
	_, err := orchestrator.Scrape(context.Background(), productURL)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, session.closed)
}

func TestOrchestrator_PanicReleasesSession(t *testing.T) {
	session := &fakeSession{pages: []string{productPage}, panicOn: "navigate"}

	orchestrator, _ := newTestOrchestrator(t, session, new(MockCaptchaSolver), newMemoryJars())
	assert.Panics(t, func() {
		orchestrator.Scrape(context.Background(), productURL)
	})
	assert.Equal(t, 1, session.closed)
}

func TestOrchestrator_LaunchFailure(t *testing.T) {
	logger := arbor.NewLogger()
	orchestrator := NewOrchestrator(&fakeLauncher{err: errors.New("no chrome")}, newMemoryJars(),
		new(MockCaptchaSolver), NewDiagnostics(t.TempDir(), logger), time.Minute, logger)

	_, err := orchestrator.Scrape(context.Background(), productURL)
	assert.Error(t, err)
}

func TestOrchestrator_RejectsUnparseableURL(t *testing.T) {
	session := &fakeSession{pages: []string{productPage}}
	orchestrator, _ := newTestOrchestrator(t, session, new(MockCaptchaSolver), newMemoryJars())

	_, err := orchestrator.Scrape(context.Background(), "not a url")
	assert.Error(t, err)
	assert.Equal(t, 0, session.closed)
}
