package scraper

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/RevoLand/amazon-client/internal/interfaces"
	"github.com/ternarybob/arbor"
)

// Diagnostics dumps the page of a failed extraction for later inspection
type Diagnostics struct {
	dir    string
	logger arbor.ILogger
	now    func() time.Time
}

const maxNameAttempts = 1000

// NewDiagnostics creates a writer for <dir>/<unix>.png and <dir>/<unix>.html.
// Captures within the same second get a -1, -2, ... suffix.
func NewDiagnostics(dir string, logger arbor.ILogger) *Diagnostics {
	return &Diagnostics{
		dir:    dir,
		logger: logger,
		now:    time.Now,
	}
}

// Capture writes a full-page screenshot and the markup. The markup is
// written even when the screenshot fails. It returns the base path used.
func (d *Diagnostics) Capture(ctx context.Context, session interfaces.BrowserSession, html string) (string, error) {
	if err := os.MkdirAll(d.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create diagnostics directory: %w", err)
	}

	base, markup, err := d.reserve()
	if err != nil {
		return "", err
	}
	defer markup.Close()

	var screenshotErr error
	if png, err := session.Screenshot(ctx); err != nil {
		screenshotErr = err
	} else if err := os.WriteFile(base+".png", png, 0644); err != nil {
		screenshotErr = fmt.Errorf("failed to write screenshot: %w", err)
	}

	if _, err := markup.WriteString(html); err != nil {
		return base, fmt.Errorf("failed to write markup: %w", err)
	}

	if screenshotErr != nil {
		d.logger.Warn().Err(screenshotErr).Str("path", base).Msg("Diagnostics captured without screenshot")
	}

	return base, nil
}

// reserve claims the first free base name by creating its .html file exclusively
func (d *Diagnostics) reserve() (string, *os.File, error) {
	stamp := strconv.FormatInt(d.now().Unix(), 10)

	for i := 0; i < maxNameAttempts; i++ {
		name := stamp
		if i > 0 {
			name = fmt.Sprintf("%s-%d", stamp, i)
		}
		base := filepath.Join(d.dir, name)

		file, err := os.OpenFile(base+".html", os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			return base, file, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", nil, fmt.Errorf("failed to create markup file: %w", err)
		}
	}

	return "", nil, fmt.Errorf("no free diagnostics name for %s", stamp)
}
