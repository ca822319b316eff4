package badger

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/RevoLand/amazon-client/internal/interfaces"
	"github.com/RevoLand/amazon-client/internal/models"
)

const (
	legacyCookiePrefix = "cookies"
	legacyCookieSuffix = ".json"
)

// ImportLegacyFiles loads cookies<domainKey>.json files left by the
// file-per-domain layout. Keys that already have a jar are skipped so the
// import never overwrites fresher state.
func (s *CookieStorage) ImportLegacyFiles(ctx context.Context, dirPath string) (loaded, skipped, failed int) {
	if dirPath == "" {
		return 0, 0, 0
	}

	entries, err := os.ReadDir(dirPath)
	if err != nil {
		s.logger.Debug().Err(err).Str("dir", dirPath).Msg("Legacy cookie directory not readable")
		return 0, 0, 0
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, legacyCookiePrefix) || !strings.HasSuffix(name, legacyCookieSuffix) {
			continue
		}

		domainKey := strings.TrimSuffix(strings.TrimPrefix(name, legacyCookiePrefix), legacyCookieSuffix)
		if domainKey == "" {
			continue
		}

		if _, err := s.Get(ctx, domainKey); err == nil {
			skipped++
			continue
		} else if !errors.Is(err, interfaces.ErrCookieJarNotFound) {
			s.logger.Warn().Err(err).Str("domain_key", domainKey).Msg("Failed to check existing cookie jar")
			failed++
			continue
		}

		filePath := filepath.Join(dirPath, name)
		content, err := os.ReadFile(filePath)
		if err != nil {
			s.logger.Warn().Err(err).Str("file", filePath).Msg("Failed to read legacy cookie file")
			failed++
			continue
		}

		var cookies []models.Cookie
		if err := json.Unmarshal(content, &cookies); err != nil {
			s.logger.Warn().Err(err).Str("file", filePath).Msg("Failed to parse legacy cookie file")
			failed++
			continue
		}

		if err := s.Put(ctx, domainKey, cookies); err != nil {
			s.logger.Warn().Err(err).Str("domain_key", domainKey).Msg("Failed to import legacy cookie file")
			failed++
			continue
		}
		loaded++
	}

	s.logger.Debug().
		Int("loaded", loaded).
		Int("skipped", skipped).
		Int("errors", failed).
		Msg("Finished importing legacy cookie files")

	return loaded, skipped, failed
}
