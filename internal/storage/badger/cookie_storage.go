package badger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/RevoLand/amazon-client/internal/interfaces"
	"github.com/RevoLand/amazon-client/internal/models"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"
)

// CookieStorage implements the CookieJarStorage interface for Badger
type CookieStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
	mu     sync.Mutex // Serializes writes; concurrent upserts of one key conflict in badger
}

// NewCookieStorage creates a new CookieStorage instance
func NewCookieStorage(db *BadgerDB, logger arbor.ILogger) *CookieStorage {
	return &CookieStorage{
		db:     db,
		logger: logger,
	}
}

var _ interfaces.CookieJarStorage = (*CookieStorage)(nil)

func (s *CookieStorage) normalizeKey(domainKey string) string {
	return strings.ToLower(strings.TrimSpace(domainKey))
}

// Get returns the last saved cookie set for a domain key
func (s *CookieStorage) Get(ctx context.Context, domainKey string) ([]models.Cookie, error) {
	key := s.normalizeKey(domainKey)
	if key == "" {
		return nil, fmt.Errorf("domain key is required")
	}

	var jar models.CookieJar
	if err := s.db.Store().Get(key, &jar); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, interfaces.ErrCookieJarNotFound
		}
		return nil, fmt.Errorf("failed to get cookie jar: %w", err)
	}

	return jar.Cookies, nil
}

// Put replaces the cookie set for a domain key
func (s *CookieStorage) Put(ctx context.Context, domainKey string, cookies []models.Cookie) error {
	key := s.normalizeKey(domainKey)
	if key == "" {
		return fmt.Errorf("domain key is required")
	}

	jar := &models.CookieJar{
		DomainKey: key,
		Cookies:   append([]models.Cookie(nil), cookies...),
		UpdatedAt: time.Now(),
	}

	s.mu.Lock()
	err := s.db.Store().Upsert(key, jar)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to store cookie jar: %w", err)
	}

	s.logger.Debug().
		Str("domain_key", key).
		Int("cookies", len(cookies)).
		Msg("Cookie jar saved")

	return nil
}

// ListDomainKeys returns every domain key with a saved jar
func (s *CookieStorage) ListDomainKeys(ctx context.Context) ([]string, error) {
	var jars []models.CookieJar
	if err := s.db.Store().Find(&jars, nil); err != nil {
		return nil, fmt.Errorf("failed to list cookie jars: %w", err)
	}

	keys := make([]string, len(jars))
	for i, jar := range jars {
		keys[i] = jar.DomainKey
	}
	return keys, nil
}
