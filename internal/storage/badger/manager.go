package badger

import (
	"github.com/RevoLand/amazon-client/internal/common"
	"github.com/ternarybob/arbor"
)

// Manager owns the Badger database and the storages built on it
type Manager struct {
	db      *BadgerDB
	cookies *CookieStorage
	logger  arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (*Manager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:      db,
		cookies: NewCookieStorage(db, logger),
		logger:  logger,
	}

	logger.Info().Str("path", config.Path).Msg("Badger storage manager initialized")

	return manager, nil
}

// CookieStorage returns the cookie jar storage
func (m *Manager) CookieStorage() *CookieStorage {
	return m.cookies
}

// RunGC reclaims space from replaced cookie jars
func (m *Manager) RunGC() error {
	return m.db.RunGC()
}

// Close closes the database
func (m *Manager) Close() error {
	return m.db.Close()
}
