package models

import (
	"time"
)

// Cookie is a persisted browser cookie. JSON names follow the DevTools
// cookie shape so previously exported jar files load unchanged.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"` // Seconds since epoch, <= 0 for session cookies
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	Session  bool    `json:"session"`
	SameSite string  `json:"sameSite,omitempty"`
}

// CookieJar is the stored cookie set for one domain key
type CookieJar struct {
	DomainKey string    `json:"domain_key" badgerhold:"key"`
	Cookies   []Cookie  `json:"cookies"`
	UpdatedAt time.Time `json:"updated_at"`
}
