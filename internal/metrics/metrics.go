package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ConnectionState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "control_connection_state",
			Help: "Control connection state (0 closed, 1 connecting, 2 open, 3 closing).",
		},
	)

	ConnectionAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "control_connection_attempts_total",
			Help: "Total number of control connection dial attempts.",
		},
		[]string{"result"}, // success, failure
	)

	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "control_messages_total",
			Help: "Total number of control messages by direction and type.",
		},
		[]string{"direction", "type"}, // type is "unknown" for unhandled inbound types
	)

	TrackingInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tracking_requests_in_flight",
			Help: "Current number of registered tracking requests.",
		},
	)

	ScrapesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrapes_total",
			Help: "Total number of scrape attempts by outcome.",
		},
		[]string{"outcome"}, // success, invalid, error, panic
	)

	ScrapeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scrape_duration_seconds",
			Help:    "Duration of scrape attempts.",
			Buckets: []float64{1, 5, 10, 15, 30, 60, 120, 300},
		},
		[]string{"domain"}, // DomainLabel
	)

	CaptchaChallenges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "captcha_challenges_total",
			Help: "Total number of captcha challenges by result.",
		},
		[]string{"result"}, // answered, timeout, cancelled, send_failed
	)
)

// UnknownLabel replaces label values that did not come from a fixed set
const UnknownLabel = "unknown"

const otherDomain = "other"

// marketplaceDomains are the storefront domain keys kept as metric labels
var marketplaceDomains = map[string]struct{}{
	".com": {}, ".ca": {}, ".com.mx": {}, ".com.br": {},
	".co.uk": {}, ".de": {}, ".fr": {}, ".it": {}, ".es": {}, ".nl": {}, ".se": {}, ".pl": {}, ".com.be": {}, ".ie": {},
	".com.tr": {}, ".ae": {}, ".sa": {}, ".eg": {},
	".in": {}, ".co.jp": {}, ".sg": {}, ".com.au": {},
}

// DomainLabel maps a cookie-jar domain key to a bounded label: known storefronts keep their key, everything else is "other"
func DomainLabel(domainKey string) string {
	if _, ok := marketplaceDomains[domainKey]; ok {
		return domainKey
	}
	return otherDomain
}
