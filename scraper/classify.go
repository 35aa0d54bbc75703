package scraper

import (
	"strings"

	"github.com/use-agent/figscrape/models"
)

// criticalMarkers lists message fragments of failures that mean the
// browser, the network or the target is broken, as opposed to the page
// merely not matching the selectors. Checked in order, lowercase.
var criticalMarkers = []struct {
	marker string
	code   string
}{
	{"timeout", models.ErrCodeTimeout},
	{"timed out", models.ErrCodeTimeout},
	{"deadline exceeded", models.ErrCodeTimeout},

	{"pool exhausted", models.ErrCodePoolExhausted},
	{"failed to launch", models.ErrCodeLaunch},

	{"target closed", models.ErrCodeBrowserCrash},
	{"session closed", models.ErrCodeBrowserCrash},
	{"disconnected", models.ErrCodeBrowserCrash},
	{"connection closed", models.ErrCodeBrowserCrash},
	{"protocol error", models.ErrCodeBrowserCrash},
	{"out of memory", models.ErrCodeBrowserCrash},
	{"enomem", models.ErrCodeBrowserCrash},
	{"invalid argument", models.ErrCodeBrowserCrash},

	{"navigation", models.ErrCodeNavigation},
	{"net::err_", models.ErrCodeNavigation},
	{"name_not_resolved", models.ErrCodeNavigation},
	{"enotfound", models.ErrCodeNavigation},
	{"connection refused", models.ErrCodeNavigation},
	{"econnrefused", models.ErrCodeNavigation},
	{"connection reset", models.ErrCodeNavigation},
	{"econnreset", models.ErrCodeNavigation},
	{"certificate", models.ErrCodeNavigation},
	{"ssl error", models.ErrCodeNavigation},
	{"tls handshake", models.ErrCodeNavigation},
	{"http 4", models.ErrCodeNavigation},
	{"http 5", models.ErrCodeNavigation},
	{"status code", models.ErrCodeNavigation},
}

// IsCritical reports whether err must fail the scrape rather than be
// reported inside the result.
func IsCritical(err error) bool {
	return criticalCode(err) != ""
}

// criticalCode returns the error code for a critical failure, or "" for a
// recoverable one.
func criticalCode(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ToLower(err.Error())
	for _, m := range criticalMarkers {
		if strings.Contains(msg, m.marker) {
			return m.code
		}
	}
	return ""
}
