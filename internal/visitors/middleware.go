package visitors

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// CookieName holds the per-browser visitor id.
	CookieName = "visitorId"

	contextKey   = "visitorID"
	cookieMaxAge = 365 * 24 * 3600
)

var botMarkers = []string{"bot", "crawler", "spider", "slurp", "curl/", "wget/", "headless"}

// Identify resolves the visitor id from the visitorId cookie, minting and
// persisting a new UUID when the cookie is absent or malformed.
func Identify(secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, _ := c.Cookie(CookieName)
		id, ok := canonicalID(raw)
		if !ok {
			id = uuid.NewString()
		}
		// Refresh on every request so the id outlives the default expiry.
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(CookieName, id, cookieMaxAge, "/", "", secure, true)
		c.Set(contextKey, id)
		c.Next()
	}
}

// VisitorID returns the id resolved by Identify, or "" if it did not run.
func VisitorID(c *gin.Context) string {
	return c.GetString(contextKey)
}

// TrackPageView counts a visit for browser page loads.
func TrackPageView(t *Tracker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodGet && fromBrowser(c) {
			if id := VisitorID(c); id != "" {
				t.Track(id)
			}
		}
		c.Next()
	}
}

type beaconRequest struct {
	VisitorID string `json:"visitorId"`
}

// BeaconHandler accepts visit beacons from client-rendered pages. A visitorId
// kept in the browser's local storage wins over the cookie.
func BeaconHandler(t *Tracker) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req beaconRequest
		_ = c.ShouldBindJSON(&req)

		id := VisitorID(c)
		if stored, ok := canonicalID(req.VisitorID); ok {
			id = stored
		}
		if id != "" && fromBrowser(c) {
			t.Track(id)
		}
		c.JSON(http.StatusAccepted, gin.H{"visitorId": id})
	}
}

// fromBrowser filters out requests that are not a person's page view.
func fromBrowser(c *gin.Context) bool {
	// Respect Do Not Track header
	if c.GetHeader("DNT") == "1" {
		return false
	}
	ua := strings.ToLower(c.GetHeader("User-Agent"))
	if ua == "" {
		return false
	}
	for _, m := range botMarkers {
		if strings.Contains(ua, m) {
			return false
		}
	}
	return true
}

// canonicalID parses any UUID spelling and returns its lowercase hyphenated
// form, so one browser maps to one ledger entry.
func canonicalID(id string) (string, bool) {
	if id == "" {
		return "", false
	}
	u, err := uuid.Parse(id)
	if err != nil {
		return "", false
	}
	return u.String(), true
}
