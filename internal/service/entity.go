package service

import (
	"time"

	"github.com/naano/linktrack/internal/dto"
	"github.com/naano/linktrack/internal/repo"
)

// EventType classifies a visit. The empty value means the visit produced no
// event under the link's tracking flags.
type EventType string

const (
	EventNone       EventType = ""
	EventImpression EventType = "impression"
	EventClick      EventType = "click"
)

const (
	cookieName         = "naano_attribution"
	cookieLifetimeDays = 30
	cookieMaxAge       = cookieLifetimeDays * 24 * 60 * 60

	utmSource = "naano"
	utmMedium = "ambassador"

	referrerDirect  = "direct"
	referrerPreview = "preview"
)

// linkCacheTTL bounds how long a resolved link is served from redis before
// the database view wins again.
const linkCacheTTL = time.Hour

// Config carries the request-independent settings of the tracking service.
type Config struct {
	BaseURL       string
	HomeURL       string
	SecureCookies bool
}

func toLinkResponse(e repo.LinkEntity, baseURL string) dto.LinkResponse {
	return dto.LinkResponse{
		Hash:             e.Hash,
		TrackingURL:      baseURL + "/c/" + e.Hash,
		DestinationURL:   e.DestinationURL,
		TrackImpressions: e.TrackImpressions,
		TrackClicks:      e.TrackClicks,
		TrackRevenue:     e.TrackRevenue,
		CollaborationID:  e.CollaborationID,
		CreatedAt:        e.CreatedAt.Format(time.RFC3339),
	}
}
