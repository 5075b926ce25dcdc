package service

import (
	"crypto/rand"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/naano/linktrack/internal/repo"
)

// classifyVisit decides whether a visit counts as a click, an impression or
// nothing. A visit is click-shaped when it carries a real referrer or when
// the fetch-destination signal indicates a top-level document navigation.
// The ordering matters: a click-shaped visit on a link with click tracking
// disabled is NOT reclassified as an impression.
func classifyVisit(referrer, fetchDest string, link *repo.ResolvedLink) EventType {
	isClick := referrer != referrerDirect || fetchDest == "document"

	switch {
	case isClick && link.TrackClicks:
		return EventClick
	case link.TrackImpressions:
		return EventImpression
	default:
		return EventNone
	}
}

// visitorInfo extracts best-effort request metadata. Missing values fall
// back to "unknown" for ip/ua and "direct" for the referrer.
func visitorInfo(r *http.Request) (ip, ua, referrer string) {
	ip = "unknown"
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ip = strings.TrimSpace(strings.Split(xff, ",")[0])
	} else if realIP := r.Header.Get("X-Real-Ip"); realIP != "" {
		ip = realIP
	}

	ua = r.Header.Get("User-Agent")
	if ua == "" {
		ua = "unknown"
	}

	referrer = r.Header.Get("Referer")
	if referrer == "" {
		referrer = referrerDirect
	}
	return
}

// sessionID returns the attribution identity for the request: the existing
// cookie value verbatim when present, otherwise a freshly minted id. The
// cookie value is not validated further; it has an analytics role only.
func sessionID(r *http.Request) string {
	if cookie, err := r.Cookie(cookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return uuid.NewString()
}

// composeDestination layers the campaign parameters onto the destination
// URL. Existing query parameters are preserved; the four utm keys are set
// last-write-wins. utm_content is omitted when the creator is unknown.
func composeDestination(destination, collaborationID string, creatorID *string) (string, error) {
	destination = strings.TrimSpace(destination)
	if destination == "" {
		return "", fmt.Errorf("empty destination url")
	}

	u, err := url.Parse(destination)
	if err != nil {
		return "", fmt.Errorf("failed to parse destination url: %w", err)
	}
	if !u.IsAbs() || u.Host == "" {
		return "", fmt.Errorf("destination url is not absolute: %s", destination)
	}

	q := u.Query()
	q.Set("utm_source", utmSource)
	q.Set("utm_medium", utmMedium)
	if creatorID != nil && *creatorID != "" {
		q.Set("utm_content", *creatorID)
	}
	q.Set("utm_campaign", collaborationID)
	u.RawQuery = q.Encode()

	return u.String(), nil
}

const hashLetters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// generateHash mints an unguessable URL-safe hash for a new tracked link.
// Bytes at or above the largest multiple of the alphabet size are rejected
// so every letter is equally likely.
func generateHash(n int) string {
	const limit = byte(256 / len(hashLetters) * len(hashLetters))

	out := make([]byte, 0, n)
	buf := make([]byte, 2*n)
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return uuid.NewString()
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			out = append(out, hashLetters[int(b)%len(hashLetters)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out)
}
