package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/lib/pq"
	"github.com/mssola/useragent"
	"github.com/rs/zerolog"

	"github.com/naano/linktrack/internal/dto"
	"github.com/naano/linktrack/internal/repo"
	"github.com/naano/linktrack/pkg/validator"
)

type Service interface {
	CreateLink(ctx *gin.Context)
	Redirect(ctx *gin.Context)
	Preview(ctx *gin.Context)
	ShowAnalytics(ctx *gin.Context)
}

type service struct {
	repo repo.Repository
	log  *zerolog.Logger
	rdb  *redis.Client
	cfg  Config
}

func NewService(repository repo.Repository, logger *zerolog.Logger, rdb *redis.Client, cfg Config) Service {
	return &service{
		repo: repository,
		log:  logger,
		rdb:  rdb,
		cfg:  cfg,
	}
}

func (s *service) CreateLink(ctx *gin.Context) {
	var req dto.CreateLinkRequest

	if err := ctx.ShouldBindJSON(&req); err != nil {
		s.log.Error().Msgf("Invalid request body: %v", err)
		dto.BadResponseError(ctx, dto.FieldBadFormat, "Invalid request body")
		return
	}

	if err := validator.Validate(ctx.Request.Context(), req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, err.Error())
		return
	}

	flag := func(v *bool) bool { return v == nil || *v }

	entity := repo.LinkEntity{
		DestinationURL:   req.DestinationURL,
		TrackImpressions: flag(req.TrackImpressions),
		TrackClicks:      flag(req.TrackClicks),
		TrackRevenue:     flag(req.TrackRevenue),
		CollaborationID:  req.CollaborationID,
		CreatedAt:        time.Now(),
	}

	// Hash collisions are vanishingly rare but cheap to retry.
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		entity.Hash = generateHash(16)

		id, err := s.repo.CreateLink(ctx.Request.Context(), entity)
		if err != nil {
			var pgErr *pq.Error
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				lastErr = err
				continue
			}
			s.log.Error().Msgf("Failed to create tracked link: %v", err)
			dto.InternalServerError(ctx)
			return
		}
		entity.ID = id

		// The cache is warmed only on the resolve path: a LinkEntity has no
		// creator id, and caching it here would strip utm_content from every
		// visit served off the cache.
		dto.SuccessCreatedResponse(ctx, toLinkResponse(entity, s.cfg.BaseURL))
		return
	}

	s.log.Error().Msgf("Failed to create tracked link after retries: %v", lastErr)
	dto.InternalServerError(ctx)
}

// Redirect handles a full visit: resolve, classify, log asynchronously and
// redirect with campaign parameters. Every failure degrades to a redirect
// to the home page; a visitor never sees an error status here.
func (s *service) Redirect(ctx *gin.Context) {
	hash := ctx.Param("hash")

	defer func() {
		if rec := recover(); rec != nil {
			s.log.Error().Msgf("panic in Redirect for hash=%s: %v", hash, rec)
			if !ctx.Writer.Written() {
				ctx.Redirect(http.StatusFound, s.cfg.HomeURL)
			}
		}
	}()

	link := s.resolveLink(ctx.Request.Context(), hash)
	if link == nil {
		s.log.Warn().Msgf("Tracked link not found: %s", hash)
		ctx.Redirect(http.StatusFound, s.cfg.HomeURL)
		return
	}

	ip, ua, referrer := visitorInfo(ctx.Request)
	sid := sessionID(ctx.Request)

	eventType := classifyVisit(referrer, ctx.GetHeader("Sec-Fetch-Dest"), link)
	if eventType != EventNone {
		s.recordEvent(link.ID, eventType, ip, ua, referrer, sid)
	}

	destination, err := composeDestination(link.DestinationURL, link.CollaborationID, link.CreatorID)
	if err != nil {
		s.log.Error().Msgf("Bad destination for hash=%s: %v", hash, err)
		ctx.Redirect(http.StatusFound, s.cfg.HomeURL)
		return
	}

	if link.TrackRevenue {
		ctx.SetSameSite(http.SameSiteLaxMode)
		ctx.SetCookie(cookieName, sid, cookieMaxAge, "/", "", s.cfg.SecureCookies, true)
	}

	ctx.Redirect(http.StatusFound, destination)
}

// Preview handles the HEAD probe issued by link-preview crawlers. It logs a
// single impression when the link tracks impressions and always answers
// with a bare 200, even for unknown hashes.
func (s *service) Preview(ctx *gin.Context) {
	hash := ctx.Param("hash")

	defer func() {
		if rec := recover(); rec != nil {
			s.log.Error().Msgf("panic in Preview for hash=%s: %v", hash, rec)
			if !ctx.Writer.Written() {
				ctx.Status(http.StatusOK)
			}
		}
	}()

	link, err := s.repo.GetLinkByHash(ctx.Request.Context(), hash)
	if err != nil {
		s.log.Warn().Msgf("Preview lookup failed for hash=%s: %v", hash, err)
		ctx.Status(http.StatusOK)
		return
	}

	if link != nil && link.TrackImpressions {
		ip, ua, _ := visitorInfo(ctx.Request)
		referrer := referrerPreview
		event := repo.EventEntity{
			TrackedLinkID: link.ID,
			EventType:     string(EventImpression),
			CreatedAt:     time.Now(),
			IPAddress:     &ip,
			UserAgent:     &ua,
			Referrer:      &referrer,
		}
		if err := s.repo.CreateEvent(ctx.Request.Context(), event); err != nil {
			s.log.Warn().Msgf("Failed to save preview impression for hash=%s: %v", hash, err)
		}
	}

	ctx.Status(http.StatusOK)
}

// resolveLink looks the hash up in the redis cache first and falls back to
// the database. Lookup errors are logged and reported as not-found; the
// caller cannot distinguish a missing link from an unreachable store.
func (s *service) resolveLink(ctx context.Context, hash string) *repo.ResolvedLink {
	key := fmt.Sprintf("link:%s", hash)

	if s.rdb != nil {
		if data, err := s.rdb.Get(ctx, key).Result(); err == nil {
			var link repo.ResolvedLink
			if err := json.Unmarshal([]byte(data), &link); err == nil {
				return &link
			}
		}
	}

	link, err := s.repo.GetLinkByHash(ctx, hash)
	if err != nil {
		s.log.Error().Msgf("failed to get tracked link for hash=%s: %v", hash, err)
		return nil
	}
	if link == nil {
		return nil
	}

	s.cacheLink(ctx, link)
	return link
}

func (s *service) cacheLink(ctx context.Context, link *repo.ResolvedLink) {
	if s.rdb == nil {
		return
	}
	key := fmt.Sprintf("link:%s", link.Hash)
	data, _ := json.Marshal(link)
	if err := s.rdb.Set(ctx, key, string(data), linkCacheTTL).Err(); err != nil {
		s.log.Warn().Msgf("Failed to cache link in Redis: %v", err)
	}
}

func parseUserAgent(uaString string) (browser, os, device string) {
	if uaString == "" || uaString == "unknown" {
		return "Unknown", "Unknown", "Unknown"
	}

	ua := useragent.New(uaString)
	name, _ := ua.Browser()
	os = ua.OS()
	device = "Desktop"
	if ua.Mobile() {
		device = "Mobile"
	} else if ua.Bot() {
		device = "Bot"
	}

	return name, os, device
}

// recordEvent appends a link event without blocking the caller. The write
// runs on its own goroutine with a background context; failures are logged
// and swallowed so they can never delay or break the redirect.
func (s *service) recordEvent(linkID int64, eventType EventType, ip, ua, referrer, sid string) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.log.Error().Msgf("panic in recordEvent: %v", r)
			}
		}()

		browser, os, device := parseUserAgent(ua)

		event := repo.EventEntity{
			TrackedLinkID: linkID,
			EventType:     string(eventType),
			CreatedAt:     time.Now(),
			IPAddress:     &ip,
			UserAgent:     &ua,
			Referrer:      &referrer,
			SessionID:     &sid,
			Browser:       &browser,
			OS:            &os,
			Device:        &device,
		}

		if err := s.repo.CreateEvent(context.Background(), event); err != nil {
			s.log.Warn().Msgf("Failed to save %s event for link=%d: %v", eventType, linkID, err)
		}
	}()
}

func (s *service) ShowAnalytics(ctx *gin.Context) {
	hash := ctx.Param("hash")
	if hash == "" {
		dto.FieldIncorrectError(ctx, "hash")
		return
	}

	link, err := s.repo.GetLinkByHash(ctx.Request.Context(), hash)
	if err != nil || link == nil {
		dto.LinkNotFoundError(ctx)
		return
	}

	by := ctx.Query("by")       // "day", "month", "browser", "os", "device"
	value := ctx.Query("value") // "YYYY-MM-DD" for day, "YYYY-MM" for month

	switch by {
	case "day":
		if value == "" {
			dto.BadResponseError(ctx, dto.FieldIncorrect, "'value' must be specified for day analytics")
			return
		}
		day, err := time.Parse("2006-01-02", value)
		if err != nil {
			dto.BadResponseError(ctx, dto.FieldIncorrect, "invalid date format, must be YYYY-MM-DD")
			return
		}

		data, err := s.repo.GetAnalyticsByDay(ctx.Request.Context(), link.ID, hash, day)
		if err != nil {
			dto.InternalServerError(ctx)
			return
		}
		dto.SuccessResponse(ctx, data)

	case "month":
		if value == "" {
			dto.BadResponseError(ctx, dto.FieldIncorrect, "'value' must be specified for month analytics")
			return
		}
		month, err := time.Parse("2006-01", value)
		if err != nil {
			dto.BadResponseError(ctx, dto.FieldIncorrect, "invalid month format, must be YYYY-MM")
			return
		}

		data, err := s.repo.GetAnalyticsByMonth(ctx.Request.Context(), link.ID, hash, month)
		if err != nil {
			dto.InternalServerError(ctx)
			return
		}
		dto.SuccessResponse(ctx, data)

	case "browser", "os", "device":
		data, period, err := s.repo.GetAnalyticsByField(ctx.Request.Context(), link.ID, by)
		if err != nil {
			dto.InternalServerError(ctx)
			return
		}

		result := struct {
			Hash   string               `json:"hash"`
			Field  string               `json:"field"`
			Stats  []repo.FieldStat     `json:"stats"`
			Period repo.AnalyticsPeriod `json:"period"`
		}{
			Hash:   hash,
			Field:  by,
			Stats:  data,
			Period: *period,
		}

		dto.SuccessResponse(ctx, result)

	default:
		analytics, err := s.repo.GetLinkAnalytics(ctx.Request.Context(), link.ID, hash)
		if err != nil {
			dto.InternalServerError(ctx)
			return
		}
		dto.SuccessResponse(ctx, analytics)
	}
}
