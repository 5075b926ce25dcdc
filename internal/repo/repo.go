package repo

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

type Repository interface {
	MigrateUp(migrationsDir string) error
	MigrateDown(migrationsDir string) error
	CreateLink(ctx context.Context, link LinkEntity) (int64, error)
	GetLinkByHash(ctx context.Context, hash string) (*ResolvedLink, error)
	CreateEvent(ctx context.Context, event EventEntity) error
	GetLinkAnalytics(ctx context.Context, linkID int64, hash string) (*LinkAnalytics, error)
	GetAnalyticsByDay(ctx context.Context, linkID int64, hash string, day time.Time) (*LinkAnalyticsByPeriod, error)
	GetAnalyticsByMonth(ctx context.Context, linkID int64, hash string, month time.Time) (*LinkAnalyticsByPeriod, error)
	GetAnalyticsByField(ctx context.Context, linkID int64, field string) ([]FieldStat, *AnalyticsPeriod, error)
}

type repository struct {
	db  *sql.DB
	log *zerolog.Logger
	ctx context.Context
}

func NewRepository(ctx context.Context, db *sql.DB, log *zerolog.Logger) (Repository, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping DB: %w", err)
	}

	return &repository{
		db:  db,
		log: log,
		ctx: ctx,
	}, nil
}

func (r *repository) MigrateUp(migrationsDir string) error {
	files, err := filepath.Glob(filepath.Join(migrationsDir, "*.up.sql"))
	if err != nil {
		return fmt.Errorf("failed to read migration files: %w", err)
	}

	for _, file := range files {
		sqlBytes, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", file, err)
		}

		if _, err := r.db.ExecContext(r.ctx, string(sqlBytes)); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", file, err)
		}
	}

	r.log.Info().Msgf("Migrations applied successfully from %s", migrationsDir)
	return nil
}

func (r *repository) MigrateDown(migrationsDir string) error {
	files, err := filepath.Glob(filepath.Join(migrationsDir, "*.down.sql"))
	if err != nil {
		return fmt.Errorf("failed to read rollback files: %w", err)
	}

	for _, file := range files {
		sqlBytes, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read rollback file %s: %w", file, err)
		}

		if _, err := r.db.ExecContext(r.ctx, string(sqlBytes)); err != nil {
			return fmt.Errorf("failed to rollback migration %s: %w", file, err)
		}
	}

	r.log.Info().Msgf("Migrations rolled back successfully from %s", migrationsDir)
	return nil
}

func (r *repository) CreateLink(ctx context.Context, link LinkEntity) (int64, error) {
	query := `
		INSERT INTO tracked_links (hash, destination_url, track_impressions, track_clicks, track_revenue, collaboration_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	rows, err := r.db.QueryContext(ctx, query,
		link.Hash,
		link.DestinationURL,
		link.TrackImpressions,
		link.TrackClicks,
		link.TrackRevenue,
		link.CollaborationID,
		link.CreatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert tracked link: %w", err)
	}
	defer rows.Close()

	var id int64
	if rows.Next() {
		if err := rows.Scan(&id); err != nil {
			return 0, fmt.Errorf("failed to scan returned id: %w", err)
		}
	} else {
		return 0, fmt.Errorf("no id returned after insert")
	}

	return id, nil
}

// GetLinkByHash resolves a tracking hash together with the creator id from
// the collaboration→application chain. Both joins are LEFT so a missing
// chain yields a nil CreatorID rather than a lookup failure.
func (r *repository) GetLinkByHash(ctx context.Context, hash string) (*ResolvedLink, error) {
	query := `
		SELECT l.id, l.hash, l.destination_url, l.track_impressions, l.track_clicks, l.track_revenue,
		       l.collaboration_id, a.creator_id
		FROM tracked_links l
		LEFT JOIN collaborations c ON c.id = l.collaboration_id
		LEFT JOIN applications a ON a.id = c.application_id
		WHERE l.hash = $1
		LIMIT 1
	`

	rows, err := r.db.QueryContext(ctx, query, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to query link by hash: %w", err)
	}
	defer rows.Close()

	if rows.Next() {
		var link ResolvedLink
		if err := rows.Scan(
			&link.ID,
			&link.Hash,
			&link.DestinationURL,
			&link.TrackImpressions,
			&link.TrackClicks,
			&link.TrackRevenue,
			&link.CollaborationID,
			&link.CreatorID,
		); err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		return &link, nil
	}

	return nil, nil
}

func (r *repository) CreateEvent(ctx context.Context, event EventEntity) error {
	query := `
		INSERT INTO link_events (tracked_link_id, event_type, created_at, ip_address, user_agent, referrer, session_id, browser, os, device)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.ExecContext(ctx, query,
		event.TrackedLinkID,
		event.EventType,
		event.CreatedAt,
		event.IPAddress,
		event.UserAgent,
		event.Referrer,
		event.SessionID,
		event.Browser,
		event.OS,
		event.Device,
	)
	if err != nil {
		return fmt.Errorf("failed to insert link event: %w", err)
	}

	return nil
}

func (r *repository) GetLinkAnalytics(ctx context.Context, linkID int64, hash string) (*LinkAnalytics, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE event_type = 'click') AS clicks,
			COUNT(*) FILTER (WHERE event_type = 'impression') AS impressions,
			COUNT(DISTINCT ip_address) AS unique_ips
		FROM link_events
		WHERE tracked_link_id = $1
	`, linkID)
	if err != nil {
		return nil, fmt.Errorf("failed to get event totals: %w", err)
	}
	defer rows.Close()

	var clicks, impressions, uniqueIPs int64
	if rows.Next() {
		if err := rows.Scan(&clicks, &impressions, &uniqueIPs); err != nil {
			return nil, fmt.Errorf("failed to scan event totals: %w", err)
		}
	}

	rowsPeriod, err := r.db.QueryContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE created_at >= NOW() - INTERVAL '7 days') AS last_7_days,
			COUNT(*) FILTER (WHERE created_at >= NOW() - INTERVAL '30 days') AS last_30_days,
			COUNT(*) AS all_time
		FROM link_events
		WHERE tracked_link_id = $1
	`, linkID)
	if err != nil {
		return nil, fmt.Errorf("failed to get analytics period: %w", err)
	}
	defer rowsPeriod.Close()

	var period AnalyticsPeriod
	if rowsPeriod.Next() {
		if err := rowsPeriod.Scan(&period.Last7Days, &period.Last30Days, &period.AllTime); err != nil {
			return nil, fmt.Errorf("failed to scan period: %w", err)
		}
	}

	rowsStats, err := r.db.QueryContext(ctx, `
		SELECT
			COALESCE(browser, 'Unknown') AS browser,
			COALESCE(os, 'Unknown') AS os,
			COALESCE(device, 'Unknown') AS device,
			COUNT(*) AS count
		FROM link_events
		WHERE tracked_link_id = $1
		GROUP BY browser, os, device
		ORDER BY count DESC
	`, linkID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user agent stats: %w", err)
	}
	defer rowsStats.Close()

	var stats []UserAgentStat
	for rowsStats.Next() {
		var s UserAgentStat
		if err := rowsStats.Scan(&s.Browser, &s.OS, &s.Device, &s.Count); err != nil {
			return nil, fmt.Errorf("failed to scan user agent stat: %w", err)
		}
		stats = append(stats, s)
	}
	if err = rowsStats.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}

	return &LinkAnalytics{
		Hash:        hash,
		Clicks:      clicks,
		Impressions: impressions,
		UniqueIPs:   uniqueIPs,
		UserAgents:  stats,
		Period:      period,
	}, nil
}

// GetAnalyticsByDay returns event stats for one calendar day.
func (r *repository) GetAnalyticsByDay(ctx context.Context, linkID int64, hash string, day time.Time) (*LinkAnalyticsByPeriod, error) {
	start := day.Truncate(24 * time.Hour)
	end := start.Add(24 * time.Hour)
	return r.getAnalyticsBetween(ctx, linkID, hash, start, end)
}

// GetAnalyticsByMonth returns event stats for one calendar month.
func (r *repository) GetAnalyticsByMonth(ctx context.Context, linkID int64, hash string, month time.Time) (*LinkAnalyticsByPeriod, error) {
	start := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, month.Location())
	end := start.AddDate(0, 1, 0)
	return r.getAnalyticsBetween(ctx, linkID, hash, start, end)
}

func (r *repository) getAnalyticsBetween(ctx context.Context, linkID int64, hash string, start, end time.Time) (*LinkAnalyticsByPeriod, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE event_type = 'click') AS clicks,
			COUNT(*) FILTER (WHERE event_type = 'impression') AS impressions,
			COUNT(DISTINCT ip_address) AS unique_ips
		FROM link_events
		WHERE tracked_link_id = $1 AND created_at >= $2 AND created_at < $3
	`, linkID, start, end)
	if err != nil {
		r.log.Error().Msgf("failed to get event totals for link=%d: %v", linkID, err)
		return nil, err
	}
	defer rows.Close()

	var clicks, impressions, uniqueIPs int64
	if rows.Next() {
		if err := rows.Scan(&clicks, &impressions, &uniqueIPs); err != nil {
			r.log.Error().Msgf("failed to scan event totals for link=%d: %v", linkID, err)
			return nil, err
		}
	}

	rowsStats, err := r.db.QueryContext(ctx, `
		SELECT COALESCE(browser,'Unknown'), COALESCE(os,'Unknown'), COALESCE(device,'Unknown'), COUNT(*)
		FROM link_events
		WHERE tracked_link_id = $1 AND created_at >= $2 AND created_at < $3
		GROUP BY browser, os, device
		ORDER BY COUNT(*) DESC
	`, linkID, start, end)
	if err != nil {
		r.log.Error().Msgf("failed to get stats for link=%d: %v", linkID, err)
		return nil, err
	}
	defer rowsStats.Close()

	var stats []UserAgentStat
	for rowsStats.Next() {
		var s UserAgentStat
		if err := rowsStats.Scan(&s.Browser, &s.OS, &s.Device, &s.Count); err != nil {
			r.log.Error().Msgf("failed to scan user agent stat for link=%d: %v", linkID, err)
			return nil, err
		}
		stats = append(stats, s)
	}

	return &LinkAnalyticsByPeriod{
		Hash:        hash,
		Clicks:      clicks,
		Impressions: impressions,
		UniqueIPs:   uniqueIPs,
		UserAgents:  stats,
	}, nil
}

// GetAnalyticsByField aggregates over one column (browser/os/device) for the
// whole event history of a link.
func (r *repository) GetAnalyticsByField(ctx context.Context, linkID int64, field string) ([]FieldStat, *AnalyticsPeriod, error) {
	if field != "browser" && field != "os" && field != "device" {
		err := fmt.Errorf("unsupported field for aggregation: %s", field)
		r.log.Error().Msgf("%v", err)
		return nil, nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT COALESCE(%s,'Unknown'), COUNT(*) FROM link_events WHERE tracked_link_id=$1 GROUP BY %s ORDER BY COUNT(*) DESC`, field, field),
		linkID)
	if err != nil {
		r.log.Error().Msgf("failed to get field stats for link=%d, field=%s: %v", linkID, field, err)
		return nil, nil, err
	}
	defer rows.Close()

	var stats []FieldStat
	for rows.Next() {
		var s FieldStat
		if err := rows.Scan(&s.Value, &s.Count); err != nil {
			r.log.Error().Msgf("failed to scan field stat for link=%d, field=%s: %v", linkID, field, err)
			return nil, nil, err
		}
		stats = append(stats, s)
	}

	rowsPeriod, err := r.db.QueryContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE created_at >= NOW() - INTERVAL '7 days') AS last_7_days,
			COUNT(*) FILTER (WHERE created_at >= NOW() - INTERVAL '30 days') AS last_30_days,
			COUNT(*) AS all_time
		FROM link_events
		WHERE tracked_link_id=$1`, linkID)
	if err != nil {
		r.log.Error().Msgf("failed to get analytics period for link=%d: %v", linkID, err)
		return nil, nil, err
	}
	defer rowsPeriod.Close()

	var period AnalyticsPeriod
	if rowsPeriod.Next() {
		if err := rowsPeriod.Scan(&period.Last7Days, &period.Last30Days, &period.AllTime); err != nil {
			r.log.Error().Msgf("failed to scan analytics period for link=%d: %v", linkID, err)
			return nil, nil, err
		}
	}

	return stats, &period, nil
}
