package repo

import "time"

type LinkEntity struct {
	ID               int64     `db:"id"`
	Hash             string    `db:"hash"`
	DestinationURL   string    `db:"destination_url"`
	TrackImpressions bool      `db:"track_impressions"`
	TrackClicks      bool      `db:"track_clicks"`
	TrackRevenue     bool      `db:"track_revenue"`
	CollaborationID  string    `db:"collaboration_id"`
	CreatedAt        time.Time `db:"created_at"`
}

// ResolvedLink is a LinkEntity joined with its attribution chain. CreatorID
// is nil when the collaboration→application chain is broken; resolution
// still succeeds in that case.
type ResolvedLink struct {
	ID               int64   `json:"id"`
	Hash             string  `json:"hash"`
	DestinationURL   string  `json:"destination_url"`
	TrackImpressions bool    `json:"track_impressions"`
	TrackClicks      bool    `json:"track_clicks"`
	TrackRevenue     bool    `json:"track_revenue"`
	CollaborationID  string  `json:"collaboration_id"`
	CreatorID        *string `json:"creator_id,omitempty"`
}

type EventEntity struct {
	ID            int64     `db:"id"`
	TrackedLinkID int64     `db:"tracked_link_id"`
	EventType     string    `db:"event_type"`
	CreatedAt     time.Time `db:"created_at"`
	IPAddress     *string   `db:"ip_address"`
	UserAgent     *string   `db:"user_agent"`
	Referrer      *string   `db:"referrer"`
	SessionID     *string   `db:"session_id"`
	Browser       *string   `db:"browser"`
	OS            *string   `db:"os"`
	Device        *string   `db:"device"`
}

type LinkAnalytics struct {
	Hash        string          `json:"hash"`
	Clicks      int64           `json:"clicks"`
	Impressions int64           `json:"impressions"`
	UniqueIPs   int64           `json:"unique_ips"`
	UserAgents  []UserAgentStat `json:"user_agents"`
	Period      AnalyticsPeriod `json:"period"`
}

type LinkAnalyticsByPeriod struct {
	Hash        string          `json:"hash"`
	Clicks      int64           `json:"clicks"`
	Impressions int64           `json:"impressions"`
	UniqueIPs   int64           `json:"unique_ips"`
	UserAgents  []UserAgentStat `json:"user_agents"`
}

type UserAgentStat struct {
	Browser string `json:"browser"`
	OS      string `json:"os"`
	Device  string `json:"device"`
	Count   int64  `json:"count"`
}

type AnalyticsPeriod struct {
	Last7Days  int64 `json:"last_7_days"`
	Last30Days int64 `json:"last_30_days"`
	AllTime    int64 `json:"all_time"`
}

type FieldStat struct {
	Value string `json:"value"`
	Count int64  `json:"count"`
}
