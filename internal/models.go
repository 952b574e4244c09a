package internal

import (
	"time"
)

// URL is the persisted mapping between a long URL and its short code.
// LongURL is unique: creation is find-or-create keyed on it, so a given
// target only ever gets one code.
type URL struct {
	ID        int64      `gorm:"primaryKey;type:bigint" json:"id"`
	LongURL   string     `gorm:"type:text;uniqueIndex;not null" json:"longUrl"`
	ShortCode string     `gorm:"type:varchar(12);uniqueIndex;not null" json:"shortCode"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	HitCount  int64      `gorm:"not null;default:0" json:"hitCount"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Expired reports whether the record's expiration is set and strictly in
// the past relative to now. Records without ExpiresAt never expire.
func (u *URL) Expired(now time.Time) bool {
	return u.ExpiresAt != nil && u.ExpiresAt.Before(now)
}

// URLAnalytics holds the aggregate click count per short code, maintained
// by the analytics worker from the click event queue.
type URLAnalytics struct {
	ID         int64  `gorm:"primaryKey" json:"-"`
	ShortCode  string `gorm:"type:varchar(12);uniqueIndex;not null" json:"shortCode"`
	ClickCount int64  `gorm:"not null;default:0" json:"clickCount"`
}
