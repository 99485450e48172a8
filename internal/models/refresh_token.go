package models

import "time"

// RefreshToken stores the SHA-256 digest of an issued refresh token. The raw
// token is returned to the client once and never persisted. A student may hold
// several rows at a time, one per active session.
type RefreshToken struct {
	ID            uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	StudentNumber string    `gorm:"column:StudentNumber;index;not null" json:"student_number"`
	TokenHash     string    `gorm:"column:Token;uniqueIndex;not null" json:"-"`
	ExpiresAt     time.Time `gorm:"column:ExpiresAt;index" json:"expires_at"`
	CreatedAt     time.Time `gorm:"column:CreatedAt" json:"created_at"`
}

// TableName keeps the legacy table naming of the portal database.
func (RefreshToken) TableName() string { return "refresh_tokens" }
