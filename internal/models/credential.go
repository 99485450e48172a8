package models

import "time"

// Credential binds a student number to a login email and password hash. It is
// distinct from the academic and financial records, which are read-only here.
type Credential struct {
	StudentNumber string `gorm:"column:StudentNumber;primaryKey" json:"student_number"`
	Email         string `gorm:"column:Email;uniqueIndex;not null" json:"email"`
	PasswordHash  string `gorm:"column:PasswordHash;not null" json:"-"`

	IsVerified bool `gorm:"column:IsVerified;default:false" json:"is_verified"`

	// VerificationToken is cleared once the email is verified.
	VerificationToken *string `gorm:"column:VerificationToken" json:"-"`

	// ResetToken is set only during an active reset window and cleared on use.
	ResetToken          *string    `gorm:"column:ResetToken" json:"-"`
	ResetTokenExpiresAt *time.Time `gorm:"column:ResetTokenExpiresAt" json:"-"`

	CreatedAt  time.Time  `gorm:"column:CreatedAt" json:"created_at"`
	VerifiedAt *time.Time `gorm:"column:VerifiedAt" json:"verified_at"`
	LastLogin  *time.Time `gorm:"column:LastLogin" json:"last_login"`
}

// TableName keeps the legacy table naming of the portal database.
func (Credential) TableName() string { return "student_credentials" }
