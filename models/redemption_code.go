// models/redemption_code.go
package models

import "time"

// RedemptionCode is a single-use-per-holder credential that credits the
// ledger when redeemed. Codes are stored uppercase; lookups normalize case.
// A code stays active across redemptions by distinct holders — the
// Redemption uniqueness constraint is what limits each holder to one.
type RedemptionCode struct {
	ID         string          `gorm:"primaryKey;type:uuid" json:"id"`
	Code       string          `gorm:"uniqueIndex;not null" json:"code"`
	CategoryID *uint           `gorm:"index" json:"category_id,omitempty"` // severed (set null) if the category is deleted
	Category   *RewardCategory `gorm:"constraint:OnDelete:SET NULL" json:"-"`
	Points     int             `gorm:"not null;check:points >= 0" json:"points"`
	ExpiresAt  time.Time       `gorm:"not null;index" json:"expires_at"`
	CreatedBy  string          `gorm:"type:varchar(64);not null" json:"created_by"`
	Active     bool            `gorm:"not null;default:true;index" json:"active"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// Redemption joins one code to one participant. The composite unique index
// is the backstop against a double-credit race between simultaneous redeem
// attempts by the same holder.
type Redemption struct {
	ID            uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	CodeID        string    `gorm:"type:uuid;not null;uniqueIndex:idx_redemptions_code_participant" json:"code_id"`
	ParticipantID string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_redemptions_code_participant" json:"participant_id"`
	RedeemedAt    time.Time `gorm:"autoCreateTime" json:"redeemed_at"`
}
