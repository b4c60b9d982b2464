// models/participant.go
package models

import "time"

// Participant is a chat user known to the ledger. Rows are created lazily on
// first interaction and never deleted; the DKP balance is mutated only
// through LedgerService.Credit.
type Participant struct {
	ExternalID  string    `gorm:"primaryKey;type:varchar(64)" json:"external_id"` // stable id from the chat platform
	DisplayName string    `gorm:"not null" json:"display_name"`                   // refreshed on sight
	DKP         int       `gorm:"not null;default:0" json:"dkp"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// LedgerReason tags a LedgerEntry with the operation that produced it.
type LedgerReason string

const (
	LedgerReasonRedeem         LedgerReason = "redeem"
	LedgerReasonSettlement     LedgerReason = "settlement"
	LedgerReasonRedistribution LedgerReason = "redistribution"
)

// LedgerEntry is the audit log behind every balance change. A Participant's
// DKP never moves without a matching entry in the same transaction.
type LedgerEntry struct {
	ID            uint         `gorm:"primaryKey;autoIncrement" json:"id"`
	ParticipantID string       `gorm:"type:varchar(64);not null;index" json:"participant_id"`
	Delta         int          `gorm:"not null" json:"delta"` // negative = debit
	Reason        LedgerReason `gorm:"type:varchar(32);not null" json:"reason"`
	Reference     string       `gorm:"type:varchar(64)" json:"reference"` // code or auction id
	CreatedAt     time.Time    `gorm:"autoCreateTime" json:"created_at"`
}
