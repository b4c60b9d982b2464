// models/loot_award.go
package models

import "time"

// LootAward is the settlement record of one auction: who won and how much
// they paid. The unique auction_id index makes settlement insertion
// idempotent — a second settlement attempt can never write a second award.
type LootAward struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	AuctionID uint      `gorm:"uniqueIndex;not null" json:"auction_id"`
	WinnerID  *string   `gorm:"type:varchar(64)" json:"winner_id,omitempty"`
	Amount    int       `gorm:"not null" json:"amount"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}
