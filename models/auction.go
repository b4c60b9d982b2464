// models/auction.go
package models

import "time"

// AuctionStyle selects how a loot auction settles.
type AuctionStyle string

const (
	AuctionStyleSealed  AuctionStyle = "sealed"  // blind bids, highest wins
	AuctionStyleFixed   AuctionStyle = "fixed"   // first affordable claim at min bid
	AuctionStyleZeroSum AuctionStyle = "zerosum" // sealed + payout redistributed to losers
)

// AuctionStatus is the auction lifecycle state. Transitions are monotonic:
// open -> closed or open -> cancelled, never back.
type AuctionStatus string

const (
	AuctionStatusOpen      AuctionStatus = "open"
	AuctionStatusClosed    AuctionStatus = "closed"
	AuctionStatusCancelled AuctionStatus = "cancelled"
)

// Auction is a loot bidding contest scoped to its origin channel.
// ExpiresAt nil means manual close only.
type Auction struct {
	ID        uint          `gorm:"primaryKey;autoIncrement" json:"id"`
	GuildID   string        `gorm:"type:varchar(64);not null;index" json:"guild_id"`
	ChannelID string        `gorm:"type:varchar(64);not null;index" json:"channel_id"`
	ItemName  string        `gorm:"not null" json:"item_name"`
	MinBid    int           `gorm:"not null;check:min_bid >= 0" json:"min_bid"`
	Increment int           `gorm:"not null;check:increment >= 1" json:"increment"`
	Style     AuctionStyle  `gorm:"type:varchar(16);not null" json:"style"`
	ExpiresAt *time.Time    `gorm:"index" json:"expires_at,omitempty"`
	CreatedBy string        `gorm:"type:varchar(64);not null" json:"created_by"`
	Status    AuctionStatus `gorm:"type:varchar(16);not null;default:'open';index" json:"status"`
	CreatedAt time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

// Bid is one participant's standing bid on an auction. The composite unique
// index keeps a single row per (auction, participant); later bids replace
// earlier ones except under the fixed style, where the first claim wins.
// CreatedAt breaks amount ties at settlement (earliest wins) and is bumped
// on replacement.
type Bid struct {
	ID            uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	AuctionID     uint      `gorm:"not null;uniqueIndex:idx_bids_auction_participant" json:"auction_id"`
	ParticipantID string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_bids_auction_participant" json:"participant_id"`
	Amount        int       `gorm:"not null;check:amount >= 0" json:"amount"`
	CreatedAt     time.Time `gorm:"not null" json:"created_at"`
}
