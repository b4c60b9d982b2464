// services/auction_service.go
package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"dkp-loot-system/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AuctionService runs loot auctions: open, bid, cancel, close. Commands are
// scoped to their origin channel and bind to the newest open auction there.
type AuctionService struct {
	DB     *gorm.DB
	Ledger *LedgerService
}

func NewAuctionService(db *gorm.DB, ledger *LedgerService) *AuctionService {
	return &AuctionService{DB: db, Ledger: ledger}
}

func validStyle(style models.AuctionStyle) bool {
	switch style {
	case models.AuctionStyleSealed, models.AuctionStyleFixed, models.AuctionStyleZeroSum:
		return true
	}
	return false
}

// Open starts an auction. durationMinutes of 0 means manual close only.
func (s *AuctionService) Open(guildID, channelID, itemName string, minBid, increment int, style models.AuctionStyle, durationMinutes int, createdBy string) (*models.Auction, error) {
	if itemName == "" {
		return nil, fmt.Errorf("item name required: %w", ErrInvalidState)
	}
	if minBid < 0 {
		return nil, fmt.Errorf("min bid must be >= 0: %w", ErrBidTooLow)
	}
	// increment is validated for every style, even fixed which ignores it
	if increment < 1 {
		return nil, fmt.Errorf("increment must be >= 1: %w", ErrBidTooLow)
	}
	if !validStyle(style) {
		return nil, fmt.Errorf("unknown auction style %q: %w", style, ErrInvalidState)
	}

	var expires *time.Time
	if durationMinutes > 0 {
		t := time.Now().Add(time.Duration(durationMinutes) * time.Minute)
		expires = &t
	}
	a := models.Auction{
		GuildID:   guildID,
		ChannelID: channelID,
		ItemName:  itemName,
		MinBid:    minBid,
		Increment: increment,
		Style:     style,
		ExpiresAt: expires,
		CreatedBy: createdBy,
		Status:    models.AuctionStatusOpen,
	}
	if err := s.DB.Create(&a).Error; err != nil {
		return nil, fmt.Errorf("failed to create auction: %w", err)
	}
	return &a, nil
}

// openInChannel finds the newest open auction in a channel.
func (s *AuctionService) openInChannel(db *gorm.DB, channelID string) (*models.Auction, error) {
	var a models.Auction
	err := db.Where("channel_id = ? AND status = ?", channelID, models.AuctionStatusOpen).
		Order("created_at DESC").
		First(&a).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("no open auction in channel: %w", ErrNotFound)
		}
		return nil, err
	}
	return &a, nil
}

// PlaceBid places or replaces the caller's bid on the channel's open
// auction. The affordability check here is deliberately soft — funds are not
// reserved, a participant may be bidding on several auctions at once; the
// hard check happens under lock at settlement.
//
// Fixed-style auctions take no competitive bids: the first affordable claim
// wins at the min bid and settles the auction immediately.
func (s *AuctionService) PlaceBid(channelID, participantID, displayName string, amount int) (*models.Auction, *SettlementResult, error) {
	a, err := s.openInChannel(s.DB, channelID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.Ledger.EnsureParticipant(s.DB, participantID, displayName); err != nil {
		return nil, nil, err
	}

	if a.Style == models.AuctionStyleFixed {
		cost := a.MinBid
		bal, err := s.Ledger.Balance(s.DB, participantID)
		if err != nil {
			return nil, nil, err
		}
		if bal < cost {
			return nil, nil, fmt.Errorf("need %d DKP: %w", cost, ErrInsufficientFunds)
		}
		var count int64
		if err := s.DB.Model(&models.Bid{}).Where("auction_id = ?", a.ID).Count(&count).Error; err != nil {
			return nil, nil, err
		}
		if count > 0 {
			return nil, nil, ErrItemClaimed
		}
		bid := models.Bid{AuctionID: a.ID, ParticipantID: participantID, Amount: cost, CreatedAt: time.Now()}
		if err := s.DB.Create(&bid).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return nil, nil, ErrItemClaimed
			}
			return nil, nil, fmt.Errorf("failed to record claim: %w", err)
		}
		// first come, first served: resolve right away
		res, err := s.Settle(a.ID)
		if err != nil {
			return nil, nil, err
		}
		return a, res, nil
	}

	// sealed / zerosum
	if amount < a.MinBid || (amount-a.MinBid)%a.Increment != 0 {
		return nil, nil, fmt.Errorf("bid must be >= %d in steps of %d: %w", a.MinBid, a.Increment, ErrBidTooLow)
	}
	bal, err := s.Ledger.Balance(s.DB, participantID)
	if err != nil {
		return nil, nil, err
	}
	if bal < amount {
		return nil, nil, fmt.Errorf("balance %d below bid %d: %w", bal, amount, ErrInsufficientFunds)
	}

	bid := models.Bid{AuctionID: a.ID, ParticipantID: participantID, Amount: amount, CreatedAt: time.Now()}
	err = s.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "auction_id"}, {Name: "participant_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"amount":     amount,
			"created_at": time.Now(),
		}),
	}).Create(&bid).Error
	if err != nil {
		return nil, nil, fmt.Errorf("failed to upsert bid: %w", err)
	}
	return a, nil, nil
}

// Cancel marks the channel's open auction cancelled. No settlement runs and
// bids have no ledger effect.
func (s *AuctionService) Cancel(channelID string) (*models.Auction, error) {
	a, err := s.openInChannel(s.DB, channelID)
	if err != nil {
		return nil, err
	}
	res := s.DB.Model(&models.Auction{}).
		Where("id = ? AND status = ?", a.ID, models.AuctionStatusOpen).
		Update("status", models.AuctionStatusCancelled)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		// closed or cancelled between lookup and update
		return nil, fmt.Errorf("auction #%d is no longer open: %w", a.ID, ErrInvalidState)
	}
	a.Status = models.AuctionStatusCancelled
	return a, nil
}

// Close settles the channel's open auction.
func (s *AuctionService) Close(channelID string) (*SettlementResult, error) {
	a, err := s.openInChannel(s.DB, channelID)
	if err != nil {
		return nil, err
	}
	return s.Settle(a.ID)
}

// AuctionStatus is a point-in-time read of an auction and its bid count.
type AuctionStatusInfo struct {
	Auction  *models.Auction `json:"auction"`
	BidCount int64           `json:"bid_count"`
}

// Status reports the channel's open auction without mutating anything.
func (s *AuctionService) Status(channelID string) (*AuctionStatusInfo, error) {
	a, err := s.openInChannel(s.DB, channelID)
	if err != nil {
		return nil, err
	}
	var count int64
	if err := s.DB.Model(&models.Bid{}).Where("auction_id = ?", a.ID).Count(&count).Error; err != nil {
		return nil, err
	}
	return &AuctionStatusInfo{Auction: a, BidCount: count}, nil
}

// --- Handlers ---

// OpenAuction starts an auction in the caller's channel (moderator only).
func (s *AuctionService) OpenAuction(c *fiber.Ctx) error {
	var req struct {
		GuildID         string `json:"guild_id"`
		ChannelID       string `json:"channel_id"`
		ItemName        string `json:"item_name"`
		MinBid          int    `json:"min_bid"`
		Increment       int    `json:"increment"`
		Style           string `json:"style"`
		DurationMinutes int    `json:"duration_minutes"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.GuildID == "" || req.ChannelID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "guild_id and channel_id are required"})
	}
	style := models.AuctionStyle(req.Style)
	if req.Style == "" {
		style = models.AuctionStyleSealed
	}

	a, err := s.Open(req.GuildID, req.ChannelID, req.ItemName, req.MinBid, req.Increment, style, req.DurationMinutes, callerID(c))
	if err != nil {
		return errorReply(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(a)
}

// GetAuctionStatus shows the open auction in a channel.
func (s *AuctionService) GetAuctionStatus(c *fiber.Ctx) error {
	channelID := c.Query("channel_id")
	if channelID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "channel_id is required"})
	}
	info, err := s.Status(channelID)
	if err != nil {
		return errorReply(c, err)
	}
	return c.JSON(info)
}

// CancelAuction cancels the channel's open auction (moderator only).
func (s *AuctionService) CancelAuction(c *fiber.Ctx) error {
	var req struct {
		ChannelID string `json:"channel_id"`
	}
	if err := c.BodyParser(&req); err != nil || req.ChannelID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "channel_id is required"})
	}
	a, err := s.Cancel(req.ChannelID)
	if err != nil {
		return errorReply(c, err)
	}
	return c.JSON(fiber.Map{"message": fmt.Sprintf("auction #%d cancelled", a.ID), "auction": a})
}

// CloseAuction closes and settles the channel's open auction (moderator only).
func (s *AuctionService) CloseAuction(c *fiber.Ctx) error {
	var req struct {
		ChannelID string `json:"channel_id"`
	}
	if err := c.BodyParser(&req); err != nil || req.ChannelID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "channel_id is required"})
	}
	res, err := s.Close(req.ChannelID)
	if err != nil {
		log.Printf("Settlement failed for channel %s: %v", req.ChannelID, err)
		return errorReply(c, err)
	}
	return c.JSON(fiber.Map{"summary": res.Summary(), "result": res})
}

// PlaceBidHandler places a bid on the channel's open auction.
func (s *AuctionService) PlaceBidHandler(c *fiber.Ctx) error {
	var req struct {
		ChannelID string `json:"channel_id"`
		Amount    int    `json:"amount"`
	}
	if err := c.BodyParser(&req); err != nil || req.ChannelID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "channel_id is required"})
	}
	if req.Amount < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "amount must be >= 0"})
	}

	a, settlement, err := s.PlaceBid(req.ChannelID, callerID(c), callerName(c), req.Amount)
	if err != nil {
		return errorReply(c, err)
	}
	if settlement != nil {
		// fixed style resolves on the first claim
		return c.JSON(fiber.Map{
			"message": "claimed",
			"auction": a.ID,
			"summary": settlement.Summary(),
			"result":  settlement,
		})
	}
	return c.JSON(fiber.Map{"message": "bid accepted", "auction": a.ID})
}
