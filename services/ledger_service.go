// services/ledger_service.go
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

const leaderboardSize = 10

// LedgerService owns participant balances. Balances move only through
// Credit, which writes a LedgerEntry audit row in the same transaction.
type LedgerService struct {
	DB *gorm.DB
}

func NewLedgerService(db *gorm.DB) *LedgerService {
	return &LedgerService{DB: db}
}

// EnsureParticipant lazily creates the participant row and refreshes the
// display name on every sighting.
func (s *LedgerService) EnsureParticipant(db *gorm.DB, externalID, displayName string) error {
	onConflict := clause.OnConflict{
		Columns:   []clause.Column{{Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"display_name", "updated_at"}),
	}
	if displayName == "" {
		// caller saw only the id (e.g. balance lookup for someone else);
		// keep whatever name is already stored
		displayName = externalID
		onConflict = clause.OnConflict{
			Columns:   []clause.Column{{Name: "external_id"}},
			DoNothing: true,
		}
	}
	p := models.Participant{ExternalID: externalID, DisplayName: displayName}
	err := db.Clauses(onConflict).Create(&p).Error
	if err != nil {
		return fmt.Errorf("failed to ensure participant %s: %w", externalID, err)
	}
	return nil
}

// Credit applies a signed delta to a participant's balance and returns the
// new balance. It never rejects on sign — affordability is the caller's
// concern (settlement re-checks under lock). Must run inside the caller's
// transaction so the balance change and its audit row commit together.
func (s *LedgerService) Credit(tx *gorm.DB, participantID string, delta int, reason models.LedgerReason, reference string) (int, error) {
	res := tx.Model(&models.Participant{}).
		Where("external_id = ?", participantID).
		UpdateColumn("dkp", gorm.Expr("dkp + ?", delta))
	if res.Error != nil {
		return 0, fmt.Errorf("failed to apply credit for %s: %w", participantID, res.Error)
	}
	if res.RowsAffected == 0 {
		// unseen participant: starts from zero
		p := models.Participant{ExternalID: participantID, DisplayName: participantID, DKP: delta}
		if err := tx.Create(&p).Error; err != nil {
			return 0, fmt.Errorf("failed to create participant %s during credit: %w", participantID, err)
		}
	}
	entry := models.LedgerEntry{
		ParticipantID: participantID,
		Delta:         delta,
		Reason:        reason,
		Reference:     reference,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return 0, fmt.Errorf("failed to log ledger entry for %s: %w", participantID, err)
	}
	var p models.Participant
	if err := tx.Where("external_id = ?", participantID).First(&p).Error; err != nil {
		return 0, fmt.Errorf("failed to re-read balance for %s: %w", participantID, err)
	}
	return p.DKP, nil
}

// Balance returns the current balance, 0 for participants never seen.
func (s *LedgerService) Balance(db *gorm.DB, participantID string) (int, error) {
	var p models.Participant
	if err := db.Where("external_id = ?", participantID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return p.DKP, nil
}

// Leaderboard returns the top holders, ties broken by arrival order.
func (s *LedgerService) Leaderboard(limit int) ([]models.Participant, error) {
	var top []models.Participant
	err := s.DB.Order("dkp DESC, created_at ASC").Limit(limit).Find(&top).Error
	return top, err
}

// --- Handlers ---

// GetBalance shows the caller's DKP, or another participant's when the route
// carries an id parameter.
func (s *LedgerService) GetBalance(c *fiber.Ctx) error {
	target := c.Params("id")
	name := ""
	if target == "" {
		target = callerID(c)
		name = callerName(c)
	}
	if err := s.EnsureParticipant(s.DB, target, name); err != nil {
		log.Printf("DB Error ensuring participant: %v", err)
		return errorReply(c, err)
	}
	var p models.Participant
	if err := s.DB.Where("external_id = ?", target).First(&p).Error; err != nil {
		log.Printf("DB Error fetching balance: %v", err)
		return errorReply(c, err)
	}
	return c.JSON(fiber.Map{
		"participant":  p.ExternalID,
		"display_name": p.DisplayName,
		"dkp":          p.DKP,
	})
}

// GetLeaderboard returns the top holders by balance.
func (s *LedgerService) GetLeaderboard(c *fiber.Ctx) error {
	top, err := s.Leaderboard(leaderboardSize)
	if err != nil {
		log.Printf("DB Error fetching leaderboard: %v", err)
		return errorReply(c, err)
	}
	type entry struct {
		Rank        int    `json:"rank"`
		DisplayName string `json:"display_name"`
		DKP         int    `json:"dkp"`
	}
	out := make([]entry, len(top))
	for i, p := range top {
		out[i] = entry{Rank: i + 1, DisplayName: p.DisplayName, DKP: p.DKP}
	}
	return c.JSON(out)
}

type lootHistoryRow struct {
	AwardID   uint      `json:"award_id"`
	ItemName  string    `json:"item_name"`
	Winner    string    `json:"winner"`
	Amount    int       `json:"amount"`
	AwardedAt time.Time `json:"awarded_at"`
}

// GetLootHistory returns the most recent settlement records for a guild.
func (s *LedgerService) GetLootHistory(c *fiber.Ctx) error {
	guildID := c.Query("guild_id")
	if guildID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "guild_id is required"})
	}
	var rows []lootHistoryRow
	err := s.DB.Table("loot_awards").
		Select("loot_awards.id AS award_id, auctions.item_name AS item_name, "+
			"COALESCE(participants.display_name, 'Unknown') AS winner, "+
			"loot_awards.amount AS amount, loot_awards.created_at AS awarded_at").
		Joins("JOIN auctions ON auctions.id = loot_awards.auction_id").
		Joins("LEFT JOIN participants ON participants.external_id = loot_awards.winner_id").
		Where("auctions.guild_id = ?", guildID).
		Order("loot_awards.created_at DESC").
		Limit(10).
		Scan(&rows).Error
	if err != nil {
		log.Printf("DB Error fetching loot history: %v", err)
		return errorReply(c, err)
	}
	return c.JSON(rows)
}
