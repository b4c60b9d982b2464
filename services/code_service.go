// services/code_service.go
package services

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"dkp-loot-system/models"
	"dkp-loot-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const codeLength = 6

// CodeService issues and redeems DKP redemption codes. A code may be
// redeemed once per holder while active and unexpired; distinct holders can
// each redeem the same code.
type CodeService struct {
	DB         *gorm.DB
	Ledger     *LedgerService
	Categories *CategoryService
}

func NewCodeService(db *gorm.DB, ledger *LedgerService, categories *CategoryService) *CodeService {
	return &CodeService{DB: db, Ledger: ledger, Categories: categories}
}

// Issue creates a code for a category. manualCode empty means auto-generate;
// pointsOverride nil means use the category's default value.
func (s *CodeService) Issue(issuerID, categoryName string, durationMinutes int, manualCode string, pointsOverride *int) (*models.RedemptionCode, error) {
	cat, err := s.Categories.FindByName(s.DB, categoryName)
	if err != nil {
		return nil, err
	}
	if !cat.Active {
		return nil, fmt.Errorf("category %q is inactive: %w", categoryName, ErrNotFound)
	}

	code := strings.ToUpper(strings.TrimSpace(manualCode))
	if code == "" {
		code = utils.GenerateCode(codeLength)
	}
	points := cat.Points
	if pointsOverride != nil {
		points = *pointsOverride
	}

	rc := models.RedemptionCode{
		ID:         uuid.NewString(),
		Code:       code,
		CategoryID: &cat.ID,
		Points:     points,
		ExpiresAt:  time.Now().Add(time.Duration(durationMinutes) * time.Minute),
		CreatedBy:  issuerID,
		Active:     true,
	}
	if err := s.DB.Create(&rc).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("code %s: %w", code, ErrDuplicateCode)
		}
		return nil, fmt.Errorf("failed to create code: %w", err)
	}
	return &rc, nil
}

// Redeem credits the code's point value to the participant. The redemption
// row and the credit commit in one transaction: a duplicate-key conflict on
// the redemption rolls the credit back, so a double-submit race can never
// double-credit.
func (s *CodeService) Redeem(code, participantID, displayName string) (int, error) {
	code = strings.ToUpper(strings.TrimSpace(code))

	var rc models.RedemptionCode
	if err := s.DB.Where("code = ?", code).First(&rc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, fmt.Errorf("code %s: %w", code, ErrNotFound)
		}
		return 0, err
	}
	if !rc.Active {
		return 0, fmt.Errorf("code %s is revoked: %w", code, ErrNotFound)
	}
	if time.Now().After(rc.ExpiresAt) {
		return 0, fmt.Errorf("code %s: %w", code, ErrExpired)
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := s.Ledger.EnsureParticipant(tx, participantID, displayName); err != nil {
			return err
		}
		var existing models.Redemption
		err := tx.Where("code_id = ? AND participant_id = ?", rc.ID, participantID).First(&existing).Error
		if err == nil {
			return ErrAlreadyRedeemed
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		redemption := models.Redemption{CodeID: rc.ID, ParticipantID: participantID}
		if err := tx.Create(&redemption).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				// lost the race to our own double-submit
				return ErrAlreadyRedeemed
			}
			return fmt.Errorf("failed to record redemption: %w", err)
		}
		if _, err := s.Ledger.Credit(tx, participantID, rc.Points, models.LedgerReasonRedeem, rc.Code); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return rc.Points, nil
}

// Revoke deactivates a code. Completed redemptions are untouched.
func (s *CodeService) Revoke(code string) error {
	code = strings.ToUpper(strings.TrimSpace(code))
	res := s.DB.Model(&models.RedemptionCode{}).
		Where("code = ?", code).
		Update("active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("code %s: %w", code, ErrNotFound)
	}
	return nil
}

// ListActive returns active, unexpired codes, soonest expiry first.
func (s *CodeService) ListActive() ([]models.RedemptionCode, error) {
	var codes []models.RedemptionCode
	err := s.DB.Where("active = ? AND expires_at > ?", true, time.Now()).
		Order("expires_at ASC").
		Find(&codes).Error
	return codes, err
}

// DeactivateExpired flips active off for codes past expiry. Called by the
// sweeper; no settlement applies to codes.
func (s *CodeService) DeactivateExpired() (int64, error) {
	res := s.DB.Model(&models.RedemptionCode{}).
		Where("active = ? AND expires_at <= ?", true, time.Now()).
		Update("active", false)
	return res.RowsAffected, res.Error
}

// --- Handlers ---

// IssuePin creates a redemption code (moderator only).
func (s *CodeService) IssuePin(c *fiber.Ctx) error {
	var req struct {
		Category        string `json:"category"`
		DurationMinutes int    `json:"duration_minutes"`
		Code            string `json:"code"`
		PointsOverride  *int   `json:"points_override"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Category == "" || req.DurationMinutes < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "category required, duration must be >= 0"})
	}
	if req.PointsOverride != nil && *req.PointsOverride < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "points override must be >= 0"})
	}

	rc, err := s.Issue(callerID(c), req.Category, req.DurationMinutes, req.Code, req.PointsOverride)
	if err != nil {
		return errorReply(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"code":       rc.Code,
		"points":     rc.Points,
		"expires_at": rc.ExpiresAt,
	})
}

// RedeemPin redeems a code for the calling participant.
func (s *CodeService) RedeemPin(c *fiber.Ctx) error {
	var req struct {
		Code string `json:"code"`
	}
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.Code) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "code is required"})
	}

	points, err := s.Redeem(req.Code, callerID(c), callerName(c))
	if err != nil {
		return errorReply(c, err)
	}
	return c.JSON(fiber.Map{
		"code":   strings.ToUpper(strings.TrimSpace(req.Code)),
		"points": points,
	})
}

// RevokePin deactivates a code (moderator only).
func (s *CodeService) RevokePin(c *fiber.Ctx) error {
	code := c.Params("code")
	if err := s.Revoke(code); err != nil {
		return errorReply(c, err)
	}
	return c.JSON(fiber.Map{"message": fmt.Sprintf("code %s revoked", strings.ToUpper(code))})
}

// ListPins lists active, unexpired codes (moderator only).
func (s *CodeService) ListPins(c *fiber.Ctx) error {
	codes, err := s.ListActive()
	if err != nil {
		log.Printf("DB Error listing codes: %v", err)
		return errorReply(c, err)
	}
	return c.JSON(codes)
}
