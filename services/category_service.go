// services/category_service.go
package services

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"dkp-loot-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

// CategoryService manages reward categories (event types). Names are unique
// case-insensitively via a slug key column.
type CategoryService struct {
	DB *gorm.DB
}

func NewCategoryService(db *gorm.DB) *CategoryService {
	return &CategoryService{DB: db}
}

// FindByName resolves a category by its case-insensitive name.
func (s *CategoryService) FindByName(db *gorm.DB, name string) (*models.RewardCategory, error) {
	var cat models.RewardCategory
	err := db.Where("name_key = ?", slug.Make(name)).First(&cat).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("category %q: %w", name, ErrNotFound)
		}
		return nil, err
	}
	return &cat, nil
}

// --- Handlers ---

// CreateCategory adds a reward category (moderator only).
func (s *CategoryService) CreateCategory(c *fiber.Ctx) error {
	var req struct {
		Name   string `json:"name"`
		Points int    `json:"points"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.Points < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "name required, points must be >= 0"})
	}

	cat := models.RewardCategory{
		Name:    req.Name,
		NameKey: slug.Make(req.Name),
		Points:  req.Points,
		Active:  true,
	}
	if err := s.DB.Create(&cat).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "that category already exists"})
		}
		log.Printf("DB Error creating category: %v", err)
		return errorReply(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(cat)
}

// UpdateCategory changes a category's point value (moderator only).
func (s *CategoryService) UpdateCategory(c *fiber.Ctx) error {
	var req struct {
		Points *int  `json:"points"`
		Active *bool `json:"active"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Points != nil && *req.Points < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "points must be >= 0"})
	}

	cat, err := s.FindByName(s.DB, c.Params("name"))
	if err != nil {
		return errorReply(c, err)
	}
	if req.Points != nil {
		cat.Points = *req.Points
	}
	if req.Active != nil {
		cat.Active = *req.Active
	}
	if err := s.DB.Save(cat).Error; err != nil {
		log.Printf("DB Error updating category: %v", err)
		return errorReply(c, err)
	}
	return c.JSON(cat)
}

// DeleteCategory removes a category. Codes already issued against it keep
// working — their category reference is severed, not the codes themselves.
func (s *CategoryService) DeleteCategory(c *fiber.Ctx) error {
	cat, err := s.FindByName(s.DB, c.Params("name"))
	if err != nil {
		return errorReply(c, err)
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.RedemptionCode{}).
			Where("category_id = ?", cat.ID).
			Update("category_id", nil).Error; err != nil {
			return fmt.Errorf("failed to sever codes from category %d: %w", cat.ID, err)
		}
		if err := tx.Delete(&models.RewardCategory{}, cat.ID).Error; err != nil {
			return fmt.Errorf("failed to delete category %d: %w", cat.ID, err)
		}
		return nil
	})
	if err != nil {
		log.Printf("DB Error deleting category: %v", err)
		return errorReply(c, err)
	}
	return c.JSON(fiber.Map{"message": fmt.Sprintf("category %s removed", cat.Name)})
}

// GetCategories lists all categories.
func (s *CategoryService) GetCategories(c *fiber.Ctx) error {
	var cats []models.RewardCategory
	if err := s.DB.Order("name ASC").Find(&cats).Error; err != nil {
		log.Printf("DB Error listing categories: %v", err)
		return errorReply(c, err)
	}
	return c.JSON(cats)
}
