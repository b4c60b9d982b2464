// services/settlement.go
package services

import (
	"errors"
	"fmt"

	"dkp-loot-system/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SettlementResult is the outcome of settling one auction.
type SettlementResult struct {
	Auction       *models.Auction   `json:"auction"`
	Award         *models.LootAward `json:"award,omitempty"`
	WinnerName    string            `json:"winner_name,omitempty"`
	NoBids        bool              `json:"no_bids"`
	AlreadyDone   bool              `json:"already_done"`
	LoserCount    int               `json:"loser_count,omitempty"`
	Redistributed int               `json:"redistributed,omitempty"` // share credited to each loser
}

// Summary renders the result the way it is announced in chat.
func (r *SettlementResult) Summary() string {
	a := r.Auction
	if r.AlreadyDone {
		return fmt.Sprintf("Auction #%d already %s.", a.ID, a.Status)
	}
	if r.NoBids {
		return fmt.Sprintf("Auction #%d for **%s** closed: no bids.", a.ID, a.ItemName)
	}
	summary := fmt.Sprintf("**%s** → **%s** (%d DKP) — style `%s`", a.ItemName, r.WinnerName, r.Award.Amount, a.Style)
	if a.Style == models.AuctionStyleZeroSum && r.LoserCount > 0 {
		summary += fmt.Sprintf(" • redistributed %d DKP to %d bidders", r.Redistributed, r.LoserCount)
	}
	return summary
}

// lockForUpdate acquires a row lock on the store of record. The sqlite
// dialect used in tests has no row locks; its single-writer model serializes
// writers instead.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

func auctionRef(id uint) string {
	return fmt.Sprintf("auction:%d", id)
}

// Settle resolves an auction to a single settlement outcome in one
// transaction. The auction row is locked first, which serializes a manual
// close racing the sweeper; a terminal auction short-circuits to the
// existing award with zero ledger mutations.
//
// The winner scan walks the bids highest-amount-first (earliest bid wins a
// tie). Each candidate's balance is re-read under a row lock; a candidate
// who can no longer afford the settlement amount has their bid deleted and
// drops out entirely — they do not remain as a lower candidate. The scan is
// an explicit loop over the shrinking list, so pathological bid counts
// cannot grow the stack. Losing bids are never affordability-checked.
func (s *AuctionService) Settle(auctionID uint) (*SettlementResult, error) {
	res := &SettlementResult{}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var a models.Auction
		if err := lockForUpdate(tx).First(&a, auctionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("auction #%d: %w", auctionID, ErrNotFound)
			}
			return err
		}
		res.Auction = &a

		if a.Status != models.AuctionStatusOpen {
			res.AlreadyDone = true
			var award models.LootAward
			err := tx.Where("auction_id = ?", a.ID).First(&award).Error
			if err == nil {
				res.Award = &award
				if award.WinnerID != nil {
					var winner models.Participant
					if err := tx.Where("external_id = ?", *award.WinnerID).First(&winner).Error; err == nil {
						res.WinnerName = winner.DisplayName
					}
				}
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			return nil
		}

		var bids []models.Bid
		if err := tx.Where("auction_id = ?", a.ID).
			Order("amount DESC, created_at ASC").
			Find(&bids).Error; err != nil {
			return err
		}

		for len(bids) > 0 {
			candidate := bids[0]
			amount := candidate.Amount
			if a.Style == models.AuctionStyleFixed {
				amount = a.MinBid
			}

			var winner models.Participant
			err := lockForUpdate(tx).Where("external_id = ?", candidate.ParticipantID).First(&winner).Error
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			if errors.Is(err, gorm.ErrRecordNotFound) || winner.DKP < amount {
				// funds moved since the bid was placed; drop the bid and
				// move to the next candidate
				if err := tx.Delete(&models.Bid{}, candidate.ID).Error; err != nil {
					return fmt.Errorf("failed to discard unaffordable bid %d: %w", candidate.ID, err)
				}
				bids = bids[1:]
				continue
			}

			if _, err := s.Ledger.Credit(tx, winner.ExternalID, -amount, models.LedgerReasonSettlement, auctionRef(a.ID)); err != nil {
				return err
			}
			if err := tx.Model(&models.Auction{}).
				Where("id = ? AND status = ?", a.ID, models.AuctionStatusOpen).
				Update("status", models.AuctionStatusClosed).Error; err != nil {
				return err
			}
			award := models.LootAward{AuctionID: a.ID, WinnerID: &winner.ExternalID, Amount: amount}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "auction_id"}},
				DoNothing: true,
			}).Create(&award).Error; err != nil {
				return fmt.Errorf("failed to insert loot award: %w", err)
			}
			a.Status = models.AuctionStatusClosed
			res.Award = &award
			res.WinnerName = winner.DisplayName

			if a.Style == models.AuctionStyleZeroSum {
				losers := bids[1:]
				if len(losers) > 0 {
					share := amount / len(losers)
					res.LoserCount = len(losers)
					res.Redistributed = share
					// integer floor share; the remainder stays out of circulation
					if share > 0 {
						for _, b := range losers {
							if _, err := s.Ledger.Credit(tx, b.ParticipantID, share, models.LedgerReasonRedistribution, auctionRef(a.ID)); err != nil {
								return err
							}
						}
					}
				}
			}
			return nil
		}

		// every bid was discarded (or there were none to begin with)
		if err := tx.Model(&models.Auction{}).
			Where("id = ? AND status = ?", a.ID, models.AuctionStatusOpen).
			Update("status", models.AuctionStatusClosed).Error; err != nil {
			return err
		}
		a.Status = models.AuctionStatusClosed
		res.NoBids = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
