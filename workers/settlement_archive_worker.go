package workers

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"dkp-loot-system/utils"

	"gorm.io/gorm"
)

// SettlementArchiveClient exports committed loot awards to R2 for retention.
// The store stays the system of record; the archive is a derived copy.
type SettlementArchiveClient struct {
	DB *gorm.DB
}

func NewSettlementArchiveClient(db *gorm.DB) *SettlementArchiveClient {
	return &SettlementArchiveClient{DB: db}
}

type archivedAward struct {
	AwardID   uint      `json:"award_id"`
	AuctionID uint      `json:"auction_id"`
	ItemName  string    `json:"item_name"`
	WinnerID  *string   `json:"winner_id"`
	Amount    int       `json:"amount"`
	AwardedAt time.Time `json:"awarded_at"`
}

func (c *SettlementArchiveClient) collectSince(since time.Time) ([]archivedAward, error) {
	var out []archivedAward
	err := c.DB.Table("loot_awards").
		Select("loot_awards.id AS award_id, loot_awards.auction_id, auctions.item_name, "+
			"loot_awards.winner_id, loot_awards.amount, loot_awards.created_at AS awarded_at").
		Joins("JOIN auctions ON auctions.id = loot_awards.auction_id").
		Where("loot_awards.created_at > ?", since).
		Order("loot_awards.created_at ASC").
		Scan(&out).Error
	return out, err
}

// PollSettlements periodically uploads newly committed settlement records as
// JSON batches. Upload failures are logged, never retried in the same tick;
// the watermark only advances after a successful upload so nothing is lost.
func PollSettlements(ctx context.Context, client *SettlementArchiveClient, pollInterval time.Duration) {
	log.Println("Starting settlement archive polling (R2-backed)...")
	lastExport := time.Now().UTC()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Settlement archive polling stopped.")
			return
		case <-ticker.C:
			awards, err := client.collectSince(lastExport)
			if err != nil {
				log.Printf("Settlement archive: failed to collect awards: %v", err)
				continue
			}
			if len(awards) == 0 {
				continue
			}

			payload, err := json.Marshal(awards)
			if err != nil {
				log.Printf("Settlement archive: failed to marshal batch: %v", err)
				continue
			}

			now := time.Now().UTC()
			key := "settlements/" + now.Format("20060102T150405Z") + ".json"
			if err := utils.UploadBytesToR2(key, payload, "application/json"); err != nil {
				log.Printf("Settlement archive: upload failed, will retry next tick: %v", err)
				continue
			}

			log.Printf("✅ Archived %d settlement records to %s", len(awards), key)
			lastExport = awards[len(awards)-1].AwardedAt
		}
	}
}
