// services/scheduler.go
package services

import (
	"log"
	"time"

	"dkp-loot-system/models"

	"github.com/go-co-op/gocron/v2"
)

const sweepInterval = 20 * time.Second

// StartExpirySweeper runs the background sweep: expired open auctions are
// settled and announced, expired codes deactivated. A failed cycle is logged
// and the next tick proceeds; the sweeper is never fatal to the process.
func (s *AuctionService) StartExpirySweeper(codes *CodeService, gateway *GatewayClient) {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(sweepInterval),
		gocron.NewTask(func() {
			s.sweepExpiredAuctions(gateway)
			sweepExpiredCodes(codes)
		}),
	)
}

func (s *AuctionService) sweepExpiredAuctions(gateway *GatewayClient) {
	var expired []models.Auction
	err := s.DB.Where("status = ? AND expires_at IS NOT NULL AND expires_at < ?",
		models.AuctionStatusOpen, time.Now()).
		Find(&expired).Error
	if err != nil {
		log.Printf("[Sweeper] DB error listing expired auctions: %v", err)
		return
	}

	for _, a := range expired {
		res, err := s.Settle(a.ID)
		if err != nil {
			// leave it open; the next tick (or a manual close) retries
			log.Printf("[Sweeper] Failed to settle auction %d: %v", a.ID, err)
			continue
		}
		log.Printf("✅ Auto-closed auction #%d (%s)", a.ID, a.ItemName)
		if gateway != nil {
			// fire-and-forget: the settlement is already committed, a lost
			// announcement is only logged
			if err := gateway.Announce(a.ChannelID, res.Summary()); err != nil {
				log.Printf("[Sweeper] Failed to announce auction %d: %v", a.ID, err)
			}
		}
	}
}

func sweepExpiredCodes(codes *CodeService) {
	n, err := codes.DeactivateExpired()
	if err != nil {
		log.Printf("[Sweeper] DB error deactivating expired codes: %v", err)
		return
	}
	if n > 0 {
		log.Printf("[Sweeper] Deactivated %d expired codes", n)
	}
}
