package services

import (
	"testing"
	"time"

	"dkp-loot-system/models"

	"github.com/stretchr/testify/require"
)

func (e *testEnv) openAuction(t *testing.T, channel string, minBid, increment int, style models.AuctionStyle, durationMinutes int) *models.Auction {
	t.Helper()
	a, err := e.auctions.Open("g1", channel, "Sword of Testing", minBid, increment, style, durationMinutes, "mod-1")
	require.NoError(t, err)
	return a
}

func (e *testEnv) ledgerEntryCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(&models.LedgerEntry{}).Count(&n).Error)
	return n
}

func TestSealedSettlementHighestBidWins(t *testing.T) {
	e := setupServices(t)
	e.seedBalance(t, "a", "Alice", 200)
	e.seedBalance(t, "b", "Bob", 200)
	e.openAuction(t, "ch1", 50, 10, models.AuctionStyleSealed, 0)

	_, _, err := e.auctions.PlaceBid("ch1", "a", "Alice", 100)
	require.NoError(t, err)
	_, _, err = e.auctions.PlaceBid("ch1", "b", "Bob", 80)
	require.NoError(t, err)

	res, err := e.auctions.Close("ch1")
	require.NoError(t, err)
	require.False(t, res.NoBids)
	require.NotNil(t, res.Award)
	require.Equal(t, "a", *res.Award.WinnerID)
	require.Equal(t, 100, res.Award.Amount)
	require.Equal(t, "Alice", res.WinnerName)

	require.Equal(t, 100, e.balance(t, "a"))
	require.Equal(t, 200, e.balance(t, "b")) // sealed losers pay nothing
	require.Equal(t, models.AuctionStatusClosed, res.Auction.Status)
}

func TestSealedTieGoesToEarliestBidder(t *testing.T) {
	e := setupServices(t)
	e.seedBalance(t, "a", "Alice", 200)
	e.seedBalance(t, "b", "Bob", 200)
	e.openAuction(t, "ch1", 50, 10, models.AuctionStyleSealed, 0)

	_, _, err := e.auctions.PlaceBid("ch1", "b", "Bob", 100)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	_, _, err = e.auctions.PlaceBid("ch1", "a", "Alice", 100)
	require.NoError(t, err)

	res, err := e.auctions.Close("ch1")
	require.NoError(t, err)
	require.Equal(t, "b", *res.Award.WinnerID)
}

func TestReplacedBidLosesTiePriority(t *testing.T) {
	e := setupServices(t)
	e.seedBalance(t, "a", "Alice", 200)
	e.seedBalance(t, "b", "Bob", 200)
	e.openAuction(t, "ch1", 50, 10, models.AuctionStyleSealed, 0)

	_, _, err := e.auctions.PlaceBid("ch1", "a", "Alice", 100)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	_, _, err = e.auctions.PlaceBid("ch1", "b", "Bob", 100)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	// replacing refreshes the bid's timestamp, so Alice drops behind Bob
	_, _, err = e.auctions.PlaceBid("ch1", "a", "Alice", 100)
	require.NoError(t, err)

	var bids []models.Bid
	require.NoError(t, e.db.Where("participant_id = ?", "a").Find(&bids).Error)
	require.Len(t, bids, 1) // replace, not accumulate

	res, err := e.auctions.Close("ch1")
	require.NoError(t, err)
	require.Equal(t, "b", *res.Award.WinnerID)
}

func TestUnaffordableTopBidIsDiscardedEntirely(t *testing.T) {
	e := setupServices(t)
	e.seedBalance(t, "a", "Alice", 200)
	e.seedBalance(t, "b", "Bob", 200)
	e.seedBalance(t, "c", "Carol", 200)
	a := e.openAuction(t, "ch1", 50, 10, models.AuctionStyleSealed, 0)

	_, _, err := e.auctions.PlaceBid("ch1", "a", "Alice", 100)
	require.NoError(t, err)
	_, _, err = e.auctions.PlaceBid("ch1", "b", "Bob", 80)
	require.NoError(t, err)
	_, _, err = e.auctions.PlaceBid("ch1", "c", "Carol", 120)
	require.NoError(t, err)

	// Carol's funds vanish after her bid passed the soft check
	_, err = e.ledger.Credit(e.db, "c", -200, models.LedgerReasonSettlement, "auction:other")
	require.NoError(t, err)

	res, err := e.auctions.Close("ch1")
	require.NoError(t, err)
	require.Equal(t, "a", *res.Award.WinnerID)
	require.Equal(t, 100, res.Award.Amount)

	// the discarded bid is gone, not demoted
	var count int64
	require.NoError(t, e.db.Model(&models.Bid{}).Where("auction_id = ? AND participant_id = ?", a.ID, "c").Count(&count).Error)
	require.EqualValues(t, 0, count)
}

func TestAllBidsUnaffordableSettlesAsNoBids(t *testing.T) {
	e := setupServices(t)
	e.seedBalance(t, "a", "Alice", 100)
	e.openAuction(t, "ch1", 50, 10, models.AuctionStyleSealed, 0)

	_, _, err := e.auctions.PlaceBid("ch1", "a", "Alice", 100)
	require.NoError(t, err)
	_, err = e.ledger.Credit(e.db, "a", -100, models.LedgerReasonSettlement, "auction:other")
	require.NoError(t, err)

	res, err := e.auctions.Close("ch1")
	require.NoError(t, err)
	require.True(t, res.NoBids)
	require.Nil(t, res.Award)
	require.Equal(t, models.AuctionStatusClosed, res.Auction.Status)

	var awards int64
	require.NoError(t, e.db.Model(&models.LootAward{}).Count(&awards).Error)
	require.EqualValues(t, 0, awards)
}

func TestCloseWithNoBids(t *testing.T) {
	e := setupServices(t)
	e.openAuction(t, "ch1", 50, 10, models.AuctionStyleSealed, 0)

	res, err := e.auctions.Close("ch1")
	require.NoError(t, err)
	require.True(t, res.NoBids)
	require.Nil(t, res.Award)
}

func TestCloseIsIdempotent(t *testing.T) {
	e := setupServices(t)
	e.seedBalance(t, "a", "Alice", 200)
	a := e.openAuction(t, "ch1", 50, 10, models.AuctionStyleSealed, 0)

	_, _, err := e.auctions.PlaceBid("ch1", "a", "Alice", 100)
	require.NoError(t, err)

	first, err := e.auctions.Settle(a.ID)
	require.NoError(t, err)
	entriesAfterFirst := e.ledgerEntryCount(t)

	second, err := e.auctions.Settle(a.ID)
	require.NoError(t, err)
	require.True(t, second.AlreadyDone)
	require.NotNil(t, second.Award)
	require.Equal(t, first.Award.ID, second.Award.ID)
	require.Equal(t, "Alice", second.WinnerName)

	// no additional ledger mutations, no double debit
	require.Equal(t, entriesAfterFirst, e.ledgerEntryCount(t))
	require.Equal(t, 100, e.balance(t, "a"))
}

func TestZeroSumRedistribution(t *testing.T) {
	e := setupServices(t)
	e.seedBalance(t, "a", "Alice", 200)
	e.seedBalance(t, "b", "Bob", 200)
	e.seedBalance(t, "c", "Carol", 200)
	e.openAuction(t, "ch1", 10, 1, models.AuctionStyleZeroSum, 0)

	_, _, err := e.auctions.PlaceBid("ch1", "a", "Alice", 91)
	require.NoError(t, err)
	_, _, err = e.auctions.PlaceBid("ch1", "b", "Bob", 50)
	require.NoError(t, err)
	_, _, err = e.auctions.PlaceBid("ch1", "c", "Carol", 40)
	require.NoError(t, err)

	res, err := e.auctions.Close("ch1")
	require.NoError(t, err)
	require.Equal(t, "a", *res.Award.WinnerID)
	require.Equal(t, 91, res.Award.Amount)
	require.Equal(t, 2, res.LoserCount)
	require.Equal(t, 45, res.Redistributed) // floor(91/2); remainder stays out of circulation

	require.Equal(t, 109, e.balance(t, "a"))
	require.Equal(t, 245, e.balance(t, "b"))
	require.Equal(t, 245, e.balance(t, "c"))

	// settlement never mints currency: the deltas sum to <= 0
	deltaSum := (109 - 200) + (245 - 200) + (245 - 200)
	require.LessOrEqual(t, deltaSum, 0)
	require.Equal(t, -1, deltaSum) // exactly the floor remainder
}

func TestZeroSumWithSingleBidderRedistributesNothing(t *testing.T) {
	e := setupServices(t)
	e.seedBalance(t, "a", "Alice", 200)
	e.openAuction(t, "ch1", 10, 1, models.AuctionStyleZeroSum, 0)

	_, _, err := e.auctions.PlaceBid("ch1", "a", "Alice", 60)
	require.NoError(t, err)

	res, err := e.auctions.Close("ch1")
	require.NoError(t, err)
	require.Equal(t, 0, res.LoserCount)
	require.Equal(t, 140, e.balance(t, "a"))
}

func TestCancelVoidsBidsWithoutLedgerEffect(t *testing.T) {
	e := setupServices(t)
	e.seedBalance(t, "a", "Alice", 200)
	a := e.openAuction(t, "ch1", 50, 10, models.AuctionStyleSealed, 0)

	_, _, err := e.auctions.PlaceBid("ch1", "a", "Alice", 100)
	require.NoError(t, err)
	entriesBefore := e.ledgerEntryCount(t)

	cancelled, err := e.auctions.Cancel("ch1")
	require.NoError(t, err)
	require.Equal(t, models.AuctionStatusCancelled, cancelled.Status)
	require.Equal(t, entriesBefore, e.ledgerEntryCount(t))
	require.Equal(t, 200, e.balance(t, "a"))

	// terminal is terminal: settling a cancelled auction is a no-op
	res, err := e.auctions.Settle(a.ID)
	require.NoError(t, err)
	require.True(t, res.AlreadyDone)
	require.Nil(t, res.Award)

	// and no further bids are accepted in the channel
	_, _, err = e.auctions.PlaceBid("ch1", "a", "Alice", 110)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSweeperSettlesExpiredAuctions(t *testing.T) {
	e := setupServices(t)
	e.seedBalance(t, "a", "Alice", 200)
	a := e.openAuction(t, "ch1", 50, 10, models.AuctionStyleSealed, 0)
	_, _, err := e.auctions.PlaceBid("ch1", "a", "Alice", 100)
	require.NoError(t, err)

	// push the expiry into the past; the sweeper should pick it up
	past := time.Now().Add(-time.Minute)
	require.NoError(t, e.db.Model(&models.Auction{}).Where("id = ?", a.ID).Update("expires_at", past).Error)

	e.auctions.sweepExpiredAuctions(nil)

	var got models.Auction
	require.NoError(t, e.db.First(&got, a.ID).Error)
	require.Equal(t, models.AuctionStatusClosed, got.Status)

	var award models.LootAward
	require.NoError(t, e.db.First(&award, "auction_id = ?", a.ID).Error)
	require.Equal(t, 100, award.Amount)
	require.Equal(t, 100, e.balance(t, "a"))
}

func TestSettlementSummaryFormats(t *testing.T) {
	e := setupServices(t)
	e.seedBalance(t, "a", "Alice", 200)
	e.openAuction(t, "ch1", 50, 10, models.AuctionStyleSealed, 0)
	_, _, err := e.auctions.PlaceBid("ch1", "a", "Alice", 100)
	require.NoError(t, err)

	res, err := e.auctions.Close("ch1")
	require.NoError(t, err)
	require.Contains(t, res.Summary(), "Alice")
	require.Contains(t, res.Summary(), "100 DKP")
	require.Contains(t, res.Summary(), "Sword of Testing")
}
