package services

import (
	"fmt"
	"strings"
	"testing"

	"dkp-loot-system/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupDB opens a per-test in-memory database to avoid cross-test
// interference, mirroring the production gorm config (TranslateError lets
// the services branch on gorm.ErrDuplicatedKey).
func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Participant{},
		&models.LedgerEntry{},
		&models.RewardCategory{},
		&models.RedemptionCode{},
		&models.Redemption{},
		&models.Auction{},
		&models.Bid{},
		&models.LootAward{},
	))
	return db
}

type testEnv struct {
	db         *gorm.DB
	ledger     *LedgerService
	categories *CategoryService
	codes      *CodeService
	auctions   *AuctionService
}

func setupServices(t *testing.T) *testEnv {
	t.Helper()
	db := setupDB(t)
	ledger := NewLedgerService(db)
	categories := NewCategoryService(db)
	return &testEnv{
		db:         db,
		ledger:     ledger,
		categories: categories,
		codes:      NewCodeService(db, ledger, categories),
		auctions:   NewAuctionService(db, ledger),
	}
}

// seedBalance gives a participant a starting balance through the ledger so
// the audit invariant holds even in fixtures.
func (e *testEnv) seedBalance(t *testing.T, id, name string, dkp int) {
	t.Helper()
	require.NoError(t, e.ledger.EnsureParticipant(e.db, id, name))
	if dkp != 0 {
		_, err := e.ledger.Credit(e.db, id, dkp, models.LedgerReasonRedeem, "seed")
		require.NoError(t, err)
	}
}

func (e *testEnv) balance(t *testing.T, id string) int {
	t.Helper()
	bal, err := e.ledger.Balance(e.db, id)
	require.NoError(t, err)
	return bal
}
