package services

import (
	"testing"

	"dkp-loot-system/models"

	"github.com/stretchr/testify/require"
)

func TestBalanceDefaultsToZeroForUnseen(t *testing.T) {
	e := setupServices(t)

	bal, err := e.ledger.Balance(e.db, "ghost")
	require.NoError(t, err)
	require.Equal(t, 0, bal)
}

func TestCreditDebitAndAuditLog(t *testing.T) {
	e := setupServices(t)
	require.NoError(t, e.ledger.EnsureParticipant(e.db, "u1", "Alice"))

	bal, err := e.ledger.Credit(e.db, "u1", 50, models.LedgerReasonRedeem, "CODE1")
	require.NoError(t, err)
	require.Equal(t, 50, bal)

	bal, err = e.ledger.Credit(e.db, "u1", -20, models.LedgerReasonSettlement, "auction:1")
	require.NoError(t, err)
	require.Equal(t, 30, bal)

	// every balance change leaves an audit row
	var entries []models.LedgerEntry
	require.NoError(t, e.db.Where("participant_id = ?", "u1").Order("id ASC").Find(&entries).Error)
	require.Len(t, entries, 2)
	require.Equal(t, 50, entries[0].Delta)
	require.Equal(t, -20, entries[1].Delta)
	require.Equal(t, models.LedgerReasonSettlement, entries[1].Reason)
}

func TestCreditCreatesUnseenParticipant(t *testing.T) {
	e := setupServices(t)

	bal, err := e.ledger.Credit(e.db, "new-user", 10, models.LedgerReasonRedistribution, "auction:9")
	require.NoError(t, err)
	require.Equal(t, 10, bal)
	require.Equal(t, 10, e.balance(t, "new-user"))
}

func TestEnsureParticipantRefreshesDisplayName(t *testing.T) {
	e := setupServices(t)

	require.NoError(t, e.ledger.EnsureParticipant(e.db, "u1", "OldName"))
	require.NoError(t, e.ledger.EnsureParticipant(e.db, "u1", "NewName"))

	var p models.Participant
	require.NoError(t, e.db.First(&p, "external_id = ?", "u1").Error)
	require.Equal(t, "NewName", p.DisplayName)

	// a sighting without a name must not clobber the stored one
	require.NoError(t, e.ledger.EnsureParticipant(e.db, "u1", ""))
	require.NoError(t, e.db.First(&p, "external_id = ?", "u1").Error)
	require.Equal(t, "NewName", p.DisplayName)
}

func TestLeaderboardOrderAndTieBreak(t *testing.T) {
	e := setupServices(t)
	e.seedBalance(t, "a", "First", 100)
	e.seedBalance(t, "b", "Second", 300)
	e.seedBalance(t, "c", "Third", 100) // same balance as a, arrived later

	top, err := e.ledger.Leaderboard(10)
	require.NoError(t, err)
	require.Len(t, top, 3)
	require.Equal(t, "b", top[0].ExternalID)
	require.Equal(t, "a", top[1].ExternalID) // arrival order breaks the tie
	require.Equal(t, "c", top[2].ExternalID)
}
