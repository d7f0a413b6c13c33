package domain

import (
	"context"
	"testing"

	"github.com/dropvault/backend/internal/common"
	"github.com/dropvault/backend/internal/domain/fairdraw"
	"github.com/dropvault/backend/internal/entity"
	"github.com/dropvault/backend/internal/model"
	"github.com/dropvault/backend/internal/repository"
	"github.com/dropvault/backend/pkg/errorx"
	"github.com/dropvault/backend/pkg/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newTestSettlement() *SettlementCoordinator {
	entryRepo := repository.NewRoomEntryRepository()
	return NewSettlementCoordinator(
		repository.NewRoomRepository(),
		entryRepo,
		repository.NewLedgerRepository(),
		repository.NewAwardRepository(),
		fairdraw.NewEngine(entryRepo, repository.NewLotteryDrawRepository()),
		common.NewAuditRecorder(repository.NewAuditLogRepository()),
	)
}

// fundRoom records stakes through the real purchase path so escrow, tier
// pool, and ticket counters are populated consistently.
func fundRoom(t *testing.T, ctx context.Context, roomID string, amounts ...int64) []string {
	t.Helper()
	d := newTestEntryDomain()

	entryIDs := make([]string, 0, len(amounts))
	for i, amount := range amounts {
		resp, err := d.RecordEntry(ctx, &model.RecordEntryRequest{
			RoomID:         roomID,
			UserID:         "user-" + string(rune('a'+i)),
			AmountCents:    amount,
			IdempotencyKey: roomID + "-evt-" + string(rune('a'+i)),
		})
		require.NoError(t, err)
		entryIDs = append(entryIDs, resp.EntryID)
	}

	return entryIDs
}

func Test_SettlementCoordinator_Settle_Natural(t *testing.T) {
	ctx := testutil.MockContext()
	room, err := testutil.SampleRoom(ctx, &entity.Room{EscrowTargetCents: 1000, MinParticipants: 2})
	require.NoError(t, err)

	fundRoom(t, ctx, room.ID, 500, 500)

	c := newTestSettlement()

	settled, draw, err := c.Settle(ctx, room.ID, SettleModeNatural)
	require.NoError(t, err)
	require.Equal(t, entity.RoomStatusSettled, settled.Status)
	require.NoError(t, fairdraw.Verify(draw))

	// Outcomes: exactly one winner, the rest losers.
	entries, err := repository.NewRoomEntryRepository().GetByRoomID(ctx, room.ID)
	require.NoError(t, err)

	var winners, losers int
	for _, entry := range entries {
		switch entry.Outcome {
		case entity.EntryOutcomeWinner:
			winners++
			require.Equal(t, draw.WinnerEntryID, entry.ID)
		case entity.EntryOutcomeLoser:
			losers++
		}
	}
	require.Equal(t, 1, winners)
	require.Equal(t, 1, losers)

	// Escrow fully captured, ledger in balance.
	got, err := repository.NewRoomRepository().GetByID(ctx, room.ID)
	require.NoError(t, err)
	require.Equal(t, int64(0), got.EscrowBalanceCents)
	require.Equal(t, draw.WinnerEntryID, got.WinnerEntryID.String)

	sum, err := repository.NewLedgerRepository().SumRoomEscrow(ctx, room.ID)
	require.NoError(t, err)
	require.Equal(t, int64(0), sum)

	// The award holds the captured value; the bucket balance nets to zero
	// because the hold is subtracted immediately.
	award, err := repository.NewAwardRepository().GetByRoomID(ctx, room.ID)
	require.NoError(t, err)
	require.Equal(t, entity.AwardStatusReserved, award.Status)
	require.True(t, award.ReservedCostUSD.Equal(decimal.NewFromInt(10)))

	balance, err := repository.NewLedgerRepository().GetBucketBalance(ctx, string(room.Tier))
	require.NoError(t, err)
	require.True(t, balance.BalanceUSD.IsZero())

	// Settling again returns the recorded draw.
	_, drawAgain, err := c.Settle(ctx, room.ID, SettleModeNatural)
	require.NoError(t, err)
	require.Equal(t, draw.ID, drawAgain.ID)

	// A settled room cannot be cancelled.
	_, _, err = c.Cancel(ctx, room.ID, "too late")
	require.Error(t, err)
	require.Equal(t, errorx.InvalidDropState, err.(errorx.Error).Code)
}

func Test_SettlementCoordinator_Settle_NaturalGuards(t *testing.T) {
	ctx := testutil.MockContext()

	c := newTestSettlement()

	// An OPEN room cannot settle naturally.
	openRoom, err := testutil.SampleRoom(ctx, nil)
	require.NoError(t, err)
	fundRoom(t, ctx, openRoom.ID, 500)

	_, _, err = c.Settle(ctx, openRoom.ID, SettleModeNatural)
	require.Error(t, err)
	require.Equal(t, errorx.InvalidDropState, err.(errorx.Error).Code)

	// A locked room below its minimum participation cannot settle.
	underRoom, err := testutil.SampleRoom(ctx, &entity.Room{EscrowTargetCents: 500, MinParticipants: 3})
	require.NoError(t, err)
	fundRoom(t, ctx, underRoom.ID, 500)

	_, _, err = c.Settle(ctx, underRoom.ID, SettleModeNatural)
	require.Error(t, err)
	require.Equal(t, errorx.InvalidDropState, err.(errorx.Error).Code)

	// A room with no entries cannot be drawn over at all.
	emptyRoom, err := testutil.SampleRoom(ctx, nil)
	require.NoError(t, err)

	_, _, err = c.Settle(ctx, emptyRoom.ID, SettleModeForced)
	require.Error(t, err)
	require.Equal(t, errorx.InvalidDropState, err.(errorx.Error).Code)
}

func Test_SettlementCoordinator_Settle_Forced(t *testing.T) {
	ctx := testutil.MockContext()
	room, err := testutil.SampleRoom(ctx, &entity.Room{MinParticipants: 5})
	require.NoError(t, err)

	// One stake, target unmet: forced mode settles anyway, out of OPEN.
	fundRoom(t, ctx, room.ID, 500)

	c := newTestSettlement()

	settled, draw, err := c.Settle(ctx, room.ID, SettleModeForced)
	require.NoError(t, err)
	require.Equal(t, entity.RoomStatusSettled, settled.Status)
	require.False(t, draw.IsManualOverride)

	// The forced settlement is attributed in the audit log.
	logs, err := repository.NewAuditLogRepository().GetList(ctx,
		repository.GetListAuditLogFilter{RefID: room.ID})
	require.NoError(t, err)

	var found bool
	for _, log := range logs {
		if log.Action == "force_settle_room" {
			found = true
			require.Equal(t, common.SystemActor, log.Actor)

			// The room was forced out of OPEN; the trail records that,
			// not the intermediate lock.
			require.Equal(t, string(entity.RoomStatusOpen), log.Before["status"])
			require.Equal(t, string(entity.RoomStatusSettled), log.After["status"])
		}
	}
	require.True(t, found)
}

func Test_SettlementCoordinator_SettleManual(t *testing.T) {
	ctx := testutil.MockContext()
	room, err := testutil.SampleRoom(ctx, nil)
	require.NoError(t, err)

	entryIDs := fundRoom(t, ctx, room.ID, 500, 500, 500)
	chosen := entryIDs[2]

	c := newTestSettlement()

	settled, draw, err := c.SettleManual(ctx, room.ID, chosen)
	require.NoError(t, err)
	require.Equal(t, entity.RoomStatusSettled, settled.Status)
	require.True(t, draw.IsManualOverride)
	require.Empty(t, draw.ServerSeed)
	require.Equal(t, chosen, draw.WinnerEntryID)

	winner, err := repository.NewRoomEntryRepository().GetByID(ctx, chosen)
	require.NoError(t, err)
	require.Equal(t, entity.EntryOutcomeWinner, winner.Outcome)
}

func Test_SettlementCoordinator_Settle_CategoryShare(t *testing.T) {
	ctx := testutil.MockContext()
	room, err := testutil.SampleRoom(ctx, &entity.Room{Category: "sneakers"})
	require.NoError(t, err)

	fundRoom(t, ctx, room.ID, 1000)

	c := newTestSettlement()

	_, _, err = c.Settle(ctx, room.ID, SettleModeForced)
	require.NoError(t, err)

	// 500 bps of the captured 10 USD goes to the category pool.
	award, err := repository.NewAwardRepository().GetByRoomID(ctx, room.ID)
	require.NoError(t, err)
	require.True(t, award.ReservedCostUSD.Equal(decimal.RequireFromString("9.5")))

	categories, err := repository.NewLedgerRepository().GetCategoryPoolBalances(ctx)
	require.NoError(t, err)
	require.Len(t, categories, 1)
	require.Equal(t, "sneakers", categories[0].Category)
	require.True(t, categories[0].BalanceUSD.Equal(decimal.RequireFromString("0.5")))
}

func Test_SettlementCoordinator_Cancel(t *testing.T) {
	ctx := testutil.MockContext()
	room, err := testutil.SampleRoom(ctx, nil)
	require.NoError(t, err)

	fundRoom(t, ctx, room.ID, 500, 1000)

	c := newTestSettlement()

	cancelled, refunded, err := c.Cancel(ctx, room.ID, "sourcing failed")
	require.NoError(t, err)
	require.Equal(t, entity.RoomStatusCancelled, cancelled.Status)
	require.Equal(t, int64(2), refunded)

	// Every stake returned, ledger nets to zero.
	got, err := repository.NewRoomRepository().GetByID(ctx, room.ID)
	require.NoError(t, err)
	require.Equal(t, int64(0), got.EscrowBalanceCents)
	require.Equal(t, "sourcing failed", got.CancelReason)

	entries, err := repository.NewRoomEntryRepository().GetByRoomID(ctx, room.ID)
	require.NoError(t, err)
	for _, entry := range entries {
		require.Equal(t, entity.EntryOutcomeRefunded, entry.Outcome)
	}

	pools, err := repository.NewLedgerRepository().GetTierEscrowPools(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(0), pools[0].BalanceCents)

	// Cancelling again refunds nothing.
	_, refundedAgain, err := c.Cancel(ctx, room.ID, "sourcing failed")
	require.NoError(t, err)
	require.Equal(t, int64(0), refundedAgain)
}
