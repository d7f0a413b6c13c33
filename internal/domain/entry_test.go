package domain

import (
	"testing"
	"time"

	"github.com/dropvault/backend/internal/common"
	"github.com/dropvault/backend/internal/entity"
	"github.com/dropvault/backend/internal/model"
	"github.com/dropvault/backend/internal/repository"
	"github.com/dropvault/backend/pkg/errorx"
	"github.com/dropvault/backend/pkg/testutil"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestEntryDomain() *entryDomain {
	return NewEntryDomain(
		repository.NewRoomRepository(),
		repository.NewRoomEntryRepository(),
		repository.NewLedgerRepository(),
		repository.NewWebhookEventRepository(),
		testutil.NewMockRedisClient(),
		common.NewAuditRecorder(repository.NewAuditLogRepository()),
	)
}

func Test_entryDomain_RecordEntry(t *testing.T) {
	ctx := testutil.MockContext()
	room, err := testutil.SampleRoom(ctx, nil)
	require.NoError(t, err)

	d := newTestEntryDomain()

	resp, err := d.RecordEntry(ctx, &model.RecordEntryRequest{
		RoomID:         room.ID,
		UserID:         "user-1",
		AmountCents:    1500,
		IdempotencyKey: "evt-1",
	})
	require.NoError(t, err)
	require.Equal(t, int64(3), resp.TicketsGranted)
	require.Equal(t, string(entity.RoomStatusOpen), resp.RoomStatus)
	require.InDelta(t, 0.15, resp.FundingProgress, 1e-9)

	// The second entry takes the next contiguous ticket range.
	resp2, err := d.RecordEntry(ctx, &model.RecordEntryRequest{
		RoomID:         room.ID,
		UserID:         "user-2",
		AmountCents:    1000,
		IdempotencyKey: "evt-2",
	})
	require.NoError(t, err)
	require.Equal(t, int64(2), resp2.TicketsGranted)

	entries, err := repository.NewRoomEntryRepository().GetByRoomID(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, int64(0), entries[0].TicketOffset)
	require.Equal(t, int64(3), entries[1].TicketOffset)

	// The room's counter, escrow balance, and ledger sum all agree.
	got, err := repository.NewRoomRepository().GetByID(ctx, room.ID)
	require.NoError(t, err)
	require.Equal(t, int64(5), got.TotalTickets)
	require.Equal(t, int64(2500), got.EscrowBalanceCents)

	sum, err := repository.NewLedgerRepository().SumRoomEscrow(ctx, room.ID)
	require.NoError(t, err)
	require.Equal(t, got.EscrowBalanceCents, sum)

	// The tier pool mirrors the escrow movements.
	pools, err := repository.NewLedgerRepository().GetTierEscrowPools(ctx)
	require.NoError(t, err)
	require.Len(t, pools, 1)
	require.Equal(t, int64(2500), pools[0].BalanceCents)
}

func Test_entryDomain_RecordEntry_IdempotentReplay(t *testing.T) {
	ctx := testutil.MockContext()
	room, err := testutil.SampleRoom(ctx, nil)
	require.NoError(t, err)

	d := newTestEntryDomain()

	req := &model.RecordEntryRequest{
		RoomID:         room.ID,
		UserID:         "user-1",
		AmountCents:    500,
		IdempotencyKey: "evt-1",
	}

	first, err := d.RecordEntry(ctx, req)
	require.NoError(t, err)

	replay, err := d.RecordEntry(ctx, req)
	require.NoError(t, err)
	require.Equal(t, first.EntryID, replay.EntryID)
	require.Equal(t, first.TicketsGranted, replay.TicketsGranted)

	// Money moved exactly once.
	got, err := repository.NewRoomRepository().GetByID(ctx, room.ID)
	require.NoError(t, err)
	require.Equal(t, int64(500), got.EscrowBalanceCents)
	require.Equal(t, int64(1), got.TotalTickets)
}

func Test_entryDomain_RecordEntry_Rejections(t *testing.T) {
	ctx := testutil.MockContext()

	d := newTestEntryDomain()

	// Unknown room.
	_, err := d.RecordEntry(ctx, &model.RecordEntryRequest{
		RoomID: "no-such-room", UserID: "u", AmountCents: 500, IdempotencyKey: "evt-0",
	})
	require.Error(t, err)
	require.Equal(t, errorx.NotFound, err.(errorx.Error).Code)

	// Amount not a multiple of the ticket price.
	room, err := testutil.SampleRoom(ctx, nil)
	require.NoError(t, err)

	_, err = d.RecordEntry(ctx, &model.RecordEntryRequest{
		RoomID: room.ID, UserID: "u", AmountCents: 123, IdempotencyKey: "evt-1",
	})
	require.Error(t, err)
	require.Equal(t, errorx.BadRequest, err.(errorx.Error).Code)

	// Closed room.
	lockedRoom, err := testutil.SampleRoom(ctx, &entity.Room{Status: entity.RoomStatusLocked})
	require.NoError(t, err)

	_, err = d.RecordEntry(ctx, &model.RecordEntryRequest{
		RoomID: lockedRoom.ID, UserID: "u", AmountCents: 500, IdempotencyKey: "evt-2",
	})
	require.Error(t, err)
	require.Equal(t, errorx.InvalidDropState, err.(errorx.Error).Code)

	// Full room.
	fullRoom, err := testutil.SampleRoom(ctx, &entity.Room{MaxParticipants: 1})
	require.NoError(t, err)

	_, err = d.RecordEntry(ctx, &model.RecordEntryRequest{
		RoomID: fullRoom.ID, UserID: "u1", AmountCents: 500, IdempotencyKey: "evt-3",
	})
	require.NoError(t, err)

	_, err = d.RecordEntry(ctx, &model.RecordEntryRequest{
		RoomID: fullRoom.ID, UserID: "u2", AmountCents: 500, IdempotencyKey: "evt-4",
	})
	require.Error(t, err)
	require.Equal(t, errorx.InvalidDropState, err.(errorx.Error).Code)
}

func Test_entryDomain_RecordEntry_LocksWhenFunded(t *testing.T) {
	ctx := testutil.MockContext()
	room, err := testutil.SampleRoom(ctx, &entity.Room{EscrowTargetCents: 1000})
	require.NoError(t, err)

	d := newTestEntryDomain()

	resp, err := d.RecordEntry(ctx, &model.RecordEntryRequest{
		RoomID: room.ID, UserID: "u1", AmountCents: 1000, IdempotencyKey: "evt-1",
	})
	require.NoError(t, err)
	require.Equal(t, string(entity.RoomStatusLocked), resp.RoomStatus)
	require.InDelta(t, 1.0, resp.FundingProgress, 1e-9)

	got, err := repository.NewRoomRepository().GetByID(ctx, room.ID)
	require.NoError(t, err)
	require.Equal(t, entity.RoomStatusLocked, got.Status)
}

func Test_entryDomain_RecordEntry_TierCap(t *testing.T) {
	ctx := testutil.MockContext()
	room, err := testutil.SampleRoom(ctx, &entity.Room{TierCapCents: 1000})
	require.NoError(t, err)

	d := newTestEntryDomain()

	_, err = d.RecordEntry(ctx, &model.RecordEntryRequest{
		RoomID: room.ID, UserID: "u1", AmountCents: 1000, IdempotencyKey: "evt-1",
	})
	require.NoError(t, err)

	// The next stake would push the tier pool over its cap.
	_, err = d.RecordEntry(ctx, &model.RecordEntryRequest{
		RoomID: room.ID, UserID: "u2", AmountCents: 500, IdempotencyKey: "evt-2",
	})
	require.Error(t, err)
	require.Equal(t, errorx.PoolExhausted, err.(errorx.Error).Code)

	// The rejected stake left nothing behind.
	got, err := repository.NewRoomRepository().GetByID(ctx, room.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1000), got.EscrowBalanceCents)

	count, err := repository.NewRoomEntryRepository().CountByRoomID(ctx, room.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
}

func Test_entryDomain_RecordEntry_UncappedTier(t *testing.T) {
	ctx := testutil.MockContext()

	// A room created without tier_cap_cents leaves its pool uncapped.
	now := time.Now()
	created, err := newTestRoomDomain().Create(ctx, &model.CreateRoomRequest{
		Tier:    string(entity.RoomTierT5),
		StartAt: now,
		EndAt:   now.Add(time.Hour),
	})
	require.NoError(t, err)

	d := newTestEntryDomain()

	resp, err := d.RecordEntry(ctx, &model.RecordEntryRequest{
		RoomID: created.RoomID, UserID: "u1", AmountCents: 500, IdempotencyKey: "evt-1",
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), resp.TicketsGranted)

	pools, err := repository.NewLedgerRepository().GetTierEscrowPools(ctx)
	require.NoError(t, err)
	require.Len(t, pools, 1)
	require.Equal(t, int64(500), pools[0].BalanceCents)
	require.Equal(t, int64(0), pools[0].CapCents)
}

func Test_entryDomain_RecordEntry_DisjointTicketRanges(t *testing.T) {
	ctx := testutil.MockContext()
	room, err := testutil.SampleRoom(ctx, nil)
	require.NoError(t, err)

	d := newTestEntryDomain()

	_, err = d.RecordEntry(ctx, &model.RecordEntryRequest{
		RoomID: room.ID, UserID: "u1", AmountCents: 1000, IdempotencyKey: "evt-1",
	})
	require.NoError(t, err)

	_, err = d.RecordEntry(ctx, &model.RecordEntryRequest{
		RoomID: room.ID, UserID: "u2", AmountCents: 1500, IdempotencyKey: "evt-2",
	})
	require.NoError(t, err)

	// Each entry's range starts where the previous one ended.
	entries, err := repository.NewRoomEntryRepository().GetByRoomID(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, entries[0].TicketOffset+entries[0].Tickets, entries[1].TicketOffset)

	// A writer holding a counter value from before those entries landed
	// loses the guarded update instead of overlapping their ranges.
	err = repository.NewRoomRepository().TakeTicketRange(ctx, room.ID, 0, 5)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	got, err := repository.NewRoomRepository().GetByID(ctx, room.ID)
	require.NoError(t, err)
	require.Equal(t, int64(5), got.TotalTickets)
}

func Test_entryDomain_RoomEntryWebhook(t *testing.T) {
	ctx := testutil.MockContext()
	room, err := testutil.SampleRoom(ctx, nil)
	require.NoError(t, err)

	d := newTestEntryDomain()

	req := &model.RoomEntryWebhookRequest{
		EventID:     "evt-1",
		EventType:   CheckoutCompletedEvent,
		RoomID:      room.ID,
		UserID:      "user-1",
		AmountCents: 500,
	}

	resp, err := d.RoomEntryWebhook(ctx, req)
	require.NoError(t, err)
	require.True(t, resp.Received)
	require.Equal(t, "recorded", resp.Status)
	require.Equal(t, int64(1), resp.TicketsGranted)

	// Redelivery is acknowledged without effect.
	resp, err = d.RoomEntryWebhook(ctx, req)
	require.NoError(t, err)
	require.Equal(t, "duplicate", resp.Status)

	got, err := repository.NewRoomRepository().GetByID(ctx, room.ID)
	require.NoError(t, err)
	require.Equal(t, int64(500), got.EscrowBalanceCents)

	// Other event types are acknowledged and dropped.
	resp, err = d.RoomEntryWebhook(ctx, &model.RoomEntryWebhookRequest{
		EventID:   "evt-2",
		EventType: "charge.refunded",
		RoomID:    room.ID,
	})
	require.NoError(t, err)
	require.Equal(t, "ignored", resp.Status)

	// A business rejection is acknowledged so the provider stops retrying.
	resp, err = d.RoomEntryWebhook(ctx, &model.RoomEntryWebhookRequest{
		EventID:     "evt-3",
		EventType:   CheckoutCompletedEvent,
		RoomID:      "no-such-room",
		UserID:      "user-1",
		AmountCents: 500,
	})
	require.NoError(t, err)
	require.Equal(t, "rejected", resp.Status)

	event, err := repository.NewWebhookEventRepository().GetByEventID(ctx, "stripe", "evt-3")
	require.NoError(t, err)
	require.True(t, event.Processed)
}
