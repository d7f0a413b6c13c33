package domain

import (
	"database/sql"
	"testing"
	"time"

	"github.com/dropvault/backend/internal/entity"
	"github.com/dropvault/backend/internal/repository"
	"github.com/dropvault/backend/pkg/testutil"
	"github.com/stretchr/testify/require"
)

func newTestLifecycle() *LifecycleManager {
	return NewLifecycleManager(repository.NewRoomRepository(), newTestSettlement())
}

func Test_LifecycleManager_Tick_Lock(t *testing.T) {
	ctx := testutil.MockContext()
	room, err := testutil.SampleRoom(ctx, &entity.Room{
		LockAt: sql.NullTime{Time: time.Now().Add(-time.Minute), Valid: true},
	})
	require.NoError(t, err)

	require.NoError(t, newTestLifecycle().Tick(ctx, room.ID))

	locked, err := repository.NewRoomRepository().GetByID(ctx, room.ID)
	require.NoError(t, err)
	require.Equal(t, entity.RoomStatusLocked, locked.Status)

	// The next tick finds the room locked and leaves it alone.
	require.NoError(t, newTestLifecycle().Tick(ctx, room.ID))
}

func Test_LifecycleManager_Tick_DeadlineCancel(t *testing.T) {
	ctx := testutil.MockContext()
	room, err := testutil.SampleRoom(ctx, &entity.Room{
		EscrowTargetCents: 10000,
		DeadlineAt:        sql.NullTime{Time: time.Now().Add(-time.Minute), Valid: true},
	})
	require.NoError(t, err)

	fundRoom(t, ctx, room.ID, 500)

	require.NoError(t, newTestLifecycle().Tick(ctx, room.ID))

	cancelled, err := repository.NewRoomRepository().GetByID(ctx, room.ID)
	require.NoError(t, err)
	require.Equal(t, entity.RoomStatusCancelled, cancelled.Status)
	require.Equal(t, int64(0), cancelled.EscrowBalanceCents)
	require.Equal(t, "deadline passed before funding target", cancelled.CancelReason)

	entries, err := repository.NewRoomEntryRepository().GetByRoomIDOrderByRank(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, entity.EntryOutcomeRefunded, entries[0].Outcome)
}

func Test_LifecycleManager_Tick_NaturalSettle(t *testing.T) {
	ctx := testutil.MockContext()
	room, err := testutil.SampleRoom(ctx, &entity.Room{
		EscrowTargetCents: 1000,
		EndAt:             time.Now().Add(-time.Minute),
	})
	require.NoError(t, err)

	// The stake meets the target and locks the room on the way in.
	fundRoom(t, ctx, room.ID, 1000)

	require.NoError(t, newTestLifecycle().Tick(ctx, room.ID))

	settled, err := repository.NewRoomRepository().GetByID(ctx, room.ID)
	require.NoError(t, err)
	require.Equal(t, entity.RoomStatusSettled, settled.Status)

	draw, err := repository.NewLotteryDrawRepository().GetByRoomID(ctx, room.ID)
	require.NoError(t, err)
	require.False(t, draw.IsManualOverride)
}

func Test_LifecycleManager_Tick_TerminalRoomsUntouched(t *testing.T) {
	ctx := testutil.MockContext()
	room, err := testutil.SampleRoom(ctx, &entity.Room{
		Status: entity.RoomStatusSettled,
		EndAt:  time.Now().Add(-time.Hour),
	})
	require.NoError(t, err)

	require.NoError(t, newTestLifecycle().Tick(ctx, room.ID))

	same, err := repository.NewRoomRepository().GetByID(ctx, room.ID)
	require.NoError(t, err)
	require.Equal(t, entity.RoomStatusSettled, same.Status)

	// A room that is not yet due stays open.
	idle, err := testutil.SampleRoom(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, newTestLifecycle().Tick(ctx, idle.ID))

	open, err := repository.NewRoomRepository().GetByID(ctx, idle.ID)
	require.NoError(t, err)
	require.Equal(t, entity.RoomStatusOpen, open.Status)
}
