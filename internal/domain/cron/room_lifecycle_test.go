package cron

import (
	"database/sql"
	"testing"
	"time"

	"github.com/dropvault/backend/internal/common"
	"github.com/dropvault/backend/internal/domain"
	"github.com/dropvault/backend/internal/domain/fairdraw"
	"github.com/dropvault/backend/internal/entity"
	"github.com/dropvault/backend/internal/repository"
	"github.com/dropvault/backend/pkg/testutil"
	"github.com/stretchr/testify/require"
)

func newTestLifecycleJob() *RoomLifecycleCronJob {
	roomRepo := repository.NewRoomRepository()
	entryRepo := repository.NewRoomEntryRepository()
	settlement := domain.NewSettlementCoordinator(
		roomRepo,
		entryRepo,
		repository.NewLedgerRepository(),
		repository.NewAwardRepository(),
		fairdraw.NewEngine(entryRepo, repository.NewLotteryDrawRepository()),
		common.NewAuditRecorder(repository.NewAuditLogRepository()),
	)

	return NewRoomLifecycleCronJob(roomRepo, domain.NewLifecycleManager(roomRepo, settlement), 0)
}

func Test_RoomLifecycleCronJob_Do(t *testing.T) {
	ctx := testutil.MockContext()

	// Due to lock.
	lockRoom, err := testutil.SampleRoom(ctx, &entity.Room{
		LockAt: sql.NullTime{Time: time.Now().Add(-time.Minute), Valid: true},
	})
	require.NoError(t, err)

	// Past deadline and underfunded.
	cancelRoom, err := testutil.SampleRoom(ctx, &entity.Room{
		DeadlineAt: sql.NullTime{Time: time.Now().Add(-time.Minute), Valid: true},
	})
	require.NoError(t, err)

	// Not due for anything.
	idleRoom, err := testutil.SampleRoom(ctx, nil)
	require.NoError(t, err)

	job := newTestLifecycleJob()
	job.Do(ctx)

	roomRepo := repository.NewRoomRepository()

	locked, err := roomRepo.GetByID(ctx, lockRoom.ID)
	require.NoError(t, err)
	require.Equal(t, entity.RoomStatusLocked, locked.Status)

	cancelled, err := roomRepo.GetByID(ctx, cancelRoom.ID)
	require.NoError(t, err)
	require.Equal(t, entity.RoomStatusCancelled, cancelled.Status)

	idle, err := roomRepo.GetByID(ctx, idleRoom.ID)
	require.NoError(t, err)
	require.Equal(t, entity.RoomStatusOpen, idle.Status)

	// The next scan finds nothing left to do.
	job.Do(ctx)

	next := job.Next()
	require.True(t, next.After(time.Now()))
	require.True(t, job.RunNow())
}
