package cron

import (
	"context"
	"time"

	"github.com/dropvault/backend/internal/domain"
	"github.com/dropvault/backend/internal/entity"
	"github.com/dropvault/backend/internal/repository"
	"github.com/dropvault/backend/pkg/xcontext"
)

// RoomLifecycleCronJob scans for rooms whose clock transitions are due and
// applies them one at a time. A room that fails its transition is logged
// and retried on the next scan; Tick is idempotent, so overlap with an
// admin action on the same room is harmless.
type RoomLifecycleCronJob struct {
	roomRepo  repository.RoomRepository
	lifecycle *domain.LifecycleManager
	interval  time.Duration
}

func NewRoomLifecycleCronJob(
	roomRepo repository.RoomRepository,
	lifecycle *domain.LifecycleManager,
	interval time.Duration,
) *RoomLifecycleCronJob {
	if interval <= 0 {
		interval = time.Minute
	}

	return &RoomLifecycleCronJob{roomRepo: roomRepo, lifecycle: lifecycle, interval: interval}
}

func (job *RoomLifecycleCronJob) Do(ctx context.Context) {
	now := time.Now()

	dueLock, err := job.roomRepo.GetDueLock(ctx, now)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot get rooms due to lock: %v", err)
		return
	}

	dueCancel, err := job.roomRepo.GetDueCancel(ctx, now)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot get rooms due to cancel: %v", err)
		return
	}

	dueSettle, err := job.roomRepo.GetDueSettle(ctx, now)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot get rooms due to settle: %v", err)
		return
	}

	seen := map[string]bool{}
	for _, rooms := range [][]string{roomIDs(dueLock), roomIDs(dueCancel), roomIDs(dueSettle)} {
		for _, roomID := range rooms {
			if seen[roomID] {
				continue
			}
			seen[roomID] = true

			if err := job.lifecycle.Tick(ctx, roomID); err != nil {
				xcontext.Logger(ctx).Warnf("Cannot tick room %s: %v", roomID, err)
			}
		}
	}
}

func roomIDs(rooms []entity.Room) []string {
	ids := make([]string, 0, len(rooms))
	for _, room := range rooms {
		ids = append(ids, room.ID)
	}

	return ids
}

func (job *RoomLifecycleCronJob) RunNow() bool {
	return true
}

func (job *RoomLifecycleCronJob) Next() time.Time {
	return time.Now().Add(job.interval)
}
