package domain

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dropvault/backend/internal/common"
	"github.com/dropvault/backend/internal/domain/fairdraw"
	"github.com/dropvault/backend/internal/entity"
	"github.com/dropvault/backend/internal/model"
	"github.com/dropvault/backend/internal/repository"
	"github.com/dropvault/backend/pkg/enum"
	"github.com/dropvault/backend/pkg/errorx"
	"github.com/dropvault/backend/pkg/xcontext"
	"github.com/dropvault/backend/pkg/xredis"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const roomSnapshotTTL = 10 * time.Second

func roomSnapshotKey(roomID string) string {
	return fmt.Sprintf("room:snapshot:%s", roomID)
}

type RoomDomain interface {
	Create(ctx context.Context, req *model.CreateRoomRequest) (*model.CreateRoomResponse, error)
	Get(ctx context.Context, req *model.GetRoomRequest) (*model.GetRoomResponse, error)
	GetEntries(ctx context.Context, req *model.GetRoomEntriesRequest) (*model.GetRoomEntriesResponse, error)
	GetDraw(ctx context.Context, req *model.GetRoomDrawRequest) (*model.GetRoomDrawResponse, error)
	ExtendDeadline(ctx context.Context, req *model.ExtendDeadlineRequest) (*model.ExtendDeadlineResponse, error)
	Cancel(ctx context.Context, req *model.CancelRoomRequest) (*model.CancelRoomResponse, error)
	ForceSettle(ctx context.Context, req *model.ForceSettleRoomRequest) (*model.ForceSettleRoomResponse, error)
	SetWinner(ctx context.Context, req *model.SetRoomWinnerRequest) (*model.SetRoomWinnerResponse, error)
}

type roomDomain struct {
	roomRepo    repository.RoomRepository
	entryRepo   repository.RoomEntryRepository
	drawRepo    repository.LotteryDrawRepository
	settlement  *SettlementCoordinator
	redisClient xredis.Client
	audit       *common.AuditRecorder
}

func NewRoomDomain(
	roomRepo repository.RoomRepository,
	entryRepo repository.RoomEntryRepository,
	drawRepo repository.LotteryDrawRepository,
	settlement *SettlementCoordinator,
	redisClient xredis.Client,
	audit *common.AuditRecorder,
) *roomDomain {
	return &roomDomain{
		roomRepo:    roomRepo,
		entryRepo:   entryRepo,
		drawRepo:    drawRepo,
		settlement:  settlement,
		redisClient: redisClient,
		audit:       audit,
	}
}

// Create opens a room and publishes its seed commitment. The server seed
// itself is generated here, before any entry can exist, and stays private
// until the draw.
func (d *roomDomain) Create(
	ctx context.Context, req *model.CreateRoomRequest,
) (*model.CreateRoomResponse, error) {
	tier, err := enum.ToEnum[entity.RoomTier](req.Tier)
	if err != nil {
		return nil, errorx.New(errorx.BadRequest, "Invalid tier %s", req.Tier)
	}

	if !req.EndAt.After(req.StartAt) {
		return nil, errorx.New(errorx.BadRequest, "Room must end after it starts")
	}

	if req.EscrowTargetCents < 0 || req.TierCapCents < 0 {
		return nil, errorx.New(errorx.BadRequest, "Not allow negative escrow amounts")
	}

	serverSeed, err := fairdraw.NewServerSeed()
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot generate server seed: %v", err)
		return nil, errorx.Unknown
	}

	room := &entity.Room{
		Base:              entity.Base{ID: uuid.NewString()},
		Tier:              tier,
		Category:          req.Category,
		IsMystery:         req.IsMystery,
		ProductClassID:    req.ProductClassID,
		Status:            entity.RoomStatusOpen,
		StartAt:           req.StartAt,
		EndAt:             req.EndAt,
		MinParticipants:   req.MinParticipants,
		MaxParticipants:   req.MaxParticipants,
		EscrowTargetCents: req.EscrowTargetCents,
		TierCapCents:      req.TierCapCents,
		SeedCommitment:    fairdraw.Commitment(serverSeed),
		ServerSeed:        serverSeed,
	}

	if req.LockAt != nil {
		room.LockAt = sql.NullTime{Time: *req.LockAt, Valid: true}
	}

	if req.DeadlineAt != nil {
		room.DeadlineAt = sql.NullTime{Time: *req.DeadlineAt, Valid: true}
	}

	ctx = xcontext.WithDBTransaction(ctx)
	defer xcontext.WithRollbackDBTransaction(ctx)

	if err := d.roomRepo.Create(ctx, room); err != nil {
		xcontext.Logger(ctx).Errorf("Cannot create room: %v", err)
		return nil, errorx.Unknown
	}

	err = d.audit.Record(ctx, "create_room", "room", room.ID,
		nil, entity.Map{
			"tier":                string(room.Tier),
			"status":              string(room.Status),
			"escrow_target_cents": room.EscrowTargetCents,
			"seed_commitment":     room.SeedCommitment,
		})
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot write room audit log: %v", err)
		return nil, errorx.Unknown
	}

	xcontext.WithCommitDBTransaction(ctx)

	return &model.CreateRoomResponse{
		RoomID:         room.ID,
		SeedCommitment: room.SeedCommitment,
	}, nil
}

// Get serves the public room snapshot, including funding progress. The
// snapshot is cached briefly: stale progress is tolerable on this read
// path, stale status resolves within the TTL.
func (d *roomDomain) Get(
	ctx context.Context, req *model.GetRoomRequest,
) (*model.GetRoomResponse, error) {
	cacheKey := roomSnapshotKey(req.RoomID)
	if d.redisClient != nil {
		var cached model.Room
		if err := d.redisClient.GetObj(ctx, cacheKey, &cached); err == nil {
			return &model.GetRoomResponse{Room: cached}, nil
		}
	}

	room, err := d.roomRepo.GetByID(ctx, req.RoomID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errorx.New(errorx.NotFound, "Not found room")
		}

		xcontext.Logger(ctx).Errorf("Cannot get room: %v", err)
		return nil, errorx.Unknown
	}

	snapshot := convertRoom(room)
	if d.redisClient != nil {
		if err := d.redisClient.SetObj(ctx, cacheKey, snapshot, roomSnapshotTTL); err != nil {
			xcontext.Logger(ctx).Warnf("Cannot cache room snapshot: %v", err)
		}
	}

	return &model.GetRoomResponse{Room: snapshot}, nil
}

// GetEntries returns a room's entries in rank order, highest stake first
// with earlier stakes breaking ties.
func (d *roomDomain) GetEntries(
	ctx context.Context, req *model.GetRoomEntriesRequest,
) (*model.GetRoomEntriesResponse, error) {
	entries, err := d.entryRepo.GetByRoomIDOrderByRank(ctx, req.RoomID)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot get entries: %v", err)
		return nil, errorx.Unknown
	}

	clientEntries := make([]model.RoomEntry, 0, len(entries))
	for i, entry := range entries {
		clientEntries = append(clientEntries, convertRoomEntry(&entry, i+1))
	}

	return &model.GetRoomEntriesResponse{Entries: clientEntries}, nil
}

func (d *roomDomain) GetDraw(
	ctx context.Context, req *model.GetRoomDrawRequest,
) (*model.GetRoomDrawResponse, error) {
	draw, err := d.drawRepo.GetByRoomID(ctx, req.RoomID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errorx.New(errorx.NotFound, "Room has no draw yet")
		}

		xcontext.Logger(ctx).Errorf("Cannot get draw: %v", err)
		return nil, errorx.Unknown
	}

	return &model.GetRoomDrawResponse{Draw: convertLotteryDraw(draw)}, nil
}

// ExtendDeadline pushes the funding deadline and end of an OPEN or LOCKED
// room into the future. Terminal rooms reject the change.
func (d *roomDomain) ExtendDeadline(
	ctx context.Context, req *model.ExtendDeadlineRequest,
) (*model.ExtendDeadlineResponse, error) {
	if !req.NewDeadline.After(time.Now()) {
		return nil, errorx.New(errorx.BadRequest, "New deadline must be in the future")
	}

	ctx = xcontext.WithDBTransaction(ctx)
	defer xcontext.WithRollbackDBTransaction(ctx)

	room, err := d.roomRepo.GetByIDForUpdate(ctx, req.RoomID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errorx.New(errorx.NotFound, "Not found room")
		}

		xcontext.Logger(ctx).Errorf("Cannot get room for deadline change: %v", err)
		return nil, errorx.Unknown
	}

	endAt := room.EndAt
	if req.NewDeadline.After(endAt) {
		endAt = req.NewDeadline
	}

	if err := d.roomRepo.UpdateDeadline(ctx, req.RoomID, req.NewDeadline, endAt); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errorx.New(errorx.InvalidDropState,
				"Room is %s, deadline cannot change", room.Status)
		}

		xcontext.Logger(ctx).Errorf("Cannot update deadline: %v", err)
		return nil, errorx.Unknown
	}

	err = d.audit.Record(ctx, "extend_deadline", "room", req.RoomID,
		entity.Map{"deadline_at": nullTimeString(room.DeadlineAt), "end_at": room.EndAt},
		entity.Map{"deadline_at": req.NewDeadline, "end_at": endAt})
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot write deadline audit log: %v", err)
		return nil, errorx.Unknown
	}

	xcontext.WithCommitDBTransaction(ctx)
	d.invalidateSnapshot(ctx, req.RoomID)

	return &model.ExtendDeadlineResponse{RoomID: req.RoomID}, nil
}

func (d *roomDomain) Cancel(
	ctx context.Context, req *model.CancelRoomRequest,
) (*model.CancelRoomResponse, error) {
	reason := req.Reason
	if reason == "" {
		reason = "cancelled by operator"
	}

	_, refunded, err := d.settlement.Cancel(ctx, req.RoomID, reason)
	if err != nil {
		return nil, err
	}

	d.invalidateSnapshot(ctx, req.RoomID)

	return &model.CancelRoomResponse{RoomID: req.RoomID, RefundCount: refunded}, nil
}

func (d *roomDomain) ForceSettle(
	ctx context.Context, req *model.ForceSettleRoomRequest,
) (*model.ForceSettleRoomResponse, error) {
	_, draw, err := d.settlement.Settle(ctx, req.RoomID, SettleModeForced)
	if err != nil {
		return nil, err
	}

	d.invalidateSnapshot(ctx, req.RoomID)

	return &model.ForceSettleRoomResponse{
		RoomID:        req.RoomID,
		WinnerEntryID: draw.WinnerEntryID,
	}, nil
}

func (d *roomDomain) SetWinner(
	ctx context.Context, req *model.SetRoomWinnerRequest,
) (*model.SetRoomWinnerResponse, error) {
	if req.EntryID == "" {
		return nil, errorx.New(errorx.BadRequest, "Not allow an empty entry id")
	}

	_, draw, err := d.settlement.SettleManual(ctx, req.RoomID, req.EntryID)
	if err != nil {
		return nil, err
	}

	d.invalidateSnapshot(ctx, req.RoomID)

	return &model.SetRoomWinnerResponse{
		RoomID:           req.RoomID,
		IsManualOverride: draw.IsManualOverride,
	}, nil
}

// invalidateSnapshot drops the cached public snapshot after an admin
// mutation so readers see the change before the TTL would expire it.
func (d *roomDomain) invalidateSnapshot(ctx context.Context, roomID string) {
	if d.redisClient == nil {
		return
	}

	if err := d.redisClient.Del(ctx, roomSnapshotKey(roomID)); err != nil {
		xcontext.Logger(ctx).Warnf("Cannot invalidate room snapshot: %v", err)
	}
}

func nullTimeString(t sql.NullTime) any {
	if !t.Valid {
		return nil
	}

	return t.Time
}
