package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dropvault/backend/internal/common"
	"github.com/dropvault/backend/internal/entity"
	"github.com/dropvault/backend/internal/model"
	"github.com/dropvault/backend/internal/repository"
	"github.com/dropvault/backend/pkg/errorx"
	"github.com/dropvault/backend/pkg/xcontext"
	"github.com/dropvault/backend/pkg/xredis"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CheckoutCompletedEvent is the only provider event type that grants
// tickets. Everything else is acknowledged and dropped.
const CheckoutCompletedEvent = "checkout.session.completed"

type EntryDomain interface {
	RecordEntry(ctx context.Context, req *model.RecordEntryRequest) (*model.RecordEntryResponse, error)
	RoomEntryWebhook(ctx context.Context, req *model.RoomEntryWebhookRequest) (*model.RoomEntryWebhookResponse, error)
}

type entryDomain struct {
	roomRepo    repository.RoomRepository
	entryRepo   repository.RoomEntryRepository
	ledgerRepo  repository.LedgerRepository
	webhookRepo repository.WebhookEventRepository
	redisClient xredis.Client
	audit       *common.AuditRecorder
}

func NewEntryDomain(
	roomRepo repository.RoomRepository,
	entryRepo repository.RoomEntryRepository,
	ledgerRepo repository.LedgerRepository,
	webhookRepo repository.WebhookEventRepository,
	redisClient xredis.Client,
	audit *common.AuditRecorder,
) *entryDomain {
	return &entryDomain{
		roomRepo:    roomRepo,
		entryRepo:   entryRepo,
		ledgerRepo:  ledgerRepo,
		webhookRepo: webhookRepo,
		redisClient: redisClient,
		audit:       audit,
	}
}

// RecordEntry converts a confirmed payment into tickets. It is idempotent
// on the idempotency key: replaying a key returns the original result
// without moving any money again.
func (d *entryDomain) RecordEntry(
	ctx context.Context, req *model.RecordEntryRequest,
) (*model.RecordEntryResponse, error) {
	if req.RoomID == "" || req.UserID == "" || req.IdempotencyKey == "" {
		return nil, errorx.New(errorx.BadRequest, "Not allow an empty room, user, or idempotency key")
	}

	if req.AmountCents <= 0 {
		return nil, errorx.New(errorx.BadRequest, "Not allow a non-positive amount")
	}

	if existing, err := d.entryRepo.GetByIdempotencyKey(ctx, req.IdempotencyKey); err == nil {
		return d.replayEntry(ctx, existing)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		xcontext.Logger(ctx).Errorf("Cannot check idempotency key: %v", err)
		return nil, errorx.Unknown
	}

	ctx = xcontext.WithDBTransaction(ctx)
	defer xcontext.WithRollbackDBTransaction(ctx)

	room, err := d.roomRepo.GetByIDForUpdate(ctx, req.RoomID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errorx.New(errorx.NotFound, "Not found room")
		}

		xcontext.Logger(ctx).Errorf("Cannot get room for entry: %v", err)
		return nil, errorx.Unknown
	}

	if room.Status != entity.RoomStatusOpen {
		return nil, errorx.New(errorx.InvalidDropState,
			"Room is %s, entries are closed", room.Status)
	}

	count, err := d.entryRepo.CountByRoomID(ctx, req.RoomID)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot count entries: %v", err)
		return nil, errorx.Unknown
	}

	if room.MaxParticipants > 0 && int(count) >= room.MaxParticipants {
		return nil, errorx.New(errorx.CapacityExceeded, "Room is full")
	}

	price := ticketPrice(ctx, room.Tier)
	if req.AmountCents%price != 0 {
		return nil, errorx.New(errorx.BadRequest,
			"Amount must be a multiple of the %d cents ticket price", price)
	}

	tickets := req.AmountCents / price
	now := time.Now()

	entry := &entity.RoomEntry{
		Base:           entity.Base{ID: uuid.NewString()},
		RoomID:         room.ID,
		UserID:         req.UserID,
		AmountCents:    req.AmountCents,
		Tickets:        tickets,
		TicketOffset:   room.TotalTickets,
		PriorityScore:  req.AmountCents,
		Outcome:        entity.EntryOutcomePending,
		IdempotencyKey: req.IdempotencyKey,
		StakedAt:       now,
	}

	if err := d.entryRepo.Create(ctx, entry); err != nil {
		// A concurrent request with the same key won the unique index.
		xcontext.WithRollbackDBTransaction(ctx)
		if existing, rerr := d.entryRepo.GetByIdempotencyKey(ctx, req.IdempotencyKey); rerr == nil {
			return d.replayEntry(ctx, existing)
		}

		xcontext.Logger(ctx).Errorf("Cannot create entry: %v", err)
		return nil, errorx.Unknown
	}

	if err := d.roomRepo.TakeTicketRange(ctx, room.ID, entry.TicketOffset, tickets); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errorx.New(errorx.StaleTransition, "Ticket counter moved concurrently")
		}

		xcontext.Logger(ctx).Errorf("Cannot take ticket range: %v", err)
		return nil, errorx.Unknown
	}

	err = d.ledgerRepo.AddRoomEscrow(ctx, room.ID, req.AmountCents,
		entity.LedgerEventAdd, "room_entry", entry.ID, "entry stake")
	if err != nil {
		return nil, ledgerError(ctx, err)
	}

	if err := d.ledgerRepo.AddTierEscrow(ctx, room.Tier, req.AmountCents, room.TierCapCents); err != nil {
		return nil, ledgerError(ctx, err)
	}

	newBalance := room.EscrowBalanceCents + req.AmountCents
	status := entity.RoomStatusOpen

	funded := room.EscrowTargetCents > 0 && newBalance >= room.EscrowTargetCents
	full := room.MaxParticipants > 0 && int(count)+1 >= room.MaxParticipants
	if funded || full {
		err := d.roomRepo.UpdateStatus(ctx, room.ID, entity.RoomStatusOpen, entity.RoomStatusLocked)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, errorx.New(errorx.StaleTransition, "Room status changed concurrently")
			}

			xcontext.Logger(ctx).Errorf("Cannot lock filled room: %v", err)
			return nil, errorx.Unknown
		}

		status = entity.RoomStatusLocked
	}

	err = d.audit.Record(ctx, "record_entry", "room_entry", entry.ID,
		nil, entity.Map{
			"room_id":       room.ID,
			"user_id":       req.UserID,
			"amount_cents":  req.AmountCents,
			"tickets":       tickets,
			"ticket_offset": entry.TicketOffset,
			"room_status":   string(status),
		})
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot write entry audit log: %v", err)
		return nil, errorx.Unknown
	}

	xcontext.WithCommitDBTransaction(ctx)

	return &model.RecordEntryResponse{
		EntryID:         entry.ID,
		TicketsGranted:  tickets,
		FundingProgress: fundingProgress(newBalance, room.EscrowTargetCents),
		RoomStatus:      string(status),
	}, nil
}

// RoomEntryWebhook handles a payment-provider delivery. Each event id is
// applied at most once: redeliveries hit the dedup table (or its redis
// shadow) and are acknowledged without effect.
func (d *entryDomain) RoomEntryWebhook(
	ctx context.Context, req *model.RoomEntryWebhookRequest,
) (*model.RoomEntryWebhookResponse, error) {
	if req.EventID == "" {
		return nil, errorx.New(errorx.BadRequest, "Not allow an empty event id")
	}

	provider := xcontext.Configs(ctx).Drop.WebhookProvider
	cacheKey := webhookCacheKey(provider, req.EventID)

	if d.redisClient != nil {
		if seen, err := d.redisClient.Exist(ctx, cacheKey); err == nil && seen {
			return &model.RoomEntryWebhookResponse{Received: true, Status: "duplicate"}, nil
		}
	}

	if event, err := d.webhookRepo.GetByEventID(ctx, provider, req.EventID); err == nil {
		if event.Processed {
			return &model.RoomEntryWebhookResponse{Received: true, Status: "duplicate"}, nil
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		xcontext.Logger(ctx).Errorf("Cannot check webhook event: %v", err)
		return nil, errorx.Unknown
	} else {
		err := d.webhookRepo.Create(ctx, &entity.WebhookEvent{
			Base:      entity.Base{ID: uuid.NewString()},
			EventID:   req.EventID,
			Provider:  provider,
			EventType: req.EventType,
			Payload: entity.Map{
				"room_id":      req.RoomID,
				"user_id":      req.UserID,
				"amount_cents": req.AmountCents,
			},
		})
		if err != nil {
			// Lost the unique-index race to a concurrent delivery.
			return &model.RoomEntryWebhookResponse{Received: true, Status: "duplicate"}, nil
		}
	}

	if req.EventType != CheckoutCompletedEvent {
		d.finishWebhook(ctx, provider, req.EventID, cacheKey)
		return &model.RoomEntryWebhookResponse{Received: true, Status: "ignored"}, nil
	}

	resp, err := d.RecordEntry(ctx, &model.RecordEntryRequest{
		RoomID:         req.RoomID,
		UserID:         req.UserID,
		AmountCents:    req.AmountCents,
		IdempotencyKey: req.EventID,
	})
	if err != nil {
		var xerr errorx.Error
		if errors.As(err, &xerr) && xerr.Code != errorx.Unknown.Code {
			// Business rejection. Acknowledge so the provider stops
			// retrying a delivery that can never succeed.
			d.finishWebhook(ctx, provider, req.EventID, cacheKey)
			return &model.RoomEntryWebhookResponse{Received: true, Status: "rejected"}, nil
		}

		return nil, err
	}

	d.finishWebhook(ctx, provider, req.EventID, cacheKey)

	return &model.RoomEntryWebhookResponse{
		Received:        true,
		Status:          "recorded",
		EntryID:         resp.EntryID,
		TicketsGranted:  resp.TicketsGranted,
		FundingProgress: resp.FundingProgress,
		RoomStatus:      resp.RoomStatus,
	}, nil
}

func (d *entryDomain) finishWebhook(ctx context.Context, provider, eventID, cacheKey string) {
	if err := d.webhookRepo.MarkProcessed(ctx, provider, eventID); err != nil {
		xcontext.Logger(ctx).Errorf("Cannot mark webhook event processed: %v", err)
	}

	if d.redisClient != nil {
		if err := d.redisClient.Set(ctx, cacheKey, "1", 24*time.Hour); err != nil {
			xcontext.Logger(ctx).Warnf("Cannot cache webhook event id: %v", err)
		}
	}
}

func (d *entryDomain) replayEntry(
	ctx context.Context, entry *entity.RoomEntry,
) (*model.RecordEntryResponse, error) {
	room, err := d.roomRepo.GetByID(ctx, entry.RoomID)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot get room of replayed entry: %v", err)
		return nil, errorx.Unknown
	}

	return &model.RecordEntryResponse{
		EntryID:         entry.ID,
		TicketsGranted:  entry.Tickets,
		FundingProgress: fundingProgress(room.EscrowBalanceCents, room.EscrowTargetCents),
		RoomStatus:      string(room.Status),
	}, nil
}

func ticketPrice(ctx context.Context, tier entity.RoomTier) int64 {
	cfg := xcontext.Configs(ctx).Drop
	if price, ok := cfg.TicketPriceCents[string(tier)]; ok && price > 0 {
		return price
	}

	return cfg.DefaultTicketPriceCents
}

func fundingProgress(balanceCents, targetCents int64) float64 {
	if targetCents <= 0 {
		return 1
	}

	progress := float64(balanceCents) / float64(targetCents)
	if progress > 1 {
		return 1
	}

	return progress
}

func webhookCacheKey(provider, eventID string) string {
	return fmt.Sprintf("webhook:%s:%s", provider, eventID)
}
