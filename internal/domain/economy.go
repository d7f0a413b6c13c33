package domain

import (
	"context"
	"errors"

	"github.com/dropvault/backend/internal/common"
	"github.com/dropvault/backend/internal/entity"
	"github.com/dropvault/backend/internal/model"
	"github.com/dropvault/backend/internal/repository"
	"github.com/dropvault/backend/pkg/errorx"
	"github.com/dropvault/backend/pkg/xcontext"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type EconomyDomain interface {
	AdjustBucketBalance(ctx context.Context, req *model.AdjustBucketBalanceRequest) (*model.AdjustBucketBalanceResponse, error)
	GetBucketBalances(ctx context.Context, req *model.GetBucketBalancesRequest) (*model.GetBucketBalancesResponse, error)
	GetTierEscrowPools(ctx context.Context, req *model.GetTierEscrowPoolsRequest) (*model.GetTierEscrowPoolsResponse, error)
	GetRoomEscrowLedger(ctx context.Context, req *model.GetRoomEscrowLedgerRequest) (*model.GetRoomEscrowLedgerResponse, error)
	FulfillAward(ctx context.Context, req *model.FulfillAwardRequest) (*model.FulfillAwardResponse, error)
	CancelAward(ctx context.Context, req *model.CancelAwardRequest) (*model.CancelAwardResponse, error)
}

type economyDomain struct {
	ledgerRepo repository.LedgerRepository
	awardRepo  repository.AwardRepository
	audit      *common.AuditRecorder
}

func NewEconomyDomain(
	ledgerRepo repository.LedgerRepository,
	awardRepo repository.AwardRepository,
	audit *common.AuditRecorder,
) *economyDomain {
	return &economyDomain{ledgerRepo: ledgerRepo, awardRepo: awardRepo, audit: audit}
}

// AdjustBucketBalance applies an operator top-up or drain to a bucket.
// The movement lands in the pool ledger like any other, attributed to the
// requesting actor.
func (d *economyDomain) AdjustBucketBalance(
	ctx context.Context, req *model.AdjustBucketBalanceRequest,
) (*model.AdjustBucketBalanceResponse, error) {
	if req.Bucket == "" {
		return nil, errorx.New(errorx.BadRequest, "Not allow an empty bucket")
	}

	amount, err := decimal.NewFromString(req.AmountUSD)
	if err != nil {
		return nil, errorx.New(errorx.BadRequest, "Invalid amount %s", req.AmountUSD)
	}

	if amount.IsZero() {
		return nil, errorx.New(errorx.BadRequest, "Not allow a zero adjustment")
	}

	event := entity.LedgerEventAdd
	if amount.IsNegative() {
		event = entity.LedgerEventRelease
	}

	ctx = xcontext.WithDBTransaction(ctx)
	defer xcontext.WithRollbackDBTransaction(ctx)

	adjustmentID := uuid.NewString()
	err = d.ledgerRepo.AddBucketPool(ctx, req.Bucket, amount,
		event, "manual_adjustment", adjustmentID, req.Reason)
	if err != nil {
		return nil, ledgerError(ctx, err)
	}

	balance, err := d.ledgerRepo.GetBucketBalance(ctx, req.Bucket)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot get adjusted bucket balance: %v", err)
		return nil, errorx.Unknown
	}

	err = d.audit.Record(ctx, "adjust_bucket_balance", "bucket", req.Bucket,
		nil, entity.Map{
			"adjustment_id": adjustmentID,
			"amount_usd":    amount.String(),
			"reason":        req.Reason,
		})
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot write adjustment audit log: %v", err)
		return nil, errorx.Unknown
	}

	xcontext.WithCommitDBTransaction(ctx)

	return &model.AdjustBucketBalanceResponse{
		Bucket:     req.Bucket,
		BalanceUSD: balance.BalanceUSD.String(),
	}, nil
}

func (d *economyDomain) GetBucketBalances(
	ctx context.Context, req *model.GetBucketBalancesRequest,
) (*model.GetBucketBalancesResponse, error) {
	balances, err := d.ledgerRepo.GetBucketBalances(ctx)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot get bucket balances: %v", err)
		return nil, errorx.Unknown
	}

	clientBalances := make([]model.BucketBalance, 0, len(balances))
	for _, balance := range balances {
		clientBalances = append(clientBalances, model.BucketBalance{
			Bucket:     balance.Bucket,
			BalanceUSD: balance.BalanceUSD.String(),
			UpdatedAt:  balance.UpdatedAt,
		})
	}

	return &model.GetBucketBalancesResponse{Balances: clientBalances}, nil
}

func (d *economyDomain) GetTierEscrowPools(
	ctx context.Context, req *model.GetTierEscrowPoolsRequest,
) (*model.GetTierEscrowPoolsResponse, error) {
	pools, err := d.ledgerRepo.GetTierEscrowPools(ctx)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot get tier escrow pools: %v", err)
		return nil, errorx.Unknown
	}

	clientPools := make([]model.TierEscrowPool, 0, len(pools))
	for _, pool := range pools {
		clientPools = append(clientPools, model.TierEscrowPool{
			Tier:         string(pool.Tier),
			BalanceCents: pool.BalanceCents,
			CapCents:     pool.CapCents,
			UpdatedAt:    pool.UpdatedAt,
		})
	}

	return &model.GetTierEscrowPoolsResponse{Pools: clientPools}, nil
}

// GetRoomEscrowLedger returns a room's escrow movements oldest first, for
// reconciling the room balance against its history.
func (d *economyDomain) GetRoomEscrowLedger(
	ctx context.Context, req *model.GetRoomEscrowLedgerRequest,
) (*model.GetRoomEscrowLedgerResponse, error) {
	if req.RoomID == "" {
		return nil, errorx.New(errorx.BadRequest, "Not allow an empty room id")
	}

	movements, err := d.ledgerRepo.GetRoomEscrowLedger(ctx, req.RoomID)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot get room escrow ledger: %v", err)
		return nil, errorx.Unknown
	}

	clientMovements := make([]model.EscrowMovement, 0, len(movements))
	for _, movement := range movements {
		clientMovements = append(clientMovements, model.EscrowMovement{
			ID:         movement.ID,
			RoomID:     movement.RoomID,
			DeltaCents: movement.DeltaCents,
			EventType:  string(movement.EventType),
			RefType:    movement.RefType,
			RefID:      movement.RefID,
			Reason:     movement.Reason,
			CreatedAt:  movement.CreatedAt,
		})
	}

	return &model.GetRoomEscrowLedgerResponse{Movements: clientMovements}, nil
}

// FulfillAward terminates an award's RESERVE with a CAPTURE. The hold was
// already subtracted from the bucket when the award was reserved, so the
// capture row carries a zero delta and only marks the funds as spent.
func (d *economyDomain) FulfillAward(
	ctx context.Context, req *model.FulfillAwardRequest,
) (*model.FulfillAwardResponse, error) {
	ctx = xcontext.WithDBTransaction(ctx)
	defer xcontext.WithRollbackDBTransaction(ctx)

	award, err := d.getAward(ctx, req.AwardID)
	if err != nil {
		return nil, err
	}

	err = d.awardRepo.UpdateStatus(ctx, award.ID, entity.AwardStatusReserved, entity.AwardStatusFulfilled)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errorx.New(errorx.InvalidDropState,
				"Award is %s, only reserved awards can be fulfilled", award.Status)
		}

		xcontext.Logger(ctx).Errorf("Cannot fulfill award: %v", err)
		return nil, errorx.Unknown
	}

	if req.RevealID != "" {
		if err := d.awardRepo.SetRevealID(ctx, award.ID, req.RevealID); err != nil {
			xcontext.Logger(ctx).Errorf("Cannot record reveal on award: %v", err)
			return nil, errorx.Unknown
		}
	}

	err = d.ledgerRepo.AddBucketPool(ctx, award.Bucket, decimal.Zero,
		entity.LedgerEventCapture, "award", award.ID, "prize hold spent")
	if err != nil {
		return nil, ledgerError(ctx, err)
	}

	after := entity.Map{"status": string(entity.AwardStatusFulfilled)}
	if req.RevealID != "" {
		after["reveal_id"] = req.RevealID
	}

	err = d.audit.Record(ctx, "fulfill_award", "award", award.ID,
		entity.Map{"status": string(entity.AwardStatusReserved)}, after)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot write fulfillment audit log: %v", err)
		return nil, errorx.Unknown
	}

	xcontext.WithCommitDBTransaction(ctx)

	return &model.FulfillAwardResponse{
		AwardID: award.ID,
		Status:  string(entity.AwardStatusFulfilled),
	}, nil
}

// CancelAward terminates an award's RESERVE with a RELEASE that returns
// the held funds to the bucket.
func (d *economyDomain) CancelAward(
	ctx context.Context, req *model.CancelAwardRequest,
) (*model.CancelAwardResponse, error) {
	to := entity.AwardStatusCancelled
	if req.Expired {
		to = entity.AwardStatusExpired
	}

	ctx = xcontext.WithDBTransaction(ctx)
	defer xcontext.WithRollbackDBTransaction(ctx)

	award, err := d.getAward(ctx, req.AwardID)
	if err != nil {
		return nil, err
	}

	err = d.awardRepo.UpdateStatus(ctx, award.ID, entity.AwardStatusReserved, to)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errorx.New(errorx.InvalidDropState,
				"Award is %s, only reserved awards can be cancelled", award.Status)
		}

		xcontext.Logger(ctx).Errorf("Cannot cancel award: %v", err)
		return nil, errorx.Unknown
	}

	err = d.ledgerRepo.AddBucketPool(ctx, award.Bucket, award.ReservedCostUSD,
		entity.LedgerEventRelease, "award", award.ID, "prize hold returned")
	if err != nil {
		return nil, ledgerError(ctx, err)
	}

	err = d.audit.Record(ctx, "cancel_award", "award", award.ID,
		entity.Map{"status": string(entity.AwardStatusReserved)},
		entity.Map{"status": string(to)})
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot write award cancellation audit log: %v", err)
		return nil, errorx.Unknown
	}

	xcontext.WithCommitDBTransaction(ctx)

	return &model.CancelAwardResponse{AwardID: award.ID, Status: string(to)}, nil
}

func (d *economyDomain) getAward(ctx context.Context, awardID string) (*entity.Award, error) {
	if awardID == "" {
		return nil, errorx.New(errorx.BadRequest, "Not allow an empty award id")
	}

	award, err := d.awardRepo.GetByID(ctx, awardID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errorx.New(errorx.NotFound, "Not found award")
		}

		xcontext.Logger(ctx).Errorf("Cannot get award: %v", err)
		return nil, errorx.Unknown
	}

	return award, nil
}
