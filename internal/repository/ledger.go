package repository

import (
	"context"
	"errors"
	"time"

	"github.com/dropvault/backend/internal/entity"
	"github.com/dropvault/backend/pkg/xcontext"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ErrLedgerImbalance reports a ledger insert whose paired balance update
// affected no row. The caller must roll back the transaction; nothing
// auto-corrects this.
var ErrLedgerImbalance = errors.New("ledger row written without matching balance update")

// ErrPoolExhausted reports a balance update that would drive a pool
// negative or above its cap. Nothing is written when it is returned.
var ErrPoolExhausted = errors.New("pool balance would leave its allowed range")

// LedgerRepository appends ledger rows and maintains the derived balances.
// Every method writes exactly one ledger row and updates exactly one
// balance row; both happen in the caller's transaction.
type LedgerRepository interface {
	AddRoomEscrow(ctx context.Context, roomID string, deltaCents int64, event entity.LedgerEventType, refType, refID, reason string) error
	SumRoomEscrow(ctx context.Context, roomID string) (int64, error)
	GetRoomEscrowLedger(ctx context.Context, roomID string) ([]entity.EscrowLedger, error)

	// AddTierEscrow mirrors a room escrow movement into the tier's derived
	// pool balance. The tier pool has no ledger of its own: it is derived
	// from escrow_ledger rows of the tier's rooms.
	AddTierEscrow(ctx context.Context, tier entity.RoomTier, deltaCents, capCents int64) error
	GetTierEscrowPools(ctx context.Context) ([]entity.TierEscrowPool, error)

	AddBucketPool(ctx context.Context, bucket string, delta decimal.Decimal, event entity.LedgerEventType, refType, refID, reason string) error
	GetBucketBalance(ctx context.Context, bucket string) (*entity.BucketBalance, error)
	GetBucketBalances(ctx context.Context) ([]entity.BucketBalance, error)

	AddCategoryPool(ctx context.Context, category string, delta decimal.Decimal, event entity.LedgerEventType, refType, refID, reason string) error
	GetCategoryPoolBalances(ctx context.Context) ([]entity.CategoryPoolBalance, error)
}

type ledgerRepository struct{}

func NewLedgerRepository() *ledgerRepository {
	return &ledgerRepository{}
}

func (r *ledgerRepository) AddRoomEscrow(
	ctx context.Context, roomID string, deltaCents int64,
	event entity.LedgerEventType, refType, refID, reason string,
) error {
	row := &entity.EscrowLedger{
		Base:       entity.Base{ID: uuid.NewString()},
		RoomID:     roomID,
		DeltaCents: deltaCents,
		EventType:  event,
		RefType:    refType,
		RefID:      refID,
		Reason:     reason,
	}

	if err := xcontext.DB(ctx).Create(row).Error; err != nil {
		return err
	}

	tx := xcontext.DB(ctx).Model(&entity.Room{}).
		Where("id=?", roomID).
		Update("escrow_balance_cents", gorm.Expr("escrow_balance_cents+?", deltaCents))
	if tx.Error != nil {
		return tx.Error
	}

	if tx.RowsAffected == 0 {
		return ErrLedgerImbalance
	}

	return nil
}

func (r *ledgerRepository) SumRoomEscrow(ctx context.Context, roomID string) (int64, error) {
	var sum int64
	err := xcontext.DB(ctx).Model(&entity.EscrowLedger{}).
		Where("room_id=?", roomID).
		Select("COALESCE(SUM(delta_cents), 0)").Scan(&sum).Error
	if err != nil {
		return 0, err
	}

	return sum, nil
}

func (r *ledgerRepository) GetRoomEscrowLedger(ctx context.Context, roomID string) ([]entity.EscrowLedger, error) {
	var result []entity.EscrowLedger
	err := xcontext.DB(ctx).Where("room_id=?", roomID).
		Order("created_at ASC").Find(&result).Error
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (r *ledgerRepository) AddTierEscrow(
	ctx context.Context, tier entity.RoomTier, deltaCents, capCents int64,
) error {
	err := xcontext.DB(ctx).
		Where(entity.TierEscrowPool{Tier: tier}).
		Attrs(entity.TierEscrowPool{CapCents: capCents}).
		FirstOrCreate(&entity.TierEscrowPool{}).Error
	if err != nil {
		return err
	}

	// The cap is checked inside the guarded update so a concurrent ADD
	// cannot slip the pool over it. A pool with no cap accepts any ADD.
	tx := xcontext.DB(ctx).Model(&entity.TierEscrowPool{}).
		Where("tier=? AND balance_cents+?>=0 AND (cap_cents<=0 OR ?<=0 OR balance_cents+?<=cap_cents)",
			tier, deltaCents, deltaCents, deltaCents).
		Updates(map[string]any{
			"balance_cents": gorm.Expr("balance_cents+?", deltaCents),
			"updated_at":    time.Now(),
		})
	if tx.Error != nil {
		return tx.Error
	}

	if tx.RowsAffected == 0 {
		return ErrPoolExhausted
	}

	return nil
}

func (r *ledgerRepository) GetTierEscrowPools(ctx context.Context) ([]entity.TierEscrowPool, error) {
	var result []entity.TierEscrowPool
	if err := xcontext.DB(ctx).Order("tier").Find(&result).Error; err != nil {
		return nil, err
	}

	return result, nil
}

func (r *ledgerRepository) AddBucketPool(
	ctx context.Context, bucket string, delta decimal.Decimal,
	event entity.LedgerEventType, refType, refID, reason string,
) error {
	err := xcontext.DB(ctx).
		Where(entity.BucketBalance{Bucket: bucket}).
		FirstOrCreate(&entity.BucketBalance{}).Error
	if err != nil {
		return err
	}

	row := &entity.PoolLedger{
		Base:      entity.Base{ID: uuid.NewString()},
		Bucket:    bucket,
		DeltaUSD:  delta,
		EventType: event,
		RefType:   refType,
		RefID:     refID,
		Reason:    reason,
	}

	if err := xcontext.DB(ctx).Create(row).Error; err != nil {
		return err
	}

	tx := xcontext.DB(ctx).Model(&entity.BucketBalance{}).
		Where("bucket=? AND balance_usd+?>=0", bucket, delta).
		Updates(map[string]any{
			"balance_usd": gorm.Expr("balance_usd+?", delta),
			"updated_at":  time.Now(),
		})
	if tx.Error != nil {
		return tx.Error
	}

	if tx.RowsAffected == 0 {
		return ErrPoolExhausted
	}

	return nil
}

func (r *ledgerRepository) GetBucketBalance(ctx context.Context, bucket string) (*entity.BucketBalance, error) {
	var result entity.BucketBalance
	if err := xcontext.DB(ctx).Take(&result, "bucket=?", bucket).Error; err != nil {
		return nil, err
	}

	return &result, nil
}

func (r *ledgerRepository) GetBucketBalances(ctx context.Context) ([]entity.BucketBalance, error) {
	var result []entity.BucketBalance
	if err := xcontext.DB(ctx).Order("bucket").Find(&result).Error; err != nil {
		return nil, err
	}

	return result, nil
}

func (r *ledgerRepository) AddCategoryPool(
	ctx context.Context, category string, delta decimal.Decimal,
	event entity.LedgerEventType, refType, refID, reason string,
) error {
	err := xcontext.DB(ctx).
		Where(entity.CategoryPoolBalance{Category: category}).
		FirstOrCreate(&entity.CategoryPoolBalance{}).Error
	if err != nil {
		return err
	}

	row := &entity.CategoryPoolLedger{
		Base:      entity.Base{ID: uuid.NewString()},
		Category:  category,
		DeltaUSD:  delta,
		EventType: event,
		RefType:   refType,
		RefID:     refID,
		Reason:    reason,
	}

	if err := xcontext.DB(ctx).Create(row).Error; err != nil {
		return err
	}

	tx := xcontext.DB(ctx).Model(&entity.CategoryPoolBalance{}).
		Where("category=? AND balance_usd+?>=0", category, delta).
		Updates(map[string]any{
			"balance_usd": gorm.Expr("balance_usd+?", delta),
			"updated_at":  time.Now(),
		})
	if tx.Error != nil {
		return tx.Error
	}

	if tx.RowsAffected == 0 {
		return ErrPoolExhausted
	}

	return nil
}

func (r *ledgerRepository) GetCategoryPoolBalances(ctx context.Context) ([]entity.CategoryPoolBalance, error) {
	var result []entity.CategoryPoolBalance
	if err := xcontext.DB(ctx).Order("category").Find(&result).Error; err != nil {
		return nil, err
	}

	return result, nil
}
