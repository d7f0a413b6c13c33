package repository

import (
	"context"

	"github.com/dropvault/backend/internal/entity"
	"github.com/dropvault/backend/pkg/xcontext"
)

type GetListAuditLogFilter struct {
	Actor  string
	RefID  string
	Offset int
	Limit  int
}

type AuditLogRepository interface {
	Create(ctx context.Context, log *entity.AuditLog) error
	GetList(ctx context.Context, filter GetListAuditLogFilter) ([]entity.AuditLog, error)
}

type auditLogRepository struct{}

func NewAuditLogRepository() *auditLogRepository {
	return &auditLogRepository{}
}

func (r *auditLogRepository) Create(ctx context.Context, log *entity.AuditLog) error {
	return xcontext.DB(ctx).Create(log).Error
}

func (r *auditLogRepository) GetList(ctx context.Context, filter GetListAuditLogFilter) ([]entity.AuditLog, error) {
	tx := xcontext.DB(ctx).Model(&entity.AuditLog{})
	if filter.Actor != "" {
		tx = tx.Where("actor=?", filter.Actor)
	}

	if filter.RefID != "" {
		tx = tx.Where("ref_id=?", filter.RefID)
	}

	if filter.Limit > 0 {
		tx = tx.Offset(filter.Offset).Limit(filter.Limit)
	}

	var result []entity.AuditLog
	if err := tx.Order("created_at DESC").Find(&result).Error; err != nil {
		return nil, err
	}

	return result, nil
}
