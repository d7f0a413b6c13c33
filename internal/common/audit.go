package common

import (
	"context"

	"github.com/dropvault/backend/internal/entity"
	"github.com/dropvault/backend/internal/repository"
	"github.com/dropvault/backend/pkg/xcontext"
	"github.com/google/uuid"
)

// SystemActor is recorded when a transition is triggered by the scheduler
// rather than an admin request.
const SystemActor = "system"

type AuditRecorder struct {
	auditRepo repository.AuditLogRepository
}

func NewAuditRecorder(auditRepo repository.AuditLogRepository) *AuditRecorder {
	return &AuditRecorder{auditRepo: auditRepo}
}

func (a *AuditRecorder) Record(
	ctx context.Context, action, refType, refID string, before, after entity.Map,
) error {
	actor := xcontext.RequestUserID(ctx)
	if actor == "" {
		actor = SystemActor
	}

	return a.auditRepo.Create(ctx, &entity.AuditLog{
		Base:    entity.Base{ID: uuid.NewString()},
		Actor:   actor,
		Action:  action,
		RefType: refType,
		RefID:   refID,
		Before:  before,
		After:   after,
	})
}
