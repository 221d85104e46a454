package core

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"artomate-backend/internal/db"
	"artomate-backend/internal/models"
)

// auditService implements the AuditService interface.
type auditService struct {
	auditRepo db.AuditRepository
	logger    *zap.Logger
}

// NewAuditService creates a new AuditService instance.
func NewAuditService(auditRepo db.AuditRepository, logger *zap.Logger) AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &auditService{
		auditRepo: auditRepo,
		logger:    logger,
	}
}

// CreateAuditLog creates a new audit log entry.
func (s *auditService) CreateAuditLog(ctx context.Context, logEntry models.AuditLog) error {
	if s.auditRepo == nil {
		return fmt.Errorf("AuditRepository not initialized in AuditService")
	}
	if err := s.auditRepo.Create(ctx, logEntry); err != nil {
		return fmt.Errorf("failed to create audit log via repository: %w", err)
	}
	return nil
}

func (s *auditService) Record(ctx context.Context, userID, action, targetType, targetID string, details map[string]interface{}) {
	err := s.CreateAuditLog(ctx, models.AuditLog{
		UserID:     userID,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Details:    details,
	})
	if err != nil {
		s.logger.Warn("Failed to write audit log",
			zap.String("action", action),
			zap.String("userID", userID),
			zap.String("targetID", targetID),
			zap.Error(err))
	}
}
