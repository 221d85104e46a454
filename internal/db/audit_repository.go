package db

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"

	"artomate-backend/internal/models"
)

const auditLogsCollection = "audit_logs"

type firestoreAuditRepository struct {
	client *firestore.Client
}

// NewFirestoreAuditRepository creates an AuditRepository writing to audit_logs.
func NewFirestoreAuditRepository(client *firestore.Client) AuditRepository {
	if client == nil {
		panic("Firestore client is not initialized for AuditRepository")
	}
	return &firestoreAuditRepository{client: client}
}

// Create appends an entry with an auto-generated ID. Timestamp is set server side.
func (r *firestoreAuditRepository) Create(ctx context.Context, logEntry models.AuditLog) error {
	if _, _, err := r.client.Collection(auditLogsCollection).Add(ctx, logEntry); err != nil {
		return fmt.Errorf("failed to create audit log (action %s): %w", logEntry.Action, err)
	}
	return nil
}
