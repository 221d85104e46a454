package db

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"artomate-backend/internal/models"
)

const paymentsCollection = "payments"

type firestorePaymentRepository struct {
	client *firestore.Client
}

// NewFirestorePaymentRepository creates a PaymentRepository backed by the payments collection.
func NewFirestorePaymentRepository(client *firestore.Client) PaymentRepository {
	if client == nil {
		panic("Firestore client is not initialized for PaymentRepository")
	}
	return &firestorePaymentRepository{client: client}
}

func (r *firestorePaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	if payment.SessionID == "" {
		return errors.New("session ID cannot be empty for Create operation")
	}
	_, err := r.client.Collection(paymentsCollection).Doc(payment.SessionID).Create(ctx, payment)
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return fmt.Errorf("payment for session '%s': %w", payment.SessionID, ErrAlreadyExists)
		}
		return fmt.Errorf("failed to record payment for session '%s': %w", payment.SessionID, err)
	}
	return nil
}

func (r *firestorePaymentRepository) Get(ctx context.Context, sessionID string) (*models.Payment, error) {
	if sessionID == "" {
		return nil, errors.New("session ID cannot be empty for Get operation")
	}
	docSnap, err := r.client.Collection(paymentsCollection).Doc(sessionID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("payment for session '%s': %w", sessionID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get payment for session '%s': %w", sessionID, err)
	}
	var payment models.Payment
	if err := docSnap.DataTo(&payment); err != nil {
		return nil, fmt.Errorf("failed to decode payment '%s': %w", sessionID, err)
	}
	payment.SessionID = docSnap.Ref.ID
	return &payment, nil
}

func (r *firestorePaymentRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*models.Payment, error) {
	if userID == "" {
		return nil, errors.New("userID cannot be empty for ListByUser operation")
	}
	query := r.client.Collection(paymentsCollection).Where("userId", "==", userID).OrderBy("createdAt", firestore.Desc)
	if limit > 0 {
		query = query.Limit(limit)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	payments := make([]*models.Payment, 0)
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate payments for user '%s': %w", userID, err)
		}
		var payment models.Payment
		if err := doc.DataTo(&payment); err != nil {
			return nil, fmt.Errorf("failed to decode payment '%s': %w", doc.Ref.ID, err)
		}
		payment.SessionID = doc.Ref.ID
		payments = append(payments, &payment)
	}
	return payments, nil
}
