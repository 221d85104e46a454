package db

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"artomate-backend/internal/models"
)

const campaignsCollection = "campaigns"

// firestoreCampaignRepository keeps campaigns in users/{uid}/campaigns.
type firestoreCampaignRepository struct {
	client *firestore.Client
}

// NewFirestoreCampaignRepository creates a new instance of firestoreCampaignRepository.
func NewFirestoreCampaignRepository(client *firestore.Client) CampaignRepository {
	if client == nil {
		panic("Firestore client is not initialized for CampaignRepository")
	}
	return &firestoreCampaignRepository{client: client}
}

func (r *firestoreCampaignRepository) collection(ownerID string) *firestore.CollectionRef {
	return r.client.Collection(usersCollection).Doc(ownerID).Collection(campaignsCollection)
}

// Create adds a new campaign document with an auto-generated ID and sets campaign.ID.
func (r *firestoreCampaignRepository) Create(ctx context.Context, campaign *models.Campaign) (string, error) {
	if campaign.OwnerID == "" {
		return "", errors.New("ownerID cannot be empty for Create operation")
	}
	docRef := r.collection(campaign.OwnerID).NewDoc()
	campaign.ID = docRef.ID

	if _, err := docRef.Create(ctx, campaign); err != nil {
		return "", fmt.Errorf("failed to create campaign: %w", err)
	}
	return docRef.ID, nil
}

// GetByID retrieves one of the owner's campaigns.
func (r *firestoreCampaignRepository) GetByID(ctx context.Context, ownerID, campaignID string) (*models.Campaign, error) {
	if ownerID == "" || campaignID == "" {
		return nil, errors.New("ownerID and campaignID are required for GetByID operation")
	}
	docSnap, err := r.collection(ownerID).Doc(campaignID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("campaign with ID '%s' not found: %w", campaignID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get campaign with ID '%s': %w", campaignID, err)
	}

	var campaign models.Campaign
	if err := docSnap.DataTo(&campaign); err != nil {
		return nil, fmt.Errorf("failed to decode campaign data for ID '%s': %w", campaignID, err)
	}
	campaign.ID = docSnap.Ref.ID
	return &campaign, nil
}

// ListByOwner returns the owner's campaigns, newest first.
// A status filter is applied server side; ordering is done here so the
// filtered query does not need a composite index.
func (r *firestoreCampaignRepository) ListByOwner(ctx context.Context, ownerID string, opts CampaignListOptions) ([]*models.Campaign, error) {
	if ownerID == "" {
		return nil, errors.New("ownerID cannot be empty for ListByOwner operation")
	}

	var query firestore.Query
	filtered := opts.Status != "" && opts.Status != "all"
	if filtered {
		query = r.collection(ownerID).Where("status", "==", opts.Status)
	} else {
		query = r.collection(ownerID).OrderBy("createdAt", firestore.Desc)
		if opts.Limit > 0 {
			query = query.Limit(opts.Limit)
		}
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	campaigns := make([]*models.Campaign, 0)
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate campaigns for owner '%s': %w", ownerID, err)
		}

		var campaign models.Campaign
		if err := doc.DataTo(&campaign); err != nil {
			return nil, fmt.Errorf("failed to decode campaign data for ID '%s': %w", doc.Ref.ID, err)
		}
		campaign.ID = doc.Ref.ID
		campaigns = append(campaigns, &campaign)
	}

	if filtered {
		sort.SliceStable(campaigns, func(i, j int) bool {
			return campaigns[i].CreatedAt.After(campaigns[j].CreatedAt)
		})
		if opts.Limit > 0 && len(campaigns) > opts.Limit {
			campaigns = campaigns[:opts.Limit]
		}
	}
	return campaigns, nil
}

// Update overwrites an existing campaign document. It returns ErrNotFound when
// the campaign was deleted, so a late writer cannot recreate it.
func (r *firestoreCampaignRepository) Update(ctx context.Context, campaign *models.Campaign) error {
	if campaign.ID == "" || campaign.OwnerID == "" {
		return errors.New("campaign ID and ownerID are required for Update operation")
	}
	_, err := r.Transition(ctx, campaign.OwnerID, campaign.ID, func(stored *models.Campaign) error {
		*stored = *campaign
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to update campaign with ID '%s': %w", campaign.ID, err)
	}
	return nil
}

// Transition reads the campaign, applies fn and writes the result in one transaction.
// An error from fn aborts the write and is returned as is.
func (r *firestoreCampaignRepository) Transition(ctx context.Context, ownerID, campaignID string, fn func(*models.Campaign) error) (*models.Campaign, error) {
	if ownerID == "" || campaignID == "" {
		return nil, errors.New("ownerID and campaignID are required for Transition operation")
	}
	ref := r.collection(ownerID).Doc(campaignID)

	var result models.Campaign
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docSnap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return fmt.Errorf("campaign with ID '%s' not found: %w", campaignID, ErrNotFound)
			}
			return fmt.Errorf("failed to get campaign with ID '%s': %w", campaignID, err)
		}
		var campaign models.Campaign
		if err := docSnap.DataTo(&campaign); err != nil {
			return fmt.Errorf("failed to decode campaign data for ID '%s': %w", campaignID, err)
		}
		campaign.ID = docSnap.Ref.ID
		if err := fn(&campaign); err != nil {
			return err
		}
		campaign.ID = docSnap.Ref.ID
		campaign.OwnerID = ownerID
		result = campaign
		return tx.Set(ref, &campaign)
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Delete removes a campaign document. Stored assets are cleaned up by the service layer.
func (r *firestoreCampaignRepository) Delete(ctx context.Context, ownerID, campaignID string) error {
	if ownerID == "" || campaignID == "" {
		return errors.New("ownerID and campaignID are required for Delete operation")
	}
	_, err := r.collection(ownerID).Doc(campaignID).Delete(ctx, firestore.Exists)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("campaign with ID '%s' not found for deletion: %w", campaignID, ErrNotFound)
		}
		return fmt.Errorf("failed to delete campaign with ID '%s': %w", campaignID, err)
	}
	return nil
}
