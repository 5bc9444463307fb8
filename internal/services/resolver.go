package services

import (
	"context"

	"sms-gateway-dashboard/internal/db"
	"sms-gateway-dashboard/internal/models"
	"sms-gateway-dashboard/internal/phone"
)

// Resolver links a raw phone number from the device to a participant
type Resolver struct {
	participants db.ParticipantRepository
}

// NewResolver creates a resolver over the participant table
func NewResolver(participants db.ParticipantRepository) *Resolver {
	return &Resolver{participants: participants}
}

// Resolve matches on the last 10 digits of raw against punctuation-free
// stored phones. Collisions are not disambiguated: the oldest participant
// wins. nil means no match or no digits in raw.
func (r *Resolver) Resolve(ctx context.Context, raw string) (*models.Participant, error) {
	digits := phone.Last10(raw)
	if digits == "" {
		return nil, nil
	}
	return r.participants.FindByPhoneSuffix(ctx, digits)
}

// ResolveID is Resolve reduced to a nullable id
func (r *Resolver) ResolveID(ctx context.Context, raw string) (*int64, error) {
	p, err := r.Resolve(ctx, raw)
	if err != nil || p == nil {
		return nil, err
	}
	id := p.ID
	return &id, nil
}
