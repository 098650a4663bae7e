package entities

import (
	"strings"
	"time"

	domainerrors "ygbackend/contexts/rights-management/ip-asset-service/domain/errors"
)

type OwnershipType string

const (
	OwnershipPrimary     OwnershipType = "primary"
	OwnershipContributor OwnershipType = "contributor"
	OwnershipDerivative  OwnershipType = "derivative"
)

const (
	FullShareBps = 10000
	MaxOwners    = 20
)

type Ownership struct {
	CreatorID string
	ShareBps  int
	Type      OwnershipType
	StartDate time.Time
	EndDate   *time.Time
}

// SoleOwner is the split a new asset starts with.
func SoleOwner(creatorID string, start time.Time) []Ownership {
	return []Ownership{{
		CreatorID: creatorID,
		ShareBps:  FullShareBps,
		Type:      OwnershipPrimary,
		StartDate: start,
	}}
}

// ValidateOwners enforces that shares cover exactly 100% with one primary
// owner and no creator listed twice.
func ValidateOwners(owners []Ownership) error {
	if len(owners) == 0 || len(owners) > MaxOwners {
		return domainerrors.ErrInvalidOwnership
	}
	seen := make(map[string]struct{}, len(owners))
	total := 0
	primaries := 0
	for _, owner := range owners {
		creator := strings.TrimSpace(owner.CreatorID)
		if creator == "" {
			return domainerrors.ErrInvalidOwnership
		}
		if _, dup := seen[creator]; dup {
			return domainerrors.ErrInvalidOwnership
		}
		seen[creator] = struct{}{}
		if owner.ShareBps < 1 || owner.ShareBps > FullShareBps {
			return domainerrors.ErrInvalidOwnership
		}
		switch owner.Type {
		case OwnershipPrimary:
			primaries++
		case OwnershipContributor, OwnershipDerivative:
		default:
			return domainerrors.ErrInvalidOwnership
		}
		if owner.EndDate != nil && !owner.EndDate.After(owner.StartDate) {
			return domainerrors.ErrInvalidOwnership
		}
		total += owner.ShareBps
	}
	if total != FullShareBps || primaries != 1 {
		return domainerrors.ErrInvalidOwnership
	}
	return nil
}
