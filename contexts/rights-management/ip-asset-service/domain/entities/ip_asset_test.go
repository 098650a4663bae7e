package entities

import (
	"testing"
	"time"

	domainerrors "ygbackend/contexts/rights-management/ip-asset-service/domain/errors"
)

func TestStatusMachine(t *testing.T) {
	allowed := [][2]AssetStatus{
		{AssetStatusDraft, AssetStatusReview},
		{AssetStatusReview, AssetStatusApproved},
		{AssetStatusReview, AssetStatusRejected},
		{AssetStatusApproved, AssetStatusPublished},
		{AssetStatusRejected, AssetStatusDraft},
		{AssetStatusPublished, AssetStatusArchived},
		{AssetStatusDraft, AssetStatusArchived},
	}
	for _, pair := range allowed {
		if !CanTransition(pair[0], pair[1]) {
			t.Fatalf("expected %s -> %s to be allowed", pair[0], pair[1])
		}
	}
	denied := [][2]AssetStatus{
		{AssetStatusDraft, AssetStatusPublished},
		{AssetStatusPublished, AssetStatusDraft},
		{AssetStatusArchived, AssetStatusDraft},
		{AssetStatusApproved, AssetStatusRejected},
	}
	for _, pair := range denied {
		if CanTransition(pair[0], pair[1]) {
			t.Fatalf("expected %s -> %s to be denied", pair[0], pair[1])
		}
	}
}

func TestValidateOwners(t *testing.T) {
	start := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	before := start.Add(-time.Hour)
	cases := []struct {
		name   string
		owners []Ownership
		valid  bool
	}{
		{"sole owner", SoleOwner("c1", start), true},
		{"split", []Ownership{
			{CreatorID: "c1", ShareBps: 7000, Type: OwnershipPrimary, StartDate: start},
			{CreatorID: "c2", ShareBps: 3000, Type: OwnershipContributor, StartDate: start},
		}, true},
		{"empty", nil, false},
		{"under 100%", []Ownership{{CreatorID: "c1", ShareBps: 9999, Type: OwnershipPrimary}}, false},
		{"duplicate creator", []Ownership{
			{CreatorID: "c1", ShareBps: 5000, Type: OwnershipPrimary},
			{CreatorID: "c1", ShareBps: 5000, Type: OwnershipContributor},
		}, false},
		{"two primaries", []Ownership{
			{CreatorID: "c1", ShareBps: 5000, Type: OwnershipPrimary},
			{CreatorID: "c2", ShareBps: 5000, Type: OwnershipPrimary},
		}, false},
		{"zero share", []Ownership{
			{CreatorID: "c1", ShareBps: 10000, Type: OwnershipPrimary},
			{CreatorID: "c2", ShareBps: 0, Type: OwnershipContributor},
		}, false},
		{"end before start", []Ownership{{CreatorID: "c1", ShareBps: 10000, Type: OwnershipPrimary, StartDate: start, EndDate: &before}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateOwners(tc.owners)
			if tc.valid && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tc.valid && err != domainerrors.ErrInvalidOwnership {
				t.Fatalf("expected invalid ownership, got %v", err)
			}
		})
	}
}

func TestNormalizeTags(t *testing.T) {
	got := NormalizeTags([]string{" Poster", "poster", "", "Print "})
	if len(got) != 2 || got[0] != "poster" || got[1] != "print" {
		t.Fatalf("unexpected tags: %v", got)
	}
}
