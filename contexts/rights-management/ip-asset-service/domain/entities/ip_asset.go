package entities

import (
	"strings"
	"time"
	"unicode/utf8"
)

type AssetType string

const (
	AssetTypeImage  AssetType = "image"
	AssetTypeVideo  AssetType = "video"
	AssetTypeAudio  AssetType = "audio"
	AssetTypeText   AssetType = "text"
	AssetTypeDesign AssetType = "design"
	AssetTypeOther  AssetType = "other"
)

func (t AssetType) Valid() bool {
	switch t {
	case AssetTypeImage, AssetTypeVideo, AssetTypeAudio, AssetTypeText, AssetTypeDesign, AssetTypeOther:
		return true
	}
	return false
}

type AssetStatus string

const (
	AssetStatusDraft     AssetStatus = "draft"
	AssetStatusReview    AssetStatus = "review"
	AssetStatusApproved  AssetStatus = "approved"
	AssetStatusRejected  AssetStatus = "rejected"
	AssetStatusPublished AssetStatus = "published"
	AssetStatusArchived  AssetStatus = "archived"
)

const (
	MaxTitleLength = 200
	MaxTags        = 20
)

var transitions = map[AssetStatus][]AssetStatus{
	AssetStatusDraft:     {AssetStatusReview, AssetStatusArchived},
	AssetStatusReview:    {AssetStatusApproved, AssetStatusRejected, AssetStatusArchived},
	AssetStatusApproved:  {AssetStatusPublished, AssetStatusArchived},
	AssetStatusRejected:  {AssetStatusDraft, AssetStatusArchived},
	AssetStatusPublished: {AssetStatusArchived},
}

// CanTransition reports whether the status machine allows from -> to.
func CanTransition(from AssetStatus, to AssetStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// RequiresAdmin is true for moderation outcomes.
func RequiresAdmin(to AssetStatus) bool {
	return to == AssetStatusApproved || to == AssetStatusRejected
}

type IPAsset struct {
	AssetID     string
	Title       string
	Description string
	Type        AssetType
	Status      AssetStatus
	CreatedBy   string
	MediaID     string
	Tags        []string
	Owners      []Ownership
	Version     int
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   *time.Time
}

func (a IPAsset) Editable() bool {
	switch a.Status {
	case AssetStatusDraft, AssetStatusReview, AssetStatusRejected:
		return a.DeletedAt == nil
	}
	return false
}

func (a IPAsset) Deletable() bool {
	return a.DeletedAt == nil && (a.Status == AssetStatusDraft || a.Status == AssetStatusRejected)
}

// ValidateBasics checks the fields every stored asset must carry.
func (a IPAsset) ValidateBasics() bool {
	title := strings.TrimSpace(a.Title)
	if title == "" || utf8.RuneCountInString(title) > MaxTitleLength {
		return false
	}
	if !a.Type.Valid() || strings.TrimSpace(a.CreatedBy) == "" {
		return false
	}
	return len(a.Tags) <= MaxTags
}

// NormalizeTags lowercases, trims and de-duplicates tags keeping order.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
