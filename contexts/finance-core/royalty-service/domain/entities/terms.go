package entities

import "time"

const MaxBps = 10000

// LicenseTerms is the royalty-relevant projection of a license.
type LicenseTerms struct {
	LicenseID   string
	IPAssetID   string
	LicensorID  string
	RevShareBps int
	Version     int
	UpdatedAt   time.Time
}

type OwnerShare struct {
	CreatorID string
	ShareBps  int
}

// Ownership is the projection of an asset's owner splits.
type Ownership struct {
	IPAssetID string
	Owners    []OwnerShare
	Version   int
	UpdatedAt time.Time
}

func (o Ownership) TotalBps() int {
	total := 0
	for _, owner := range o.Owners {
		total += owner.ShareBps
	}
	return total
}
