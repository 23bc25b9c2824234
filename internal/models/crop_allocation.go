package models

import "github.com/google/uuid"

type CropAllocation struct {
	ID              uuid.UUID        `json:"id" db:"id"`
	FarmerID        uuid.UUID        `json:"farmer_id" db:"farmer_id"`
	CropName        string           `json:"crop_name" db:"crop_name"`
	AllocatedAcres  float64          `json:"allocated_acres" db:"allocated_acres"`
	Status          AllocationStatus `json:"status" db:"status"`
	HarvestQuantity *float64         `json:"harvest_quantity,omitempty" db:"harvest_quantity"`
	HarvestDate     *int64           `json:"harvest_date,omitempty" db:"harvest_date"`
	ExpiryDate      *int64           `json:"expiry_date,omitempty" db:"expiry_date"`
	IsAreaFree      bool             `json:"is_area_free" db:"is_area_free"`
	CreatedAt       int64            `json:"created_at" db:"created_at"`
	UpdatedAt       int64            `json:"updated_at" db:"updated_at"`
}

type LandSummary struct {
	FarmerID       uuid.UUID `json:"farmer_id"`
	LandAcres      float64   `json:"land_acres"`
	OccupiedAcres  float64   `json:"occupied_acres"`
	RemainingAcres float64   `json:"remaining_acres"`
}
