package models

import (
	"fmt"

	"github.com/google/uuid"
)

type StorageRequest struct {
	ID                  uuid.UUID        `json:"id" db:"id"`
	FarmerID            uuid.UUID        `json:"farmer_id" db:"farmer_id"`
	StorageFacilityID   uuid.UUID        `json:"storage_facility_id" db:"storage_facility_id"`
	CropAllocationID    *uuid.UUID       `json:"crop_allocation_id,omitempty" db:"crop_allocation_id"`
	CropType            string           `json:"crop_type" db:"crop_type"`
	Quantity            float64          `json:"quantity" db:"quantity"`
	Status              RequestStatus    `json:"status" db:"status"`
	PaymentStatus       *PaymentStatus   `json:"payment_status" db:"payment_status"`
	PaymentAmount       *float64         `json:"payment_amount" db:"payment_amount"`
	TaxAmount           *float64         `json:"tax_amount,omitempty" db:"tax_amount"`
	NetAmount           *float64         `json:"net_amount,omitempty" db:"net_amount"`
	PaymentReference    *string          `json:"payment_reference,omitempty" db:"payment_reference"`
	PaymentDate         *int64           `json:"payment_date,omitempty" db:"payment_date"`
	LogisticsStatus     *LogisticsStatus `json:"logistics_status" db:"logistics_status"`
	LogisticsProviderID *string          `json:"logistics_provider_id,omitempty" db:"logistics_provider_id"`
	DeliveredAt         *int64           `json:"delivered_at,omitempty" db:"delivered_at"`
	InventoryCleared    bool             `json:"inventory_cleared" db:"inventory_cleared"`
	CreatedAt           int64            `json:"created_at" db:"created_at"`
	UpdatedAt           int64            `json:"updated_at" db:"updated_at"`
}

// QuantityTons is the facility space the request occupies.
func (r *StorageRequest) QuantityTons() float64 {
	return r.Quantity / KgPerTon
}

// Stage is the composite lifecycle position of a storage request.
type Stage int

const (
	StageSubmitted Stage = iota
	StageApproved
	StagePaid
	StageLogisticsRequested
	StageInTransit
	StageDelivered
	StageRejected
)

var stageNames = map[Stage]string{
	StageSubmitted:          "submitted",
	StageApproved:           "approved",
	StagePaid:               "paid",
	StageLogisticsRequested: "logistics_requested",
	StageInTransit:          "in_transit",
	StageDelivered:          "delivered",
	StageRejected:           "rejected",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// Stage maps the three status columns onto the total order
// submitted < approved < paid < logistics_requested < in_transit < delivered,
// with rejected as a terminal side branch. Any other combination is invalid.
func (r *StorageRequest) Stage() (Stage, error) {
	payment := ""
	if r.PaymentStatus != nil {
		payment = string(*r.PaymentStatus)
	}
	logistics := ""
	if r.LogisticsStatus != nil {
		logistics = string(*r.LogisticsStatus)
	}

	switch r.Status {
	case RequestPending:
		if payment == "" && logistics == "" {
			return StageSubmitted, nil
		}
	case RequestRejected:
		if payment == "" && logistics == "" {
			return StageRejected, nil
		}
	case RequestApproved:
		switch {
		case payment == string(PaymentPending) && logistics == "":
			return StageApproved, nil
		case payment == string(PaymentPaid):
			switch LogisticsStatus(logistics) {
			case LogisticsPending:
				return StagePaid, nil
			case LogisticsRequested:
				return StageLogisticsRequested, nil
			case LogisticsInTransit:
				return StageInTransit, nil
			case LogisticsDelivered:
				return StageDelivered, nil
			}
		}
	}
	return 0, fmt.Errorf("%w: inconsistent state status=%s payment_status=%q logistics_status=%q",
		ErrInvalidTransition, r.Status, payment, logistics)
}

// DeliveryResult is returned by markDelivered; Warning is set when the
// harvest ledger could not be reconciled.
type DeliveryResult struct {
	Request            *StorageRequest `json:"request"`
	ReconciledBatchID  *uuid.UUID      `json:"reconciled_batch_id,omitempty"`
	RemainingHarvestKg *float64        `json:"remaining_harvest_kg,omitempty"`
	Warning            string          `json:"warning,omitempty"`
}
