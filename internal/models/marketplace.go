package models

import "github.com/google/uuid"

type CropMSP struct {
	CropName string  `json:"crop_name" db:"crop_name"`
	MSPPrice float64 `json:"msp_price" db:"msp_price"`
}

type MarketplaceOrder struct {
	ID              uuid.UUID   `json:"id" db:"id"`
	BuyerID         string      `json:"buyer_id" db:"buyer_id"`
	CropType        string      `json:"crop_type" db:"crop_type"`
	Quantity        float64     `json:"quantity" db:"quantity"`
	BasePrice       float64     `json:"base_price" db:"base_price"`
	TransportCharge float64     `json:"transport_charge" db:"transport_charge"`
	GST             float64     `json:"gst" db:"gst"`
	TotalPrice      float64     `json:"total_price" db:"total_price"`
	Status          OrderStatus `json:"status" db:"status"`
	CreatedAt       int64       `json:"created_at" db:"created_at"`
	UpdatedAt       int64       `json:"updated_at" db:"updated_at"`
}

type ProductFacility struct {
	FacilityID   uuid.UUID `json:"facility_id" db:"facility_id"`
	FacilityName string    `json:"facility_name" db:"facility_name"`
	Quantity     float64   `json:"quantity" db:"quantity"`
}

type Product struct {
	CropType          string            `json:"crop_type"`
	MSP               float64           `json:"msp"`
	TotalQuantity     float64           `json:"total_quantity"`
	OrderedQuantity   float64           `json:"ordered_quantity"`
	AvailableQuantity float64           `json:"available_quantity"`
	Facilities        []ProductFacility `json:"facilities"`
}

// CropStock is delivered, uncleared kg of one crop held at one facility.
type CropStock struct {
	CropType     string    `db:"crop_type"`
	FacilityID   uuid.UUID `db:"facility_id"`
	FacilityName string    `db:"facility_name"`
	Quantity     float64   `db:"quantity"`
}
