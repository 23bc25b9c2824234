package models

type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
)

type LogisticsStatus string

const (
	LogisticsPending   LogisticsStatus = "pending"
	LogisticsRequested LogisticsStatus = "requested"
	LogisticsInTransit LogisticsStatus = "in_transit"
	LogisticsDelivered LogisticsStatus = "delivered"
)

type FacilityStatus string

const (
	FacilityActive   FacilityStatus = "active"
	FacilityInactive FacilityStatus = "inactive"
)

func (s FacilityStatus) Valid() bool {
	return s == FacilityActive || s == FacilityInactive
}

type AllocationStatus string

const (
	AllocationAllocated AllocationStatus = "allocated"
	AllocationHarvested AllocationStatus = "harvested"
	AllocationStored    AllocationStatus = "stored"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderCompleted OrderStatus = "completed"
	OrderCancelled OrderStatus = "cancelled"
)
