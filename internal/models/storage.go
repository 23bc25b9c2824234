package models

import (
	"github.com/google/uuid"
)

// ============================================================================
// STORAGE FACILITIES & INVENTORY
// ============================================================================

// KgPerTon converts request quantities (kg) into facility space (tons).
const KgPerTon = 1000.0

// SpaceEpsilon is the tolerance, in tons, for facility space arithmetic.
// One gram. A request fits when it exceeds the space left by less than this,
// and a remainder below it is stored as zero.
const SpaceEpsilon = 1e-6

// FitsSpace reports whether tons fit into available tons of facility space.
func FitsSpace(tons, available float64) bool {
	return tons <= available+SpaceEpsilon
}

type StorageFacility struct {
	ID             uuid.UUID      `json:"id" db:"id"`
	Name           string         `json:"name" db:"name"`
	State          string         `json:"state" db:"state"`
	District       string         `json:"district" db:"district"`
	Capacity       float64        `json:"capacity" db:"capacity"`
	AvailableSpace float64        `json:"available_space" db:"available_space"`
	Status         FacilityStatus `json:"status" db:"status"`
	CreatedBy      string         `json:"created_by" db:"created_by"`
	CreatedAt      int64          `json:"created_at" db:"created_at"`
	UpdatedAt      int64          `json:"updated_at" db:"updated_at"`
}

type StorageInventory struct {
	ID         uuid.UUID `json:"id" db:"id"`
	FacilityID uuid.UUID `json:"facility_id" db:"facility_id"`
	CropType   string    `json:"crop_type" db:"crop_type"`
	Quantity   float64   `json:"quantity" db:"quantity"`
	CreatedAt  int64     `json:"created_at" db:"created_at"`
	UpdatedAt  int64     `json:"updated_at" db:"updated_at"`
}

type FacilityInventory struct {
	Facility     StorageFacility    `json:"facility"`
	Items        []StorageInventory `json:"items"`
	CurrentStock float64            `json:"current_stock"`
}

// SpaceAudit compares the maintained available_space counter with the value
// recomputed from the request log.
type SpaceAudit struct {
	FacilityID        uuid.UUID `json:"facility_id"`
	Capacity          float64   `json:"capacity"`
	AvailableSpace    float64   `json:"available_space"`
	ReservedTons      float64   `json:"reserved_tons"`
	DeliveredTons     float64   `json:"delivered_tons"`
	ExpectedAvailable float64   `json:"expected_available"`
	Drift             float64   `json:"drift"`
}

func (a SpaceAudit) Consistent() bool {
	return a.Drift < SpaceEpsilon && a.Drift > -SpaceEpsilon
}
