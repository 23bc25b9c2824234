package models

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

func trimAndValidateString(str string, fieldName string, minLen, maxLen int) error {
	trimmed := strings.TrimSpace(str)
	if len(trimmed) < minLen {
		return fmt.Errorf("%s must be at least %d characters", fieldName, minLen)
	}
	if len(trimmed) > maxLen {
		return fmt.Errorf("%s must be %d characters or less", fieldName, maxLen)
	}
	return nil
}

var passbookPattern = regexp.MustCompile(`^\d{10}$`)

// ============================================================================
// FARMERS
// ============================================================================

type RegisterFarmerRequest struct {
	Name             string   `json:"name"`
	Mobile           *string  `json:"mobile,omitempty"`
	State            *string  `json:"state,omitempty"`
	SelectedDistrict *string  `json:"selected_district,omitempty"`
	CropsCultivated  []string `json:"crops_cultivated"`
	LandAcres        float64  `json:"land_acres"`
	AnnualIncome     float64  `json:"annual_income"`
	BankAccount      *string  `json:"bank_account,omitempty"`
	IFSCCode         *string  `json:"ifsc_code,omitempty"`
	BankName         *string  `json:"bank_name,omitempty"`
}

func (r RegisterFarmerRequest) Validate() error {
	if err := trimAndValidateString(r.Name, "name", 1, 200); err != nil {
		return err
	}
	if r.LandAcres < 0 {
		return errors.New("land_acres must be 0 or greater")
	}
	if r.AnnualIncome < 0 {
		return errors.New("annual_income must be 0 or greater")
	}
	return nil
}

type UpdateFarmerRequest struct {
	Name             *string  `json:"name,omitempty"`
	Mobile           *string  `json:"mobile,omitempty"`
	State            *string  `json:"state,omitempty"`
	SelectedDistrict *string  `json:"selected_district,omitempty"`
	CropsCultivated  []string `json:"crops_cultivated,omitempty"`
	LandAcres        *float64 `json:"land_acres,omitempty"`
	AnnualIncome     *float64 `json:"annual_income,omitempty"`
	BankAccount      *string  `json:"bank_account,omitempty"`
	IFSCCode         *string  `json:"ifsc_code,omitempty"`
	BankName         *string  `json:"bank_name,omitempty"`
}

func (r UpdateFarmerRequest) Validate() error {
	if r.Name != nil {
		if err := trimAndValidateString(*r.Name, "name", 1, 200); err != nil {
			return err
		}
	}
	if r.LandAcres != nil && *r.LandAcres < 0 {
		return errors.New("land_acres must be 0 or greater")
	}
	if r.AnnualIncome != nil && *r.AnnualIncome < 0 {
		return errors.New("annual_income must be 0 or greater")
	}
	return nil
}

type FarmerLookupRequest struct {
	PassbookNumber string `json:"passbook_number"`
	Name           string `json:"name"`
}

func (r FarmerLookupRequest) Validate() error {
	if !passbookPattern.MatchString(strings.TrimSpace(r.PassbookNumber)) {
		return errors.New("passbook_number must be 10 digits")
	}
	return trimAndValidateString(r.Name, "name", 1, 200)
}

// ============================================================================
// CROP ALLOCATIONS
// ============================================================================

type AllocateCropRequest struct {
	FarmerID uuid.UUID `json:"farmer_id"`
	CropName string    `json:"crop_name"`
	Acres    float64   `json:"acres"`
}

func (r AllocateCropRequest) Validate() error {
	if r.FarmerID == uuid.Nil {
		return errors.New("farmer_id is required")
	}
	if err := trimAndValidateString(r.CropName, "crop_name", 1, 100); err != nil {
		return err
	}
	if r.Acres <= 0 {
		return errors.New("acres must be greater than 0")
	}
	return nil
}

type HarvestRequest struct {
	Quantity float64 `json:"quantity"`
}

func (r HarvestRequest) Validate() error {
	if r.Quantity <= 0 {
		return errors.New("quantity must be greater than 0")
	}
	return nil
}

// ============================================================================
// LOGISTICS PROVIDERS
// ============================================================================

// MaxProviderRating is the top of the 0..5 rating scale.
const MaxProviderRating = 5.0

type RegisterLogisticsProviderRequest struct {
	CompanyName       string  `json:"company_name"`
	LicenseNumber     string  `json:"license_number"`
	ContactPerson     *string `json:"contact_person,omitempty"`
	Phone             *string `json:"phone,omitempty"`
	Email             *string `json:"email,omitempty"`
	State             string  `json:"state"`
	District          string  `json:"district"`
	AvailableVehicles int     `json:"available_vehicles"`
	Rating            float64 `json:"rating"`
}

func (r RegisterLogisticsProviderRequest) Validate() error {
	if err := trimAndValidateString(r.CompanyName, "company_name", 1, 200); err != nil {
		return err
	}
	if err := trimAndValidateString(r.LicenseNumber, "license_number", 1, 100); err != nil {
		return err
	}
	if err := trimAndValidateString(r.State, "state", 1, 100); err != nil {
		return err
	}
	if err := trimAndValidateString(r.District, "district", 1, 100); err != nil {
		return err
	}
	if r.AvailableVehicles < 0 {
		return errors.New("available_vehicles must be 0 or greater")
	}
	if r.Rating < 0 || r.Rating > MaxProviderRating {
		return fmt.Errorf("rating must be between 0 and %.0f", MaxProviderRating)
	}
	return nil
}

type UpdateLogisticsProviderRequest struct {
	CompanyName       *string  `json:"company_name,omitempty"`
	ContactPerson     *string  `json:"contact_person,omitempty"`
	Phone             *string  `json:"phone,omitempty"`
	Email             *string  `json:"email,omitempty"`
	State             *string  `json:"state,omitempty"`
	District          *string  `json:"district,omitempty"`
	AvailableVehicles *int     `json:"available_vehicles,omitempty"`
	Rating            *float64 `json:"rating,omitempty"`
}

func (r UpdateLogisticsProviderRequest) Validate() error {
	if r.CompanyName != nil {
		if err := trimAndValidateString(*r.CompanyName, "company_name", 1, 200); err != nil {
			return err
		}
	}
	if r.State != nil {
		if err := trimAndValidateString(*r.State, "state", 1, 100); err != nil {
			return err
		}
	}
	if r.District != nil {
		if err := trimAndValidateString(*r.District, "district", 1, 100); err != nil {
			return err
		}
	}
	if r.AvailableVehicles != nil && *r.AvailableVehicles < 0 {
		return errors.New("available_vehicles must be 0 or greater")
	}
	if r.Rating != nil && (*r.Rating < 0 || *r.Rating > MaxProviderRating) {
		return fmt.Errorf("rating must be between 0 and %.0f", MaxProviderRating)
	}
	return nil
}

// ============================================================================
// STORAGE FACILITIES
// ============================================================================

type CreateFacilityRequest struct {
	Name     string  `json:"name"`
	State    string  `json:"state"`
	District string  `json:"district"`
	Capacity float64 `json:"capacity"`
}

func (r CreateFacilityRequest) Validate() error {
	if err := trimAndValidateString(r.Name, "name", 1, 200); err != nil {
		return err
	}
	if err := trimAndValidateString(r.State, "state", 1, 100); err != nil {
		return err
	}
	if err := trimAndValidateString(r.District, "district", 1, 100); err != nil {
		return err
	}
	if r.Capacity <= 0 {
		return errors.New("capacity must be greater than 0")
	}
	return nil
}

type UpdateFacilityStatusRequest struct {
	Status FacilityStatus `json:"status"`
}

func (r UpdateFacilityStatusRequest) Validate() error {
	if !r.Status.Valid() {
		return fmt.Errorf("invalid facility status=%s", r.Status)
	}
	return nil
}

type FacilityFilters struct {
	State    string
	District string
	Status   FacilityStatus
}

// ============================================================================
// STORAGE REQUESTS
// ============================================================================

// SubmitStorageRequestRequest is filed by the farmer. Over HTTP FarmerID is
// taken from X-User-ID; a farmer_id in the body must agree with it.
type SubmitStorageRequestRequest struct {
	FarmerID          uuid.UUID `json:"farmer_id,omitempty"`
	StorageFacilityID uuid.UUID `json:"storage_facility_id"`
	CropAllocationID  uuid.UUID `json:"crop_allocation_id"`
	Quantity          float64   `json:"quantity"`
}

func (r SubmitStorageRequestRequest) Validate() error {
	if r.FarmerID == uuid.Nil {
		return errors.New("farmer_id is required")
	}
	if r.StorageFacilityID == uuid.Nil {
		return errors.New("storage_facility_id is required")
	}
	if r.CropAllocationID == uuid.Nil {
		return errors.New("crop_allocation_id is required")
	}
	if r.Quantity <= 0 {
		return errors.New("quantity must be greater than 0")
	}
	return nil
}

type StorageRequestFilters struct {
	FarmerID        *uuid.UUID
	FacilityID      *uuid.UUID
	Status          *RequestStatus
	PaymentStatus   *PaymentStatus
	LogisticsStatus *LogisticsStatus
}

// ============================================================================
// MARKETPLACE
// ============================================================================

type PlaceOrderRequest struct {
	CropType string  `json:"crop_type"`
	Quantity float64 `json:"quantity"`
}

func (r PlaceOrderRequest) Validate() error {
	if err := trimAndValidateString(r.CropType, "crop_type", 1, 100); err != nil {
		return err
	}
	if r.Quantity <= 0 {
		return errors.New("quantity must be greater than 0")
	}
	return nil
}
