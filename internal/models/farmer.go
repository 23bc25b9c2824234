package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// StringList is stored as a JSON array in a TEXT column.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *StringList) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*l = StringList{}
		return nil
	case []byte:
		return json.Unmarshal(v, (*[]string)(l))
	case string:
		return json.Unmarshal([]byte(v), (*[]string)(l))
	default:
		return fmt.Errorf("StringList: Scan failed, unsupported type %T", value)
	}
}

type Farmer struct {
	ID               uuid.UUID  `json:"id" db:"id"`
	PassbookNumber   string     `json:"passbook_number" db:"passbook_number"`
	Name             string     `json:"name" db:"name"`
	Mobile           *string    `json:"mobile,omitempty" db:"mobile"`
	State            *string    `json:"state,omitempty" db:"state"`
	SelectedDistrict *string    `json:"selected_district,omitempty" db:"selected_district"`
	CropsCultivated  StringList `json:"crops_cultivated" db:"crops_cultivated"`
	LandAcres        float64    `json:"land_acres" db:"land_acres"`
	AnnualIncome     float64    `json:"annual_income" db:"annual_income"`
	BankAccount      *string    `json:"bank_account,omitempty" db:"bank_account"`
	IFSCCode         *string    `json:"ifsc_code,omitempty" db:"ifsc_code"`
	BankName         *string    `json:"bank_name,omitempty" db:"bank_name"`
	CreatedAt        int64      `json:"created_at" db:"created_at"`
	UpdatedAt        int64      `json:"updated_at" db:"updated_at"`
}
