package dbtypes

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// PayoutDetails is the jsonb bank destination a host withdraws to. The UPI id
// is an optional alternative rail.
type PayoutDetails struct {
	HolderName    string  `json:"holder_name"`
	AccountNumber string  `json:"account_number"`
	IFSC          string  `json:"ifsc"`
	BankName      string  `json:"bank_name"`
	UPIID         *string `json:"upi_id,omitempty"`
}

// IsZero reports whether no payout destination has been captured.
func (p PayoutDetails) IsZero() bool {
	return strings.TrimSpace(p.AccountNumber) == "" &&
		(p.UPIID == nil || strings.TrimSpace(*p.UPIID) == "")
}

// Value marshals PayoutDetails into jsonb.
func (p PayoutDetails) Value() (driver.Value, error) {
	return json.Marshal(p)
}

// Scan decodes a jsonb column into PayoutDetails.
func (p *PayoutDetails) Scan(value interface{}) error {
	if value == nil {
		*p = PayoutDetails{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, p)
	case string:
		return json.Unmarshal([]byte(v), p)
	default:
		return fmt.Errorf("PayoutDetails: unsupported Scan type %T", value)
	}
}
