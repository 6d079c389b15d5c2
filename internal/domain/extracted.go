package domain

import (
	"bytes"
	"encoding/json"
	"strings"
)

// ExtractedData holds the fields an AI extraction run returned for a document.
// Values are kept verbatim; dates are DD-MM-YYYY strings as produced by the model.
type ExtractedData struct {
	DepositAmount LooseString `json:"deposit_amount,omitempty"`
	MaturityValue LooseString `json:"maturity_value,omitempty"`
	MaturityDate  LooseString `json:"maturity_date,omitempty"`
	DateOfDeposit LooseString `json:"date_of_deposit,omitempty"`
	AccountNo     LooseString `json:"account_no,omitempty"`
	FDRNumber     LooseString `json:"fdr_number,omitempty"`
	AccountName   LooseString `json:"account_name,omitempty"`
	BankName      LooseString `json:"bank_name,omitempty"`
	RawText       string      `json:"raw_text,omitempty"`
}

// LooseString accepts a JSON string, number, boolean or null.
// Model output is untrusted and mixes quoted and bare numbers.
type LooseString string

func (s *LooseString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = LooseString(strings.TrimSpace(v))
		return nil
	}
	if data[0] == '{' || data[0] == '[' {
		// Nested values are not meaningful for a scalar field.
		*s = ""
		return nil
	}
	*s = LooseString(string(data))
	return nil
}

func (s LooseString) String() string { return string(s) }
