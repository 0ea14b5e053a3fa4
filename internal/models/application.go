// internal/models/application.go
package models

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

type ApplicationStatus string

const (
	StatusPending  ApplicationStatus = "pending"
	StatusApproved ApplicationStatus = "approved"
	StatusRejected ApplicationStatus = "rejected"
)

const (
	IncomeSalary       = "Salary"
	IncomeSelfEmployed = "Self-Employed"
	IncomeRental       = "Rental Income"
)

// IncomeTypes lists the accepted incomeType values in display order.
var IncomeTypes = []string{IncomeSalary, IncomeSelfEmployed, IncomeRental}

// LoanApplication is a record as returned by the backend. The ssn is
// write-only on the server and normally comes back empty.
type LoanApplication struct {
	ID                      int64                 `json:"id"`
	FirstName               string                `json:"firstName"`
	LastName                string                `json:"lastName"`
	DateOfBirth             string                `json:"dateOfBirth"`
	SSN                     string                `json:"ssn,omitempty"`
	Email                   string                `json:"email"`
	Phone                   string                `json:"phone"`
	Income                  decimal.NullDecimal   `json:"income"`
	IncomeType              string                `json:"incomeType"`
	RequestedLoanAmount     decimal.Decimal       `json:"requestedLoanAmount"`
	AddressID               int64                 `json:"addressId,omitempty"`
	Address                 *Address              `json:"address,omitempty"`
	Status                  ApplicationStatus     `json:"status"`
	LastApplicationDecision *ApplicationDecision  `json:"lastApplicationDecision,omitempty"`
	ApplicationDecisions    []ApplicationDecision `json:"applicationDecisions,omitempty"`
	CreatedAt               string                `json:"createdAt,omitempty"`
	UpdatedAt               string                `json:"updatedAt,omitempty"`
}

// EffectiveAddressID prefers the explicit id and falls back to the embedded address.
func (a LoanApplication) EffectiveAddressID() int64 {
	if a.AddressID != 0 {
		return a.AddressID
	}
	if a.Address != nil {
		return a.Address.ID
	}
	return 0
}

func (a LoanApplication) FullName() string {
	switch {
	case a.FirstName == "":
		return a.LastName
	case a.LastName == "":
		return a.FirstName
	}
	return a.FirstName + " " + a.LastName
}

// ApplicationInput is the client-writable part of a loan application.
// It has no status field: status is set by the server only.
type ApplicationInput struct {
	FirstName           string           `json:"firstName"`
	LastName            string           `json:"lastName"`
	DateOfBirth         string           `json:"dateOfBirth"`
	SSN                 string           `json:"ssn"`
	Email               string           `json:"email"`
	Phone               string           `json:"phone"`
	Income              *decimal.Decimal `json:"income"`
	IncomeType          string           `json:"incomeType"`
	RequestedLoanAmount *decimal.Decimal `json:"requestedLoanAmount"`
	AddressID           int64            `json:"addressId,omitempty"`
}

// MarshalJSON adds the "address":{"id":N} reference the backend binds on.
func (in ApplicationInput) MarshalJSON() ([]byte, error) {
	type plain ApplicationInput
	if in.AddressID == 0 {
		return json.Marshal(plain(in))
	}
	return json.Marshal(struct {
		plain
		Address addressRef `json:"address"`
	}{plain(in), addressRef{ID: in.AddressID}})
}

type addressRef struct {
	ID int64 `json:"id"`
}

// InputFromApplication copies the writable fields of a record, for edit forms.
func InputFromApplication(a LoanApplication) ApplicationInput {
	in := ApplicationInput{
		FirstName:   a.FirstName,
		LastName:    a.LastName,
		DateOfBirth: a.DateOfBirth,
		SSN:         a.SSN,
		Email:       a.Email,
		Phone:       a.Phone,
		IncomeType:  a.IncomeType,
		AddressID:   a.EffectiveAddressID(),
	}
	if a.Income.Valid {
		income := a.Income.Decimal
		in.Income = &income
	}
	amount := a.RequestedLoanAmount
	in.RequestedLoanAmount = &amount
	return in
}
