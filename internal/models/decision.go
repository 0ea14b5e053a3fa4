package models

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

const (
	DecisionEligible = "eligible"
	DecisionDecline  = "decline"
)

// ApplicationDecision is one decision-service outcome stored against an
// application. Request and Response hold the raw JSON documents exchanged
// with the decision service.
type ApplicationDecision struct {
	ID             int64           `json:"id"`
	Decision       string          `json:"decision"`
	Request        json.RawMessage `json:"request,omitempty"`
	Response       json.RawMessage `json:"response,omitempty"`
	FundingOptions []FundingOption `json:"fundingOptions,omitempty"`
	CreatedAt      string          `json:"createdAt,omitempty"`
	UpdatedAt      string          `json:"updatedAt,omitempty"`
}

func (d ApplicationDecision) Eligible() bool {
	return d.Decision == DecisionEligible
}

// FundingOption is one financing offer from an eligible decision.
type FundingOption struct {
	Years        int             `json:"years"`
	InterestRate decimal.Decimal `json:"interestRate"`
	EMI          decimal.Decimal `json:"emi"`
}
