package models

import "fmt"

// Address is a backend-owned location record; the client never edits one.
type Address struct {
	ID         int64  `json:"id"`
	Street     string `json:"street"`
	UnitNumber string `json:"unitNumber,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	Zip        string `json:"zip"`
	County     string `json:"county"`
}

// FullAddress renders "street, state, county zip".
func (a Address) FullAddress() string {
	return fmt.Sprintf("%s, %s, %s %s", a.Street, a.State, a.County, a.Zip)
}
