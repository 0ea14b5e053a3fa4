package models

import "encoding/json"

type Statistics struct {
	Total    int64 `json:"total"`
	Pending  int64 `json:"pending"`
	Approved int64 `json:"approved"`
	Rejected int64 `json:"rejected"`
}

// Dashboard is the summary view. Fields the client does not model are kept
// in Extra so they can still be rendered.
type Dashboard struct {
	RecentApplications []LoanApplication          `json:"recentApplications"`
	Statistics         Statistics                 `json:"statistics"`
	Extra              map[string]json.RawMessage `json:"-"`
}

func (d *Dashboard) UnmarshalJSON(data []byte) error {
	type plain Dashboard
	var known plain
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	delete(all, "recentApplications")
	delete(all, "statistics")
	if len(all) == 0 {
		all = nil
	}
	*d = Dashboard(known)
	d.Extra = all
	return nil
}
