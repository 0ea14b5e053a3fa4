package models

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestApplicationInput_MarshalJSON(t *testing.T) {
	income := decimal.RequireFromString("85000.50")
	amount := decimal.RequireFromString("250000")
	in := ApplicationInput{
		FirstName:           "Jane",
		LastName:            "Doe",
		DateOfBirth:         "1990-04-01",
		SSN:                 "123-45-6789",
		Email:               "jane@example.com",
		Phone:               "555-0100",
		Income:              &income,
		IncomeType:          IncomeSalary,
		RequestedLoanAmount: &amount,
		AddressID:           42,
	}

	raw, err := json.Marshal(in)
	require.NoError(t, err)

	doc := gjson.ParseBytes(raw)
	assert.Equal(t, int64(42), doc.Get("addressId").Int())
	assert.Equal(t, int64(42), doc.Get("address.id").Int())
	assert.Equal(t, gjson.Number, doc.Get("income").Type)
	assert.Equal(t, "85000.5", doc.Get("income").Raw)
	assert.Equal(t, "250000", doc.Get("requestedLoanAmount").Raw)
	assert.False(t, doc.Get("status").Exists())
}

func TestApplicationInput_MarshalJSON_NoAddress(t *testing.T) {
	raw, err := json.Marshal(ApplicationInput{FirstName: "Jane"})
	require.NoError(t, err)

	doc := gjson.ParseBytes(raw)
	assert.False(t, doc.Get("address").Exists())
	assert.False(t, doc.Get("addressId").Exists())
	assert.Equal(t, gjson.Null, doc.Get("income").Type)
}

func TestLoanApplication_DecodeBackendShape(t *testing.T) {
	body := `{
		"id": 7, "firstName": "Jane", "lastName": "Doe", "dateOfBirth": "1990-04-01",
		"email": "jane@example.com", "phone": "555-0100", "income": null,
		"incomeType": "Salary", "requestedLoanAmount": 250000.0, "status": "approved",
		"address": {"id": 42, "street": "1 Main St", "state": "CA", "county": "Alameda", "zip": "94501"},
		"lastApplicationDecision": {"id": 3, "decision": "eligible", "response": "{\"final_decision\":\"eligible\"}"},
		"createdAt": "2024-01-02T03:04:05"
	}`

	var app LoanApplication
	require.NoError(t, json.Unmarshal([]byte(body), &app))

	assert.Equal(t, int64(42), app.EffectiveAddressID())
	assert.False(t, app.Income.Valid)
	assert.True(t, app.RequestedLoanAmount.Equal(decimal.NewFromInt(250000)))
	assert.Equal(t, StatusApproved, app.Status)
	require.NotNil(t, app.LastApplicationDecision)
	assert.True(t, app.LastApplicationDecision.Eligible())
	assert.Equal(t, "Jane Doe", app.FullName())

	in := InputFromApplication(app)
	assert.Equal(t, int64(42), in.AddressID)
	assert.Nil(t, in.Income)
}

func TestAddress_FullAddress(t *testing.T) {
	a := Address{Street: "1 Main St", State: "CA", County: "Alameda", Zip: "94501"}
	assert.Equal(t, "1 Main St, CA, Alameda 94501", a.FullAddress())
}

func TestPage_Navigation(t *testing.T) {
	p := Page[int]{Content: []int{1, 2}, Number: 2, TotalPages: 5}

	assert.Equal(t, 3, p.DisplayNumber())
	assert.Equal(t, 3, p.NextIndex())
	assert.Equal(t, 1, p.PrevIndex())
	assert.True(t, p.HasNext())
	assert.True(t, p.HasPrev())

	first := SinglePage[int](nil)
	assert.Equal(t, 1, first.DisplayNumber())
	assert.Equal(t, 0, first.PrevIndex())
	assert.False(t, first.HasNext())
	assert.False(t, first.HasPrev())
	assert.NotNil(t, first.Content)
}

func TestDashboard_KeepsUnknownFields(t *testing.T) {
	body := `{"recentApplications":[{"id":1}],"statistics":{"total":4,"pending":2,"approved":1,"rejected":1},"weeklyTrend":[1,2,3]}`

	var d Dashboard
	require.NoError(t, json.Unmarshal([]byte(body), &d))

	assert.Len(t, d.RecentApplications, 1)
	assert.Equal(t, int64(4), d.Statistics.Total)
	assert.JSONEq(t, `[1,2,3]`, string(d.Extra["weeklyTrend"]))
}

func TestParseMoney(t *testing.T) {
	m, err := ParseMoney("")
	require.NoError(t, err)
	assert.Nil(t, m)

	m, err = ParseMoney("1200.25")
	require.NoError(t, err)
	assert.Equal(t, "1200.25", m.String())

	_, err = ParseMoney("twelve")
	assert.Error(t, err)
}
