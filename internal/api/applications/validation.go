package applications

import (
	"encoding/json"
	"fmt"

	"loan-console/internal/common/errors"
	"loan-console/internal/common/validation"
	"loan-console/internal/models"

	"github.com/shopspring/decimal"
)

// RequiredFields are the form fields that must be filled in, in form order.
var RequiredFields = []string{
	"firstName", "lastName", "dateOfBirth", "ssn", "email",
	"phone", "income", "incomeType", "requestedLoanAmount",
}

// GetInputSchema returns the form schema. Creating requires an eligible
// address; updating keeps the existing one when none is given.
func GetInputSchema(requireAddress bool) validation.JSONSchema {
	required := append([]string{}, RequiredFields...)
	if requireAddress {
		required = append(required, "addressId")
	}
	return validation.JSONSchema{
		Type:     "object",
		Required: required,
		Properties: map[string]validation.Property{
			"firstName":   {Type: "string", Label: "First name", MaxLength: intPtr(100)},
			"lastName":    {Type: "string", Label: "Last name", MaxLength: intPtr(100)},
			"dateOfBirth": {Type: "string", Label: "Date of birth", Pattern: strPtr(`^\d{4}-\d{2}-\d{2}$`)},
			"ssn":         {Type: "string", Label: "SSN"},
			"email":       {Type: "string", Label: "Email", Format: "email"},
			"phone":       {Type: "string", Label: "Phone"},
			"income":      {Type: "string", Label: "Income", Pattern: strPtr(moneyPattern)},
			"incomeType":  {Type: "string", Label: "Income type", Enum: models.IncomeTypes},
			"requestedLoanAmount": {
				Type:    "string",
				Label:   "Requested loan amount",
				Pattern: strPtr(moneyPattern),
			},
			"addressId": {Type: "integer", Label: "Address", Minimum: floatPtr(1)},
		},
		AdditionalProperties: false,
	}
}

const moneyPattern = `^\d+(\.\d{1,2})?$`

// inputDocument flattens the input for schema validation. Money is checked
// in its decimal string form so a zero amount still counts as filled in.
func inputDocument(in models.ApplicationInput) map[string]interface{} {
	doc := map[string]interface{}{
		"firstName":   in.FirstName,
		"lastName":    in.LastName,
		"dateOfBirth": in.DateOfBirth,
		"ssn":         in.SSN,
		"email":       in.Email,
		"phone":       in.Phone,
		"incomeType":  in.IncomeType,
	}
	if in.Income != nil {
		doc["income"] = in.Income.String()
	}
	if in.RequestedLoanAmount != nil {
		doc["requestedLoanAmount"] = in.RequestedLoanAmount.String()
	}
	if in.AddressID != 0 {
		doc["addressId"] = in.AddressID
	}
	return doc
}

// ValidateInput reports every invalid field at once.
func ValidateInput(in models.ApplicationInput, requireAddress bool) error {
	result := validation.ValidateInput(inputDocument(in), GetInputSchema(requireAddress))
	fields := result.FieldMap()
	if in.RequestedLoanAmount != nil && !in.RequestedLoanAmount.IsPositive() && fields["requestedLoanAmount"] == "" {
		fields["requestedLoanAmount"] = "Requested loan amount must be greater than zero"
	}
	if len(fields) > 0 {
		return errors.NewValidationError(fields)
	}
	return nil
}

// ValidatePatch applies the form rules to the keys a partial update carries.
// Absent keys are not required; present ones must not be blank. Keys outside
// the form, such as an "address" reference, pass through unchecked.
func ValidatePatch(fields map[string]interface{}) error {
	schema := GetInputSchema(false)
	schema.AdditionalProperties = true
	schema.Required = nil
	for _, name := range RequiredFields {
		if _, ok := fields[name]; ok {
			schema.Required = append(schema.Required, name)
		}
	}

	doc := make(map[string]interface{}, len(fields))
	moneyErrs := map[string]string{}
	for k, v := range fields {
		switch k {
		case "income", "requestedLoanAmount":
			d, ok := moneyValue(v)
			if !ok {
				moneyErrs[k] = fmt.Sprintf("%s is invalid", schema.Properties[k].Label)
				continue
			}
			if d == nil {
				doc[k] = ""
				continue
			}
			doc[k] = d.String()
			if k == "requestedLoanAmount" && !d.IsPositive() {
				moneyErrs[k] = "Requested loan amount must be greater than zero"
			}
		default:
			doc[k] = v
		}
	}

	result := validation.ValidateInput(doc, schema)
	errs := result.FieldMap()
	for k, msg := range moneyErrs {
		if errs[k] == "" {
			errs[k] = msg
		}
	}
	if len(errs) > 0 {
		return errors.NewValidationError(errs)
	}
	return nil
}

// moneyValue accepts the forms a money field takes in a patch map. A nil
// result with ok=true means the value was null or blank.
func moneyValue(v interface{}) (*decimal.Decimal, bool) {
	var (
		d   decimal.Decimal
		err error
	)
	switch x := v.(type) {
	case nil:
		return nil, true
	case *decimal.Decimal:
		if x == nil {
			return nil, true
		}
		d = *x
	case decimal.Decimal:
		d = x
	case string:
		if x == "" {
			return nil, true
		}
		d, err = decimal.NewFromString(x)
	case json.Number:
		d, err = decimal.NewFromString(x.String())
	case float64:
		d = decimal.NewFromFloat(x)
	case int:
		d = decimal.NewFromInt(int64(x))
	case int64:
		d = decimal.NewFromInt(x)
	default:
		return nil, false
	}
	if err != nil {
		return nil, false
	}
	return &d, true
}

func intPtr(i int) *int {
	return &i
}

func strPtr(s string) *string {
	return &s
}

func floatPtr(f float64) *float64 {
	return &f
}
