package users

import (
	"loan-console/internal/common/errors"
	"loan-console/internal/common/validation"
	"loan-console/internal/models"
)

var RequiredFields = []string{"firstName", "lastName", "email", "role", "contact"}

func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: RequiredFields,
		Properties: map[string]validation.Property{
			"firstName": {Type: "string", Label: "First name", MaxLength: intPtr(100)},
			"lastName":  {Type: "string", Label: "Last name", MaxLength: intPtr(100)},
			"email":     {Type: "string", Label: "Email", Format: "email"},
			"role":      {Type: "string", Label: "Role", Enum: models.Roles},
			"contact":   {Type: "string", Label: "Contact", MaxLength: intPtr(50)},
			"password":  {Type: "string", Label: "Password", MinLength: intPtr(8)},
		},
		AdditionalProperties: false,
	}
}

// ValidateInput checks a create or update payload. The password is optional;
// when given it must be at least 8 characters.
func ValidateInput(in models.UserInput) error {
	doc := map[string]interface{}{
		"firstName": in.FirstName,
		"lastName":  in.LastName,
		"email":     in.Email,
		"role":      in.Role,
		"contact":   in.Contact,
	}
	if in.Password != "" {
		doc["password"] = in.Password
	}
	result := validation.ValidateInput(doc, GetInputSchema())
	if !result.Valid {
		return errors.NewValidationError(result.FieldMap())
	}
	return nil
}

func intPtr(i int) *int {
	return &i
}
