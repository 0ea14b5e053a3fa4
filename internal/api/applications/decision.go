package applications

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"loan-console/internal/api"
	"loan-console/internal/common/errors"
	httpclient "loan-console/internal/common/http"
	"loan-console/internal/common/validation"
	"loan-console/internal/models"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

// decisionSchema is the minimum a decision_check response must satisfy.
const decisionSchema = `{
	"type": "object",
	"required": ["decision"],
	"properties": {
		"id": {"type": "integer"},
		"decision": {"type": "string", "minLength": 1},
		"response": {"type": ["string", "object", "null"]}
	}
}`

// DecisionCheck asks the backend to run the decision service for an
// application, then re-fetches the record so the caller sees the status the
// server derived from the decision.
func (s *Service) DecisionCheck(ctx context.Context, id int64) (app *models.LoanApplication, err error) {
	defer s.obs.Track(ctx, module, "decision_check", time.Now(), &err)

	if err = api.RequireID(id); err != nil {
		return nil, err
	}

	var raw json.RawMessage
	if err = s.transport.Do(ctx, httpclient.Request{Method: http.MethodGet, Path: s.path(id, "decision_check")}, &raw); err != nil {
		err = api.NotFoundFromRejection(err)
		if errors.KindOf(err) == errors.ErrCodeValidation {
			// the backend reports decision preconditions (missing SSN or
			// address) as 400s; to the user they are a failed check
			std := errors.Normalize(err)
			err = errors.NewServiceError(std.StatusCode, std.Message, std.Details)
		}
		return nil, err
	}

	decision, err := parseDecision(raw)
	if err != nil {
		return nil, err
	}
	s.logger.Info("decision received", map[string]interface{}{"id": id, "decision": decision.Decision})

	app, err = s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	app.LastApplicationDecision = decision
	return app, nil
}

func parseDecision(raw json.RawMessage) (*models.ApplicationDecision, error) {
	result, err := validation.ValidateDocument(decisionSchema, raw)
	if err != nil {
		return nil, errors.NewMalformedResponseError(err)
	}
	if !result.Valid {
		std := errors.NewServiceError(0, "Invalid response from decision service", "")
		std.Fields = result.FieldMap()
		return nil, std
	}

	decision := &models.ApplicationDecision{}
	if err := json.Unmarshal(raw, decision); err != nil {
		return nil, errors.NewMalformedResponseError(err)
	}
	decision.FundingOptions = ParseFundingOptions(decision.Response)
	return decision, nil
}

// ParseFundingOptions reads funding_options from a decision-service response.
// The backend stores that response as a JSON string, so a string value is
// parsed a second time. Malformed entries are skipped.
func ParseFundingOptions(response json.RawMessage) []models.FundingOption {
	doc := gjson.ParseBytes(response)
	if doc.Type == gjson.String {
		doc = gjson.Parse(doc.String())
	}

	var options []models.FundingOption
	doc.Get("funding_options").ForEach(func(_, opt gjson.Result) bool {
		rate, rateErr := decimalOf(opt.Get("interest_rate"))
		emi, emiErr := decimalOf(opt.Get("emi"))
		if rateErr != nil || emiErr != nil || !opt.Get("years").Exists() {
			return true
		}
		options = append(options, models.FundingOption{
			Years:        int(opt.Get("years").Int()),
			InterestRate: rate,
			EMI:          emi,
		})
		return true
	})
	return options
}

func decimalOf(r gjson.Result) (decimal.Decimal, error) {
	if r.Type == gjson.Number {
		return decimal.NewFromString(r.Raw)
	}
	return decimal.NewFromString(r.String())
}
