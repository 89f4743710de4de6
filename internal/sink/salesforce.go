package sink

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/pkg/salesforce"
)

// LeadSource is written to every Salesforce lead created by this tool.
const LeadSource = "Google Maps"

// SalesforceSink upserts leads as sObjects, matching existing records by
// Company.
type SalesforceSink struct {
	client  salesforce.Client
	sObject string
}

// NewSalesforce returns a SalesforceSink writing to sObject ("Lead" when
// empty).
func NewSalesforce(client salesforce.Client, sObject string) *SalesforceSink {
	if sObject == "" {
		sObject = "Lead"
	}
	return &SalesforceSink{client: client, sObject: sObject}
}

// Name implements Sink.
func (s *SalesforceSink) Name() string { return "salesforce" }

// Write implements Sink. Any rejected record fails the batch.
func (s *SalesforceSink) Write(ctx context.Context, leads []model.Lead) error {
	if len(leads) == 0 {
		return nil
	}
	records := make([]map[string]any, 0, len(leads))
	for i := range leads {
		if strings.TrimSpace(leads[i].BusinessName) == "" {
			continue
		}
		records = append(records, SalesforceFields(&leads[i]))
	}

	res, err := salesforce.UpsertByCompany(ctx, s.client, s.sObject, records)
	if err != nil {
		return eris.Wrap(err, "salesforce sink: upsert")
	}
	zap.L().Debug("salesforce sink: batch written",
		zap.Int("inserted", res.Inserted),
		zap.Int("updated", res.Updated),
		zap.Int("failed", len(res.Failed)),
	)
	if len(res.Failed) > 0 {
		return eris.Errorf("salesforce sink: %d records rejected: %s",
			len(res.Failed), strings.Join(res.Failed[0].Errors, "; "))
	}
	return nil
}

// SalesforceFields maps a lead onto standard Lead sObject fields.
func SalesforceFields(l *model.Lead) map[string]any {
	fields := map[string]any{
		"Company":     l.BusinessName,
		"LastName":    l.BusinessName,
		"City":        l.City,
		"State":       l.State,
		"Country":     l.Country,
		"LeadSource":  LeadSource,
		"Rating":      RatingTier(l.Score()),
		"Description": describe(l),
	}
	if l.Phone != "" {
		fields["Phone"] = l.Phone
	}
	if w := l.Website(); w != "" {
		fields["Website"] = w
	}
	if l.Category != "" {
		fields["Industry"] = l.Category
	}
	return fields
}

// RatingTier buckets a quality score into the Lead Rating picklist.
func RatingTier(score float64) string {
	switch {
	case score >= 80:
		return "Hot"
	case score >= 60:
		return "Warm"
	default:
		return "Cold"
	}
}

func describe(l *model.Lead) string {
	return fmt.Sprintf("%s | %.1f stars, %d reviews | %s | place_id=%s",
		l.Category, l.Rating, l.ReviewsCount, l.MapsURL, l.PlaceID)
}
