package sink

import (
	"context"
	"errors"
	"time"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/pkg/notion"
)

// Notion property names of the lead database.
const (
	propName        = "Name"
	propCategory    = "Category"
	propCity        = "City"
	propState       = "State"
	propCountry     = "Country"
	propRating      = "Rating"
	propReviews     = "Reviews"
	propPhone       = "Phone"
	propWebsite     = "Website"
	propHasWebsite  = "Has Website"
	propMapsURL     = "Maps URL"
	propPlaceID     = "Place ID"
	propCreated     = "Created"
	propSourceQuery = "Source Query"
	propStatus      = "Status"
	propScore       = "Score"
)

// NotionSink upserts one page per lead into a Notion database, keyed by the
// Place ID property. Existing pages keep their Status.
type NotionSink struct {
	client notion.Client
	dbID   string
}

// NewNotion returns a NotionSink for the database dbID.
func NewNotion(client notion.Client, dbID string) *NotionSink {
	return &NotionSink{client: client, dbID: dbID}
}

// Name implements Sink.
func (s *NotionSink) Name() string { return "notion" }

// Write implements Sink. Every lead is attempted; the error reports how many
// failed.
func (s *NotionSink) Write(ctx context.Context, leads []model.Lead) error {
	var errs []error
	created, updated := 0, 0
	for i := range leads {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "notion sink: write")
		}
		isNew, err := s.upsert(ctx, &leads[i])
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if isNew {
			created++
		} else {
			updated++
		}
	}
	zap.L().Debug("notion sink: batch written",
		zap.Int("created", created),
		zap.Int("updated", updated),
		zap.Int("failed", len(errs)),
	)
	if len(errs) > 0 {
		return eris.Wrapf(errors.Join(errs...), "notion sink: %d of %d leads failed", len(errs), len(leads))
	}
	return nil
}

func (s *NotionSink) upsert(ctx context.Context, l *model.Lead) (bool, error) {
	pageID := ""
	if l.PlaceID != "" {
		id, err := notion.FindByText(ctx, s.client, s.dbID, propPlaceID, l.PlaceID)
		if err != nil {
			return false, err
		}
		pageID = id
	}

	props := LeadProperties(l)
	if pageID != "" {
		delete(props, propStatus)
		if _, err := s.client.UpdatePage(ctx, pageID, &notionapi.PageUpdateRequest{Properties: props}); err != nil {
			return false, eris.Wrapf(err, "notion sink: update %s", l.PlaceID)
		}
		return false, nil
	}

	_, err := s.client.CreatePage(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(s.dbID),
		},
		Properties: props,
	})
	if err != nil {
		return false, eris.Wrapf(err, "notion sink: create %s", l.PlaceID)
	}
	return true, nil
}

// LeadProperties maps a lead onto the lead database's properties.
func LeadProperties(l *model.Lead) notionapi.Properties {
	props := notionapi.Properties{
		propName:        notion.Title(l.BusinessName),
		propCategory:    notion.Text(l.Category),
		propCity:        notion.Text(l.City),
		propState:       notion.Text(l.State),
		propCountry:     notion.Text(l.Country),
		propRating:      notionapi.NumberProperty{Type: notionapi.PropertyTypeNumber, Number: l.Rating},
		propReviews:     notionapi.NumberProperty{Type: notionapi.PropertyTypeNumber, Number: float64(l.ReviewsCount)},
		propHasWebsite:  notionapi.CheckboxProperty{Type: notionapi.PropertyTypeCheckbox, Checkbox: l.HasWebsite},
		propPlaceID:     notion.Text(l.PlaceID),
		propSourceQuery: notion.Text(l.SourceQuery),
		propStatus: notionapi.SelectProperty{
			Type:   notionapi.PropertyTypeSelect,
			Select: notionapi.Option{Name: l.Status},
		},
	}
	if l.Phone != "" {
		props[propPhone] = notionapi.PhoneNumberProperty{Type: notionapi.PropertyTypePhoneNumber, PhoneNumber: l.Phone}
	}
	if w := l.Website(); w != "" {
		props[propWebsite] = notionapi.URLProperty{Type: notionapi.PropertyTypeURL, URL: w}
	}
	if l.MapsURL != "" {
		props[propMapsURL] = notionapi.URLProperty{Type: notionapi.PropertyTypeURL, URL: l.MapsURL}
	}
	if l.QualityScore != nil {
		props[propScore] = notionapi.NumberProperty{Type: notionapi.PropertyTypeNumber, Number: *l.QualityScore}
	}
	if t, err := time.Parse(time.RFC3339, l.CreatedAt); err == nil {
		d := notionapi.Date(t)
		props[propCreated] = notionapi.DateProperty{Type: notionapi.PropertyTypeDate, Date: &notionapi.DateObject{Start: &d}}
	}
	return props
}
