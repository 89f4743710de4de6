// Package outreach drafts cold emails and short messages for stored leads.
// Drafts are saved for review and never sent.
package outreach

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/config"
	"github.com/sells-group/leadgen-cli/internal/model"
)

// ErrEmptyDraft is returned when a generator produced no body text.
var ErrEmptyDraft = eris.New("outreach: empty draft")

// Generator produces outreach drafts for a lead.
type Generator interface {
	Name() string
	Email(ctx context.Context, lead model.Lead) (model.Draft, error)
	Message(ctx context.Context, lead model.Lead) (model.Draft, error)
}

// Sender describes who the outreach comes from.
type Sender struct {
	Name         string
	Company      string
	Pitch        string
	ContactEmail string
	ContactPhone string
}

// SenderFromConfig maps the outreach config section to a Sender.
func SenderFromConfig(cfg config.OutreachConfig) Sender {
	return Sender{
		Name:         cfg.SenderName,
		Company:      cfg.Company,
		Pitch:        cfg.Pitch,
		ContactEmail: cfg.ContactEmail,
		ContactPhone: cfg.ContactPhone,
	}
}

// Fallback tries Primary and uses Secondary when Primary fails or returns an
// empty body.
type Fallback struct {
	Primary   Generator
	Secondary Generator
}

// NewFallback returns a Fallback generator. A nil primary means the
// secondary is always used.
func NewFallback(primary, secondary Generator) *Fallback {
	return &Fallback{Primary: primary, Secondary: secondary}
}

// Name implements Generator.
func (f *Fallback) Name() string {
	if f.Primary == nil {
		return f.Secondary.Name()
	}
	return f.Primary.Name() + "+" + f.Secondary.Name()
}

// Email implements Generator.
func (f *Fallback) Email(ctx context.Context, lead model.Lead) (model.Draft, error) {
	return f.try(ctx, lead, model.ChannelEmail, Generator.Email)
}

// Message implements Generator.
func (f *Fallback) Message(ctx context.Context, lead model.Lead) (model.Draft, error) {
	return f.try(ctx, lead, model.ChannelMessage, Generator.Message)
}

func (f *Fallback) try(ctx context.Context, lead model.Lead, channel string, gen func(Generator, context.Context, model.Lead) (model.Draft, error)) (model.Draft, error) {
	if f.Primary != nil {
		d, err := gen(f.Primary, ctx, lead)
		if err == nil && strings.TrimSpace(d.Body) != "" {
			return d, nil
		}
		if ctx.Err() != nil {
			return model.Draft{}, eris.Wrap(ctx.Err(), "outreach: draft")
		}
		if err == nil {
			err = ErrEmptyDraft
		}
		zap.L().Warn("outreach: primary generator failed, using fallback",
			zap.String("generator", f.Primary.Name()),
			zap.String("place_id", lead.PlaceID),
			zap.String("channel", channel),
			zap.Error(err),
		)
	}
	return gen(f.Secondary, ctx, lead)
}

// GuessEmail derives a contact address from a website URL, e.g.
// "https://www.acme.test/about" gives "info@acme.test". It returns "" when
// there is no usable host.
func GuessEmail(website string) string {
	host := strings.TrimSpace(strings.ToLower(website))
	host = strings.TrimPrefix(host, "http://")
	host = strings.TrimPrefix(host, "https://")
	host = strings.TrimPrefix(host, "www.")
	if i := strings.IndexAny(host, "/?#"); i >= 0 {
		host = host[:i]
	}
	if i := strings.LastIndex(host, ":"); i >= 0 {
		host = host[:i]
	}
	if !strings.Contains(host, ".") || strings.HasPrefix(host, ".") || strings.HasSuffix(host, ".") {
		return ""
	}
	return "info@" + host
}

// needs maps the first word of a category to the gap we pitch against.
var needs = map[string]string{
	"restaurant": "online ordering",
	"cafe":       "a mobile ordering app",
	"retail":     "an online store",
	"salon":      "online booking",
	"spa":        "online booking",
	"dental":     "an appointment booking system",
	"clinic":     "an appointment booking system",
	"law":        "a professional website that brings in client enquiries",
	"real":       "a property listing website",
	"hotel":      "direct online reservations",
	"gym":        "online memberships and class booking",
}

// NeedFor returns the pitch angle for a business category.
func NeedFor(category string) string {
	fields := strings.Fields(strings.ToLower(category))
	if len(fields) > 0 {
		if n, ok := needs[fields[0]]; ok {
			return n
		}
	}
	return "a stronger online presence"
}
