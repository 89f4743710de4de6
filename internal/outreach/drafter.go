package outreach

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/store"
)

// DraftResult summarizes a Drafter run.
type DraftResult struct {
	Emails   int `json:"emails"`
	Messages int `json:"messages"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// Drafter drafts outreach for leads and stores the drafts.
type Drafter struct {
	gen    Generator
	drafts store.DraftStore
}

// NewDrafter creates a Drafter.
func NewDrafter(gen Generator, drafts store.DraftStore) *Drafter {
	return &Drafter{gen: gen, drafts: drafts}
}

// Run drafts an email for each lead with a website-derived address and a
// message for each lead with a phone. Leads with neither are skipped. A
// failure on one lead is logged and counted; only context cancellation
// stops the run.
func (d *Drafter) Run(ctx context.Context, leads []model.Lead) (*DraftResult, error) {
	log := zap.L().With(zap.String("generator", d.gen.Name()))
	res := &DraftResult{}

	for _, lead := range leads {
		if err := ctx.Err(); err != nil {
			return res, eris.Wrap(err, "outreach: run")
		}

		email := GuessEmail(lead.Website())
		phone := strings.TrimSpace(lead.Phone) != ""
		if email == "" && !phone {
			res.Skipped++
			log.Debug("outreach: no contact channel", zap.String("place_id", lead.PlaceID))
			continue
		}

		if email != "" {
			if d.draft(ctx, log, lead, d.gen.Email) {
				res.Emails++
			} else {
				res.Failed++
			}
		}
		if phone {
			if d.draft(ctx, log, lead, d.gen.Message) {
				res.Messages++
			} else {
				res.Failed++
			}
		}
	}

	log.Info("outreach: drafting complete",
		zap.Int("emails", res.Emails),
		zap.Int("messages", res.Messages),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed),
	)
	return res, nil
}

func (d *Drafter) draft(ctx context.Context, log *zap.Logger, lead model.Lead, gen func(context.Context, model.Lead) (model.Draft, error)) bool {
	draft, err := gen(ctx, lead)
	if err != nil {
		log.Warn("outreach: generate draft", zap.String("place_id", lead.PlaceID), zap.Error(err))
		return false
	}
	if err := d.drafts.SaveDraft(ctx, &draft); err != nil {
		log.Warn("outreach: save draft", zap.String("place_id", lead.PlaceID), zap.Error(err))
		return false
	}
	return true
}
