package outreach

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/internal/config"
	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/pkg/anthropic"
)

const systemPromptTmpl = `You write short, specific cold outreach for %s on behalf of %s.
What we offer: %s.
The businesses you write to have strong Google reviews but no website of their own.
Compliment one concrete thing from their listing, name the gap, and end with a single low-effort question.
No emojis, no bullet lists, no invented facts or statistics.%s`

const emailInstruction = `Write a cold email under 120 words to this business.
Start with a line "Subject: <subject>", then a blank line, then the body.

%s`

const messageInstruction = `Write a chat message under 60 words to this business. Output the message text only.

%s`

// ClaudeGenerator drafts outreach with the Anthropic Messages API.
type ClaudeGenerator struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	system    []anthropic.SystemBlock
	now       func() time.Time
}

// NewClaude creates a ClaudeGenerator. The system prompt is built once from
// the sender and marked for prompt caching.
func NewClaude(client anthropic.Client, cfg config.AnthropicConfig, sender Sender) *ClaudeGenerator {
	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 600
	}
	return &ClaudeGenerator{
		client:    client,
		model:     cfg.Model,
		maxTokens: maxTokens,
		system:    anthropic.BuildCachedSystemBlocks(SystemPrompt(sender), "5m"),
		now:       time.Now,
	}
}

// SystemPrompt renders the drafting instructions for a sender.
func SystemPrompt(s Sender) string {
	company := s.Company
	if company == "" {
		company = "a small web studio"
	}
	name := s.Name
	if name == "" {
		name = "the team"
	}
	pitch := s.Pitch
	if pitch == "" {
		pitch = "websites and online booking for local businesses"
	}
	var sig strings.Builder
	if s.Name != "" || s.ContactEmail != "" || s.ContactPhone != "" {
		sig.WriteString("\nSign off with:")
		for _, v := range []string{s.Name, s.Company, s.ContactPhone, s.ContactEmail} {
			if v != "" {
				sig.WriteString("\n" + v)
			}
		}
	}
	return fmt.Sprintf(systemPromptTmpl, company, name, pitch, sig.String())
}

// Name implements Generator.
func (g *ClaudeGenerator) Name() string { return "claude" }

// Email implements Generator.
func (g *ClaudeGenerator) Email(ctx context.Context, lead model.Lead) (model.Draft, error) {
	text, err := g.complete(ctx, fmt.Sprintf(emailInstruction, describe(lead)))
	if err != nil {
		return model.Draft{}, eris.Wrapf(err, "outreach: email for %s", lead.PlaceID)
	}
	subject, body := ParseEmail(text)
	if subject == "" {
		subject = fmt.Sprintf("Quick question about %s", lead.BusinessName)
	}
	return model.Draft{
		PlaceID:   lead.PlaceID,
		Channel:   model.ChannelEmail,
		Subject:   subject,
		Body:      body,
		Generator: g.Name(),
		CreatedAt: g.now().UTC(),
	}, nil
}

// Message implements Generator.
func (g *ClaudeGenerator) Message(ctx context.Context, lead model.Lead) (model.Draft, error) {
	text, err := g.complete(ctx, fmt.Sprintf(messageInstruction, describe(lead)))
	if err != nil {
		return model.Draft{}, eris.Wrapf(err, "outreach: message for %s", lead.PlaceID)
	}
	return model.Draft{
		PlaceID:   lead.PlaceID,
		Channel:   model.ChannelMessage,
		Body:      text,
		Generator: g.Name(),
		CreatedAt: g.now().UTC(),
	}, nil
}

func (g *ClaudeGenerator) complete(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     g.model,
		MaxTokens: g.maxTokens,
		System:    g.system,
		Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", err
	}
	resp.Usage.LogCost(g.model, "outreach")

	text := resp.Text()
	if text == "" {
		return "", ErrEmptyDraft
	}
	return text, nil
}

// ParseEmail splits a model reply into subject and body. A leading
// "Subject:" line (case-insensitive) is the subject; everything after it is
// the body. Without one, the whole reply is the body.
func ParseEmail(text string) (subject, body string) {
	text = strings.TrimSpace(text)
	first, rest, _ := strings.Cut(text, "\n")
	if len(first) >= len("subject:") && strings.EqualFold(first[:len("subject:")], "subject:") {
		return strings.TrimSpace(first[len("subject:"):]), strings.TrimSpace(rest)
	}
	return "", text
}

func describe(l model.Lead) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Business: %s\n", l.BusinessName)
	if l.Category != "" {
		fmt.Fprintf(&b, "Category: %s\n", l.Category)
	}
	loc := strings.Join(nonEmpty(l.City, l.State, l.Country), ", ")
	if loc != "" {
		fmt.Fprintf(&b, "Location: %s\n", loc)
	}
	if l.Rating > 0 {
		fmt.Fprintf(&b, "Google rating: %.1f from %d reviews\n", l.Rating, l.ReviewsCount)
	}
	fmt.Fprintf(&b, "Likely gap: %s", NeedFor(l.Category))
	return b.String()
}

func nonEmpty(vals ...string) []string {
	out := vals[:0:0]
	for _, v := range vals {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
