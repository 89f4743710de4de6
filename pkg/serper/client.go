// Package serper is a client for the Serper Google Maps search API.
package serper

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://google.serper.dev"

// Client performs Serper maps searches.
type Client interface {
	Maps(ctx context.Context, req MapsRequest) (*MapsResponse, error)
}

// MapsRequest is a maps search.
type MapsRequest struct {
	Query    string `json:"q"`
	Country  string `json:"gl,omitempty"`
	Language string `json:"hl,omitempty"`
	Page     int    `json:"page,omitempty"`
}

// MapsResponse holds the places on one result page.
type MapsResponse struct {
	Places []Place `json:"places"`
}

// Place is a single maps result.
type Place struct {
	Position    int      `json:"position"`
	Title       string   `json:"title"`
	Address     string   `json:"address"`
	Latitude    float64  `json:"latitude"`
	Longitude   float64  `json:"longitude"`
	Rating      *float64 `json:"rating,omitempty"`
	RatingCount *int     `json:"ratingCount,omitempty"`
	Type        string   `json:"type"`
	Types       []string `json:"types,omitempty"`
	Website     string   `json:"website,omitempty"`
	PhoneNumber string   `json:"phoneNumber,omitempty"`
	CID         string   `json:"cid,omitempty"`
	PlaceID     string   `json:"placeId,omitempty"`
}

type errorResponse struct {
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode"`
}

// Option configures the client.
type Option func(*client)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *client) {
		c.http.SetBaseURL(url)
	}
}

// WithTimeout overrides the request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *client) {
		c.http.SetTimeout(d)
	}
}

type client struct {
	http *resty.Client
}

// NewClient creates a Serper client authenticated with apiKey.
func NewClient(apiKey string, opts ...Option) Client {
	hc := resty.New().
		SetBaseURL(defaultBaseURL).
		SetTimeout(30*time.Second).
		SetHeader("X-API-KEY", apiKey).
		SetHeader("Content-Type", "application/json")

	c := &client{http: hc}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *client) Maps(ctx context.Context, req MapsRequest) (*MapsResponse, error) {
	var result MapsResponse
	var apiErr errorResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&result).
		SetError(&apiErr).
		Post("/maps")
	if err != nil {
		return nil, eris.Wrap(err, "serper: send request")
	}

	if resp.IsError() {
		msg := apiErr.Message
		if msg == "" {
			msg = resp.String()
		}
		return nil, eris.Errorf("serper: maps status %d: %s", resp.StatusCode(), msg)
	}

	return &result, nil
}
