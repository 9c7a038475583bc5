package providers

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	toolx "github.com/voyago/voyago/agent/tool"
)

const (
	ToolFlightsSearch = "flights.search"
	ToolFlightsBook   = "flights.book"
)

// FlightsProvider exposes the flight data provider as two tools: a
// discovery search and a completion booking call.
type FlightsProvider struct {
	client *restClient
}

func NewFlightsProvider(cfg Config) (*FlightsProvider, error) {
	client, err := newRESTClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("flights provider: %w", err)
	}
	return &FlightsProvider{client: client}, nil
}

// Register adds the flight tools to the registry.
func (p *FlightsProvider) Register(registry *toolx.Registry) error {
	if err := registry.Register(
		ToolFlightsSearch,
		"Search one-way flight offers between two airports on a date, optionally within a flexible-date window.",
		map[string]*toolx.ParamSpec{
			"origin":      {Type: toolx.TypeString, Desc: "IATA code of the departure airport"},
			"destination": {Type: toolx.TypeString, Desc: "IATA code of the arrival airport"},
			"date":        {Type: toolx.TypeString, Desc: "Departure date, YYYY-MM-DD"},
			"passengers":  {Type: toolx.TypeInteger, Desc: "Number of travellers", Default: 1},
			"flex_days":   {Type: toolx.TypeInteger, Desc: "Flexible-date window, +/- days", Default: 0},
			"filters": {Type: toolx.TypeObject, Desc: "Optional result filters", Default: map[string]any{},
				Fields: map[string]*toolx.ParamSpec{
					"max_price": {Type: toolx.TypeNumber, Desc: "Price ceiling", Default: 0.0},
					"airlines":  {Type: toolx.TypeArray, Desc: "Preferred airline codes", Default: []any{}, Elem: &toolx.ParamSpec{Type: toolx.TypeString, Default: ""}},
					"direct":    {Type: toolx.TypeBoolean, Desc: "Direct flights only", Default: false},
				},
			},
		},
		"flight offer list",
		p.search,
	); err != nil {
		return err
	}

	return registry.Register(
		ToolFlightsBook,
		"Book a specific flight offer by its identifier.",
		map[string]*toolx.ParamSpec{
			"offer_id":   {Type: toolx.TypeString, Desc: "Identifier of the offer to book"},
			"passengers": {Type: toolx.TypeInteger, Desc: "Number of travellers", Default: 1},
		},
		"booking confirmation",
		p.book,
	)
}

func (p *FlightsProvider) search(ctx context.Context, args map[string]any) (map[string]any, error) {
	query := url.Values{}
	query.Set("origin", stringArg(args, "origin"))
	query.Set("destination", stringArg(args, "destination"))
	query.Set("date", stringArg(args, "date"))
	query.Set("passengers", strconv.Itoa(intArg(args, "passengers", 1)))
	query.Set("flex_days", strconv.Itoa(intArg(args, "flex_days", 0)))

	payload := p.client.getJSON(ctx, "/v1/flights/search", query)
	if flagged, _ := payload["error"].(bool); flagged {
		return payload, nil
	}

	offers, _ := payload["offers"].([]any)
	if len(offers) == 0 {
		return dataUnavailable(
			fmt.Sprintf("no flights from %s to %s on %s", stringArg(args, "origin"), stringArg(args, "destination"), stringArg(args, "date")),
			"No flights match those dates; try nearby dates or a wider flexibility window.",
		), nil
	}
	return payload, nil
}

func (p *FlightsProvider) book(ctx context.Context, args map[string]any) (map[string]any, error) {
	query := url.Values{}
	query.Set("offer_id", stringArg(args, "offer_id"))
	query.Set("passengers", strconv.Itoa(intArg(args, "passengers", 1)))
	return p.client.getJSON(ctx, "/v1/flights/book", query), nil
}

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

func intArg(args map[string]any, key string, fallback int) int {
	switch v := args[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return fallback
	}
}
