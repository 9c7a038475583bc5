package providers

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	toolx "github.com/voyago/voyago/agent/tool"
)

const (
	ToolHotelsSearch = "hotels.search"
	ToolHotelsBook   = "hotels.book"
)

// HotelsProvider exposes the hotel data provider as discovery and
// completion tools.
type HotelsProvider struct {
	client *restClient
}

func NewHotelsProvider(cfg Config) (*HotelsProvider, error) {
	client, err := newRESTClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("hotels provider: %w", err)
	}
	return &HotelsProvider{client: client}, nil
}

func (p *HotelsProvider) Register(registry *toolx.Registry) error {
	if err := registry.Register(
		ToolHotelsSearch,
		"Search hotel offers in a city for a stay window.",
		map[string]*toolx.ParamSpec{
			"city":      {Type: toolx.TypeString, Desc: "Destination city"},
			"check_in":  {Type: toolx.TypeString, Desc: "Check-in date, YYYY-MM-DD"},
			"check_out": {Type: toolx.TypeString, Desc: "Check-out date, YYYY-MM-DD"},
			"guests":    {Type: toolx.TypeInteger, Desc: "Number of guests", Default: 2},
			"amenities": {Type: toolx.TypeArray, Desc: "Required amenities", Default: []any{}},
		},
		"hotel offer list",
		p.search,
	); err != nil {
		return err
	}

	return registry.Register(
		ToolHotelsBook,
		"Book a specific hotel offer by its identifier.",
		map[string]*toolx.ParamSpec{
			"offer_id": {Type: toolx.TypeString, Desc: "Identifier of the offer to book"},
			"guests":   {Type: toolx.TypeInteger, Desc: "Number of guests", Default: 2},
		},
		"booking confirmation",
		p.book,
	)
}

func (p *HotelsProvider) search(ctx context.Context, args map[string]any) (map[string]any, error) {
	query := url.Values{}
	query.Set("city", stringArg(args, "city"))
	query.Set("check_in", stringArg(args, "check_in"))
	query.Set("check_out", stringArg(args, "check_out"))
	query.Set("guests", strconv.Itoa(intArg(args, "guests", 2)))

	payload := p.client.getJSON(ctx, "/v1/hotels/search", query)
	if flagged, _ := payload["error"].(bool); flagged {
		return payload, nil
	}

	offers, _ := payload["offers"].([]any)
	if len(offers) == 0 {
		return dataUnavailable(
			fmt.Sprintf("no hotels in %s for those dates", stringArg(args, "city")),
			"No hotels match that stay; try different dates or drop an amenity filter.",
		), nil
	}
	return payload, nil
}

func (p *HotelsProvider) book(ctx context.Context, args map[string]any) (map[string]any, error) {
	query := url.Values{}
	query.Set("offer_id", stringArg(args, "offer_id"))
	query.Set("guests", strconv.Itoa(intArg(args, "guests", 2)))
	return p.client.getJSON(ctx, "/v1/hotels/book", query), nil
}
