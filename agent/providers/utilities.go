package providers

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	toolx "github.com/voyago/voyago/agent/tool"
)

const (
	ToolWeatherCurrent  = "weather.current"
	ToolCurrencyConvert = "currency.convert"
)

// UtilitiesProvider bundles the small read-only helpers the utilities agent
// calls: weather and currency conversion.
type UtilitiesProvider struct {
	client *restClient
}

func NewUtilitiesProvider(cfg Config) (*UtilitiesProvider, error) {
	client, err := newRESTClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("utilities provider: %w", err)
	}
	return &UtilitiesProvider{client: client}, nil
}

func (p *UtilitiesProvider) Register(registry *toolx.Registry) error {
	if err := registry.Register(
		ToolWeatherCurrent,
		"Current weather conditions for a city.",
		map[string]*toolx.ParamSpec{
			"city":  {Type: toolx.TypeString, Desc: "City name"},
			"units": {Type: toolx.TypeString, Desc: "Unit system", Default: "metric", Enum: []string{"metric", "imperial"}},
		},
		"weather report",
		p.weather,
	); err != nil {
		return err
	}

	return registry.Register(
		ToolCurrencyConvert,
		"Convert an amount between currencies at the current rate.",
		map[string]*toolx.ParamSpec{
			"amount": {Type: toolx.TypeNumber, Desc: "Amount to convert"},
			"from":   {Type: toolx.TypeString, Desc: "Source currency code"},
			"to":     {Type: toolx.TypeString, Desc: "Target currency code"},
		},
		"conversion result",
		p.convert,
	)
}

func (p *UtilitiesProvider) weather(ctx context.Context, args map[string]any) (map[string]any, error) {
	query := url.Values{}
	query.Set("city", stringArg(args, "city"))
	query.Set("units", stringArg(args, "units"))
	return p.client.getJSON(ctx, "/v1/weather/current", query), nil
}

func (p *UtilitiesProvider) convert(ctx context.Context, args map[string]any) (map[string]any, error) {
	amount := 0.0
	switch v := args["amount"].(type) {
	case float64:
		amount = v
	case int:
		amount = float64(v)
	}

	query := url.Values{}
	query.Set("amount", strconv.FormatFloat(amount, 'f', -1, 64))
	query.Set("from", stringArg(args, "from"))
	query.Set("to", stringArg(args, "to"))
	return p.client.getJSON(ctx, "/v1/currency/convert", query), nil
}
