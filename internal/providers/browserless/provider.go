package browserless

import (
	"context"
	"errors"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"pokewatch/internal/model"
	"pokewatch/internal/providers/common"
)

// Provider asks a Browserless-compatible /content endpoint to render the
// collection page with JavaScript and return the resulting HTML.
type Provider struct {
	client   *resty.Client
	endpoint string
	logger   *zap.Logger
}

func NewProvider(client *resty.Client, endpoint string, logger *zap.Logger) *Provider {
	return &Provider{client: client, endpoint: endpoint, logger: logger.Named(model.ProviderBrowserless)}
}

func (p *Provider) Name() string {
	return model.ProviderBrowserless
}

func (p *Provider) Fetch(ctx context.Context, target model.Target) (model.Content, error) {
	if p.endpoint == "" {
		return model.Content{}, errors.New("render endpoint not configured")
	}

	resp, err := p.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{"url": target.CollectionURL}).
		Post(p.endpoint)
	if err != nil {
		return model.Content{}, err
	}
	if err := common.CheckResponse(resp); err != nil {
		return model.Content{}, err
	}

	p.logger.Info("rendered page received", zap.String("target", target.Name), zap.Int("bytes", len(resp.Body())))
	return model.Content{Kind: model.ContentHTML, Body: resp.Body(), Provider: p.Name()}, nil
}
