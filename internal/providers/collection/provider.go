package collection

import (
	"context"
	"fmt"
	"net/http"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"pokewatch/internal/model"
	"pokewatch/internal/providers/common"
)

// Provider downloads the collection page HTML directly. Products rendered
// client-side will be missing; that shows up as an empty extraction.
type Provider struct {
	client *resty.Client
	logger *zap.Logger
}

func NewProvider(client *resty.Client, logger *zap.Logger) *Provider {
	return &Provider{client: client, logger: logger.Named(model.ProviderCollection)}
}

// StealthTransport wraps a transport with Cloudflare-friendly TLS and header
// ordering. Pass it as common.ClientOptions.Transport.
func StealthTransport(rt http.RoundTripper) http.RoundTripper {
	return cloudflarebp.AddCloudFlareByPass(rt)
}

func (p *Provider) Name() string {
	return model.ProviderCollection
}

func (p *Provider) Fetch(ctx context.Context, target model.Target) (model.Content, error) {
	if target.CollectionURL == "" {
		return model.Content{}, fmt.Errorf("no collection url for %s", target.Name)
	}

	resp, err := p.client.R().
		SetContext(ctx).
		SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8").
		SetHeader("Referer", target.BaseOrigin+"/").
		Get(target.CollectionURL)
	if err != nil {
		return model.Content{}, err
	}
	if err := common.CheckResponse(resp); err != nil {
		return model.Content{}, err
	}

	p.logger.Info("collection page fetched", zap.String("target", target.Name), zap.Int("bytes", len(resp.Body())))
	return model.Content{Kind: model.ContentHTML, Body: resp.Body(), Provider: p.Name()}, nil
}
