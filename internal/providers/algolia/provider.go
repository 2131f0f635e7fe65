package algolia

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"pokewatch/internal/model"
	"pokewatch/internal/providers/common"
)

const (
	defaultHitsPerPage = 1000
	defaultMaxPages    = 5
)

// Provider pages through an Algolia index "browse" endpoint and returns every
// hit as a single {"hits": [...]} document.
type Provider struct {
	client *resty.Client
	logger *zap.Logger
}

func NewProvider(client *resty.Client, logger *zap.Logger) *Provider {
	return &Provider{client: client, logger: logger.Named(model.ProviderAlgolia)}
}

func (p *Provider) Name() string {
	return model.ProviderAlgolia
}

type browseRequest struct {
	HitsPerPage int    `json:"hitsPerPage,omitempty"`
	Cursor      string `json:"cursor,omitempty"`
}

type browseResponse struct {
	Hits   []json.RawMessage `json:"hits"`
	Cursor string            `json:"cursor"`
}

type hitsDocument struct {
	Hits []json.RawMessage `json:"hits"`
}

func (p *Provider) Fetch(ctx context.Context, target model.Target) (model.Content, error) {
	rule := target.Index
	if !rule.Configured() {
		return model.Content{}, fmt.Errorf("index not configured for %s", target.Name)
	}

	hitsPerPage := rule.HitsPerPage
	if hitsPerPage <= 0 {
		hitsPerPage = defaultHitsPerPage
	}
	maxPages := rule.MaxPages
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}

	var doc hitsDocument
	cursor := ""
	for page := 1; page <= maxPages; page++ {
		p.logger.Debug("browsing index", zap.String("target", target.Name), zap.Int("page", page))
		batch, err := p.browse(ctx, rule, browseRequest{HitsPerPage: hitsPerPage, Cursor: cursor})
		if err != nil {
			return model.Content{}, fmt.Errorf("browse page %d: %w", page, err)
		}
		doc.Hits = append(doc.Hits, batch.Hits...)
		if batch.Cursor == "" {
			break
		}
		cursor = batch.Cursor
	}

	p.logger.Info("index hits fetched", zap.String("target", target.Name), zap.Int("hits", len(doc.Hits)))

	body, err := json.Marshal(doc)
	if err != nil {
		return model.Content{}, err
	}
	return model.Content{Kind: model.ContentJSON, Body: body, Provider: p.Name()}, nil
}

func (p *Provider) browse(ctx context.Context, rule model.IndexRule, payload browseRequest) (browseResponse, error) {
	var out browseResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetHeader("x-algolia-application-id", rule.AppID).
		SetHeader("x-algolia-api-key", rule.APIKey).
		SetBody(payload).
		SetResult(&out).
		Post(rule.URL)
	if err != nil {
		return out, err
	}
	if err := common.CheckResponse(resp); err != nil {
		return out, err
	}
	return out, nil
}
