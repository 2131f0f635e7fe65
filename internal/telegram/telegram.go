package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	DefaultAPIBase     = "https://api.telegram.org"
	DefaultBatchSize   = 25
	DefaultHeader      = "*New JB Hi-Fi Pokémon Products:*"
	DefaultMinInterval = 1200 * time.Millisecond
	DefaultTimeout     = 10 * time.Second

	messageLimit = 4096
)

var ErrNotConfigured = errors.New("telegram token or chat id not set")

type Options struct {
	Token    string
	Chat     string
	ThreadID *int

	Header      string
	BatchSize   int
	MinInterval time.Duration
	Timeout     time.Duration
	APIBase     string
}

// BatchResult reports the delivery outcome of one message.
type BatchResult struct {
	Index int
	Lines int
	Err   error
}

type Sender struct {
	token    string
	chat     string
	threadID *int
	header   string
	size     int
	apiBase  string

	client       *resty.Client
	logger       *zap.Logger
	minInterval  time.Duration
	mu           sync.Mutex
	lastSentTime time.Time
}

func NewSender(opts Options, logger *zap.Logger) *Sender {
	if opts.Header == "" {
		opts.Header = DefaultHeader
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MinInterval < 0 {
		opts.MinInterval = 0
	}
	if opts.APIBase == "" {
		opts.APIBase = DefaultAPIBase
	}

	client := resty.New()
	client.SetTimeout(opts.Timeout)
	client.SetHeader("Content-Type", "application/json")

	return &Sender{
		token:       opts.Token,
		chat:        opts.Chat,
		threadID:    opts.ThreadID,
		header:      opts.Header,
		size:        opts.BatchSize,
		apiBase:     strings.TrimRight(opts.APIBase, "/"),
		client:      client,
		logger:      logger.Named("telegram"),
		minInterval: opts.MinInterval,
	}
}

func (s *Sender) Configured() bool {
	return s.token != "" && s.chat != ""
}

func (s *Sender) BatchSize() int {
	return s.size
}

// Notify sends lines in batches of the configured size, one message per batch.
// Failures are reported per batch and never stop the remaining batches.
func (s *Sender) Notify(ctx context.Context, lines []string) []BatchResult {
	batches := Batches(lines, s.size)
	results := make([]BatchResult, 0, len(batches))

	if !s.Configured() {
		s.logger.Warn("telegram not configured, skipping notification", zap.Int("lines", len(lines)))
		for i, batch := range batches {
			results = append(results, BatchResult{Index: i, Lines: len(batch), Err: ErrNotConfigured})
		}
		return results
	}

	for i, batch := range batches {
		err := s.sendWithRateLimit(ctx, FormatMessage(s.header, batch))
		if err != nil {
			s.logger.Error("telegram batch failed",
				zap.Int("batch", i+1), zap.Int("batches", len(batches)), zap.Error(err))
		} else {
			s.logger.Info("telegram batch sent",
				zap.Int("batch", i+1), zap.Int("batches", len(batches)), zap.Int("lines", len(batch)))
		}
		results = append(results, BatchResult{Index: i, Lines: len(batch), Err: err})
	}
	return results
}

// Batches splits lines into consecutive groups of at most size lines.
func Batches(lines []string, size int) [][]string {
	if size <= 0 {
		size = DefaultBatchSize
	}
	out := make([][]string, 0, (len(lines)+size-1)/size)
	for start := 0; start < len(lines); start += size {
		end := start + size
		if end > len(lines) {
			end = len(lines)
		}
		out = append(out, lines[start:end])
	}
	return out
}

func FormatMessage(header string, batch []string) string {
	escaped := make([]string, len(batch))
	for i, line := range batch {
		escaped[i] = escapeMarkdown(line)
	}
	return header + "\n" + strings.Join(escaped, "\n")
}

var markdownEscaper = strings.NewReplacer("_", `\_`, "*", `\*`, "`", "\\`", "[", `\[`)

func escapeMarkdown(text string) string {
	return markdownEscaper.Replace(text)
}

func (s *Sender) sendWithRateLimit(ctx context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len([]rune(text)) > messageLimit {
		s.logger.Warn("telegram message exceeds limit", zap.Int("runes", len([]rune(text))))
	}

	if err := sleep(ctx, time.Until(s.lastSentTime.Add(s.minInterval))); err != nil {
		return err
	}

	retryAfter, err := s.postMessage(ctx, text)
	if err != nil && retryAfter > 0 {
		s.logger.Warn("telegram rate limit hit", zap.Duration("retry_after", retryAfter))
		if err := sleep(ctx, retryAfter); err != nil {
			return err
		}
		_, err = s.postMessage(ctx, text)
		if err != nil {
			err = fmt.Errorf("retry after rate limit: %w", err)
		}
	}
	s.lastSentTime = time.Now()
	return err
}

func (s *Sender) postMessage(ctx context.Context, text string) (time.Duration, error) {
	payload := map[string]any{
		"chat_id":                  s.chat,
		"text":                     text,
		"parse_mode":               "Markdown",
		"disable_web_page_preview": true,
	}
	if s.threadID != nil {
		payload["message_thread_id"] = *s.threadID
	}

	var parsed telegramResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(&parsed).
		SetError(&parsed).
		Post(fmt.Sprintf("%s/bot%s/sendMessage", s.apiBase, s.token))
	if err != nil {
		return 0, err
	}

	if resp.StatusCode() == http.StatusTooManyRequests && parsed.Parameters.RetryAfter > 0 {
		return time.Duration(parsed.Parameters.RetryAfter) * time.Second, fmt.Errorf("rate limited")
	}

	if !resp.IsSuccess() {
		return 0, fmt.Errorf("telegram error: %d %s", resp.StatusCode(), parsed.Description)
	}

	return 0, nil
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
	Parameters  struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
