package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/titanous/json5"

	"pokewatch/internal/extract"
	"pokewatch/internal/model"
)

const (
	StoreFile     = "file"
	StorePostgres = "postgres"
	StoreRedis    = "redis"

	DefaultTargetName    = "jbhifi"
	DefaultBaseOrigin    = "https://www.jbhifi.com.au"
	DefaultCollectionURL = "https://www.jbhifi.com.au/collections/collectibles-merchandise/pokemon-trading-cards"
	DefaultAlgoliaURL    = "https://vtvkm5urpx-2.algolianet.com/1/indexes/%s/browse"
	DefaultAlgoliaIndex  = "shopify_products_families"
)

type Config struct {
	HTTPPort  string
	LogLevel  string
	LogFormat string
	CronSpec  string
	RunAsync  bool
	CORS      []string
	Pprof     bool

	TelegramToken    string
	TelegramChat     string
	TelegramThreadID *int
	BatchSize        int
	NotifyHeader     string

	StoreBackend string
	CacheFile    string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	BrowserlessURL string
	FetchTimeout   time.Duration
	RenderTimeout  time.Duration
	FetchRetries   int
	FetchBackoff   time.Duration

	SaveSnapshots bool
	SnapshotDir   string

	Targets []model.Target
}

func Load() (Config, error) {
	_ = godotenv.Load()

	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	cfg := Config{
		HTTPPort:       envOrDefault("HTTP_PORT", "5000"),
		LogLevel:       envOrDefault("LOG_LEVEL", "info"),
		LogFormat:      envOrDefault("LOG_FORMAT", "json"),
		CronSpec:       os.Getenv("SCRAPE_CRON"),
		CORS:           envList("CORS_ORIGINS"),
		TelegramToken:  envOrDefault("TELEGRAM_TOKEN", os.Getenv("TELEGRAM_BOT_TOKEN")),
		TelegramChat:   os.Getenv("TELEGRAM_CHAT_ID"),
		NotifyHeader:   os.Getenv("NOTIFY_HEADER"),
		StoreBackend:   strings.ToLower(envOrDefault("STORE_BACKEND", StoreFile)),
		CacheFile:      envOrDefault("CACHE_FILE", "cache.json"),
		DBHost:         envOrDefault("DB_HOST", "localhost"),
		DBPort:         envOrDefault("DB_PORT", "5432"),
		DBUser:         envOrDefault("DB_USERNAME", "postgres"),
		DBPassword:     envOrDefault("DB_PASSWORD", "postgres"),
		DBName:         envOrDefault("DB_DATABASE", "pokewatch"),
		DBSSLMode:      envOrDefault("DB_SSLMODE", "disable"),
		RedisAddr:      envOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		BrowserlessURL: os.Getenv("BROWSERLESS_URL"),
		SnapshotDir:    envOrDefault("SNAPSHOT_DIR", "snapshots"),
	}

	var err error
	cfg.RunAsync, err = envOrBool("RUN_ASYNC", false)
	collect(err)
	cfg.Pprof, err = envOrBool("ENABLE_PPROF", false)
	collect(err)
	cfg.TelegramThreadID, err = envOrIntPtr("TELEGRAM_CHAT_THREAD_ID")
	collect(err)
	cfg.BatchSize, err = envOrInt("BATCH_SIZE", 25)
	collect(err)
	cfg.RedisDB, err = envOrInt("REDIS_DB", 0)
	collect(err)
	cfg.FetchTimeout, err = envOrDuration("FETCH_TIMEOUT", 20*time.Second)
	collect(err)
	cfg.RenderTimeout, err = envOrDuration("RENDER_TIMEOUT", 45*time.Second)
	collect(err)
	cfg.FetchRetries, err = envOrInt("FETCH_RETRIES", 3)
	collect(err)
	cfg.FetchBackoff, err = envOrDuration("FETCH_BACKOFF", 600*time.Millisecond)
	collect(err)
	cfg.SaveSnapshots, err = envOrBool("SAVE_HTML_SNAPSHOT", true)
	collect(err)

	targets, err := loadTargets()
	collect(err)
	cfg.Targets = targets

	if err := errors.Join(errs...); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch c.StoreBackend {
	case StoreFile, StorePostgres, StoreRedis:
	default:
		return fmt.Errorf("invalid STORE_BACKEND %q", c.StoreBackend)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("invalid BATCH_SIZE %d", c.BatchSize)
	}
	if c.StoreBackend == StorePostgres && (c.DBHost == "" || c.DBUser == "" || c.DBName == "") {
		return errors.New("missing database configuration")
	}
	if len(c.Targets) == 0 {
		return errors.New("no targets configured")
	}
	names := map[string]bool{}
	for _, t := range c.Targets {
		if t.Name == "" {
			return errors.New("target without a name")
		}
		if names[t.Name] {
			return fmt.Errorf("duplicate target %q", t.Name)
		}
		names[t.Name] = true
		if t.BaseOrigin == "" {
			return fmt.Errorf("target %q: missing base_origin", t.Name)
		}
		if t.Index.URLTemplate != "" && !strings.Contains(t.Index.URLTemplate, extract.HandlePlaceholder) {
			return fmt.Errorf("target %q: url_template must contain %s", t.Name, extract.HandlePlaceholder)
		}
	}
	return nil
}

func (c Config) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

func loadTargets() ([]model.Target, error) {
	if path := os.Getenv("TARGETS_FILE"); path != "" {
		return targetsFromFile(path)
	}
	target, err := defaultTarget()
	if err != nil {
		return nil, err
	}
	return []model.Target{target}, nil
}

func targetsFromFile(path string) ([]model.Target, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read TARGETS_FILE: %w", err)
	}
	var targets []model.Target
	if err := json5.Unmarshal(raw, &targets); err != nil {
		return nil, fmt.Errorf("parse TARGETS_FILE: %w", err)
	}
	return targets, nil
}

// defaultTarget describes the JB Hi-Fi Pokémon trading card listing.
func defaultTarget() (model.Target, error) {
	forceHTML, err := envOrBool("FORCE_HTML", true)
	if err != nil {
		return model.Target{}, err
	}
	providers := []string{model.ProviderAlgolia, model.ProviderBrowserless}
	if forceHTML {
		providers = []string{model.ProviderBrowserless}
	}
	if list := envList("PROVIDERS"); len(list) > 0 {
		providers = list
	}

	hitsPerPage, err := envOrInt("ALGOLIA_HITS_PER_PAGE", 1000)
	if err != nil {
		return model.Target{}, err
	}
	origin := envOrDefault("BASE_ORIGIN", DefaultBaseOrigin)

	return model.Target{
		Name:          DefaultTargetName,
		BaseOrigin:    origin,
		CollectionURL: envOrDefault("COLLECTION_URL", DefaultCollectionURL),
		Providers:     providers,
		HTML: model.HTMLRule{
			Selector: "a[href]",
			Keywords: []string{"/products/"},
		},
		Index: model.IndexRule{
			URL:    envOrDefault("ALGOLIA_URL", fmt.Sprintf(DefaultAlgoliaURL, envOrDefault("ALGOLIA_INDEX", DefaultAlgoliaIndex))),
			AppID:  os.Getenv("ALGOLIA_APP_ID"),
			APIKey: os.Getenv("ALGOLIA_API_KEY"),
			Filters: map[string]string{
				"preamble": "Card Game",
				"vendor":   "POKEMON TCG",
			},
			HandleField: "handle",
			URLTemplate: strings.TrimRight(origin, "/") + "/products/{handle}",
			HitsPerPage: hitsPerPage,
		},
	}, nil
}

func envOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func envOrInt(key string, fallback int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}

func envOrIntPtr(key string) (*int, error) {
	val := os.Getenv(key)
	if val == "" {
		return nil, nil
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", key, err)
	}
	return &parsed, nil
}

func envOrBool(key string, fallback bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}

// envOrDuration accepts Go durations ("30s") or a bare number of seconds.
func envOrDuration(key string, fallback time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	if secs, err := strconv.ParseFloat(val, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return fallback, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}

func envList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
