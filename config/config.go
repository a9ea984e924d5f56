package config

import (
	"embed"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

//go:embed sites/*.yaml
var embeddedSites embed.FS

type Config struct {
	Fetch      FetchConfig
	Proxy      ProxyConfig
	Search     SearchConfig
	LLM        LLMConfig
	Extraction ExtractionConfig
	Storage    StorageConfig
	Cache      CacheConfig
	Scheduler  SchedulerConfig
	HTTP       HTTPConfig
	LogFile    string
	LogLevel   string
	Sites      []*SiteConfig
}

type FetchConfig struct {
	Timeout          time.Duration
	Retries          int
	MinContentLength int
	BrowserEnabled   bool
	BrowserTimeout   time.Duration
	BrowserHeadless  bool
	BrowserScroll    bool
}

type ProxyConfig struct {
	URL string
}

type SearchConfig struct {
	APIKey   string
	Endpoint string
	Timeout  time.Duration
	RPS      float64
}

type LLMConfig struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
	Timeout  time.Duration
	MaxChars int
}

type ExtractionConfig struct {
	Order []string
}

type StorageConfig struct {
	DBPath      string
	DatabaseURL string
	RedisAddr   string
	RedisPass   string
	S3          S3Config
}

type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	Prefix    string
}

type CacheConfig struct {
	TTL         time.Duration
	NegativeTTL time.Duration
}

type SchedulerConfig struct {
	Interval time.Duration
	Cron     string
	Batch    int
}

type HTTPConfig struct {
	Addr      string
	RateLimit int
}

// SiteConfig describes one recognized listing-site family.
type SiteConfig struct {
	ID              string         `yaml:"id"`
	Name            string         `yaml:"name"`
	Domains         []string       `yaml:"domains"`
	URLPattern      string         `yaml:"url_pattern"`
	SearchQualifier string         `yaml:"search_qualifier"`
	Priority        int            `yaml:"priority"`
	Selectors       SelectorConfig `yaml:"selectors"`

	pattern *regexp.Regexp
}

type SelectorConfig struct {
	Address      string `yaml:"address"`
	Price        string `yaml:"price"`
	Facts        string `yaml:"facts"`
	Beds         string `yaml:"beds"`
	Baths        string `yaml:"baths"`
	SqFt         string `yaml:"sqft"`
	PropertyType string `yaml:"property_type"`
	YearBuilt    string `yaml:"year_built"`
	Description  string `yaml:"description"`
	Features     string `yaml:"features"`
	Images       string `yaml:"images"`
	ImageAttr    string `yaml:"image_attr"`
	Attribution  string `yaml:"attribution"`
	Company      string `yaml:"company"`
}

// MatchesHost reports whether host belongs to one of the site's domains.
func (s *SiteConfig) MatchesHost(host string) bool {
	host = strings.ToLower(strings.TrimPrefix(host, "www."))
	for _, d := range s.Domains {
		d = strings.ToLower(d)
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// SiteForURL returns the site family rawURL belongs to, or nil.
func SiteForURL(sites []*SiteConfig, rawURL string) *SiteConfig {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil
	}
	for _, site := range sites {
		if site.MatchesHost(u.Hostname()) {
			return site
		}
	}
	return nil
}

// IsListingURL reports whether u looks like a listing page on this site.
func (s *SiteConfig) IsListingURL(u string) bool {
	if s.pattern == nil {
		return false
	}
	return s.pattern.MatchString(u)
}

func (s *SiteConfig) compile() error {
	if s.URLPattern == "" {
		return nil
	}
	re, err := regexp.Compile(s.URLPattern)
	if err != nil {
		return fmt.Errorf("site %s: invalid url_pattern: %w", s.ID, err)
	}
	s.pattern = re
	return nil
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Fetch: FetchConfig{
			Timeout:          getEnvDuration("FETCH_TIMEOUT", 30*time.Second),
			Retries:          getEnvInt("FETCH_RETRIES", 1),
			MinContentLength: getEnvInt("MIN_CONTENT_LENGTH", 500),
			BrowserEnabled:   getEnvBool("BROWSER_ENABLED", true),
			BrowserTimeout:   getEnvDuration("BROWSER_TIMEOUT", 45*time.Second),
			BrowserHeadless:  getEnvBool("BROWSER_HEADLESS", true),
			BrowserScroll:    getEnvBool("BROWSER_SCROLL", true),
		},
		Proxy: ProxyConfig{
			URL: os.Getenv("PROXY_URL"),
		},
		Search: SearchConfig{
			APIKey:   os.Getenv("SEARCH_API_KEY"),
			Endpoint: getEnv("SEARCH_ENDPOINT", "https://serpapi.com/search.json"),
			Timeout:  getEnvDuration("SEARCH_TIMEOUT", 15*time.Second),
			RPS:      getEnvFloat("SEARCH_RPS", 1),
		},
		LLM: LLMConfig{
			Provider: getEnv("LLM_PROVIDER", "openai"),
			APIKey:   os.Getenv("LLM_API_KEY"),
			Model:    os.Getenv("LLM_MODEL"),
			BaseURL:  os.Getenv("LLM_BASE_URL"),
			Timeout:  getEnvDuration("LLM_TIMEOUT", 60*time.Second),
			MaxChars: getEnvInt("LLM_MAX_CHARS", 12000),
		},
		Extraction: ExtractionConfig{
			Order: splitList(getEnv("EXTRACTION_ORDER", "site,ai")),
		},
		Storage: StorageConfig{
			DBPath:      getEnv("DB_PATH", "scraper.db"),
			DatabaseURL: os.Getenv("DATABASE_URL"),
			RedisAddr:   os.Getenv("REDIS_ADDR"),
			RedisPass:   os.Getenv("REDIS_PASSWORD"),
			S3: S3Config{
				Bucket:    os.Getenv("S3_BUCKET"),
				Region:    getEnv("S3_REGION", "us-east-1"),
				Endpoint:  os.Getenv("S3_ENDPOINT"),
				AccessKey: os.Getenv("S3_ACCESS_KEY"),
				SecretKey: os.Getenv("S3_SECRET_KEY"),
				Prefix:    getEnv("S3_PREFIX", "snapshots"),
			},
		},
		Cache: CacheConfig{
			TTL:         getEnvDuration("CACHE_TTL", 24*time.Hour),
			NegativeTTL: getEnvDuration("NEGATIVE_TTL", 30*time.Minute),
		},
		Scheduler: SchedulerConfig{
			Cron:  os.Getenv("INTAKE_CRON"),
			Batch: getEnvInt("INTAKE_BATCH", 5),
		},
		HTTP: HTTPConfig{
			Addr:      getEnv("HTTP_ADDR", ":8080"),
			RateLimit: getEnvInt("HTTP_RATE_LIMIT", 60),
		},
		LogFile:  getEnv("LOG_FILE", "daemon.log"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if interval := os.Getenv("INTAKE_INTERVAL"); interval != "" {
		d, err := time.ParseDuration(interval)
		if err == nil {
			cfg.Scheduler.Interval = d
		}
	}

	sites, err := LoadSites(os.Getenv("SITES_DIR"))
	if err != nil {
		return nil, err
	}
	cfg.Sites = sites

	return cfg, nil
}

// LoadSites reads the built-in site families, then lets YAML files in dir
// override or extend them by id. Sites are returned by ascending priority.
func LoadSites(dir string) ([]*SiteConfig, error) {
	byID := make(map[string]*SiteConfig)

	if err := readSites(embeddedSites, "sites", byID); err != nil {
		return nil, err
	}
	if dir != "" {
		if _, err := os.Stat(dir); err == nil {
			if err := readSites(os.DirFS(dir), ".", byID); err != nil {
				return nil, err
			}
		}
	}

	sites := make([]*SiteConfig, 0, len(byID))
	for _, site := range byID {
		if err := site.compile(); err != nil {
			return nil, err
		}
		sites = append(sites, site)
	}
	sort.Slice(sites, func(i, j int) bool {
		if sites[i].Priority != sites[j].Priority {
			return sites[i].Priority < sites[j].Priority
		}
		return sites[i].ID < sites[j].ID
	})
	return sites, nil
}

func readSites(fsys fs.FS, dir string, into map[string]*SiteConfig) error {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".yaml" {
			continue
		}

		data, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return err
		}

		var site SiteConfig
		if err := yaml.Unmarshal(data, &site); err != nil {
			return fmt.Errorf("site config %s: %w", entry.Name(), err)
		}
		if site.ID == "" {
			return fmt.Errorf("site config %s: missing id", entry.Name())
		}

		into[site.ID] = &site
	}

	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
