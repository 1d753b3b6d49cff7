package conf

import (
	"fmt"
	"os"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/unred/signal-bridge/internal/biz/domain"
	"github.com/unred/signal-bridge/internal/biz/usecase"
	"github.com/unred/signal-bridge/internal/service"
)

// Config represents application configuration
type Config struct {
	// Telegram chat source
	Telegram TelegramConfig

	// Signal converter endpoint and delivery protocol
	Converter ConverterConfig

	// Classification and queueing
	Pipeline PipelineConfig

	// Delivery worker
	Delivery DeliveryConfig

	// Watermark persistence
	State StateConfig

	// Inspection HTTP API
	API APIConfig

	// Feishu delivery mirror (optional)
	Feishu FeishuConfig

	// Routes maps chat id to its master/room hints
	Routes map[int64]domain.Route

	// Debug mode
	Debug bool

	// first malformed value seen while loading, reported by Validate
	loadErr *ConfigError
}

// TelegramConfig contains Telegram configuration
type TelegramConfig struct {
	BotToken       string        `env:"TG_BOT_TOKEN" validate:"required"`
	AllowedChatIDs []int64       `env:"ALLOWED_CHAT_IDS" validate:"required,min=1"`
	PollTimeout    time.Duration `env:"TG_POLL_TIMEOUT" validate:"gt=0"`
}

// ConverterConfig contains signal converter configuration
type ConverterConfig struct {
	LoginURL           string        `env:"SIGNALCONVERTER_LOGIN_URL" validate:"required,url"`
	URL                string        `env:"SIGNALCONVERTER_URL" validate:"required,url"`
	PIN                string        `env:"SIGNALCONVERTER_PIN" validate:"required"`
	TokenTTL           time.Duration `env:"SIGNALCONVERTER_TOKEN_TTL" validate:"gt=0"`
	RoutingErrorMarker string        `env:"ROUTING_ERROR_MARKER"`
	RoutingFallback    bool          `env:"ROUTING_FALLBACK"`
}

// PipelineConfig contains classification and queue configuration
type PipelineConfig struct {
	ClassifierMode string `env:"CLASSIFIER_MODE" validate:"oneof=strict loose"`
	QueueCapacity  int    `env:"QUEUE_CAPACITY" validate:"min=1"`
}

// DeliveryConfig contains delivery worker configuration
type DeliveryConfig struct {
	Mode     string        `env:"DELIVERY_MODE" validate:"oneof=push pull"`
	RetryMin time.Duration `env:"DELIVERY_RETRY_MIN" validate:"gt=0"`
	RetryMax time.Duration `env:"DELIVERY_RETRY_MAX" validate:"gtefield=RetryMin"`

	// Stale queue monitor, a zero interval disables it
	StaleInterval time.Duration `env:"STALE_CHECK_INTERVAL" validate:"gte=0"`
	StaleAfter    time.Duration `env:"STALE_AFTER" validate:"gt=0"`
}

// StateConfig contains watermark store configuration
type StateConfig struct {
	Backend string `env:"STATE_BACKEND" validate:"oneof=json sqlite"`
	File    string `env:"STATE_FILE" validate:"required_if=Backend json"`
	DBPath  string `env:"STATE_DB_PATH" validate:"required_if=Backend sqlite"`
}

// APIConfig contains inspection API configuration
type APIConfig struct {
	Port int `env:"API_PORT" validate:"min=1,max=65535"`
}

// FeishuConfig contains Feishu mirror configuration
type FeishuConfig struct {
	AppID        string `env:"FEISHU_APP_ID"`
	AppSecret    string `env:"FEISHU_APP_SECRET" validate:"required_with=AppID"`
	NotifyChatID string `env:"FEISHU_NOTIFY_CHAT_ID" validate:"required_with=AppID"`
}

// Enabled reports whether the Feishu mirror is configured
func (c FeishuConfig) Enabled() bool {
	return c.AppID != "" && c.AppSecret != "" && c.NotifyChatID != ""
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	cfg := &Config{Debug: os.Getenv("DEBUG") == "true"}

	cfg.Telegram = TelegramConfig{
		BotToken:       strings.TrimSpace(os.Getenv("TG_BOT_TOKEN")),
		AllowedChatIDs: cfg.chatIDList("ALLOWED_CHAT_IDS"),
		PollTimeout:    cfg.seconds("TG_POLL_TIMEOUT", 10*time.Second),
	}

	pin := strings.TrimSpace(os.Getenv("SIGNALCONVERTER_PIN"))
	if pin == "" {
		pin = strings.TrimSpace(os.Getenv("APP_PIN"))
	}
	cfg.Converter = ConverterConfig{
		LoginURL:           envOr("SIGNALCONVERTER_LOGIN_URL", "https://www.unred.it/signalconverter/api/login"),
		URL:                envOr("SIGNALCONVERTER_URL", "https://www.unred.it/signalconverter/api/convert-send"),
		PIN:                pin,
		TokenTTL:           cfg.seconds("SIGNALCONVERTER_TOKEN_TTL", 540*time.Second),
		RoutingErrorMarker: strings.ToLower(envOr("ROUTING_ERROR_MARKER", "room")),
		RoutingFallback:    cfg.boolean("ROUTING_FALLBACK", true),
	}

	cfg.Pipeline = PipelineConfig{
		ClassifierMode: strings.ToLower(envOr("CLASSIFIER_MODE", string(usecase.ClassifierStrict))),
		QueueCapacity:  cfg.integer("QUEUE_CAPACITY", 200),
	}

	cfg.Delivery = DeliveryConfig{
		Mode:     strings.ToLower(envOr("DELIVERY_MODE", "push")),
		RetryMin: cfg.seconds("DELIVERY_RETRY_MIN", 5*time.Second),
		RetryMax: cfg.seconds("DELIVERY_RETRY_MAX", 60*time.Second),

		StaleInterval: cfg.seconds("STALE_CHECK_INTERVAL", 5*time.Minute),
		StaleAfter:    cfg.seconds("STALE_AFTER", 10*time.Minute),
	}

	cfg.State = StateConfig{
		Backend: strings.ToLower(envOr("STATE_BACKEND", "json")),
		File:    envOr("STATE_FILE", "unred_state.json"),
		DBPath:  envOr("STATE_DB_PATH", "unred_state.db"),
	}

	cfg.API = APIConfig{Port: cfg.integer("API_PORT", 8787)}

	cfg.Feishu = FeishuConfig{
		AppID:        os.Getenv("FEISHU_APP_ID"),
		AppSecret:    os.Getenv("FEISHU_APP_SECRET"),
		NotifyChatID: os.Getenv("FEISHU_NOTIFY_CHAT_ID"),
	}

	// Routes: YAML file first, CHAT_ROUTES entries override it
	routes, err := LoadRoutesConfig(os.Getenv("ROUTES_CONFIG_PATH"))
	if err != nil {
		cfg.fail("ROUTES_CONFIG_PATH", err.Error())
		routes = map[int64]domain.Route{}
	}
	inline, err := ParseChatRoutes(os.Getenv("CHAT_ROUTES"))
	if err != nil {
		cfg.fail("CHAT_ROUTES", err.Error())
	}
	for id, r := range inline {
		routes[id] = r
	}
	cfg.Routes = routes

	return cfg
}

// ToDeliveryConfig converts to delivery usecase configuration
func (c *Config) ToDeliveryConfig() usecase.DeliveryConfig {
	return usecase.DeliveryConfig{
		TokenTTL:           c.Converter.TokenTTL,
		RoutingFallback:    c.Converter.RoutingFallback,
		RoutingErrorMarker: c.Converter.RoutingErrorMarker,
	}
}

// ToRelayConfig converts to relay service configuration
func (c *Config) ToRelayConfig() service.RelayConfig {
	cfg := service.DefaultRelayConfig()
	cfg.Mode = c.Delivery.Mode
	cfg.RetryMin = c.Delivery.RetryMin
	cfg.RetryMax = c.Delivery.RetryMax
	return cfg
}

// RouteFor returns the route of an allowed chat, with defaults applied.
// Chats without a master hint are not routable.
func (c *Config) RouteFor(chatID int64) (domain.Route, bool) {
	r, ok := c.Routes[chatID]
	if !ok || r.MasterHint == "" {
		return domain.Route{}, false
	}
	return r.WithDefaults(), true
}

// UnroutedChats lists allowed chats that have no master hint
func (c *Config) UnroutedChats() []int64 {
	var out []int64
	for _, id := range c.Telegram.AllowedChatIDs {
		if _, ok := c.RouteFor(id); !ok {
			out = append(out, id)
		}
	}
	return out
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report env var names instead of Go field names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("env"); name != "" {
			return name
		}
		return f.Name
	})
	return v
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.loadErr != nil {
		return c.loadErr
	}

	if err := validate.Struct(c); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok || len(verrs) == 0 {
			return &ConfigError{Field: "config", Message: err.Error()}
		}
		fe := verrs[0]
		return &ConfigError{Field: fe.Field(), Message: describe(fe)}
	}

	if len(c.Routes) == 0 {
		return &ConfigError{Field: "CHAT_ROUTES/ROUTES_CONFIG_PATH", Message: "at least one chat route is required"}
	}
	if _, err := usecase.ParseClassifierMode(c.Pipeline.ClassifierMode); err != nil {
		return &ConfigError{Field: "CLASSIFIER_MODE", Message: err.Error()}
	}
	return nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if", "required_with":
		return "required"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "url":
		return "must be a URL"
	case "gtefield":
		return "must not be lower than the minimum"
	default:
		if fe.Param() != "" {
			return fmt.Sprintf("failed %s=%s", fe.Tag(), fe.Param())
		}
		return "failed " + fe.Tag()
	}
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}

func (c *Config) fail(field, msg string) {
	if c.loadErr == nil {
		c.loadErr = &ConfigError{Field: field, Message: msg}
	}
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func (c *Config) integer(key string, def int) int {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		c.fail(key, "must be an integer")
		return def
	}
	return parsed
}

func (c *Config) boolean(key string, def bool) bool {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return def
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		c.fail(key, "must be true or false")
		return def
	}
	return parsed
}

// seconds accepts a bare number of seconds or a Go duration ("90s", "2m")
func (c *Config) seconds(key string, def time.Duration) time.Duration {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return def
	}
	if n, err := strconv.Atoi(val); err == nil {
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		c.fail(key, "must be seconds or a duration")
		return def
	}
	return d
}

func (c *Config) chatIDList(key string) []int64 {
	var ids []int64
	seen := make(map[int64]bool)
	for _, part := range strings.Split(os.Getenv(key), ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			c.fail(key, fmt.Sprintf("invalid chat id %q", part))
			continue
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
