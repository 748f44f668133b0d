package config

import (
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string           `yaml:"environment" default:"dev" validate:"required"`
	Mode        string           `yaml:"mode" default:"paper" validate:"oneof=paper live"`
	Server      ServerConfig     `yaml:"server"`
	Logging     LoggingConfig    `yaml:"logging"`
	Metrics     MetricsConfig    `yaml:"metrics"`
	Strategy    StrategyConfig   `yaml:"strategy"`
	Features    FeaturesConfig   `yaml:"features"`
	Risk        RiskConfig       `yaml:"risk"`
	Regime      RegimeConfig     `yaml:"regime"`
	Session     SessionConfig    `yaml:"session"`
	Strike      StrikeConfig     `yaml:"strike"`
	Loop        LoopConfig       `yaml:"loop"`
	Feed        FeedConfig       `yaml:"feed"`
	Broker      BrokerConfig     `yaml:"broker"`
	Events      EventsConfig     `yaml:"events"`
	Kafka       KafkaConfig      `yaml:"kafka"`
	ClickHouse  ClickHouseConfig `yaml:"clickhouse"`
	Postgres    PostgresConfig   `yaml:"postgres"`
	Redis       RedisConfig      `yaml:"redis"`
	Queue       QueueConfig      `yaml:"queue"`
}

type ServerConfig struct {
	Port            int           `yaml:"port" default:"8080" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
	CORS            bool          `yaml:"cors" default:"true"`
	SlowRequest     time.Duration `yaml:"slow_request" default:"500ms"`
}

type LoggingConfig struct {
	Level   string `yaml:"level" default:"info"`
	Format  string `yaml:"format" default:"console" validate:"oneof=json console"`
	Output  string `yaml:"output" default:"stdout"`
	Collect struct {
		Enabled   bool          `yaml:"enabled"`
		Interval  time.Duration `yaml:"interval" default:"30s"`
		Threshold int           `yaml:"threshold" default:"100"`
	} `yaml:"collect"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" default:"true"`
	Path    string `yaml:"path" default:"/metrics"`
}

// StrategyConfig holds the sizing and exit parameters of the strategy.
type StrategyConfig struct {
	Index              string  `yaml:"index" default:"NIFTY" validate:"required"`
	LotSize            int     `yaml:"lot_size" default:"65" validate:"gt=0"`
	Capital            float64 `yaml:"capital" default:"200000" validate:"gt=0"`
	BaseRisk           float64 `yaml:"base_risk" default:"0.01" validate:"gt=0,lt=1"`
	TargetRatio        float64 `yaml:"target_ratio" default:"1.5" validate:"gt=0"`
	MinStopDistance    float64 `yaml:"min_stop_distance" default:"30" validate:"gt=0"`
	StopMomentumFactor float64 `yaml:"stop_momentum_factor" default:"0.5" validate:"gt=0"`
	TrailPct           float64 `yaml:"trail_pct" default:"0.01" validate:"gte=0,lt=1"`
	// ExpiryOverride pins the contract expiry (YYYY-MM-DD) instead of next Thursday.
	ExpiryOverride string `yaml:"expiry_override"`
}

// FeaturesConfig sets the indicator lookbacks, in spot samples.
type FeaturesConfig struct {
	RSIPeriod int `yaml:"rsi_period" default:"14" validate:"gt=1"`
	FastMA    int `yaml:"fast_ma" default:"9" validate:"gt=0"`
	SlowMA    int `yaml:"slow_ma" default:"21" validate:"gt=0"`
	HVPeriod  int `yaml:"hv_period" default:"20" validate:"gt=1"`
}

type RiskConfig struct {
	MaxTrades         int           `yaml:"max_trades" default:"1000" validate:"gt=0"`
	MaxDailyLoss      float64       `yaml:"max_daily_loss" default:"300000" validate:"gt=0"`
	MinWinRatePct     float64       `yaml:"min_win_rate_pct" default:"40"`
	MaxPositions      int           `yaml:"max_positions" default:"1" validate:"gt=0"`
	DecisionMaxAge    time.Duration `yaml:"decision_max_age" default:"120s"`
	MaxStrikeDistance float64       `yaml:"max_strike_distance" default:"200" validate:"gt=0"`
}

// RegimeConfig holds the VIX breakpoints and the per-regime thresholds.
type RegimeConfig struct {
	VixUltraLow  float64 `yaml:"vix_ultra_low" default:"12"`
	VixNormalLow float64 `yaml:"vix_normal_low" default:"13"`
	VixSpiking   float64 `yaml:"vix_spiking" default:"14.5"`
	VixPanic     float64 `yaml:"vix_panic" default:"17"`
	Confidence   struct {
		UltraLow  int `yaml:"ultra_low" default:"75"`
		NormalLow int `yaml:"normal_low" default:"70"`
		Spiking   int `yaml:"spiking" default:"60"`
		Panic     int `yaml:"panic" default:"55"`
		Fallback  int `yaml:"fallback" default:"50"`
	} `yaml:"confidence"`
	IntervalHighVol   time.Duration `yaml:"interval_high_vol" default:"90s"`
	IntervalLowVol    time.Duration `yaml:"interval_low_vol" default:"240s"`
	OpeningPenaltyPct int           `yaml:"opening_penalty_pct" default:"10"`
	OpeningWindow     time.Duration `yaml:"opening_window" default:"30m"`
}

type SessionConfig struct {
	Timezone string `yaml:"timezone" default:"Asia/Kolkata"`
	Open     string `yaml:"open" default:"09:20"`
	Close    string `yaml:"close" default:"15:28"`
}

type StrikeConfig struct {
	DeltaMin float64 `yaml:"delta_min" default:"0.25"`
	IVMaxPct float64 `yaml:"iv_max_pct" default:"25"`
}

type LoopConfig struct {
	PollInterval        time.Duration `yaml:"poll_interval" default:"1s"`
	HistorySize         int           `yaml:"history_size" default:"300" validate:"gt=0"`
	Window              time.Duration `yaml:"window" default:"5m"`
	WaitLogInterval     time.Duration `yaml:"wait_log_interval" default:"5s"`
	StatusFlushInterval time.Duration `yaml:"status_flush_interval" default:"2s"`
}

type FeedConfig struct {
	Source            string        `yaml:"source" default:"websocket" validate:"oneof=websocket kafka"`
	URL               string        `yaml:"url"`
	APIKey            string        `yaml:"api_key"`
	ClientCode        string        `yaml:"client_code"`
	FeedToken         string        `yaml:"feed_token"`
	SpotToken         string        `yaml:"spot_token" default:"26000"`
	VixToken          string        `yaml:"vix_token" default:"26017"`
	HeavyweightTokens []string      `yaml:"heavyweight_tokens" default:"[\"2885\",\"1333\",\"4963\",\"1594\",\"11536\"]"`
	OptionTokens      []string      `yaml:"option_tokens"`
	ReconnectDelay    time.Duration `yaml:"reconnect_delay" default:"5s"`
	PingInterval      time.Duration `yaml:"ping_interval" default:"30s"`
	MaxRPS            float64       `yaml:"max_rps" default:"50"`
	BufferSize        int           `yaml:"buffer_size" default:"1024"`
}

type BrokerConfig struct {
	BaseURL         string        `yaml:"base_url"`
	APIKey          string        `yaml:"api_key"`
	Timeout         time.Duration `yaml:"timeout" default:"5s"`
	OrderRPS        float64       `yaml:"order_rps" default:"5"`
	OrderBurst      int           `yaml:"order_burst" default:"2"`
	BreakerFailures uint32        `yaml:"breaker_failures" default:"3"`
	BreakerTimeout  time.Duration `yaml:"breaker_timeout" default:"30s"`
	// PaperMargin is the free margin the paper broker reports; zero means unknown.
	PaperMargin     float64       `yaml:"paper_margin"`
}

type EventsConfig struct {
	Backend      string        `yaml:"backend" default:"none" validate:"oneof=kafka clickhouse postgres none"`
	Buffer       int           `yaml:"buffer" default:"1024"`
	BatchSize    int           `yaml:"batch_size" default:"100"`
	BatchTimeout time.Duration `yaml:"batch_timeout" default:"1s"`
}

type KafkaConfig struct {
	Brokers      []string `yaml:"brokers"`
	RequiredAcks int      `yaml:"required_acks" default:"1"`
	Compression  string   `yaml:"compression" default:"snappy"`
	Topics       struct {
		Ticks     string `yaml:"ticks" default:"oracle.ticks"`
		Decisions string `yaml:"decisions" default:"oracle.decisions"`
		Trades    string `yaml:"trades" default:"oracle.trades"`
		Logs      string `yaml:"logs" default:"oracle.logs"`
	} `yaml:"topics"`
	Producer struct {
		MaxAttempts  int           `yaml:"max_attempts" default:"3"`
		Linger       time.Duration `yaml:"linger" default:"10ms"`
		BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
		BatchSize    int           `yaml:"batch_size" default:"100"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
		Async        bool          `yaml:"async"`
	} `yaml:"producer"`
	Consumer struct {
		GroupID    string        `yaml:"group_id" default:"options-oracle"`
		Workers    int           `yaml:"workers" default:"1"`
		BufferSize int           `yaml:"buffer_size" default:"256"`
		RetryMax   int           `yaml:"retry_max" default:"3"`
		BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
		BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
		DLQTopic   string        `yaml:"dlq_topic"`
		// MaxAge skips ticks older than this; zero keeps everything.
		MaxAge     time.Duration `yaml:"max_age" default:"10s"`
		MinBytes   int           `yaml:"min_bytes" default:"1"`
		MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
	} `yaml:"consumer"`
}

type ClickHouseConfig struct {
	Host         string        `yaml:"host" default:"localhost"`
	Port         int           `yaml:"port" default:"9000"`
	Database     string        `yaml:"database" default:"oracle"`
	User         string        `yaml:"user" default:"default"`
	Password     string        `yaml:"password"`
	AsyncInsert  bool          `yaml:"async_insert"`
	DialTimeout  time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
}

type PostgresConfig struct {
	DSN          string        `yaml:"dsn"`
	MaxOpenConns int           `yaml:"max_open_conns" default:"5"`
	Timeout      time.Duration `yaml:"timeout" default:"5s"`
}

type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr" default:"localhost:6379"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Prefix   string        `yaml:"prefix" default:"oracle"`
	StateTTL time.Duration `yaml:"state_ttl" default:"24h"`
}

type QueueConfig struct {
	Workers    int           `yaml:"workers" default:"2"`
	RetryLimit int           `yaml:"retry_limit" default:"3"`
	RetryDelay time.Duration `yaml:"retry_delay" default:"2s"`
}

var validate = validator.New()

// Default returns a configuration populated from struct defaults only.
func Default() *Config {
	var c Config
	_ = defaults.Set(&c)
	return &c
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes, applies defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.applyEnv()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("ORACLE_MODE"); v != "" {
		c.Mode = v
	}
	if v := os.Getenv("FEED_URL"); v != "" {
		c.Feed.URL = v
	}
	if v := os.Getenv("FEED_API_KEY"); v != "" {
		c.Feed.APIKey = v
	}
	if v := os.Getenv("FEED_TOKEN"); v != "" {
		c.Feed.FeedToken = v
	}
	if v := os.Getenv("OPTION_TOKENS"); v != "" {
		c.Feed.OptionTokens = strings.Split(v, ",")
	}
	if v := os.Getenv("EVENTS_BACKEND"); v != "" {
		c.Events.Backend = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		c.Postgres.DSN = v
	}
	if v := os.Getenv("BROKER_BASE_URL"); v != "" {
		c.Broker.BaseURL = v
	}
	if v := os.Getenv("BROKER_API_KEY"); v != "" {
		c.Broker.APIKey = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Mode == "live" && c.Broker.BaseURL == "" {
		return fmt.Errorf("broker.base_url is required in live mode")
	}
	if c.Feed.Source == "websocket" && c.Feed.URL == "" {
		return fmt.Errorf("feed.url is required for websocket source")
	}
	if (c.Feed.Source == "kafka" || c.Events.Backend == "kafka") && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is used")
	}
	if c.Events.Backend == "postgres" && c.Postgres.DSN == "" {
		return fmt.Errorf("postgres.dsn is required for the postgres events backend")
	}
	if c.Features.FastMA >= c.Features.SlowMA {
		return fmt.Errorf("features.fast_ma must be below features.slow_ma, got %d/%d",
			c.Features.FastMA, c.Features.SlowMA)
	}
	r := c.Regime
	if !(r.VixUltraLow <= r.VixNormalLow && r.VixNormalLow <= r.VixSpiking && r.VixSpiking <= r.VixPanic) {
		return fmt.Errorf("regime breakpoints must be ascending, got %v/%v/%v/%v",
			r.VixUltraLow, r.VixNormalLow, r.VixSpiking, r.VixPanic)
	}
	if _, err := time.LoadLocation(c.Session.Timezone); err != nil {
		return fmt.Errorf("session.timezone: %w", err)
	}
	if _, err := time.Parse("15:04", c.Session.Open); err != nil {
		return fmt.Errorf("session.open must be HH:MM, got '%s'", c.Session.Open)
	}
	if _, err := time.Parse("15:04", c.Session.Close); err != nil {
		return fmt.Errorf("session.close must be HH:MM, got '%s'", c.Session.Close)
	}
	return nil
}
