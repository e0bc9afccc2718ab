package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Testnet     bool   `yaml:"testnet"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Scheduler struct {
		CycleInterval time.Duration `yaml:"cycle_interval"`
	} `yaml:"scheduler"`
	Exchange struct {
		BaseURL        string        `yaml:"base_url"`
		WebSocketURL   string        `yaml:"websocket_url"`
		Category       string        `yaml:"category"`
		RequestTimeout time.Duration `yaml:"request_timeout"`
		RateLimitRPS   float64       `yaml:"rate_limit_rps"`
		RateLimitBurst int           `yaml:"rate_limit_burst"`
		Breaker        struct {
			MaxRequests uint32        `yaml:"max_requests"`
			Interval    time.Duration `yaml:"interval"`
			Timeout     time.Duration `yaml:"timeout"`
			MinRequests uint32        `yaml:"min_requests"`
			FailureRate float64       `yaml:"failure_rate"`
		} `yaml:"breaker"`
		StreamEnabled  bool          `yaml:"stream_enabled"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval"`
		// Symbols is the static fallback universe used when tickers cannot
		// be fetched, and the stream subscription list.
		Symbols []string `yaml:"symbols"`
	} `yaml:"exchange"`
	Storage struct {
		Backend string `yaml:"backend"` // clickhouse or postgres
	} `yaml:"storage"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Postgres struct {
		DSN          string `yaml:"dsn"`
		MaxOpenConns int    `yaml:"max_open_conns"`
		MaxIdleConns int    `yaml:"max_idle_conns"`
	} `yaml:"postgres"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		SignalsTopic string   `yaml:"signals_topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			Enabled       bool          `yaml:"enabled"`
			VerdictsTopic string        `yaml:"verdicts_topic"`
			GroupID       string        `yaml:"group_id"`
			DLQTopic      string        `yaml:"dlq_topic"`
			Workers       int           `yaml:"workers"`
			BufferSize    int           `yaml:"buffer_size"`
			RetryMax      int           `yaml:"retry_max"`
			BackoffMin    time.Duration `yaml:"backoff_min"`
			BackoffMax    time.Duration `yaml:"backoff_max"`
			MinBytes      int           `yaml:"min_bytes"`
			MaxBytes      int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	Filter      FilterConfig      `yaml:"filter"`
	Acquisition AcquisitionConfig `yaml:"acquisition"`
	Consensus   ConsensusConfig   `yaml:"consensus"`
	Indicators  struct {
		ServiceURL string        `yaml:"service_url"`
		Timeout    time.Duration `yaml:"timeout"`
		Retries    int           `yaml:"retries"`
	} `yaml:"indicators"`
}

// FilterConfig holds every threshold and TTL of the dynamic filter pipeline.
// Zero fields are replaced with defaults at load time.
type FilterConfig struct {
	ResultTTL            time.Duration `yaml:"result_ttl"`
	MaturityTTL          time.Duration `yaml:"maturity_ttl"`
	MinAgeDays           int           `yaml:"min_age_days"`
	MaxUniverse          int           `yaml:"max_universe"`
	VolumeBatchSize      int           `yaml:"volume_batch_size"`
	Window15m            int           `yaml:"window_15m"`
	Window1h             int           `yaml:"window_1h"`
	MinSample15m         int           `yaml:"min_sample_15m"`
	MinSample1h          int           `yaml:"min_sample_1h"`
	ActivityThreshold    float64       `yaml:"activity_threshold"`
	FailRateLimit        float64       `yaml:"fail_rate_limit"`
	IntegrityBlockCycles int           `yaml:"integrity_block_cycles"`
}

// AcquisitionConfig holds the batching, concurrency, retry and timeout knobs
// of the market-data acquisition engine.
type AcquisitionConfig struct {
	BatchSize       int           `yaml:"batch_size"`
	CandleCount     int           `yaml:"candle_count"`
	MaxWorkers      int           `yaml:"max_workers"`
	MaxRetries      int           `yaml:"max_retries"`
	RetryPause      time.Duration `yaml:"retry_pause"`
	FetchTimeout    time.Duration `yaml:"fetch_timeout"`
	MinCycleTimeout time.Duration `yaml:"min_cycle_timeout"`
	PerFetchBudget  time.Duration `yaml:"per_fetch_budget"`
}

// ConsensusConfig holds the N-of-M voting thresholds.
type ConsensusConfig struct {
	MinVotes      int `yaml:"min_votes"`
	NearMissVotes int `yaml:"near_miss_votes"`
	MinNeutral    int `yaml:"min_neutral"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	c.applyDefaults()

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

	if v := os.Getenv("EXCHANGE_BASE_URL"); v != "" {
		c.Exchange.BaseURL = v
	}
	if v := os.Getenv("STORAGE_BACKEND"); v != "" {
		c.Storage.Backend = v
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		c.Postgres.DSN = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("TESTNET"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Testnet = b
		}
	}

	return c, nil
}

func (c *Config) applyDefaults() {
	f := &c.Filter
	if f.ResultTTL <= 0 {
		f.ResultTTL = 300 * time.Second
	}
	if f.MaturityTTL <= 0 {
		f.MaturityTTL = 24 * time.Hour
	}
	if f.MinAgeDays <= 0 {
		f.MinAgeDays = 15
	}
	if f.MaxUniverse <= 0 {
		f.MaxUniverse = 200
	}
	if f.VolumeBatchSize <= 0 {
		f.VolumeBatchSize = 300
	}
	if f.Window15m <= 0 {
		f.Window15m = 20
	}
	if f.Window1h <= 0 {
		f.Window1h = 50
	}
	if f.MinSample15m <= 0 {
		f.MinSample15m = 10
	}
	if f.MinSample1h <= 0 {
		f.MinSample1h = 20
	}
	if f.ActivityThreshold <= 0 {
		f.ActivityThreshold = 0.5
	}
	if f.FailRateLimit <= 0 {
		f.FailRateLimit = 0.30
	}
	if f.IntegrityBlockCycles <= 0 {
		f.IntegrityBlockCycles = 3
	}

	a := &c.Acquisition
	if a.BatchSize <= 0 {
		a.BatchSize = 6
	}
	if a.CandleCount <= 0 {
		a.CandleCount = 200
	}
	if a.MaxWorkers <= 0 {
		a.MaxWorkers = 5
	}
	if a.MaxRetries <= 0 {
		a.MaxRetries = 2
	}
	if a.RetryPause <= 0 {
		a.RetryPause = time.Second
	}
	if a.FetchTimeout <= 0 {
		a.FetchTimeout = 20 * time.Second
	}
	if a.MinCycleTimeout <= 0 {
		a.MinCycleTimeout = 60 * time.Second
	}
	if a.PerFetchBudget <= 0 {
		a.PerFetchBudget = 5 * time.Second
	}

	k := &c.Consensus
	if k.MinVotes <= 0 {
		k.MinVotes = 6
	}
	if k.NearMissVotes <= 0 {
		k.NearMissVotes = 5
	}
	if k.MinNeutral <= 0 {
		k.MinNeutral = 3
	}

	if c.Exchange.Category == "" {
		c.Exchange.Category = "linear"
	}
	if c.Exchange.RequestTimeout <= 0 {
		c.Exchange.RequestTimeout = 10 * time.Second
	}
	if c.Exchange.RateLimitRPS <= 0 {
		c.Exchange.RateLimitRPS = 10
	}
	if c.Exchange.RateLimitBurst <= 0 {
		c.Exchange.RateLimitBurst = 20
	}
	if c.Scheduler.CycleInterval <= 0 {
		c.Scheduler.CycleInterval = 15 * time.Second
	}
	if c.Exchange.ReconnectDelay <= 0 {
		c.Exchange.ReconnectDelay = 5 * time.Second
	}
	if c.Exchange.PingInterval <= 0 {
		c.Exchange.PingInterval = 20 * time.Second
	}

	s := &c.Server
	if s.Port <= 0 {
		s.Port = 8080
	}
	if s.ReadTimeout <= 0 {
		s.ReadTimeout = 10 * time.Second
	}
	if s.WriteTimeout <= 0 {
		s.WriteTimeout = 10 * time.Second
	}
	if s.ShutdownTimeout <= 0 {
		s.ShutdownTimeout = 15 * time.Second
	}

	p := &c.Kafka.Producer
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.Linger <= 0 {
		p.Linger = 50 * time.Millisecond
	}
	if p.WriteTimeout <= 0 {
		p.WriteTimeout = 10 * time.Second
	}
	if p.ReadTimeout <= 0 {
		p.ReadTimeout = 10 * time.Second
	}

	cs := &c.Kafka.Consumer
	if cs.Workers <= 0 {
		cs.Workers = 4
	}
	if cs.BufferSize <= 0 {
		cs.BufferSize = 1024
	}
	if cs.RetryMax <= 0 {
		cs.RetryMax = 3
	}
	if cs.BackoffMin <= 0 {
		cs.BackoffMin = 100 * time.Millisecond
	}
	if cs.BackoffMax <= 0 {
		cs.BackoffMax = 5 * time.Second
	}

	if c.Indicators.Timeout <= 0 {
		c.Indicators.Timeout = 3 * time.Second
	}
	if c.ClickHouse.DialTimeout <= 0 {
		c.ClickHouse.DialTimeout = 5 * time.Second
	}
	if c.ClickHouse.ReadTimeout <= 0 {
		c.ClickHouse.ReadTimeout = 10 * time.Second
	}
	if c.ClickHouse.WriteTimeout <= 0 {
		c.ClickHouse.WriteTimeout = 10 * time.Second
	}
	if c.ClickHouse.MaxExecutionTime <= 0 {
		c.ClickHouse.MaxExecutionTime = 30 * time.Second
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Storage.Backend == "" {
		return fmt.Errorf("storage.backend is required")
	}
	if c.Storage.Backend != "clickhouse" && c.Storage.Backend != "postgres" {
		return fmt.Errorf("storage.backend must be 'clickhouse' or 'postgres', got '%s'", c.Storage.Backend)
	}
	if c.Exchange.BaseURL == "" {
		return fmt.Errorf("exchange.base_url is required")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Kafka.Consumer.Enabled && c.Kafka.Consumer.VerdictsTopic == "" {
		return fmt.Errorf("kafka.consumer.verdicts_topic is required when the consumer is enabled")
	}
	if c.Filter.ActivityThreshold > 1 {
		return fmt.Errorf("filter.activity_threshold must be <= 1")
	}
	if c.Consensus.MinVotes > 8 {
		return fmt.Errorf("consensus.min_votes must be <= 8")
	}
	return nil
}
