package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Server      struct {
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		CORS            bool          `yaml:"cors" default:"true"`
	} `yaml:"server"`
	Logging struct {
		Level     string `yaml:"level" default:"info"`
		Format    string `yaml:"format" default:"json"`
		Output    string `yaml:"output" default:"stdout"`
		Collector struct {
			Enabled        bool          `yaml:"enabled"`
			Topic          string        `yaml:"topic" default:"churn.logs"`
			Interval       time.Duration `yaml:"interval" default:"30s"`
			CountThreshold int           `yaml:"count_threshold" default:"100"`
		} `yaml:"collector"`
	} `yaml:"logging"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Model struct {
		ArtifactPath string        `yaml:"artifact_path"`
		ArtifactURL  string        `yaml:"artifact_url"`
		FetchTimeout time.Duration `yaml:"fetch_timeout" default:"30s"`
	} `yaml:"model"`
	Cache struct {
		Enabled    bool          `yaml:"enabled"`
		TTL        time.Duration `yaml:"ttl" default:"10m"`
		MemorySize int           `yaml:"memory_size" default:"10000"`
		Redis      struct {
			Enabled  bool   `yaml:"enabled"`
			Host     string `yaml:"host" default:"localhost"`
			Port     int    `yaml:"port" default:"6379"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix" default:"churn"`
			PoolSize int    `yaml:"pool_size" default:"10"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	Audit struct {
		BatchSize     int           `yaml:"batch_size" default:"200"`
		FlushInterval time.Duration `yaml:"flush_interval" default:"2s"`
		BufferSize    int           `yaml:"buffer_size" default:"5000"`
	} `yaml:"audit"`
	Kafka struct {
		Enabled       bool     `yaml:"enabled"`
		Brokers       []string `yaml:"brokers"`
		RequestsTopic string   `yaml:"requests_topic" default:"churn.requests"`
		EventsTopic   string   `yaml:"events_topic" default:"churn.predictions"`
		RequiredAcks  int      `yaml:"required_acks" default:"-1"`
		Compression   string   `yaml:"compression" default:"snappy"`
		Producer      struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"50ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			Enabled    bool          `yaml:"enabled"`
			GroupID    string        `yaml:"group_id" default:"churn-scorer"`
			Workers    int           `yaml:"workers" default:"4"`
			BufferSize int           `yaml:"buffer_size" default:"64"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"50ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"2s"`
			DLQTopic   string        `yaml:"dlq_topic" default:"churn.requests.dlq"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"churn"`
		Table            string        `yaml:"table" default:"predictions"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
		TTLDays          int           `yaml:"ttl_days" default:"180"`
	} `yaml:"clickhouse"`
	RateLimit struct {
		Enabled      bool    `yaml:"enabled" default:"true"`
		Capacity     float64 `yaml:"capacity" default:"30"`
		RefillPerSec float64 `yaml:"refill_per_sec" default:"10"`
	} `yaml:"ratelimit"`
	Training struct {
		DatasetPath  string  `yaml:"dataset_path" default:"data/telco_customer_churn.csv"`
		OutputPath   string  `yaml:"output_path" default:"models/churn_model.json"`
		TestRatio    float64 `yaml:"test_ratio" default:"0.2"`
		Seed         int64   `yaml:"seed" default:"42"`
		MaxIter      int     `yaml:"max_iter" default:"1000"`
		LearningRate float64 `yaml:"learning_rate" default:"0.5"`
		L2           float64 `yaml:"l2" default:"0.0001"`
	} `yaml:"training"`
}

// Load reads a YAML configuration file on top of the struct defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes on top of the struct defaults and validates.
func Parse(b []byte) (*Config, error) {
	c, err := decode(b)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func decode(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
// A .env file in the working directory is read first when present; variables
// already set in the environment win.
func LoadWithEnv(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	c, err := decode(b)
	if err != nil {
		return nil, err
	}
	if err := c.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv("CHURN_ENV"); v != "" {
		c.Environment = v
	}
	if v := getenv("CHURN_MODEL_PATH"); v != "" {
		c.Model.ArtifactPath = v
		c.Model.ArtifactURL = ""
	}
	if v := getenv("CHURN_MODEL_URL"); v != "" {
		c.Model.ArtifactURL = v
		c.Model.ArtifactPath = ""
	}
	if v := getenv("CHURN_HTTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CHURN_HTTP_PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		host, portStr, ok := strings.Cut(v, ":")
		c.Cache.Redis.Host = host
		if ok {
			port, err := strconv.Atoi(portStr)
			if err != nil {
				return fmt.Errorf("REDIS_ADDR: %w", err)
			}
			c.Cache.Redis.Port = port
		}
		c.Cache.Redis.Enabled = true
	}
	if v := getenv("REDIS_PASSWORD"); v != "" {
		c.Cache.Redis.Password = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
		c.Kafka.Enabled = true
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
		c.ClickHouse.Enabled = true
	}
	if v := getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1..65535, got %d", c.Server.Port)
	}
	hasPath, hasURL := c.Model.ArtifactPath != "", c.Model.ArtifactURL != ""
	if hasPath == hasURL {
		return fmt.Errorf("exactly one of model.artifact_path or model.artifact_url is required")
	}
	if c.Cache.Enabled && c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive when cache is enabled")
	}
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
		}
		if c.Kafka.EventsTopic == "" {
			return fmt.Errorf("kafka.events_topic is required when kafka is enabled")
		}
		if c.Kafka.Consumer.Enabled && c.Kafka.RequestsTopic == "" {
			return fmt.Errorf("kafka.requests_topic is required when the consumer is enabled")
		}
	} else if c.Kafka.Consumer.Enabled {
		return fmt.Errorf("kafka.consumer.enabled requires kafka.enabled")
	}
	if c.Logging.Collector.Enabled && !c.Kafka.Enabled {
		return fmt.Errorf("logging.collector requires kafka.enabled")
	}
	if c.ClickHouse.Enabled && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required when clickhouse is enabled")
	}
	if c.RateLimit.Enabled && (c.RateLimit.Capacity < 1 || c.RateLimit.RefillPerSec <= 0) {
		return fmt.Errorf("ratelimit.capacity must be >= 1 and refill_per_sec > 0")
	}
	return nil
}

// ModelSource is the artifact location the server loads: the URL when one is
// set, otherwise the local path.
func (c *Config) ModelSource() string {
	if c.Model.ArtifactURL != "" {
		return c.Model.ArtifactURL
	}
	return c.Model.ArtifactPath
}

// ValidateTraining checks the training section for cmd/train.
func (c *Config) ValidateTraining() error {
	t := c.Training
	if t.DatasetPath == "" || t.OutputPath == "" {
		return fmt.Errorf("training.dataset_path and training.output_path are required")
	}
	if t.TestRatio < 0 || t.TestRatio >= 1 {
		return fmt.Errorf("training.test_ratio must be in [0,1), got %v", t.TestRatio)
	}
	if t.MaxIter <= 0 || t.LearningRate <= 0 || t.L2 < 0 {
		return fmt.Errorf("training.max_iter and learning_rate must be positive, l2 non-negative")
	}
	return nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
