package config

import (
	"os"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// MySQLConfig holds MySQL specific configurations
type MySQLConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// RedisConfig holds Redis specific configurations
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// ChannelClass describes one QoS class of broker channels
type ChannelClass struct {
	Prefetch int `mapstructure:"prefetch"`
}

// RabbitMQConfig holds RabbitMQ specific configurations
type RabbitMQConfig struct {
	Host     string                  `mapstructure:"host"`
	Port     int                     `mapstructure:"port"`
	Username string                  `mapstructure:"username"`
	Password string                  `mapstructure:"password"`
	Vhost    string                  `mapstructure:"vhost"`
	Exchange string                  `mapstructure:"exchange"`
	Channels map[string]ChannelClass `mapstructure:"channels"`
}

// MonitoringConfig holds monitoring configurations
type MonitoringConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// LoggerConfig holds logger configurations
type LoggerConfig struct {
	Level          string `mapstructure:"level"`
	Format         string `mapstructure:"format"`
	Output         string `mapstructure:"output"`
	AddSource      bool   `mapstructure:"add_source"`
	FilePath       string `mapstructure:"file_path"`
	EnableRotation bool   `mapstructure:"enable_rotation"`
	MaxSize        int    `mapstructure:"max_size"`
	MaxAge         int    `mapstructure:"max_age"`
	MaxBackups     int    `mapstructure:"max_backups"`
	Compress       bool   `mapstructure:"compress"`
}

// StageConfig tunes a single stage consumer
type StageConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Prefetch int    `mapstructure:"prefetch"`
	Channel  string `mapstructure:"channel"`
}

// RateLimitConfig throttles requests against one crawled source
type RateLimitConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	Burst    int           `mapstructure:"burst"`
}

// FetchConfig configures page fetching
type FetchConfig struct {
	Timeout    time.Duration `mapstructure:"timeout"`
	UserAgent  string        `mapstructure:"user_agent"`
	RetryCount int           `mapstructure:"retry_count"`
}

// CrawlerConfig holds crawl pipeline settings
type CrawlerConfig struct {
	Stages          map[string]StageConfig `mapstructure:"stages"`
	RateLimit       RateLimitConfig        `mapstructure:"rate_limit"`
	Fetch           FetchConfig            `mapstructure:"fetch"`
	MediaIDs        []string               `mapstructure:"media_ids"`
	PersistEpisodes bool                   `mapstructure:"persist_episodes"`
}

// LockConfig configures the Redis in-flight guard
type LockConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// DatabaseConfig holds database configurations
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
}

// Config holds the application configuration
type Config struct {
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	RabbitMQ   RabbitMQConfig   `mapstructure:"rabbitmq"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	Logger     LoggerConfig     `mapstructure:"logger"`
	Crawler    CrawlerConfig    `mapstructure:"crawler"`
	Lock       LockConfig       `mapstructure:"lock"`
}

// Default returns the configuration used when a key is absent from file and env
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			MySQL: MySQLConfig{
				Host:            "localhost",
				Port:            3306,
				MaxIdleConns:    10,
				MaxOpenConns:    100,
				ConnMaxLifetime: time.Hour,
			},
		},
		Redis: RedisConfig{Address: "localhost:6379"},
		RabbitMQ: RabbitMQConfig{
			Host:     "localhost",
			Port:     5672,
			Username: "guest",
			Password: "guest",
			Exchange: "crawler",
			Channels: map[string]ChannelClass{
				"normal": {Prefetch: 10},
				"fast":   {Prefetch: 30},
			},
		},
		Monitoring: MonitoringConfig{Port: 9090, Path: "/metrics"},
		Logger:     LoggerConfig{Level: "info", Format: "json", Output: "stdout"},
		Crawler: CrawlerConfig{
			Stages: map[string]StageConfig{
				"index":   {Enabled: true, Prefetch: 5, Channel: "fast"},
				"detail":  {Enabled: true, Prefetch: 5, Channel: "fast"},
				"episode": {Enabled: true, Prefetch: 5, Channel: "normal"},
				"link":    {Enabled: true, Prefetch: 5, Channel: "fast"},
			},
			RateLimit: RateLimitConfig{Interval: 10 * time.Second, Burst: 1},
			Fetch: FetchConfig{
				Timeout:   30 * time.Second,
				UserAgent: "Mozilla/5.0 (compatible; AnimeCrawler/1.0)",
			},
		},
		Lock: LockConfig{TTL: 5 * time.Minute},
	}
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	cfg := Default()
	seedMapDefaults(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	overrideFromEnv(cfg)

	return cfg, nil
}

// seedMapDefaults registers the per-entry defaults of the keyed sections.
// mapstructure decodes each map value from scratch, so a YAML entry that
// sets only some fields would otherwise lose the rest.
func seedMapDefaults(v *viper.Viper, cfg *Config) {
	for name, sc := range cfg.Crawler.Stages {
		key := "crawler.stages." + name
		v.SetDefault(key+".enabled", sc.Enabled)
		v.SetDefault(key+".prefetch", sc.Prefetch)
		v.SetDefault(key+".channel", sc.Channel)
	}
	for class, cc := range cfg.RabbitMQ.Channels {
		v.SetDefault("rabbitmq.channels."+class+".prefetch", cc.Prefetch)
	}
}

// overrideFromEnv overrides configuration with environment variables
func overrideFromEnv(config *Config) {
	// Database overrides
	if host := os.Getenv("MYSQL_HOST"); host != "" {
		config.Database.MySQL.Host = host
	}
	if port := os.Getenv("MYSQL_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Database.MySQL.Port = p
		}
	}
	if user := os.Getenv("MYSQL_USER"); user != "" {
		config.Database.MySQL.User = user
	}
	if password := os.Getenv("MYSQL_PASSWORD"); password != "" {
		config.Database.MySQL.Password = password
	}
	if dbname := os.Getenv("MYSQL_DBNAME"); dbname != "" {
		config.Database.MySQL.DBName = dbname
	}

	// Redis overrides
	if addr := os.Getenv("REDIS_ADDRESS"); addr != "" {
		config.Redis.Address = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		config.Redis.Password = password
	}
	if db := os.Getenv("REDIS_DB"); db != "" {
		if d, err := strconv.Atoi(db); err == nil {
			config.Redis.DB = d
		}
	}

	// RabbitMQ overrides
	if host := os.Getenv("RABBITMQ_HOST"); host != "" {
		config.RabbitMQ.Host = host
	}
	if port := os.Getenv("RABBITMQ_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.RabbitMQ.Port = p
		}
	}
	if user := os.Getenv("RABBITMQ_USER"); user != "" {
		config.RabbitMQ.Username = user
	}
	if password := os.Getenv("RABBITMQ_PASSWORD"); password != "" {
		config.RabbitMQ.Password = password
	}

	// Crawl throttle override, e.g. CRAWLER_RATE_INTERVAL=2s
	if interval := os.Getenv("CRAWLER_RATE_INTERVAL"); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil {
			config.Crawler.RateLimit.Interval = d
		}
	}
}

// Stage returns the settings for a stage, falling back to the defaults
func (c *Config) Stage(name string) StageConfig {
	if sc, ok := c.Crawler.Stages[name]; ok {
		if sc.Prefetch <= 0 {
			sc.Prefetch = 5
		}
		if sc.Channel == "" {
			sc.Channel = "normal"
		}
		return sc
	}
	return StageConfig{Enabled: false, Prefetch: 5, Channel: "normal"}
}
