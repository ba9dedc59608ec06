package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Feed     FeedConfig     `mapstructure:"feed"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	RateLimit    float64       `mapstructure:"rate_limit"` // requests per second, 0 disables
	RateBurst    int           `mapstructure:"rate_burst"`
}

type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"` // postgres | sqlite
	URL          string `mapstructure:"url"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	DBName       string `mapstructure:"dbname"`
	SSLMode      string `mapstructure:"sslmode"`
	Path         string `mapstructure:"path"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	LogQueries   bool   `mapstructure:"log_queries"`
}

type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topics  Topics   `mapstructure:"topics"`
	GroupID string   `mapstructure:"group_id"`
}

type Topics struct {
	UserEvents string `mapstructure:"user_events"`
	PostEvents string `mapstructure:"post_events"`
}

type JWTConfig struct {
	Secret          string        `mapstructure:"secret"`
	ExpireTime      time.Duration `mapstructure:"expire_time"`
	ResetExpireTime time.Duration `mapstructure:"reset_expire_time"`
}

type FeedConfig struct {
	PostsPerPage int `mapstructure:"posts_per_page"`
	MaxPageSize  int `mapstructure:"max_page_size"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.rate_limit", 50.0)
	v.SetDefault("server.rate_burst", 100)

	v.SetDefault("database.path", "app.db")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.pool_size", 20)

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topics.user_events", "user-events")
	v.SetDefault("kafka.topics.post_events", "post-events")
	v.SetDefault("kafka.group_id", "microblog-worker")

	v.SetDefault("jwt.secret", "you-will-never-guess")
	v.SetDefault("jwt.expire_time", 24*time.Hour)
	v.SetDefault("jwt.reset_expire_time", 10*time.Minute)

	v.SetDefault("feed.posts_per_page", 25)
	v.SetDefault("feed.max_page_size", 100)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// LoadConfig loads variables from a .env file in the working directory, if
// there is one, and then reads the file named by CONFIG_PATH.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}
	return Load(configPath)
}

// Load reads the YAML file at path and applies environment overrides.
// MICROBLOG_SERVER_PORT overrides server.port and so on; SECRET_KEY and
// DATABASE_URL are honoured as well.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("MICROBLOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("jwt.secret", "MICROBLOG_JWT_SECRET", "SECRET_KEY")
	_ = v.BindEnv("database.url", "MICROBLOG_DATABASE_URL", "DATABASE_URL")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) validate() error {
	if err := c.Database.resolveDriver(); err != nil {
		return err
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret must not be empty")
	}
	if c.Feed.PostsPerPage < 1 || c.Feed.MaxPageSize < c.Feed.PostsPerPage {
		return fmt.Errorf("feed.posts_per_page must be in [1, feed.max_page_size]")
	}
	return nil
}

// resolveDriver settles the driver. With a URL the scheme decides, and an
// explicitly configured driver must agree with it; without one the driver
// defaults to sqlite.
func (c *DatabaseConfig) resolveDriver() error {
	if c.URL != "" {
		scheme := urlDriver(c.URL)
		if scheme == "" {
			return fmt.Errorf("unsupported database url scheme in %q", redactURL(c.URL))
		}
		if c.Driver != "" && c.Driver != scheme {
			return fmt.Errorf("database.driver %q conflicts with %s database url", c.Driver, scheme)
		}
		c.Driver = scheme
	}
	if c.Driver == "" {
		c.Driver = "sqlite"
	}

	switch c.Driver {
	case "postgres", "sqlite":
		return nil
	default:
		return fmt.Errorf("unsupported database driver %q", c.Driver)
	}
}

func urlDriver(url string) string {
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return "postgres"
	case strings.HasPrefix(url, "sqlite:///"):
		return "sqlite"
	default:
		return ""
	}
}

// redactURL keeps the scheme only, so credentials never reach an error.
func redactURL(url string) string {
	if i := strings.Index(url, "://"); i >= 0 {
		return url[:i+3] + "..."
	}
	return "..."
}

// DSN returns the connection string for the configured driver. A non-empty
// URL wins over the individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.URL != "" {
		return strings.TrimPrefix(c.URL, "sqlite:///")
	}
	if c.Driver == "sqlite" {
		return c.Path
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
