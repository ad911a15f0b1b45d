package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

type Config struct {
	App struct {
		Env      string
		Timezone string
	} `mapstructure:"app"`

	Telegram struct {
		Enabled     bool
		Token       string
		PollTimeout int `mapstructure:"poll_timeout"`
	} `mapstructure:"telegram"`

	HTTP struct {
		Addr        string
		CORSOrigins []string `mapstructure:"cors_origins"`
	} `mapstructure:"http"`

	Postgres struct {
		DSN string
	} `mapstructure:"postgres"`

	Metrics struct {
		Enabled bool
	} `mapstructure:"metrics"`

	Auth struct {
		JWTSecret string `mapstructure:"jwt_secret"`
	} `mapstructure:"auth"`

	Import struct {
		BatchSize  int           `mapstructure:"batch_size"`
		Attempts   int           `mapstructure:"attempts"`
		RetryDelay time.Duration `mapstructure:"retry_delay"`
		ClearAfter time.Duration `mapstructure:"clear_after"`
		PageSize   int           `mapstructure:"page_size"`
		MaxUnits   int           `mapstructure:"max_units"`
	} `mapstructure:"import"`

	Redis struct {
		Enabled  bool
		Addr     string
		Password string
		LockTTL  time.Duration `mapstructure:"lock_ttl"`
	} `mapstructure:"redis"`

	Archive struct {
		Enabled   bool
		Endpoint  string
		Region    string
		Bucket    string
		AccessKey string `mapstructure:"access_key"`
		SecretKey string `mapstructure:"secret_key"`
	} `mapstructure:"archive"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "prod")
	v.SetDefault("app.timezone", "Europe/Paris")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("telegram.poll_timeout", 30)
	v.SetDefault("import.batch_size", 200)
	v.SetDefault("import.attempts", 3)
	v.SetDefault("import.retry_delay", time.Second)
	v.SetDefault("import.clear_after", 3*time.Second)
	v.SetDefault("import.page_size", 1000)
	v.SetDefault("import.max_units", 50000)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.lock_ttl", 30*time.Minute)
	v.SetDefault("archive.region", "auto")

	// без значения по умолчанию AutomaticEnv не попадает в Unmarshal
	for _, key := range []string{
		"postgres.dsn", "telegram.token", "auth.jwt_secret", "redis.password",
		"archive.endpoint", "archive.bucket", "archive.access_key", "archive.secret_key",
	} {
		v.SetDefault(key, "")
	}
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("redis.enabled", false)
	v.SetDefault("archive.enabled", false)
	v.SetDefault("http.cors_origins", []string{})
}

// Load читает YAML и накрывает его переменными APP_* (в т.ч. из .env рядом с бинарём).
// Отсутствующий файл не ошибка: всё можно задать через окружение.
func Load(path string) (Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, err
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var c Config
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return c, err
		}
	}
	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}
	if c.Postgres.DSN == "" {
		return c, errors.New("config: postgres.dsn is required")
	}
	if c.Auth.JWTSecret == "" {
		return c, errors.New("config: auth.jwt_secret is required")
	}
	if c.Telegram.Enabled && c.Telegram.Token == "" {
		return c, errors.New("config: telegram.token is required when telegram.enabled")
	}
	return c, nil
}
