package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const EnvPrefix = "DRIVE_EVAL"

type Log struct {
	Path  string
	Level string
}

type MySQL struct {
	Host string
	Port int
	User string
	Pass string
	Name string
}

type Storage struct {
	Driver       string
	AccountsFile string
	RecordsFile  string
	SQLitePath   string
	MySQL        MySQL
}

type HTTP struct {
	Host           string
	Port           int
	AllowedOrigins []string
	LoginRPS       float64
	LoginBurst     int
}

type JWT struct {
	Secret string
	Issuer string
	ExpMin int
}

type Bootstrap struct {
	AdminUsername string
	AdminPassword string
}

type Policy struct {
	EvaluatorRequiresAccessFlag bool
	ViewerSeesAll               bool
	EvaluatorCanDeleteOwn       bool
}

type Session struct {
	Store         string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	TTLMin        int
}

type Config struct {
	Timezone  string
	Log       Log
	Storage   Storage
	HTTP      HTTP
	JWT       JWT
	Bootstrap Bootstrap
	Policy    Policy
	Session   Session
	Export    struct {
		PDFFontPath string
	}
	Watch struct {
		Enabled bool
	}
}

// Location resolves the configured display zone. Hosts without tzdata fall
// back to a fixed UTC+03:00 zone when Asia/Riyadh is requested.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err == nil {
		return loc
	}
	return time.FixedZone("AST", 3*60*60)
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Session.TTLMin) * time.Minute
}

// Load reads path (optional; defaults apply when it does not exist), then a
// .env file in the working directory, then DRIVE_EVAL_* environment variables.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read .env: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("app.timezone", "Asia/Riyadh")
	v.SetDefault("log.path", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("storage.driver", "csv")
	v.SetDefault("storage.accounts_file", "users.csv")
	v.SetDefault("storage.records_file", "reports.csv")
	v.SetDefault("storage.sqlite_path", "drive-eval.db")
	v.SetDefault("storage.mysql.host", "127.0.0.1")
	v.SetDefault("storage.mysql.port", 3306)
	v.SetDefault("storage.mysql.user", "root")
	v.SetDefault("storage.mysql.pass", "")
	v.SetDefault("storage.mysql.name", "drive_eval")
	v.SetDefault("http.host", "127.0.0.1")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.allowed_origins", []string{"*"})
	v.SetDefault("http.login_rps", 1.0)
	v.SetDefault("http.login_burst", 5)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "drive-eval")
	v.SetDefault("jwt.exp_min", 60)
	v.SetDefault("bootstrap.admin_username", "admin")
	v.SetDefault("bootstrap.admin_password", "")
	v.SetDefault("policy.evaluator_requires_access_flag", true)
	v.SetDefault("policy.viewer_sees_all", true)
	v.SetDefault("policy.evaluator_can_delete_own", true)
	v.SetDefault("session.store", "memory")
	v.SetDefault("session.redis_addr", "127.0.0.1:6379")
	v.SetDefault("session.redis_password", "")
	v.SetDefault("session.redis_db", 0)
	v.SetDefault("session.ttl_min", 240)
	v.SetDefault("export.pdf_font_path", "")
	v.SetDefault("watch.enabled", true)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := &Config{
		Timezone: v.GetString("app.timezone"),
		Log:      Log{Path: v.GetString("log.path"), Level: strings.ToLower(v.GetString("log.level"))},
		Storage: Storage{
			Driver:       strings.ToLower(v.GetString("storage.driver")),
			AccountsFile: v.GetString("storage.accounts_file"),
			RecordsFile:  v.GetString("storage.records_file"),
			SQLitePath:   v.GetString("storage.sqlite_path"),
			MySQL: MySQL{
				Host: v.GetString("storage.mysql.host"),
				Port: v.GetInt("storage.mysql.port"),
				User: v.GetString("storage.mysql.user"),
				Pass: v.GetString("storage.mysql.pass"),
				Name: v.GetString("storage.mysql.name"),
			},
		},
		HTTP: HTTP{
			Host:           v.GetString("http.host"),
			Port:           v.GetInt("http.port"),
			AllowedOrigins: v.GetStringSlice("http.allowed_origins"),
			LoginRPS:       v.GetFloat64("http.login_rps"),
			LoginBurst:     v.GetInt("http.login_burst"),
		},
		JWT: JWT{
			Secret: v.GetString("jwt.secret"),
			Issuer: v.GetString("jwt.issuer"),
			ExpMin: v.GetInt("jwt.exp_min"),
		},
		Bootstrap: Bootstrap{
			AdminUsername: v.GetString("bootstrap.admin_username"),
			AdminPassword: v.GetString("bootstrap.admin_password"),
		},
		Policy: Policy{
			EvaluatorRequiresAccessFlag: v.GetBool("policy.evaluator_requires_access_flag"),
			ViewerSeesAll:               v.GetBool("policy.viewer_sees_all"),
			EvaluatorCanDeleteOwn:       v.GetBool("policy.evaluator_can_delete_own"),
		},
		Session: Session{
			Store:         strings.ToLower(v.GetString("session.store")),
			RedisAddr:     v.GetString("session.redis_addr"),
			RedisPassword: v.GetString("session.redis_password"),
			RedisDB:       v.GetInt("session.redis_db"),
			TTLMin:        v.GetInt("session.ttl_min"),
		},
	}
	cfg.Export.PDFFontPath = v.GetString("export.pdf_font_path")
	cfg.Watch.Enabled = v.GetBool("watch.enabled")

	if cfg.JWT.ExpMin <= 0 {
		cfg.JWT.ExpMin = 60
	}
	if cfg.Session.TTLMin <= 0 {
		cfg.Session.TTLMin = 240
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "csv", "sqlite", "mysql":
	default:
		return fmt.Errorf("config: storage.driver must be csv, sqlite or mysql, got %q", c.Storage.Driver)
	}
	switch c.Session.Store {
	case "memory", "redis":
	default:
		return fmt.Errorf("config: session.store must be memory or redis, got %q", c.Session.Store)
	}
	switch c.Log.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log.level %q", c.Log.Level)
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("config: http.port out of range: %d", c.HTTP.Port)
	}
	if c.HTTP.LoginRPS <= 0 || c.HTTP.LoginBurst <= 0 {
		return errors.New("config: http.login_rps and http.login_burst must be positive")
	}
	return nil
}
