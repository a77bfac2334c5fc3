package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Server      ServerConfig      `mapstructure:"server"`
	Log         LogConfig         `mapstructure:"log"`
	DB          DBConfig          `mapstructure:"db"`
	Cron        CronConfig        `mapstructure:"cron"`
	Archive     ArchiveConfig     `mapstructure:"archive"`
	Advisories  AdvisoriesConfig  `mapstructure:"advisories"`
	PackageMeta PackageMetaConfig `mapstructure:"package_meta"`
	Import      ImportConfig      `mapstructure:"import"`
	Enrich      EnrichConfig      `mapstructure:"enrich"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type CronConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	HourlyImport string `mapstructure:"hourly_import"`
	RetryFailed  string `mapstructure:"retry_failed"`
	AdvisorySync string `mapstructure:"advisory_sync"`
	Enrich       string `mapstructure:"enrich"`
}

type ArchiveConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type AdvisoriesConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	PerPage   int           `mapstructure:"per_page"`
	Ecosystem string        `mapstructure:"ecosystem"`
	Severity  string        `mapstructure:"severity"`
}

type PackageMetaConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type ImportConfig struct {
	// Lag keeps the hourly job behind the live edge so the archive hour
	// has usually been published before the first attempt.
	Lag          time.Duration `mapstructure:"lag"`
	CatchupHours int           `mapstructure:"catchup_hours"`
}

type EnrichConfig struct {
	Budget    time.Duration `mapstructure:"budget"`
	CallDelay time.Duration `mapstructure:"call_delay"`
	BatchSize int           `mapstructure:"batch_size"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.hourly_import", "0 10 * * * *")
	v.SetDefault("cron.retry_failed", "0 40 * * * *")
	v.SetDefault("cron.advisory_sync", "0 0 */6 * * *")
	v.SetDefault("cron.enrich", "0 25 * * * *")
	v.SetDefault("archive.base_url", "http://data.gharchive.org")
	v.SetDefault("archive.timeout", "120s")
	v.SetDefault("advisories.base_url", "https://advisories.ecosyste.ms")
	v.SetDefault("advisories.timeout", "30s")
	v.SetDefault("advisories.per_page", 1000)
	v.SetDefault("package_meta.base_url", "https://packages.ecosyste.ms")
	v.SetDefault("package_meta.timeout", "30s")
	v.SetDefault("import.lag", "2h")
	v.SetDefault("import.catchup_hours", 24)
	v.SetDefault("enrich.budget", "5m")
	v.SetDefault("enrich.call_delay", "500ms")
	v.SetDefault("enrich.batch_size", 100)

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
