package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/angas/awattar-go/hours"
	"github.com/angas/awattar-go/logging"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

type AppConfigAwattar struct {
	ApiUrl      string  `mapstructure:"api_url"`
	TaxPercent  int     `mapstructure:"tax_percent"`  // VAT in percent, e.g. 19 (MwSt.)
	FixedMarkup float64 `mapstructure:"fixed_markup"` // Flat addend in Cent/kWh, e.g. the work rate of the grid operator
	// Hours of day (0-23) for the loading window, the end is always on the next day.
	// Kept as strings and validated on every run.
	ThresholdStart string `mapstructure:"threshold_start"`
	ThresholdEnd   string `mapstructure:"threshold_end"`
}

// ThresholdHours parses the loading window hours, an error is a *hours.ConfigError.
func (a AppConfigAwattar) ThresholdHours() (start int, end int, err error) {
	if start, err = hours.ParseHour("threshold_start", a.ThresholdStart); err != nil {
		return 0, 0, err
	}
	if end, err = hours.ParseHour("threshold_end", a.ThresholdEnd); err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

type AppConfigPublish struct {
	// Delete entries with an index beyond the current number of prices, default: true
	TrimStale *bool `mapstructure:"trim_stale"`
	// Timezone used for the threshold window and the time/date strings, default: Local
	Timezone *string `mapstructure:"timezone"`
}

func (p AppConfigPublish) GetTrimStale() bool {
	if p.TrimStale == nil {
		return true
	}
	return *p.TrimStale
}

func (p AppConfigPublish) GetTimezone() string {
	if p.Timezone == nil || *p.Timezone == "" {
		return "Local"
	}
	return *p.Timezone
}

type AppConfigSchedule struct {
	// Cron spec, if empty the prices are fetched once and the process exits
	RunAt string `mapstructure:"run_at"`
	// How long to wait before exiting after a one-shot run, default: 10s
	ExitDelay *time.Duration `mapstructure:"exit_delay"`
}

func (s AppConfigSchedule) IsOneShot() bool {
	return strings.TrimSpace(s.RunAt) == ""
}

func (s AppConfigSchedule) GetExitDelay() time.Duration {
	if s.ExitDelay == nil {
		return 10 * time.Second
	}
	return *s.ExitDelay
}

type AppConfigDatabase struct {
	// Path to the SQLite file, no database is used if empty
	Path string
	// How many days daily backup files should be stored before they gets deleted
	BackupRetentionDays *int `mapstructure:"backup_retention_days"`
}

func (d AppConfigDatabase) Enabled() bool {
	return d.Path != ""
}

func (d AppConfigDatabase) GetBackupRetentionDays() int {
	if d.BackupRetentionDays == nil {
		return 30
	}
	return *d.BackupRetentionDays
}

type AppConfigMqtt struct {
	Host        string // No MQTT if empty
	Port        *int
	Username    string
	Password    string
	ClientId    *string `mapstructure:"client_id"`
	TopicPrefix *string `mapstructure:"topic_prefix"`
	Qos         byte
}

func (m AppConfigMqtt) Enabled() bool {
	return m.Host != ""
}

func (m AppConfigMqtt) GetPort() int {
	if m.Port == nil {
		return 1883
	}
	return *m.Port
}

func (m AppConfigMqtt) GetClientId() string {
	if m.ClientId == nil {
		return "awattar"
	}
	return *m.ClientId
}

func (m AppConfigMqtt) GetTopicPrefix() string {
	if m.TopicPrefix == nil {
		return "awattar/0"
	}
	return *m.TopicPrefix
}

type AppConfigApi struct {
	Address        string
	Port           int16 // No server if 0
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

func (a AppConfigApi) Enabled() bool {
	return a.Port > 0
}

type AppConfigLogging struct {
	// Min log level for database : "DEBUG", "INFO", "WARN", "ERROR", default: "INFO"
	DbLevel *string `mapstructure:"db_level"`
	// Log attributes format: "TEXT", "JSON", default: "JSON"
	DbAttrsFormat *string `mapstructure:"db_attrs_format"`
	// Maximum number of log entries in the database, default: 10000
	DbMaxEntries *int `mapstructure:"db_max_entries"`
	// Min log level for console: "DEBUG", "INFO", "WARN", "ERROR", default: "INFO"
	ConsoleLevel *string `mapstructure:"console_level"`
}

func (l AppConfigLogging) GetDbLevel() slog.Level {
	return logging.LevelFromString(l.DbLevel)
}

func (l AppConfigLogging) GetDbAttrsFormat() logging.LogAttrFormat {
	if l.DbAttrsFormat != nil && strings.EqualFold(*l.DbAttrsFormat, "text") {
		return logging.LogAttrFormatText
	}
	return logging.LogAttrFormatJSON
}

func (l AppConfigLogging) GetDbMaxEntries() int {
	if l.DbMaxEntries == nil {
		return 10000
	}
	return *l.DbMaxEntries
}

func (l AppConfigLogging) GetConsoleLevel() slog.Level {
	return logging.LevelFromString(l.ConsoleLevel)
}

type AppConfig struct {
	Awattar  AppConfigAwattar  `mapstructure:"awattar"`
	Publish  AppConfigPublish  `mapstructure:"publish"`
	Schedule AppConfigSchedule `mapstructure:"schedule"`
	Database AppConfigDatabase `mapstructure:"database"`
	Mqtt     AppConfigMqtt     `mapstructure:"mqtt"`
	Api      AppConfigApi      `mapstructure:"api"`
	Logging  AppConfigLogging  `mapstructure:"logging"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("awattar.api_url", "https://api.awattar.de/v1/marketdata")
	v.SetDefault("awattar.tax_percent", 19)
	v.SetDefault("awattar.fixed_markup", 0.0)
	v.SetDefault("awattar.threshold_start", "22")
	v.SetDefault("awattar.threshold_end", "6")
}

// Load reads the config file at path or, if path is empty, config/config.yaml.
// Every key can be overridden by the environment, e.g. AWATTAR_TAX_PERCENT.
func Load(path string) (*AppConfig, error) {
	c, _, err := load(path)
	return c, err
}

func load(path string) (*AppConfig, *viper.Viper, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("config")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, nil, fmt.Errorf("unable to read config file: %w", err)
	}

	c, err := unmarshal(v)
	if err != nil {
		return nil, nil, err
	}
	return c, v, nil
}

func unmarshal(v *viper.Viper) (*AppConfig, error) {
	var c AppConfig
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unable to unmarshal config file: %w", err)
	}
	return &c, nil
}

// Watch loads the config like Load and calls onChange with the new config
// every time the file is written. Invalid changes are logged and skipped.
func Watch(path string, logger *slog.Logger, onChange func(*AppConfig)) (*AppConfig, error) {
	c, v, err := load(path)
	if err != nil {
		return nil, err
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		next, err := unmarshal(v)
		if err != nil {
			logger.Error("config reload failed, keeping the old config", slog.String("file", e.Name), slog.Any("error", err))
			return
		}
		logger.Info("config reloaded", slog.String("file", e.Name))
		onChange(next)
	})
	v.WatchConfig()

	return c, nil
}
