package config

import (
	"fmt"
	"os"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"

	"github.com/vultisig/transfer-tracker/internal/logging"
	"github.com/vultisig/transfer-tracker/internal/metrics"
)

const envPrefix = "TT"

// TrackerConfig is the process configuration.
// ChainRPC and ChainKeys map universal chain id to rpc url and signing key; they exist
// for env based deploys, where a list of structs cannot be expressed.
type TrackerConfig struct {
	LogFormat      logging.LogFormat `mapstructure:"log_format" json:"log_format,omitempty" envconfig:"LOG_FORMAT" default:"text"`
	Indexer        IndexerConfig     `mapstructure:"indexer" json:"indexer" envconfig:"INDEXER"`
	Poll           PollConfig        `mapstructure:"poll" json:"poll" envconfig:"POLL"`
	ReceiptTimeout time.Duration     `mapstructure:"receipt_timeout" json:"receipt_timeout,omitempty" envconfig:"RECEIPT_TIMEOUT" default:"5m"`
	Chains         []ChainConfig     `mapstructure:"chains" json:"chains,omitempty" ignored:"true" validate:"dive"`
	ChainRPC       ChainMap          `mapstructure:"chain_rpc" json:"-" envconfig:"CHAIN_RPC"`
	ChainKeys      ChainMap          `mapstructure:"chain_keys" json:"-" envconfig:"CHAIN_KEYS"`
	Api            ApiConfig         `mapstructure:"api" json:"api" envconfig:"API"`
	Redis          RedisConfig       `mapstructure:"redis" json:"redis" envconfig:"REDIS"`
	Metrics        metrics.Config    `mapstructure:"metrics" json:"metrics" envconfig:"METRICS"`
}

// ChainMap is keyed by universal chain id. From env it is written as
// "id=value,id=value"; values may contain ':' (urls).
type ChainMap map[string]string

func (m *ChainMap) Decode(value string) error {
	out := ChainMap{}
	for _, pair := range strings.Split(value, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			return fmt.Errorf("invalid chain map item: %q", pair)
		}
		out[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	*m = out
	return nil
}

// chainMapHook decodes the env form of a ChainMap.
func chainMapHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if from.Kind() != reflect.String || to != reflect.TypeOf(ChainMap{}) {
		return data, nil
	}
	var m ChainMap
	err := m.Decode(data.(string))
	if err != nil {
		return nil, err
	}
	return m, nil
}

// IndexerConfig configures the GraphQL client. BreakerFailures consecutive
// failures open the circuit for BreakerCooldown.
type IndexerConfig struct {
	URL             string        `mapstructure:"url" json:"url,omitempty" envconfig:"URL" validate:"required,url"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout" json:"request_timeout,omitempty" envconfig:"REQUEST_TIMEOUT" default:"10s"`
	MaxRetries      int           `mapstructure:"max_retries" json:"max_retries,omitempty" envconfig:"MAX_RETRIES" default:"1"`
	BreakerFailures uint32        `mapstructure:"breaker_failures" json:"breaker_failures,omitempty" envconfig:"BREAKER_FAILURES" default:"5"`
	BreakerCooldown time.Duration `mapstructure:"breaker_cooldown" json:"breaker_cooldown,omitempty" envconfig:"BREAKER_COOLDOWN" default:"10s"`
}

type PollConfig struct {
	Interval      time.Duration `mapstructure:"interval" json:"interval,omitempty" envconfig:"INTERVAL" default:"1s"`
	StopOnSuccess bool          `mapstructure:"stop_on_success" json:"stop_on_success" envconfig:"STOP_ON_SUCCESS" default:"true"`
}

type ChainConfig struct {
	UniversalChainID string `mapstructure:"universal_chain_id" json:"universal_chain_id" validate:"required"`
	RpcURL           string `mapstructure:"rpc_url" json:"rpc_url" validate:"required,url"`
	PrivateKey       string `mapstructure:"private_key" json:"-"`
}

// ApiConfig configures the status API. Without JWTSecret the tracking control
// endpoints are refused.
type ApiConfig struct {
	Enabled   bool   `mapstructure:"enabled" json:"enabled" envconfig:"ENABLED" default:"false"`
	Port      int    `mapstructure:"port" json:"port,omitempty" envconfig:"PORT" default:"8080"`
	JWTSecret string `mapstructure:"jwt_secret" json:"-" envconfig:"JWT_SECRET"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled" json:"enabled" envconfig:"ENABLED" default:"false"`
	Host     string `mapstructure:"host" json:"host,omitempty" envconfig:"HOST" default:"localhost"`
	Port     string `mapstructure:"port" json:"port,omitempty" envconfig:"PORT" default:"6379"`
	User     string `mapstructure:"user" json:"user,omitempty" envconfig:"USER"`
	Password string `mapstructure:"password" json:"password,omitempty" envconfig:"PASSWORD"`
	DB       int    `mapstructure:"db" json:"db,omitempty" envconfig:"DB"`
	Channel  string `mapstructure:"channel" json:"channel,omitempty" envconfig:"CHANNEL" default:"transfer-status"`
}

// ChainList merges the structured chain list with the env maps.
// Env entries override rpc urls and keys of listed chains and add unlisted ones.
func (c *TrackerConfig) ChainList() []ChainConfig {
	byID := make(map[string]ChainConfig, len(c.Chains)+len(c.ChainRPC))
	for _, ch := range c.Chains {
		byID[ch.UniversalChainID] = ch
	}
	for id, url := range c.ChainRPC {
		ch := byID[id]
		ch.UniversalChainID = id
		ch.RpcURL = url
		byID[id] = ch
	}
	for id, key := range c.ChainKeys {
		ch, ok := byID[id]
		if !ok {
			continue
		}
		ch.PrivateKey = key
		byID[id] = ch
	}

	out := make([]ChainConfig, 0, len(byID))
	for _, ch := range byID {
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UniversalChainID < out[j].UniversalChainID
	})
	return out
}

func (c *TrackerConfig) Validate() error {
	v := validator.New()
	err := v.Struct(c)
	if err != nil {
		return fmt.Errorf("v.Struct: %w", err)
	}
	for _, ch := range c.ChainList() {
		err = v.Struct(ch)
		if err != nil {
			return fmt.Errorf("chain %q: %w", ch.UniversalChainID, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_format", string(logging.FormatText))
	v.SetDefault("receipt_timeout", "5m")
	v.SetDefault("indexer.request_timeout", "10s")
	v.SetDefault("indexer.max_retries", 1)
	v.SetDefault("indexer.breaker_failures", 5)
	v.SetDefault("indexer.breaker_cooldown", "10s")
	v.SetDefault("poll.interval", "1s")
	v.SetDefault("poll.stop_on_success", true)
	v.SetDefault("api.port", 8080)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", "6379")
	v.SetDefault("redis.channel", "transfer-status")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 8088)
}

// ReadTrackerConfig reads the config file named by TT_CONFIG_NAME (default "config").
func ReadTrackerConfig() (*TrackerConfig, error) {
	configName := os.Getenv("TT_CONFIG_NAME")
	if configName == "" {
		configName = "config"
	}
	return ReadConfig(configName, ".")
}

func ReadConfig(configName string, paths ...string) (*TrackerConfig, error) {
	v := viper.New()
	v.SetConfigName(configName)
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("chain_rpc")
	_ = v.BindEnv("chain_keys")
	_ = v.BindEnv("api.jwt_secret")
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("fail to reading config file, %w", err)
	}
	var cfg TrackerConfig
	err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.TextUnmarshallerHookFunc(),
		chainMapHook,
	)))
	if err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %w", err)
	}
	err = cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("cfg.Validate: %w", err)
	}
	return &cfg, nil
}

// ReadEnvConfig loads the config from TT_* environment variables only.
func ReadEnvConfig() (*TrackerConfig, error) {
	var cfg TrackerConfig
	err := envconfig.Process(envPrefix, &cfg)
	if err != nil {
		return nil, fmt.Errorf("envconfig.Process: %w", err)
	}
	err = cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("cfg.Validate: %w", err)
	}
	return &cfg, nil
}
