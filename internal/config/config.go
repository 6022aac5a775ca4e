package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode         string        `mapstructure:"mode"`
	Port         int           `mapstructure:"port"`
	LogLevel     string        `mapstructure:"log_level"`
	Secret       string        `mapstructure:"secret"`
	ReadLimit    int64         `mapstructure:"read_limit"`
	PingPeriod   time.Duration `mapstructure:"ping_period"`
	WriteWait    time.Duration `mapstructure:"write_wait"`
	SendBuffer   int           `mapstructure:"send_buffer"`
	SlowConsumer string        `mapstructure:"slow_consumer"`

	Auth  AuthConfig  `mapstructure:"auth"`
	Calls CallsConfig `mapstructure:"calls"`
	Media MediaConfig `mapstructure:"media"`
}

type AuthConfig struct {
	TokenSecret string `mapstructure:"token_secret"`
}

type CallsConfig struct {
	AllowAnonymous    bool          `mapstructure:"allow_anonymous"`
	RequireMembership bool          `mapstructure:"require_membership"`
	EnforceDirection  bool          `mapstructure:"enforce_direction"`
	JoinRateLimit     int           `mapstructure:"join_rate_limit"`
	JoinRateInterval  time.Duration `mapstructure:"join_rate_interval"`
}

type MediaConfig struct {
	// Engine is "pion" or "memory". pion needs iceParameters in connectTransport.
	Engine                 string        `mapstructure:"engine"`
	Workers                int           `mapstructure:"workers"`
	RTCMinPort             uint16        `mapstructure:"rtc_min_port"`
	RTCMaxPort             uint16        `mapstructure:"rtc_max_port"`
	ListenIP               string        `mapstructure:"listen_ip"`
	AnnouncedIP            string        `mapstructure:"announced_ip"`
	ICEServers             []string      `mapstructure:"ice_servers"`
	WorkerDeathGrace       time.Duration `mapstructure:"worker_death_grace"`
	MaxIncomingBitrate     int           `mapstructure:"max_incoming_bitrate"`
	InitialOutgoingBitrate int           `mapstructure:"initial_outgoing_bitrate"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("secret", "")
	v.SetDefault("read_limit", 65536)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("write_wait", "5s")
	v.SetDefault("send_buffer", 64)
	v.SetDefault("slow_consumer", "drop")

	v.SetDefault("auth.token_secret", "")

	v.SetDefault("calls.allow_anonymous", true)
	v.SetDefault("calls.require_membership", false)
	v.SetDefault("calls.enforce_direction", false)
	v.SetDefault("calls.join_rate_limit", 10)
	v.SetDefault("calls.join_rate_interval", "10s")

	v.SetDefault("media.engine", "pion")
	v.SetDefault("media.workers", 1)
	v.SetDefault("media.rtc_min_port", 10000)
	v.SetDefault("media.rtc_max_port", 10100)
	v.SetDefault("media.listen_ip", "0.0.0.0")
	v.SetDefault("media.announced_ip", "")
	v.SetDefault("media.ice_servers", []string{})
	v.SetDefault("media.worker_death_grace", "2s")
	v.SetDefault("media.max_incoming_bitrate", 1500000)
	v.SetDefault("media.initial_outgoing_bitrate", 1000000)
}

// Load reads config/config.<CONFIG_ENV>.yaml on top of the defaults.
// ORBIT_* environment variables override both (ORBIT_MEDIA_WORKERS=4).
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("ORBIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	log.Info().
		Str("module", "config").
		Str("mode", cfg.Mode).
		Int("port", cfg.Port).
		Str("engine", cfg.Media.Engine).
		Int("workers", cfg.Media.Workers).
		Msg("config ready")
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Media.Workers < 1 {
		return fmt.Errorf("media.workers must be at least 1, got %d", c.Media.Workers)
	}
	if c.Media.RTCMinPort > c.Media.RTCMaxPort {
		return fmt.Errorf("media.rtc_min_port %d above rtc_max_port %d", c.Media.RTCMinPort, c.Media.RTCMaxPort)
	}
	switch c.Media.Engine {
	case "pion", "memory":
	default:
		return fmt.Errorf("unknown media.engine %q", c.Media.Engine)
	}
	switch c.SlowConsumer {
	case "drop", "disconnect":
	default:
		return fmt.Errorf("unknown slow_consumer policy %q", c.SlowConsumer)
	}
	return nil
}
