package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(Load),
)

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type ProtocolConfig struct {
	DefaultCharset string `mapstructure:"default_charset"`
}

type Config struct {
	// Hostname identifies this service in outbound callbacks and in
	// operator-facing error messages.
	Hostname   string `mapstructure:"hostname"`
	ListenAddr string `mapstructure:"listen_addr"`

	DatabaseDSN string `mapstructure:"database_dsn"`

	Redis RedisConfig `mapstructure:"redis"`

	IPizza ProtocolConfig `mapstructure:"ipizza"`
	Solo   ProtocolConfig `mapstructure:"solo"`
	Aab    ProtocolConfig `mapstructure:"aab"`
	EC     ProtocolConfig `mapstructure:"ec"`

	// CallbackTimeout bounds a single server-to-server result delivery.
	CallbackTimeout time.Duration `mapstructure:"callback_timeout"`
}

func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("BANKLINK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("hostname", "banklink.test")
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("database_dsn", "")
	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("ipizza.default_charset", "ISO-8859-1")
	v.SetDefault("solo.default_charset", "ISO-8859-1")
	v.SetDefault("aab.default_charset", "ISO-8859-1")
	v.SetDefault("ec.default_charset", "ISO-8859-1")
	v.SetDefault("callback_timeout", 10*time.Second)

	v.SetConfigName("banklink")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/banklink")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
