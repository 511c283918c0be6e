package main

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Log    LogConfig
	Server ServerConfig `mapstructure:"server"`
}

type LogConfig struct {
	Level string
}

type ServerConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	APIKey    string        `mapstructure:"api_key"`
	APISecret string        `mapstructure:"api_secret"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

var config Config

func InitConfig() error {
	_ = godotenv.Load()

	viper.SetConfigName("client")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./cmd/certpass-client")
	viper.SetConfigType("yaml")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("log.level", "WARNING")
	viper.SetDefault("server.base_url", "http://localhost:8080")
	viper.SetDefault("server.timeout", 10*time.Second)

	_ = viper.BindEnv("server.api_key", "CERTPASS_API_KEY")
	_ = viper.BindEnv("server.api_secret", "CERTPASS_API_SECRET")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
	}

	return viper.Unmarshal(&config)
}
