package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type TURNConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	PublicIP string `mapstructure:"public_ip"`
	Port     int    `mapstructure:"port"`
	Realm    string `mapstructure:"realm"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	From     string `mapstructure:"from"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type Config struct {
	Mode          string        `mapstructure:"mode"`
	Port          int           `mapstructure:"port"`
	StaticPath    string        `mapstructure:"static_path"`
	ReadLimit     int64         `mapstructure:"read_limit"`
	PingPeriod    time.Duration `mapstructure:"ping_period"`
	Secret        string        `mapstructure:"secret"`
	JWTSecret     string        `mapstructure:"jwt_secret"`
	JWTTTL        time.Duration `mapstructure:"jwt_ttl"`
	DatabaseURL   string        `mapstructure:"database_url"`
	RedisURL      string        `mapstructure:"redis_url"`
	StreamTTL     time.Duration `mapstructure:"stream_ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	TURN          TURNConfig    `mapstructure:"turn"`
	SMTP          SMTPConfig    `mapstructure:"smtp"`
}

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

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "")
	v.SetDefault("read_limit", 10<<20)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("jwt_ttl", "24h")
	v.SetDefault("stream_ttl", "10m")
	v.SetDefault("sweep_interval", "1m")
	v.SetDefault("turn.enabled", false)
	v.SetDefault("turn.port", 3478)
	v.SetDefault("turn.realm", "consult")

	v.AutomaticEnv()
	_ = v.BindEnv("database_url", "DATABASE_URL")
	_ = v.BindEnv("redis_url", "REDIS_URL")
	_ = v.BindEnv("jwt_secret", "JWT_SECRET")
	_ = v.BindEnv("secret", "SESSION_SECRET")

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("✅ Loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	fmt.Printf("🧩 Mode: %s | Port: %d\n", cfg.Mode, cfg.Port)
	return &cfg, nil
}
