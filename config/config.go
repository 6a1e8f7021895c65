package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"TripleTriad/internal/utils"
)

type Config struct {
	Server struct {
		Port     string
		LogLevel string `mapstructure:"log_level"`
	}
	Database struct {
		DSN string
	}
	Redis struct {
		Addr     string
		Password string
		DB       int
	}
	JWT struct {
		Secret string
		TTL    time.Duration
	}
	Store struct {
		Backend string // redis | memory
		TTL     time.Duration
	}
	Game struct {
		TurnTimeout  time.Duration `mapstructure:"turn_timeout"`
		ShuffleDecks bool          `mapstructure:"shuffle_decks"`
		Seed         int64
	}
}

var C Config

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.ttl", 24*time.Hour)
	v.SetDefault("store.backend", "redis")
	v.SetDefault("store.ttl", 7*24*time.Hour)
	v.SetDefault("game.turn_timeout", 30*time.Second)
	v.SetDefault("game.shuffle_decks", false)
}

// Load 读取 .env（可选）与 config/config.yaml，失败直接退出
func Load() {
	if err := godotenv.Load(); err != nil {
		utils.Print.Debug("no .env file, using process environment")
	}
	if err := LoadFile("config/config.yaml"); err != nil {
		utils.Print.Fatal("Failed to read config", "err", err)
	}
}

// LoadFile fills C from the given yaml file; TRIAD_* environment variables win over the file.
func LoadFile(path string) error {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetEnvPrefix("triad")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return err
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return err
	}
	C = c
	return nil
}
