package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Server  ServerConfig  `toml:"server"`
	KV      KVConfig      `toml:"kv"`
	Network NetworkConfig `toml:"network"`
	Game    GameConfig    `toml:"game"`
	Effects EffectsConfig `toml:"effects"`
	Logging LoggingConfig `toml:"logging"`
}

type ServerConfig struct {
	Name string `toml:"name"`
	Host string `toml:"host"`
	Port int    `toml:"port"`

	TLS     bool   `toml:"tls"`
	TLSCert string `toml:"tls_cert"`
	TLSKey  string `toml:"tls_key"`

	// The stock client only renders CONSOLE_MSG (24); ERROR_MSG (55) exists
	// for clients that handle it. Deployment picks.
	UseErrorMsg     bool `toml:"use_error_msg"`
	SendClanDetails bool `toml:"send_clan_details"`

	StartTime int64 // set at boot, not from config
}

func (c ServerConfig) BindAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type KVConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	DB       int    `toml:"db"`
	Password string `toml:"password"`
	PoolSize int    `toml:"pool_size"`
}

func (c KVConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type NetworkConfig struct {
	TickPeriod       time.Duration `toml:"tick_period"`
	InQueueSize      int           `toml:"in_queue_size"`
	OutQueueSize     int           `toml:"out_queue_size"`
	MaxFrame         int           `toml:"max_frame"`
	ReadTimeout      time.Duration `toml:"read_timeout"`
	WriteTimeout     time.Duration `toml:"write_timeout"`
	LoginTimeout     time.Duration `toml:"login_timeout"`
	PacketsPerSecond int           `toml:"packets_per_second"`
}

type GameConfig struct {
	DataDir    string `toml:"data_dir"`
	ScriptsDir string `toml:"scripts_dir"`

	StartMap int `toml:"start_map"` // spawn point of fresh characters
	StartX   int `toml:"start_x"`
	StartY   int `toml:"start_y"`

	VisionRange     int     `toml:"vision_range"`    // tiles, Chebyshev
	SpellMaxRange   int     `toml:"spell_max_range"` // tiles, Manhattan
	PathfindExpand  int     `toml:"pathfind_expand"` // A* node cap
	GroundItemTTL   int     `toml:"ground_item_ttl"` // seconds, 0 = permanent
	GoldDecayRate   float64 `toml:"gold_decay_rate"` // fraction removed per GoldDecay run
	ExpRate         float64 `toml:"exp_rate"`
	LoginRatePerMin int     `toml:"login_rate_per_min"`
}

// EffectsConfig holds the default tick-effect intervals. Live overrides come
// from the config:effects:* keys in the KV store.
type EffectsConfig struct {
	HungerThirst time.Duration `toml:"hunger_thirst"`
	GoldDecay    time.Duration `toml:"gold_decay"`
	Meditation   time.Duration `toml:"meditation"`
	Stamina      time.Duration `toml:"stamina"`
	NpcAI        time.Duration `toml:"npc_ai"`
	Modifiers    time.Duration `toml:"modifiers"`
	Respawn      time.Duration `toml:"respawn"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

// Load reads the TOML file at path on top of defaults, then applies
// environment overrides. CLI flags are applied afterwards by the caller,
// so precedence is CLI > environment > file > defaults. A missing file is
// not an error; a malformed one is.
func Load(path string) (*Config, error) {
	cfg := defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyEnv(cfg)
	cfg.Server.StartTime = time.Now().Unix()
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
	if v := os.Getenv("KV_HOST"); v != "" {
		cfg.KV.Host = v
	}
	if v := os.Getenv("KV_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.KV.Port = p
		}
	}
	if v := os.Getenv("KV_DB"); v != "" {
		if d, err := strconv.Atoi(v); err == nil {
			cfg.KV.DB = d
		}
	}
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Name: "aogo",
			Host: "0.0.0.0",
			Port: 7666,
		},
		KV: KVConfig{
			Host:     "localhost",
			Port:     6379,
			DB:       0,
			PoolSize: 20,
		},
		Network: NetworkConfig{
			TickPeriod:       500 * time.Millisecond,
			InQueueSize:      128,
			OutQueueSize:     256,
			MaxFrame:         8192,
			ReadTimeout:      5 * time.Minute,
			WriteTimeout:     10 * time.Second,
			LoginTimeout:     30 * time.Second,
			PacketsPerSecond: 60,
		},
		Game: GameConfig{
			DataDir:         "data",
			ScriptsDir:      "scripts",
			StartMap:        1,
			StartX:          50,
			StartY:          50,
			VisionRange:     12,
			SpellMaxRange:   10,
			PathfindExpand:  20,
			GroundItemTTL:   600,
			GoldDecayRate:   0.01,
			ExpRate:         1.0,
			LoginRatePerMin: 10,
		},
		Effects: EffectsConfig{
			HungerThirst: 180 * time.Second,
			GoldDecay:    60 * time.Second,
			Meditation:   3 * time.Second,
			Stamina:      5 * time.Second,
			NpcAI:        2 * time.Second,
			Modifiers:    10 * time.Second,
			Respawn:      1 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
