package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type SymbolConfig struct {
	Base  string `yaml:"base"`
	Quote string `yaml:"quote"`
}

type BookConfig struct {
	PriceDecimals    int `yaml:"price_decimals"`
	QuantityDecimals int `yaml:"quantity_decimals"`
	SnapshotDepth    int `yaml:"snapshot_depth"`
}

type BinanceConfig struct {
	StreamEndpoint string `yaml:"stream_endpoint"`
	RestEndpoint   string `yaml:"rest_endpoint"`
}

type MetricsConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type RenderConfig struct {
	IntervalSeconds int `yaml:"interval_seconds"`
	Depth           int `yaml:"depth"`
}

type Config struct {
	Symbol  SymbolConfig  `yaml:"symbol"`
	Book    BookConfig    `yaml:"book"`
	Binance BinanceConfig `yaml:"binance"`
	Metrics MetricsConfig `yaml:"metrics"`
	Log     LogConfig     `yaml:"log"`
	Render  RenderConfig  `yaml:"render"`
}

func Default() *Config {
	return &Config{
		Symbol: SymbolConfig{Base: "btc", Quote: "usdt"},
		Book: BookConfig{
			PriceDecimals:    8,
			QuantityDecimals: 8,
			SnapshotDepth:    1000,
		},
		Binance: BinanceConfig{
			StreamEndpoint: "wss://stream.binance.com:9443/stream",
			RestEndpoint:   "https://api.binance.com",
		},
		Metrics: MetricsConfig{ListenAddr: ":9090"},
		Log:     LogConfig{Level: "info", File: "logs/marketdepth.log"},
		Render:  RenderConfig{IntervalSeconds: 5, Depth: 10},
	}
}

// Load reads the yaml config at path over the defaults. A missing file is
// not an error. Environment variables (optionally from a .env file) override
// the log level.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}

	return cfg, nil
}
