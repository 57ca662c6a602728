package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"oneof=development staging production"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080" validate:"gt=0,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Scanner struct {
		ScanInterval time.Duration `yaml:"scan_interval" default:"1h" validate:"gt=0"`
		TopN         int           `yaml:"top_n" default:"5" validate:"gt=0"`
		MaxSymbols   int           `yaml:"max_symbols" default:"100" validate:"gt=0"`
		Workers      int           `yaml:"workers" default:"8" validate:"gt=0"`
	} `yaml:"scanner"`
	Market struct {
		Source         string        `yaml:"source" default:"bybit" validate:"oneof=bybit clickhouse"`
		BaseURL        string        `yaml:"base_url" default:"https://api.bybit.com"`
		WSURL          string        `yaml:"ws_url" default:"wss://stream.bybit.com/v5/public/linear"`
		Timeout        time.Duration `yaml:"timeout" default:"10s"`
		RPS            float64       `yaml:"rps" default:"5" validate:"gt=0"`
		Burst          float64       `yaml:"burst" default:"10" validate:"gt=0"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"5s"`
		PingInterval   time.Duration `yaml:"ping_interval" default:"20s"`
	} `yaml:"market"`
	Horizons struct {
		Short       string `yaml:"short" default:"15m" validate:"oneof=15m 1h 4h"`
		Medium      string `yaml:"medium" default:"1h" validate:"oneof=15m 1h 4h"`
		Long        string `yaml:"long" default:"4h" validate:"oneof=15m 1h 4h"`
		CandleLimit int    `yaml:"candle_limit" default:"200" validate:"gte=34"`
	} `yaml:"horizons"`
	Indicators struct {
		EMAFast         int     `yaml:"ema_fast" default:"9" validate:"gt=0"`
		EMASlow         int     `yaml:"ema_slow" default:"21" validate:"gt=0"`
		SMA             int     `yaml:"sma" default:"20" validate:"gt=0"`
		RSI             int     `yaml:"rsi" default:"14" validate:"gt=1"`
		MACDFast        int     `yaml:"macd_fast" default:"12" validate:"gt=0"`
		MACDSlow        int     `yaml:"macd_slow" default:"26" validate:"gt=0"`
		MACDSignal      int     `yaml:"macd_signal" default:"9" validate:"gt=0"`
		ATR             int     `yaml:"atr" default:"14" validate:"gt=0"`
		BollingerPeriod int     `yaml:"bollinger_period" default:"20" validate:"gt=1"`
		BollingerStdDev float64 `yaml:"bollinger_std_dev" default:"2.0" validate:"gt=0"`
	} `yaml:"indicators"`
	Gates struct {
		MinVolume float64 `yaml:"min_volume" default:"1000" validate:"gte=0"`
		MinATRPct float64 `yaml:"min_atr_pct" default:"0.001" validate:"gte=0"`
		RSILow    float64 `yaml:"rsi_low" default:"20" validate:"gte=0,lt=100"`
		RSIHigh   float64 `yaml:"rsi_high" default:"80" validate:"gt=0,lte=100"`
	} `yaml:"gates"`
	Score struct {
		Weights struct {
			Agreement  float64 `yaml:"agreement" default:"40" validate:"gte=0"`
			RSI        float64 `yaml:"rsi" default:"20" validate:"gte=0"`
			MACD       float64 `yaml:"macd" default:"20" validate:"gte=0"`
			Style      float64 `yaml:"style" default:"10" validate:"gte=0"`
			Volatility float64 `yaml:"volatility" default:"10" validate:"gte=0"`
		} `yaml:"weights"`
		PartialFactor float64 `yaml:"partial_factor" default:"0.55" validate:"gte=0,lt=1"`
		SplitFactor   float64 `yaml:"split_factor" default:"0.25" validate:"gte=0,lt=1"`
		RSISaturation float64 `yaml:"rsi_saturation" default:"30" validate:"gt=0,lte=50"`
		VolLow        float64 `yaml:"vol_low" default:"0.002" validate:"gte=0"`
		VolHigh       float64 `yaml:"vol_high" default:"0.05" validate:"gt=0"`
		MinScore      float64 `yaml:"min_score" default:"60" validate:"gt=0,lte=100"`
		MinConfidence float64 `yaml:"min_confidence" default:"70" validate:"gt=0,lte=100"`
	} `yaml:"score"`
	Regime struct {
		BreakoutLookback    int `yaml:"breakout_lookback" default:"5" validate:"gt=0"`
		WidthWindow         int `yaml:"width_window" default:"10" validate:"gt=1"`
		PersistenceScalpMax int `yaml:"persistence_scalp_max" default:"3" validate:"gte=0"`
		PersistenceTrendMin int `yaml:"persistence_trend_min" default:"12" validate:"gt=0"`
	} `yaml:"regime"`
	Filter struct {
		Enabled       bool          `yaml:"enabled"`
		Mode          string        `yaml:"mode" default:"history" validate:"oneof=history remote"`
		URL           string        `yaml:"url"`
		Timeout       time.Duration `yaml:"timeout" default:"3s"`
		AdjustmentCap float64       `yaml:"adjustment_cap" default:"10" validate:"gte=0,lte=100"`
		VetoThreshold float64       `yaml:"veto_threshold" default:"0.35" validate:"gte=0,lt=1"`
		WinRateTTL    time.Duration `yaml:"win_rate_ttl" default:"5m"`
	} `yaml:"filter"`
	Risk struct {
		RiskFraction          float64 `yaml:"risk_fraction" default:"0.75" validate:"gt=0,lte=1"`
		StopATR               float64 `yaml:"stop_atr" default:"1.5" validate:"gt=0"`
		TakeATR               float64 `yaml:"take_atr" default:"3.0" validate:"gt=0"`
		TrailATR              float64 `yaml:"trail_atr" default:"1.0" validate:"gt=0"`
		TrailActivation       float64 `yaml:"trail_activation" default:"0.5" validate:"gt=0,lt=1"`
		MaintenanceMarginRate float64 `yaml:"maintenance_margin_rate" default:"0.005" validate:"gte=0,lt=1"`
	} `yaml:"risk"`
	Account struct {
		Source      string  `yaml:"source" default:"static" validate:"oneof=static file"`
		Equity      float64 `yaml:"equity" default:"1000" validate:"gt=0"`
		Leverage    float64 `yaml:"leverage" default:"20" validate:"gt=0"`
		CapitalFile string  `yaml:"capital_file" default:"capital.json"`
	} `yaml:"account"`
	Postgres struct {
		Enabled  bool   `yaml:"enabled"`
		URL      string `yaml:"url" validate:"required_if=Enabled true"`
		MaxConns int32  `yaml:"max_conns" default:"10" validate:"gt=0"`
		MinConns int32  `yaml:"min_conns" default:"2" validate:"gte=0"`
	} `yaml:"postgres"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host" validate:"required_if=Enabled true"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"perpscout"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
	} `yaml:"clickhouse"`
	Kafka struct {
		Enabled       bool     `yaml:"enabled"`
		Brokers       []string `yaml:"brokers" validate:"required_if=Enabled true"`
		Topic         string   `yaml:"topic" default:"perpscout.signals"`
		OutcomesTopic string   `yaml:"outcomes_topic" default:"perpscout.trade-outcomes"`
		LogsTopic     string   `yaml:"logs_topic" default:"perpscout.logs"`
		RequiredAcks  int      `yaml:"required_acks" default:"-1"`
		Compression   string   `yaml:"compression" default:"gzip" validate:"oneof=gzip snappy lz4 zstd"`
		Producer      struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"1s"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"perpscout-outcomes"`
			StartFrom  string        `yaml:"start_from" default:"earliest" validate:"oneof=earliest latest"`
			Workers    int           `yaml:"workers" default:"4"`
			BufferSize int           `yaml:"buffer_size" default:"256"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"200ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"1048576"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr" validate:"required_if=Enabled true"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Notify struct {
		TopN         int  `yaml:"top_n" default:"5" validate:"gt=0"`
		QueueEnabled bool `yaml:"queue_enabled"`
		Telegram     struct {
			Enabled bool   `yaml:"enabled"`
			Token   string `yaml:"token" validate:"required_if=Enabled true"`
			ChatID  string `yaml:"chat_id" validate:"required_if=Enabled true"`
		} `yaml:"telegram"`
		Discord struct {
			Enabled    bool   `yaml:"enabled"`
			WebhookURL string `yaml:"webhook_url" validate:"required_if=Enabled true"`
		} `yaml:"discord"`
	} `yaml:"notify"`
	Archive struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"archive"`
}

// Load reads a YAML configuration file, applies defaults and validates.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Postgres.URL = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Notify.Telegram.Token = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Notify.Telegram.ChatID = v
	}
	if v := os.Getenv("DISCORD_WEBHOOK_URL"); v != "" {
		c.Notify.Discord.WebhookURL = v
	}

	return c, nil
}

var horizonMinutes = map[string]int{"15m": 15, "1h": 60, "4h": 240}

// Validate checks field constraints plus the cross-field rules the tags
// cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}

	// A non-unanimous candidate must never be able to reach min_score:
	// the agreement factors have to keep even a max-weight sum below it.
	w := c.Score.Weights
	total := w.Agreement + w.RSI + w.MACD + w.Style + w.Volatility
	if total*c.Score.PartialFactor >= c.Score.MinScore {
		return fmt.Errorf("score: partial_factor %.2f lets a two-of-three candidate reach min_score %.0f", c.Score.PartialFactor, c.Score.MinScore)
	}
	if total*c.Score.SplitFactor >= c.Score.MinScore {
		return fmt.Errorf("score: split_factor %.2f lets a split candidate reach min_score %.0f", c.Score.SplitFactor, c.Score.MinScore)
	}

	if c.Gates.RSILow >= c.Gates.RSIHigh {
		return fmt.Errorf("gates: rsi_low %.0f must be below rsi_high %.0f", c.Gates.RSILow, c.Gates.RSIHigh)
	}
	if c.Score.VolLow >= c.Score.VolHigh {
		return fmt.Errorf("score: vol_low %.4f must be below vol_high %.4f", c.Score.VolLow, c.Score.VolHigh)
	}

	short, medium, long := horizonMinutes[c.Horizons.Short], horizonMinutes[c.Horizons.Medium], horizonMinutes[c.Horizons.Long]
	if short >= medium || medium >= long {
		return fmt.Errorf("horizons: %s/%s/%s must strictly ascend", c.Horizons.Short, c.Horizons.Medium, c.Horizons.Long)
	}

	if c.Indicators.MACDFast >= c.Indicators.MACDSlow {
		return fmt.Errorf("indicators: macd_fast %d must be below macd_slow %d", c.Indicators.MACDFast, c.Indicators.MACDSlow)
	}
	if c.Indicators.EMAFast >= c.Indicators.EMASlow {
		return fmt.Errorf("indicators: ema_fast %d must be below ema_slow %d", c.Indicators.EMAFast, c.Indicators.EMASlow)
	}

	if c.Market.Source == "clickhouse" && !c.ClickHouse.Enabled {
		return fmt.Errorf("market: source clickhouse requires clickhouse.enabled")
	}
	if c.Archive.Enabled && !c.ClickHouse.Enabled {
		return fmt.Errorf("archive: enabled requires clickhouse.enabled")
	}
	if c.Notify.QueueEnabled && !c.Redis.Enabled {
		return fmt.Errorf("notify: queue_enabled requires redis.enabled")
	}
	if c.Filter.Enabled && c.Filter.Mode == "remote" && c.Filter.URL == "" {
		return fmt.Errorf("filter: mode remote requires url")
	}
	return nil
}
