package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"exchange/infra/logging"
	"exchange/service"
)

const EnvPrefix = "EXCHANGE"

type Config struct {
	Log         logging.Config       `mapstructure:"log"`
	Instruments []service.Instrument `mapstructure:"instruments"`
	GRPC        GRPCConfig           `mapstructure:"grpc"`
	NATS        NATSConfig           `mapstructure:"nats"`
	Broker      BrokerConfig         `mapstructure:"broker"`
	Outbox      OutboxConfig         `mapstructure:"outbox"`
	Journal     JournalConfig        `mapstructure:"journal"`
	Broadcast   BroadcastConfig      `mapstructure:"broadcast"`
	Events      EventsConfig         `mapstructure:"events"`
	Metrics     MetricsConfig        `mapstructure:"metrics"`
}

type GRPCConfig struct {
	Addr string `mapstructure:"addr"`
}

type NATSConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	URL          string `mapstructure:"url"`
	RPCSubject   string `mapstructure:"rpc_subject"`
	Queue        string `mapstructure:"queue"`
	EventSubject string `mapstructure:"event_subject"`
}

// Driver names accepted in broker.driver.
const (
	DriverSarama  = "sarama"
	DriverKafkaGo = "kafka-go"
	DriverNATS    = "nats"
	DriverNone    = "none"
)

type BrokerConfig struct {
	Driver  string   `mapstructure:"driver"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type OutboxConfig struct {
	Dir string `mapstructure:"dir"`
}

type JournalConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Dir             string        `mapstructure:"dir"`
	SegmentSize     int64         `mapstructure:"segment_size"`
	SegmentDuration time.Duration `mapstructure:"segment_duration"`
}

type BroadcastConfig struct {
	Interval   time.Duration `mapstructure:"interval"`
	BatchSize  int           `mapstructure:"batch_size"`
	MaxRetries uint32        `mapstructure:"max_retries"`
}

type EventsConfig struct {
	Buffer int `mapstructure:"buffer"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	v.SetDefault("instruments", []map[string]any{
		{"id": "FAPPL", "name": "Fake Apple", "stock_symbol": "FAPPL", "currency": "USD"},
		{"id": "FMETA", "name": "Fake Meta", "stock_symbol": "FMETA", "currency": "USD"},
	})

	v.SetDefault("grpc.addr", ":50051")

	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", "nats://127.0.0.1:4222")
	v.SetDefault("nats.rpc_subject", "exchange.rpc")
	v.SetDefault("nats.queue", "exchange-engine")
	v.SetDefault("nats.event_subject", "events")

	v.SetDefault("broker.driver", DriverSarama)
	v.SetDefault("broker.brokers", []string{"localhost:9092"})
	v.SetDefault("broker.topic", "events")

	v.SetDefault("outbox.dir", "./data/outbox")

	v.SetDefault("journal.enabled", true)
	v.SetDefault("journal.dir", "./data/journal")
	v.SetDefault("journal.segment_size", 4<<20)
	v.SetDefault("journal.segment_duration", "0s")

	v.SetDefault("broadcast.interval", "250ms")
	v.SetDefault("broadcast.batch_size", 256)
	v.SetDefault("broadcast.max_retries", 5)

	v.SetDefault("events.buffer", 4096)

	v.SetDefault("metrics.addr", ":9090")
}

// Load reads defaults, then the optional YAML file at path, then
// EXCHANGE_* environment variables (grpc.addr -> EXCHANGE_GRPC_ADDR).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	if len(c.Instruments) == 0 {
		errs = append(errs, errors.New("at least one instrument is required"))
	}
	seen := make(map[string]struct{}, len(c.Instruments))
	for i, in := range c.Instruments {
		if in.ID == "" {
			errs = append(errs, fmt.Errorf("instruments[%d]: id is required", i))
			continue
		}
		if _, dup := seen[in.ID]; dup {
			errs = append(errs, fmt.Errorf("instruments[%d]: duplicate id %q", i, in.ID))
		}
		seen[in.ID] = struct{}{}
	}

	if c.GRPC.Addr == "" {
		errs = append(errs, errors.New("grpc.addr is required"))
	}
	if c.Outbox.Dir == "" {
		errs = append(errs, errors.New("outbox.dir is required"))
	}
	if c.Journal.Enabled && c.Journal.Dir == "" {
		errs = append(errs, errors.New("journal.dir is required when the journal is enabled"))
	}

	switch c.Broker.Driver {
	case DriverSarama, DriverKafkaGo:
		if len(c.Broker.Brokers) == 0 || c.Broker.Topic == "" {
			errs = append(errs, fmt.Errorf("broker.driver %s needs brokers and topic", c.Broker.Driver))
		}
	case DriverNATS:
		if !c.NATS.Enabled {
			errs = append(errs, errors.New("broker.driver nats needs nats.enabled"))
		}
	case DriverNone:
	default:
		errs = append(errs, fmt.Errorf("broker.driver %q is not one of sarama, kafka-go, nats, none", c.Broker.Driver))
	}

	if c.Events.Buffer <= 0 {
		errs = append(errs, errors.New("events.buffer must be positive"))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
