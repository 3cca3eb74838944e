package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/TusharChoudharyy/zava-chat-app/internal/events"
	"github.com/TusharChoudharyy/zava-chat-app/internal/registry"
	"github.com/TusharChoudharyy/zava-chat-app/internal/relay"
)

const envPrefix = "ZAVA"

// minPongWait keeps the derived ping period well above zero.
const minPongWait = time.Second

// Relay is the relay server configuration. Values come from, in order of
// precedence, ZAVA_* environment variables, the optional config file and
// the defaults below.
type Relay struct {
	ListenAddr     string        `mapstructure:"listen_addr"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	HostPolicy     string        `mapstructure:"host_policy"`
	ReapEmptyRooms bool          `mapstructure:"reap_empty_rooms"`
	ExposeRooms    bool          `mapstructure:"expose_rooms"`
	SendQueueSize  int           `mapstructure:"send_queue_size"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`

	TURN   TURN   `mapstructure:"turn"`
	Events Events `mapstructure:"events"`
}

type TURN struct {
	Enabled    bool              `mapstructure:"enabled"`
	ListenAddr string            `mapstructure:"listen_addr"`
	Realm      string            `mapstructure:"realm"`
	PublicIP   string            `mapstructure:"public_ip"`
	Users      map[string]string `mapstructure:"users"`
}

type Events struct {
	AMQPURL      string   `mapstructure:"amqp_url"`
	AMQPQueue    string   `mapstructure:"amqp_queue"`
	KafkaBrokers []string `mapstructure:"kafka_brokers"`
	KafkaTopic   string   `mapstructure:"kafka_topic"`
	BufferSize   int      `mapstructure:"buffer_size"`
}

func setRelayDefaults(v *viper.Viper) {
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("allowed_origins", []string{"*"})
	v.SetDefault("host_policy", string(registry.HostPolicyNone))
	v.SetDefault("reap_empty_rooms", true)
	v.SetDefault("expose_rooms", false)
	v.SetDefault("send_queue_size", 256)
	v.SetDefault("max_message_size", 64*1024)
	v.SetDefault("pong_wait", 60*time.Second)
	v.SetDefault("write_wait", 10*time.Second)

	v.SetDefault("turn.enabled", false)
	v.SetDefault("turn.listen_addr", "0.0.0.0:3478")
	v.SetDefault("turn.realm", "zava")
	v.SetDefault("turn.public_ip", "")
	v.SetDefault("turn.users", map[string]string{})

	v.SetDefault("events.amqp_url", "")
	v.SetDefault("events.amqp_queue", events.DefaultQueue)
	v.SetDefault("events.kafka_brokers", []string{})
	v.SetDefault("events.kafka_topic", events.DefaultTopic)
	v.SetDefault("events.buffer_size", 1024)
}

// LoadRelay reads the relay configuration. file may be empty.
func LoadRelay(file string) (*Relay, error) {
	v := viper.New()
	setRelayDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Relay
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Relay) Validate() error {
	if _, err := registry.ParseHostPolicy(c.HostPolicy); err != nil {
		return err
	}
	if c.PongWait < minPongWait {
		return fmt.Errorf("pong_wait must be at least %s", minPongWait)
	}
	if c.WriteWait <= 0 {
		return errors.New("write_wait must be positive")
	}
	if c.SendQueueSize <= 0 {
		return errors.New("send_queue_size must be positive")
	}
	if c.MaxMessageSize <= 0 {
		return errors.New("max_message_size must be positive")
	}
	if c.TURN.Enabled && len(c.TURN.Users) == 0 {
		return errors.New("turn.users must not be empty when turn is enabled")
	}
	return nil
}

func (c *Relay) RegistryOptions() registry.Options {
	policy, _ := registry.ParseHostPolicy(c.HostPolicy)
	return registry.Options{HostPolicy: policy, ReapEmpty: c.ReapEmptyRooms}
}

// Limits derives per-connection limits. Pings go out at 90% of the pong wait.
func (c *Relay) Limits() relay.Limits {
	return relay.Limits{
		WriteWait:      c.WriteWait,
		PongWait:       c.PongWait,
		PingPeriod:     (c.PongWait * 9) / 10,
		MaxMessageSize: c.MaxMessageSize,
		SendQueueSize:  c.SendQueueSize,
	}
}

func (c *Relay) EventOptions() events.Options {
	return events.Options{
		AMQPURL:      c.Events.AMQPURL,
		AMQPQueue:    c.Events.AMQPQueue,
		KafkaBrokers: c.Events.KafkaBrokers,
		KafkaTopic:   c.Events.KafkaTopic,
	}
}
