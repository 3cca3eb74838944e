package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/TusharChoudharyy/zava-chat-app/internal/registry"
)

func clearClientEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"DOMAIN", "SERVER_URL", "STUN_SERVER", "TURN_SERVER", "TURN_USERNAME", "TURN_PASSWORD"} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearClientEnv(t)

	cfg, err := Load(Options{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Domain != DefaultDomain {
		t.Fatalf("domain=%q, want %q", cfg.Domain, DefaultDomain)
	}
	if cfg.WebSocketURL != "wss://"+DefaultDomain+"/ws" {
		t.Fatalf("ws url=%q", cfg.WebSocketURL)
	}
	if cfg.TURNServers() != nil {
		t.Fatalf("TURN servers configured by default: %v", cfg.TURNServers())
	}
}

func TestLoad_FlagsBeatEnvironment(t *testing.T) {
	clearClientEnv(t)
	t.Setenv("DOMAIN", "env.example")
	t.Setenv("STUN_SERVER", "stun:env.example:3478")

	cfg, err := Load(Options{Domain: "flag.example"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Domain != "flag.example" {
		t.Fatalf("domain=%q, want flag.example", cfg.Domain)
	}
	if cfg.STUNServer != "stun:env.example:3478" {
		t.Fatalf("stun=%q, want env value", cfg.STUNServer)
	}
	if got := cfg.InviteLink("kitten-waffle"); got != "https://flag.example/join/kitten-waffle" {
		t.Fatalf("invite=%q", got)
	}
}

func TestLoad_ServerOverride(t *testing.T) {
	clearClientEnv(t)
	t.Setenv("SERVER_URL", "ws://localhost:8080/ws")

	cfg, err := Load(Options{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.WebSocketURL != "ws://localhost:8080/ws" {
		t.Fatalf("ws url=%q", cfg.WebSocketURL)
	}
	if got := cfg.HTTPBase(); got != "http://localhost:8080" {
		t.Fatalf("http base=%q, want http://localhost:8080", got)
	}

	if _, err := Load(Options{Server: "http://localhost:8080/ws"}); err == nil {
		t.Fatalf("Load accepted an http server url")
	}
}

func TestLoad_ForceRelayNeedsTURN(t *testing.T) {
	clearClientEnv(t)

	if _, err := Load(Options{ForceRelay: true}); !errors.Is(err, ErrRelayWithoutTURN) {
		t.Fatalf("err=%v, want %v", err, ErrRelayWithoutTURN)
	}

	cfg, err := Load(Options{ForceRelay: true, TURNServer: "turn.example"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.TURNServers(); len(got) != 3 || got[0] != "turn:turn.example:3478?transport=udp" {
		t.Fatalf("turn servers=%v", got)
	}

	cfg, _ = Load(Options{TURNServer: "turn:turn.example:3479"})
	if got := cfg.TURNServers(); len(got) != 1 || got[0] != "turn:turn.example:3479" {
		t.Fatalf("explicit turn url expanded: %v", got)
	}
}

func TestLoadRelay_Defaults(t *testing.T) {
	cfg, err := LoadRelay("")
	if err != nil {
		t.Fatalf("LoadRelay: %v", err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Fatalf("listen_addr=%q", cfg.ListenAddr)
	}
	if !cfg.ReapEmptyRooms || cfg.ExposeRooms {
		t.Fatalf("reap=%v expose=%v, want true false", cfg.ReapEmptyRooms, cfg.ExposeRooms)
	}
	if got := cfg.RegistryOptions().HostPolicy; got != registry.HostPolicyNone {
		t.Fatalf("host policy=%q, want none", got)
	}

	limits := cfg.Limits()
	if limits.PongWait != 60*time.Second || limits.PingPeriod != 54*time.Second {
		t.Fatalf("limits=%+v, want 60s pong / 54s ping", limits)
	}
	if limits.MaxMessageSize != 64*1024 || limits.SendQueueSize != 256 {
		t.Fatalf("limits=%+v", limits)
	}
}

func TestLoadRelay_FileAndEnvironment(t *testing.T) {
	file := filepath.Join(t.TempDir(), "relay.yaml")
	yaml := `listen_addr: ":9000"
host_policy: promote-oldest
pong_wait: 30s
expose_rooms: true
turn:
  enabled: true
  realm: test
  users:
    alice: secret
`
	if err := os.WriteFile(file, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("ZAVA_LISTEN_ADDR", ":9100")
	t.Setenv("ZAVA_EVENTS_KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := LoadRelay(file)
	if err != nil {
		t.Fatalf("LoadRelay: %v", err)
	}
	if cfg.ListenAddr != ":9100" {
		t.Fatalf("listen_addr=%q, want env override :9100", cfg.ListenAddr)
	}
	if cfg.PongWait != 30*time.Second {
		t.Fatalf("pong_wait=%v, want 30s", cfg.PongWait)
	}
	if got := cfg.RegistryOptions().HostPolicy; got != registry.HostPolicyPromoteOldest {
		t.Fatalf("host policy=%q", got)
	}
	if !cfg.TURN.Enabled || cfg.TURN.Users["alice"] != "secret" {
		t.Fatalf("turn=%+v", cfg.TURN)
	}
	if brokers := cfg.EventOptions().KafkaBrokers; len(brokers) != 2 || brokers[1] != "k2:9092" {
		t.Fatalf("kafka brokers=%v", brokers)
	}
}

func TestLoadRelay_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unknown host policy", "ZAVA_HOST_POLICY", "coin-flip"},
		{"pong wait too short for a ping period", "ZAVA_PONG_WAIT", "5ns"},
		{"pong wait under a second", "ZAVA_PONG_WAIT", "500ms"},
		{"zero write wait", "ZAVA_WRITE_WAIT", "0s"},
		{"zero send queue", "ZAVA_SEND_QUEUE_SIZE", "0"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			if _, err := LoadRelay(""); err == nil {
				t.Fatalf("LoadRelay accepted %s=%s", tc.key, tc.value)
			}
		})
	}
}

func TestLoadRelay_ShortestPongWaitKeepsPinging(t *testing.T) {
	t.Setenv("ZAVA_PONG_WAIT", "1s")
	cfg, err := LoadRelay("")
	if err != nil {
		t.Fatalf("LoadRelay: %v", err)
	}
	if p := cfg.Limits().PingPeriod; p <= 0 || p >= cfg.PongWait {
		t.Fatalf("ping period=%v, want between 0 and %v", p, cfg.PongWait)
	}
}

func TestLoadRelay_TURNWithoutUsers(t *testing.T) {
	t.Setenv("ZAVA_TURN_ENABLED", "true")
	if _, err := LoadRelay(""); err == nil {
		t.Fatalf("LoadRelay accepted turn without users")
	}
}
