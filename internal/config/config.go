package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/danielpatrickdp/hardening-controller/internal/gate"
	"github.com/danielpatrickdp/hardening-controller/internal/orchestrator"
	"github.com/danielpatrickdp/hardening-controller/internal/policy"
	"github.com/danielpatrickdp/hardening-controller/internal/reward"
	"github.com/danielpatrickdp/hardening-controller/internal/risk"
	"github.com/danielpatrickdp/hardening-controller/internal/simulate"
	"gopkg.in/yaml.v3"
)

// #region config

// Config bundles every tunable in the controller. The risk constants, reward
// weights, and breakage table are untuned heuristics kept here so operators
// can re-weight without a rebuild.
type Config struct {
	DBPath          string `yaml:"db_path"`
	ListenAddr      string `yaml:"listen_addr"`
	Environment     string `yaml:"environment"` // "sandbox" | "prod"
	IntervalSeconds int    `yaml:"interval_seconds"` // 0 = run cycles on demand only

	GateMode      string            `yaml:"gate_mode"` // "rules" | "remote"
	GateRulesPath string            `yaml:"gate_rules_path"`
	GateClient    gate.ClientConfig `yaml:"gate_client"`

	Risk     risk.Weights        `yaml:"risk"`
	Simulate simulate.Config     `yaml:"simulate"`
	Policy   policy.Config       `yaml:"policy"`
	Reward   reward.Weights      `yaml:"reward"`
	Loop     orchestrator.Config `yaml:"loop"`
}

// Default returns the full default configuration.
func Default() Config {
	return Config{
		DBPath:      "hardening.db",
		ListenAddr:  ":8484",
		Environment: "sandbox",
		GateMode:    "rules",
		GateClient:  gate.DefaultClientConfig(),
		Risk:        risk.DefaultWeights(),
		Simulate:    simulate.DefaultConfig(),
		Policy:      policy.DefaultConfig(),
		Reward:      reward.DefaultWeights(),
		Loop:        orchestrator.DefaultConfig(),
	}
}

// #endregion config

// #region load

// Load reads a YAML config file over the defaults, then applies env-var
// overrides. An empty path skips the file.
func Load(path string) (Config, error) {
	c := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &c); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	c.applyEnv()
	return c, nil
}

// applyEnv maps the operational env vars over the loaded file.
func (c *Config) applyEnv() {
	c.DBPath = EnvOr("HARDENING_DB", c.DBPath)
	c.ListenAddr = EnvOr("HARDENING_LISTEN", c.ListenAddr)
	c.Environment = EnvOr("HARDENING_ENV", c.Environment)
	c.GateMode = EnvOr("GATE_MODE", c.GateMode)
	c.GateClient.Addr = EnvOr("GATE_ADDR", c.GateClient.Addr)

	if v := os.Getenv("EPSILON"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Policy.Epsilon = f
		}
	}
	if v := os.Getenv("CYCLE_INTERVAL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.IntervalSeconds = n
		}
	}
}

// EnvOr returns the env value for key, or fallback when unset.
func EnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion load
