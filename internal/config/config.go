// Package config provides configuration loading and management for vha.
package config

import (
	"fmt"
	"time"
)

// Model providers.
const (
	ProviderMock   = "mock"
	ProviderGemini = "gemini"
)

// Session store drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// Config is the root configuration.
type Config struct {
	Model    ModelConfig    `json:"model"    mapstructure:"model"`
	Pipeline PipelineConfig `json:"pipeline" mapstructure:"pipeline"`
	Store    StoreConfig    `json:"store"    mapstructure:"store"`
	Server   ServerConfig   `json:"server"   mapstructure:"server"`
}

// ModelConfig describes the text-understanding capability.
type ModelConfig struct {
	Provider  string `json:"provider"              mapstructure:"provider"`
	Name      string `json:"name,omitempty"        mapstructure:"name"`
	APIKeyEnv string `json:"api_key_env,omitempty" mapstructure:"api_key_env"`
	TimeoutMS int    `json:"timeout_ms,omitempty"  mapstructure:"timeout_ms"`
}

// PipelineConfig defines the quality-gate and latency budgets.
type PipelineConfig struct {
	AcceptThreshold  int `json:"accept_threshold"   mapstructure:"accept_threshold"`
	MaxIterations    int `json:"max_iterations"     mapstructure:"max_iterations"`
	ContextTimeoutMS int `json:"context_timeout_ms" mapstructure:"context_timeout_ms"`
	TurnBudgetMS     int `json:"turn_budget_ms"     mapstructure:"turn_budget_ms"`
	MaxReasons       int `json:"max_reasons"        mapstructure:"max_reasons"`
}

// ContextTimeout returns the retriever timeout as a duration.
func (p PipelineConfig) ContextTimeout() time.Duration {
	return time.Duration(p.ContextTimeoutMS) * time.Millisecond
}

// TurnBudget returns the whole-turn latency budget as a duration.
func (p PipelineConfig) TurnBudget() time.Duration {
	return time.Duration(p.TurnBudgetMS) * time.Millisecond
}

// StoreConfig selects the session store backend.
type StoreConfig struct {
	Driver string `json:"driver"         mapstructure:"driver"`
	Path   string `json:"path,omitempty" mapstructure:"path"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr string `json:"addr" mapstructure:"addr"`
}

// Default returns the configuration used when no config file is present.
func Default() Config {
	return Config{
		Model: ModelConfig{
			Provider:  ProviderMock,
			Name:      "gemini-2.5-flash-lite",
			APIKeyEnv: "GEMINI_API_KEY",
			TimeoutMS: 10_000,
		},
		Pipeline: PipelineConfig{
			AcceptThreshold:  8,
			MaxIterations:    3,
			ContextTimeoutMS: 1_500,
			TurnBudgetMS:     30_000,
			MaxReasons:       4,
		},
		Store: StoreConfig{
			Driver: DriverMemory,
			Path:   "vha.db",
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
	}
}

// Normalize fills zero values with defaults and rejects invalid settings.
func (c *Config) Normalize() error {
	def := Default()
	if c.Model.Provider == "" {
		c.Model.Provider = def.Model.Provider
	}
	if c.Model.Provider != ProviderMock && c.Model.Provider != ProviderGemini {
		return fmt.Errorf("model.provider must be %q or %q", ProviderMock, ProviderGemini)
	}
	if c.Model.Name == "" {
		c.Model.Name = def.Model.Name
	}
	if c.Model.APIKeyEnv == "" {
		c.Model.APIKeyEnv = def.Model.APIKeyEnv
	}
	if c.Model.TimeoutMS <= 0 {
		c.Model.TimeoutMS = def.Model.TimeoutMS
	}
	if c.Pipeline.AcceptThreshold == 0 {
		c.Pipeline.AcceptThreshold = def.Pipeline.AcceptThreshold
	}
	if c.Pipeline.AcceptThreshold < 0 || c.Pipeline.AcceptThreshold > 10 {
		return fmt.Errorf("pipeline.accept_threshold must be in 0..10")
	}
	if c.Pipeline.MaxIterations == 0 {
		c.Pipeline.MaxIterations = def.Pipeline.MaxIterations
	}
	if c.Pipeline.MaxIterations < 1 {
		return fmt.Errorf("pipeline.max_iterations must be > 0")
	}
	if c.Pipeline.ContextTimeoutMS <= 0 {
		c.Pipeline.ContextTimeoutMS = def.Pipeline.ContextTimeoutMS
	}
	if c.Pipeline.TurnBudgetMS <= 0 {
		c.Pipeline.TurnBudgetMS = def.Pipeline.TurnBudgetMS
	}
	if c.Pipeline.MaxReasons <= 0 {
		c.Pipeline.MaxReasons = def.Pipeline.MaxReasons
	}
	if c.Store.Driver == "" {
		c.Store.Driver = def.Store.Driver
	}
	if c.Store.Driver != DriverMemory && c.Store.Driver != DriverSQLite {
		return fmt.Errorf("store.driver must be %q or %q", DriverMemory, DriverSQLite)
	}
	if c.Store.Driver == DriverSQLite && c.Store.Path == "" {
		return fmt.Errorf("store.path is required for the sqlite driver")
	}
	if c.Server.Addr == "" {
		c.Server.Addr = def.Server.Addr
	}
	return nil
}
