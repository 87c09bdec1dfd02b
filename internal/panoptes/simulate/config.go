package simulate

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config describes a synthetic workload.
type Config struct {
	// Database is the SQLite file the workload runs against. It is created
	// and seeded when missing tables are found.
	Database string `yaml:"database"`

	Seed        int64  `yaml:"seed"`
	RunID       string `yaml:"runId"`
	Concurrency int    `yaml:"concurrency"`
	TotalOps    int    `yaml:"totalOps"`
	Actors      int    `yaml:"actors"`

	Patients int `yaml:"patients"`
	Drugs    int `yaml:"drugs"`
	Orders   int `yaml:"orders"`

	// Snapshots turns on before/after row capture for UPDATE and DELETE.
	Snapshots bool `yaml:"snapshots"`

	Mix Mix `yaml:"mix"`
}

// Mix holds relative operation weights. They are normalized to sum to 1.
type Mix struct {
	Select float64 `yaml:"select"`
	Insert float64 `yaml:"insert"`
	Update float64 `yaml:"update"`
	Delete float64 `yaml:"delete"`
}

// ReadConfig parses a workload file and applies defaults.
func ReadConfig(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read workload config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse workload config %s: %w", path, err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Database == "" {
		c.Database = "./panoptes-sim.db"
	}
	if c.RunID == "" {
		c.RunID = "sim"
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	if c.TotalOps <= 0 {
		c.TotalOps = 100
	}
	if c.Actors <= 0 {
		c.Actors = 5
	}
	if c.Patients <= 0 {
		c.Patients = 50
	}
	if c.Drugs <= 0 {
		c.Drugs = 20
	}
	if c.Orders <= 0 {
		c.Orders = 100
	}
	c.Mix.normalize()
}

func (m *Mix) normalize() {
	tot := m.Select + m.Insert + m.Update + m.Delete
	if tot <= 0 {
		*m = Mix{Select: 0.6, Insert: 0.15, Update: 0.2, Delete: 0.05}
		return
	}
	m.Select /= tot
	m.Insert /= tot
	m.Update /= tot
	m.Delete /= tot
}

// pick maps p in [0,1) to an operation.
func (m Mix) pick(p float64) string {
	switch {
	case p < m.Select:
		return "SELECT"
	case p < m.Select+m.Insert:
		return "INSERT"
	case p < m.Select+m.Insert+m.Update:
		return "UPDATE"
	default:
		return "DELETE"
	}
}
