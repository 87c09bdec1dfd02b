package config

import (
	"fmt"
	"os"

	"github.com/samber/oops"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Load reads a Config from a viper instance. Values absent from v keep the
// defaults Init would apply. The database client cannot come from a file; the
// caller sets Transports.Database.Client after loading.
func Load(v *viper.Viper) (Config, error) {
	d := Defaults()
	v.SetDefault("app_name", d.AppName)
	v.SetDefault("environment", d.Environment)
	v.SetDefault("transports.enabled", d.Transports.Enabled)
	v.SetDefault("transports.file.path", d.Transports.File.Path)
	v.SetDefault("transports.http.timeout", d.Transports.HTTP.Timeout)
	v.SetDefault("transports.database.table_name", d.Transports.Database.TableName)

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if path := v.GetString("table_rules_file"); path != "" {
		rules, err := LoadTableRulesFile(path)
		if err != nil {
			return Config{}, err
		}
		if c.TableRules == nil {
			c.TableRules = map[string]TableRules{}
		}
		for name, rule := range rules {
			c.TableRules[name] = rule
		}
	}
	return c, nil
}

// LoadTableRulesFile reads a YAML document mapping table names to rules:
//
//	users:
//	  audited_operations: [UPDATE, DELETE]
//	  sensitivity: HIGH
//	sessions:
//	  enabled: false
func LoadTableRulesFile(path string) (map[string]TableRules, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read table rules %s: %w", path, err)
	}

	var rules map[string]TableRules
	if err := yaml.Unmarshal(raw, &rules); err != nil {
		return nil, oops.Code(CodeInvalid).
			With("path", path).
			Wrapf(err, "parse table rules")
	}
	for name, rule := range rules {
		if err := rule.validate(name); err != nil {
			return nil, err
		}
	}
	return rules, nil
}
