package main

// config.go reads the settings (flags, environment and config file) and the seed data files

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jensneuse/abstractlogger"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

type (
	config struct {
		Addr            string        `mapstructure:"addr"`
		Path            string        `mapstructure:"path"`
		Schema          []string      `mapstructure:"schema"`
		Repositories    []repoConfig  `mapstructure:"repositories"`
		JWTSecret       string        `mapstructure:"jwt-secret"`
		NoIntrospection bool          `mapstructure:"no-introspection"`
		PingFrequency   time.Duration `mapstructure:"ping-frequency"`
		Log             logConfig     `mapstructure:"log"`
		Shutdown        time.Duration `mapstructure:"shutdown-timeout"`
	}

	// repoConfig names a GraphQL object type and the YAML file with its entities (a list of objects)
	repoConfig struct {
		Type string `mapstructure:"type"`
		Data string `mapstructure:"data"`
	}

	logConfig struct {
		Level       string `mapstructure:"level"`
		Development bool   `mapstructure:"development"`
	}
)

// newViper makes the settings store with defaults and GQLKIT_* environment variables
func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("addr", ":8080")
	v.SetDefault("path", "/graphql")
	v.SetDefault("schema", []string{"schema.graphql"})
	v.SetDefault("jwt-secret", "")
	v.SetDefault("no-introspection", false)
	v.SetDefault("ping-frequency", 0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("shutdown-timeout", 5*time.Second)

	v.SetEnvPrefix("GQLKIT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	return v
}

// load reads the config file (if any) and returns the settings.  File paths in the settings are relative
// to the directory of the config file.
func load(v *viper.Viper, file string) (*config, error) {
	dir := ""
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w reading config file %q", err, file)
		}
		dir = filepath.Dir(file)
	}
	cfg := &config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w decoding settings", err)
	}
	for i, s := range cfg.Schema {
		cfg.Schema[i] = relative(dir, s)
	}
	for i := range cfg.Repositories {
		cfg.Repositories[i].Data = relative(dir, cfg.Repositories[i].Data)
	}
	return cfg, nil
}

func relative(dir, path string) string {
	if dir == "" || path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

// readSchema reads the SDL of all the schema files
func (cfg *config) readSchema() ([]string, error) {
	if len(cfg.Schema) == 0 {
		return nil, fmt.Errorf("no schema files")
	}
	r := make([]string, 0, len(cfg.Schema))
	for _, name := range cfg.Schema {
		buf, err := os.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("%w reading schema", err)
		}
		r = append(r, string(buf))
	}
	return r, nil
}

// readRecords reads a YAML file containing a list of objects
func readRecords(name string) ([]interface{}, error) {
	buf, err := os.ReadFile(name)
	if err != nil {
		return nil, err
	}
	var records []interface{}
	if err := yaml.Unmarshal(buf, &records); err != nil {
		return nil, fmt.Errorf("%w decoding %q", err, name)
	}
	for i, record := range records {
		records[i] = stringKeys(record)
	}
	return records, nil
}

// stringKeys converts the maps decoded from YAML (which have interface{} keys) so they can be encoded as JSON
func stringKeys(v interface{}) interface{} {
	switch v := v.(type) {
	case map[interface{}]interface{}:
		r := make(map[string]interface{}, len(v))
		for k, value := range v {
			r[fmt.Sprint(k)] = stringKeys(value)
		}
		return r
	case []interface{}:
		for i, value := range v {
			v[i] = stringKeys(value)
		}
	}
	return v
}

// logger makes the zap logger and its abstractlogger wrapper
func (cfg *config) logger() (*zap.Logger, abstractlogger.Logger, error) {
	var (
		z   *zap.Logger
		err error
	)
	if cfg.Log.Development {
		z, err = zap.NewDevelopment()
	} else {
		z, err = zap.NewProduction()
	}
	if err != nil {
		return nil, nil, err
	}
	return z, abstractlogger.NewZapLogger(z, logLevel(cfg.Log.Level)), nil
}

func logLevel(level string) abstractlogger.Level {
	switch strings.ToLower(level) {
	case "debug":
		return abstractlogger.DebugLevel
	case "warn", "warning":
		return abstractlogger.WarnLevel
	case "error":
		return abstractlogger.ErrorLevel
	}
	return abstractlogger.InfoLevel
}
