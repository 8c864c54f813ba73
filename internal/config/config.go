// Package config defines the single configuration model for an ingestion run.
// It is loaded once (JSON or YAML file, then environment overrides) and passed
// explicitly to every component; nothing else reads the environment.
//
// Example (YAML):
//
//	job: pnad-2023q4
//	dictionary: { path: dicionario.xlsx, skip_rows: 1 }
//	source:     { archive: PNADC_042023.zip }
//	storage:    { kind: postgres, dsn: "postgresql://etl@db:5432/ibge" }
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Default relation names and sizes.
const (
	DefaultJob             = "fwingest"
	DefaultDictionaryTable = "pnad_dict"
	DefaultStagingTable    = "pnad_staging_raw"
	DefaultTargetTable     = "pnad_educacao"
	DefaultBatchSize       = 50_000
	DefaultSkipRows        = 1
	DefaultStorageKind     = "postgres"
)

// Config is the complete configuration for one ingestion run.
type Config struct {
	// Job names the run in logs and metrics.
	Job string `json:"job" yaml:"job"`

	Dictionary Dictionary `json:"dictionary" yaml:"dictionary"`
	Source     Source     `json:"source" yaml:"source"`
	Staging    Staging    `json:"staging" yaml:"staging"`
	Target     Target     `json:"target" yaml:"target"`
	Storage    Storage    `json:"storage" yaml:"storage"`
	Metrics    Metrics    `json:"metrics" yaml:"metrics"`
}

// Dictionary locates the tabular layout description and where it is
// persisted.
type Dictionary struct {
	// Path is a .csv, .tsv, .txt, .xlsx or .xlsm file.
	Path string `json:"path" yaml:"path"`
	// Table is the persisted dictionary relation.
	Table string `json:"table" yaml:"table"`
	// Sheet selects a workbook sheet; empty means the first one.
	Sheet string `json:"sheet" yaml:"sheet"`
	// SkipRows is the number of leading rows (title and header) to skip.
	SkipRows int `json:"skip_rows" yaml:"skip_rows"`
	// Delimiter is the field separator for text dictionaries; "," if empty.
	Delimiter string `json:"delimiter" yaml:"delimiter"`
}

// Source locates the fixed-width data file.
type Source struct {
	// Path is the extracted fixed-width text file.
	Path string `json:"path" yaml:"path"`
	// Archive is an optional local .zip holding the file.
	Archive string `json:"archive" yaml:"archive"`
	// Member is the archive entry to extract; defaults to the archive's base
	// name with a .txt extension.
	Member string `json:"member" yaml:"member"`
	// TrimSpace strips blank padding from every field.
	TrimSpace bool `json:"trim_space" yaml:"trim_space"`
	// NullEmpty stages empty fields as NULL.
	NullEmpty bool `json:"null_empty" yaml:"null_empty"`
}

// Staging configures the raw positional relation.
type Staging struct {
	Table     string `json:"table" yaml:"table"`
	BatchSize int    `json:"batch_size" yaml:"batch_size"`
}

// Target configures the materialized relation.
type Target struct {
	Table string `json:"table" yaml:"table"`
}

// Storage selects the relational backend.
type Storage struct {
	// Kind is one of "postgres", "sqlite", "mssql".
	Kind string `json:"kind" yaml:"kind"`
	DSN  string `json:"dsn" yaml:"dsn"`
	// Schema, when set, qualifies unqualified table names.
	Schema string `json:"schema" yaml:"schema"`
}

// Metrics selects an optional metrics backend.
type Metrics struct {
	// Backend is "", "none", "prometheus" or "datadog".
	Backend        string `json:"backend" yaml:"backend"`
	PushgatewayURL string `json:"pushgateway_url" yaml:"pushgateway_url"`
	DatadogAddr    string `json:"datadog_addr" yaml:"datadog_addr"`
}

// Default returns a Config with every default applied.
func Default() Config {
	return Config{
		Job:        DefaultJob,
		Dictionary: Dictionary{Table: DefaultDictionaryTable, SkipRows: DefaultSkipRows},
		Staging:    Staging{Table: DefaultStagingTable, BatchSize: DefaultBatchSize},
		Target:     Target{Table: DefaultTargetTable},
		Storage:    Storage{Kind: DefaultStorageKind},
	}
}

// Load reads path (.json, .yaml or .yml) over the defaults. An empty path
// returns Default(). Unknown keys are rejected so typos surface early.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return DecodeJSON(data)
	case ".yaml", ".yml":
		return DecodeYAML(data)
	default:
		return Config{}, fmt.Errorf("config %s: unsupported extension (want .json, .yaml or .yml)", path)
	}
}

// DecodeJSON decodes data over the defaults.
func DecodeJSON(data []byte) (Config, error) {
	cfg := Default()
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode json config: %w", err)
	}
	return cfg, nil
}

// DecodeYAML decodes data over the defaults.
func DecodeYAML(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode yaml config: %w", err)
	}
	return cfg, nil
}

// LookupFunc reads one environment variable; os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// Environment variables consulted by ApplyEnv.
const (
	EnvDSN         = "FWINGEST_DSN"
	EnvStorageKind = "FWINGEST_STORAGE_KIND"
	EnvPGUser      = "POSTGRES_USER"
	EnvPGPassword  = "POSTGRES_PASSWORD"
	EnvPGHost      = "POSTGRES_HOST"
	EnvPGPort      = "POSTGRES_PORT"
	EnvPGDatabase  = "POSTGRES_DB"
)

// ApplyEnv overrides storage settings from lookup. FWINGEST_* values win over
// the file. When no DSN is configured at all and the storage kind is postgres,
// one is assembled from the POSTGRES_* variables, provided host and database
// are both set.
func (c *Config) ApplyEnv(lookup LookupFunc) {
	if lookup == nil {
		return
	}
	if v, ok := lookup(EnvStorageKind); ok && v != "" {
		c.Storage.Kind = v
	}
	if v, ok := lookup(EnvDSN); ok && v != "" {
		c.Storage.DSN = v
	}
	if c.Storage.DSN == "" && c.Storage.Kind == "postgres" {
		c.Storage.DSN = postgresDSN(lookup)
	}
}

func postgresDSN(lookup LookupFunc) string {
	get := func(k string) string {
		v, _ := lookup(k)
		return strings.TrimSpace(v)
	}
	host, db := get(EnvPGHost), get(EnvPGDatabase)
	if host == "" || db == "" {
		return ""
	}
	port := get(EnvPGPort)
	if port == "" {
		port = "5432"
	}
	u := url.URL{
		Scheme: "postgresql",
		Host:   net.JoinHostPort(host, port),
		Path:   "/" + db,
	}
	if user := get(EnvPGUser); user != "" {
		if pw, ok := lookup(EnvPGPassword); ok {
			u.User = url.UserPassword(user, pw)
		} else {
			u.User = url.User(user)
		}
	}
	return u.String()
}

// Qualify prefixes table with Storage.Schema unless it is already qualified.
func (c Config) Qualify(table string) string {
	if c.Storage.Schema == "" || strings.Contains(table, ".") {
		return table
	}
	return c.Storage.Schema + "." + table
}

// DictionaryTable returns the qualified dictionary relation name.
func (c Config) DictionaryTable() string { return c.Qualify(c.Dictionary.Table) }

// StagingTable returns the qualified staging relation name.
func (c Config) StagingTable() string { return c.Qualify(c.Staging.Table) }

// TargetTable returns the qualified target relation name.
func (c Config) TargetTable() string { return c.Qualify(c.Target.Table) }
