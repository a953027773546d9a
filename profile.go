package fluent

import (
	"errors"
	"fmt"
	"maps"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"gopkg.in/yaml.v3"

	"github.com/syssam/fluent/dialect"
)

// ID addresses one database of one profile, written "profile:database".
type ID string

// NewID joins a profile name and a database name into an ID.
func NewID(profile, database string) ID {
	return ID(profile + ":" + database)
}

// Split parses the identifier into its profile and database names.
func (id ID) Split() (profile, database string, err error) {
	if id == "" {
		return "", "", newIdentifierError(ErrInvalidIdentifier, id, "empty connection identifier")
	}
	profile, database, ok := strings.Cut(string(id), ":")
	if !ok || database == "" {
		return "", "", newIdentifierError(ErrInvalidIdentifier, id, "no database specified")
	}
	if profile == "" {
		return "", "", newIdentifierError(ErrInvalidIdentifier, id, "no profile specified")
	}
	return profile, database, nil
}

// Databases is the set of database names a profile may connect to.
// In YAML it is written either as a single string or as a list.
type Databases []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Databases) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*d = Databases{value.Value}
		return nil
	case yaml.SequenceNode:
		var names []string
		if err := value.Decode(&names); err != nil {
			return err
		}
		*d = names
		return nil
	default:
		return fmt.Errorf("fluent: line %d: databases must be a string or a list of strings", value.Line)
	}
}

// Profile holds the connection parameters of one named database server.
type Profile struct {
	Name            string            `yaml:"-"`
	Driver          string            `yaml:"driver"`
	Host            string            `yaml:"host"`
	Port            int               `yaml:"port"`
	Username        string            `yaml:"username"`
	Password        string            `yaml:"password"`
	Charset         string            `yaml:"charset"`
	Timezone        string            `yaml:"timezone"`
	Databases       Databases         `yaml:"databases"`
	Params          map[string]string `yaml:"params"`
	MaxOpenConns    int               `yaml:"max_open_conns"`
	MaxIdleConns    int               `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration     `yaml:"conn_max_lifetime"`
}

// Allows reports whether the profile permits connecting to database.
func (p Profile) Allows(database string) bool {
	return slices.Contains(p.Databases, database)
}

// clone returns a copy that shares no mutable state with p.
func (p Profile) clone() Profile {
	p.Databases = slices.Clone(p.Databases)
	p.Params = maps.Clone(p.Params)
	return p
}

// DSN returns the data source name for database in the profile's driver format.
// The charset and timezone are passed as session parameters so that every
// physical connection is initialised with them.
func (p Profile) DSN(database string) (string, error) {
	switch p.Driver {
	case dialect.MySQL:
		return p.mysqlDSN(database), nil
	case dialect.Postgres:
		return p.postgresDSN(database), nil
	case dialect.SQLite:
		return p.sqliteDSN(database), nil
	default:
		return "", fmt.Errorf("fluent: profile %q: unsupported driver %q", p.Name, p.Driver)
	}
}

func (p Profile) mysqlDSN(database string) string {
	cfg := mysql.NewConfig()
	cfg.User = p.Username
	cfg.Passwd = p.Password
	cfg.DBName = database
	cfg.ParseTime = true
	// Statements are prepared on the server, never interpolated client side.
	cfg.InterpolateParams = false
	if strings.HasPrefix(p.Host, "/") {
		cfg.Net, cfg.Addr = "unix", p.Host
	} else {
		cfg.Net, cfg.Addr = "tcp", p.hostPort("127.0.0.1", 3306)
	}
	cfg.Params = make(map[string]string, len(p.Params)+1)
	maps.Copy(cfg.Params, p.Params)
	if p.Timezone != "" {
		cfg.Params["time_zone"] = "'" + p.Timezone + "'"
	}
	dsn := cfg.FormatDSN()
	if p.Charset == "" {
		return dsn
	}
	// The driver negotiates the charset itself rather than through SET.
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "charset=" + url.QueryEscape(p.Charset)
}

func (p Profile) postgresDSN(database string) string {
	u := url.URL{
		Scheme: "postgres",
		Host:   p.hostPort("localhost", 5432),
		Path:   "/" + database,
	}
	if p.Username != "" {
		u.User = url.UserPassword(p.Username, p.Password)
	}
	q := url.Values{}
	for k, v := range p.Params {
		q.Set(k, v)
	}
	if p.Charset != "" {
		q.Set("client_encoding", p.Charset)
	}
	if p.Timezone != "" {
		q.Set("timezone", p.Timezone)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func (p Profile) sqliteDSN(database string) string {
	q := url.Values{}
	for k, v := range p.Params {
		q.Set(k, v)
	}
	name := database
	if p.Host == ":memory:" {
		q.Set("mode", "memory")
		q.Set("cache", "shared")
	} else {
		if filepath.Ext(name) == "" {
			name += ".db"
		}
		name = filepath.Join(p.Host, name)
	}
	if len(q) == 0 {
		return "file:" + name
	}
	return "file:" + name + "?" + q.Encode()
}

func (p Profile) hostPort(host string, port int) string {
	if p.Host != "" {
		host = p.Host
	}
	if p.Port != 0 {
		port = p.Port
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// Defaults selects the identifier used when a session has no active profile.
type Defaults struct {
	CLI        ID `yaml:"cli"`
	Local      ID `yaml:"local"`
	Production ID `yaml:"production"`
}

func (d Defaults) id(env Env) ID {
	switch env {
	case EnvCLI:
		return d.CLI
	case EnvLocal:
		return d.Local
	default:
		return d.Production
	}
}

// ProfileTable is the immutable set of configured profiles.
type ProfileTable struct {
	profiles map[string]Profile
	defaults Defaults
}

// NewProfileTable validates the profiles and defaults and builds a table.
// Profiles without a driver use MySQL.
func NewProfileTable(profiles []Profile, defaults Defaults) (*ProfileTable, error) {
	t := &ProfileTable{
		profiles: make(map[string]Profile, len(profiles)),
		defaults: defaults,
	}
	var errs []error
	for _, p := range profiles {
		switch {
		case p.Name == "" || strings.Contains(p.Name, ":"):
			errs = append(errs, fmt.Errorf("fluent: invalid profile name %q", p.Name))
			continue
		case len(p.Databases) == 0:
			errs = append(errs, fmt.Errorf("fluent: profile %q: no databases", p.Name))
			continue
		}
		if _, ok := t.profiles[p.Name]; ok {
			errs = append(errs, fmt.Errorf("fluent: duplicate profile %q", p.Name))
			continue
		}
		d, err := dialect.Normalize(p.Driver)
		if err != nil {
			errs = append(errs, fmt.Errorf("fluent: profile %q: %w", p.Name, err))
			continue
		}
		p = p.clone()
		p.Driver = d
		t.profiles[p.Name] = p
	}
	for _, env := range []Env{EnvCLI, EnvLocal, EnvProduction} {
		id := defaults.id(env)
		if id == "" {
			continue
		}
		if _, _, err := t.Resolve(id); err != nil {
			errs = append(errs, fmt.Errorf("fluent: default for %s: %w", env, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return t, nil
}

// fileConfig is the YAML layout of a profile file.
type fileConfig struct {
	Defaults Defaults           `yaml:"defaults"`
	Profiles map[string]Profile `yaml:"profiles"`
}

// ParseProfiles builds a table from YAML. Environment variable references
// such as ${DB_PASSWORD} are expanded before parsing.
func ParseProfiles(data []byte) (*ProfileTable, error) {
	var cfg fileConfig
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("fluent: parse profiles: %w", err)
	}
	profiles := make([]Profile, 0, len(cfg.Profiles))
	for _, name := range slices.Sorted(maps.Keys(cfg.Profiles)) {
		p := cfg.Profiles[name]
		p.Name = name
		profiles = append(profiles, p)
	}
	return NewProfileTable(profiles, cfg.Defaults)
}

// LoadProfiles reads a YAML profile file.
func LoadProfiles(path string) (*ProfileTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("fluent: load profiles: %w", err)
	}
	return ParseProfiles(data)
}

// Profile returns the named profile.
func (t *ProfileTable) Profile(name string) (Profile, bool) {
	p, ok := t.profiles[name]
	if !ok {
		return Profile{}, false
	}
	return p.clone(), true
}

// Names returns the profile names in sorted order.
func (t *ProfileTable) Names() []string {
	return slices.Sorted(maps.Keys(t.profiles))
}

// Defaults returns the configured default identifiers.
func (t *ProfileTable) Defaults() Defaults {
	return t.defaults
}

// Default returns the identifier configured for the execution environment.
func (t *ProfileTable) Default(env Env) (ID, error) {
	id := t.defaults.id(env)
	if id == "" {
		return "", newIdentifierError(ErrInvalidIdentifier, "", fmt.Sprintf("no default profile for %s", env))
	}
	return id, nil
}

// Resolve parses id and returns the profile and database it addresses.
func (t *ProfileTable) Resolve(id ID) (Profile, string, error) {
	name, database, err := id.Split()
	if err != nil {
		return Profile{}, "", err
	}
	p, ok := t.profiles[name]
	if !ok {
		return Profile{}, "", newIdentifierError(ErrUnknownProfile, id, fmt.Sprintf("profile %q is not configured", name))
	}
	if !p.Allows(database) {
		return Profile{}, "", newIdentifierError(ErrDatabaseNotPermitted, id, fmt.Sprintf("unknown database %q", database))
	}
	return p.clone(), database, nil
}
