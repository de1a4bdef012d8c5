package source

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin"
	"github.com/jackc/pgx/v4"
)

// ConnectionOptions is a structured descriptor for a Postgres connection. Any field left
// empty falls back to the libpq environment variables (PGHOST, PGPORT, PGDATABASE, PGUSER,
// PGPASSWORD) and then to libpq defaults.
type ConnectionOptions struct {
	Host     string
	Port     uint16
	Database string
	User     string
	Password string
}

func (opt *ConnectionOptions) Bind(cmd *kingpin.CmdClause, prefix string) *ConnectionOptions {
	cmd.Flag(fmt.Sprintf("%shost", prefix), "Postgres host").StringVar(&opt.Host)
	cmd.Flag(fmt.Sprintf("%sport", prefix), "Postgres port").Uint16Var(&opt.Port)
	cmd.Flag(fmt.Sprintf("%sdatabase", prefix), "Postgres database name").StringVar(&opt.Database)
	cmd.Flag(fmt.Sprintf("%suser", prefix), "Postgres user").StringVar(&opt.User)
	cmd.Flag(fmt.Sprintf("%spassword", prefix), "Postgres password").StringVar(&opt.Password)

	return opt
}

// WithDefaults fills any empty fields from the given options, allowing one connection to
// default to another.
func (opt ConnectionOptions) WithDefaults(defaults ConnectionOptions) ConnectionOptions {
	if opt.Host == "" {
		opt.Host = defaults.Host
	}
	if opt.Port == 0 {
		opt.Port = defaults.Port
	}
	if opt.Database == "" {
		opt.Database = defaults.Database
	}
	if opt.User == "" {
		opt.User = defaults.User
	}
	if opt.Password == "" {
		opt.Password = defaults.Password
	}

	return opt
}

// ConnConfig builds a pgx configuration. We parse an empty connection string so pgx applies
// the libpq environment, then apply our overrides field by field rather than rendering
// them into a connection string that would need escaping.
func (opt ConnectionOptions) ConnConfig() (*pgx.ConnConfig, error) {
	cfg, err := pgx.ParseConfig("")
	if err != nil {
		return nil, fmt.Errorf("invalid database configuration: %w", err)
	}

	if opt.Host != "" {
		cfg.Host = opt.Host
		cfg.Fallbacks = nil
	}
	if opt.Port != 0 {
		cfg.Port = opt.Port
	}
	if opt.Database != "" {
		cfg.Database = opt.Database
	}
	if opt.User != "" {
		cfg.User = opt.User
	}
	if opt.Password != "" {
		cfg.Password = opt.Password
	}

	// Timestamps without a timezone are interpreted in the session timezone, so we pin it
	// to ensure watermarks compare consistently regardless of server configuration.
	cfg.RuntimeParams["timezone"] = "UTC"
	cfg.RuntimeParams["application_name"] = "pglake"

	return cfg, nil
}

// Connect opens a single connection, which callers must close.
func Connect(ctx context.Context, opt ConnectionOptions) (*pgx.Conn, error) {
	cfg, err := opt.ConnConfig()
	if err != nil {
		return nil, err
	}

	conn, err := pgx.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s:%d/%s: %w", cfg.Host, cfg.Port, cfg.Database, err)
	}

	return conn, nil
}
