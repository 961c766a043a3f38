package config

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// PostgresConfig defines the configuration for connecting to the PostgreSQL database
// that the ingestion process writes option chains and public trades into.
type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	TimeZone string `mapstructure:"timezone"`

	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`

	// Bootstrap creates the database and migrates the tables on startup (dev only).
	Bootstrap bool `mapstructure:"bootstrap"`
}

// SSM parameter names holding production credentials.
const (
	ParamDBHost     = "/optionscache/postgres/host"
	ParamDBUser     = "/optionscache/postgres/user"
	ParamDBPassword = "/optionscache/postgres/password"
)

// ParameterLookup resolves a named secret. Replaced in tests.
var ParameterLookup = getParameterStoreValue

// DSN builds a libpq connection string. In "prod" the host and credentials
// come from AWS SSM Parameter Store instead of the config file.
func (cfg *PostgresConfig) DSN(env string) string {
	host, user, password := cfg.Host, cfg.User, cfg.Password
	if env == "prod" {
		host = ParameterLookup(ParamDBHost, true)
		user = ParameterLookup(ParamDBUser, true)
		password = ParameterLookup(ParamDBPassword, true)
	}

	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		host, cfg.Port, user, password, cfg.DBName, cfg.SSLMode,
	)

	if cfg.TimeZone != "" {
		dsn += fmt.Sprintf(" TimeZone=%s", cfg.TimeZone)
	}

	return dsn
}

// ServerDSN points at the maintenance "postgres" database, used to create DBName.
func (cfg *PostgresConfig) ServerDSN(env string) string {
	server := *cfg
	server.DBName = "postgres"
	return server.DSN(env)
}

func getParameterStoreValue(parameterName string, decrypt bool) string {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return ""
	}

	client := ssm.NewFromConfig(cfg)

	input := &ssm.GetParameterInput{
		Name:           &parameterName,
		WithDecryption: &decrypt,
	}

	result, err := client.GetParameter(ctx, input)
	if err != nil {
		return ""
	}

	if result.Parameter == nil || result.Parameter.Value == nil {
		return ""
	}

	return *result.Parameter.Value
}
