package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/nkiryanov/vidtube/internal/logger"
)

const (
	StoreBackendPostgres = "postgres"
	StoreBackendRedis    = "redis"
)

const (
	defaultListenAddr         = "localhost:8000"
	defaultLoggingLevel       = logger.LevelInfo
	defaultEnvironment        = logger.EnvProduction
	defaultStoreBackend       = StoreBackendPostgres
	defaultRedisAddr          = "localhost:6379"
	defaultAccessTokenExpiry  = 15 * time.Minute
	defaultRefreshTokenExpiry = 10 * 24 * time.Hour
	defaultS3Region           = "us-east-1"
)

type Config struct {
	// Default logging level
	LogLevel string

	// Address on which the vidtube service will be run
	ListenAddr string

	// Environment (dev, prod)
	Environment string

	// Where users are stored: postgres or redis
	StoreBackend string
	DatabaseDSN  string
	RedisAddr    string

	// Tokens of each class are signed with own secret
	AccessTokenSecret  string
	AccessTokenExpiry  time.Duration
	RefreshTokenSecret string
	RefreshTokenExpiry time.Duration

	// Send cookies over https only
	CookieSecure bool

	// End user session when password changed
	RevokeOnPasswordChange bool

	// Origins allowed to call the API from browser
	CORSOrigins []string

	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3PublicURL string
}

func NewConfig() *Config {
	return &Config{
		LogLevel:           defaultLoggingLevel,
		ListenAddr:         defaultListenAddr,
		Environment:        defaultEnvironment,
		StoreBackend:       defaultStoreBackend,
		RedisAddr:          defaultRedisAddr,
		AccessTokenExpiry:  defaultAccessTokenExpiry,
		RefreshTokenExpiry: defaultRefreshTokenExpiry,
		CookieSecure:       true,
		S3Region:           defaultS3Region,
	}
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		return c.LoadEnv(func(key string) string {
			return envMap[key]
		})
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) error {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) error {
		return func(value string) error {
			if value != "" {
				*o = value
			}
			return nil
		}
	}
	setDuration := func(o *time.Duration) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			d, err := parseExpiry(value)
			if err != nil {
				return err
			}
			*o = d
			return nil
		}
	}
	setBool := func(o *bool) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			b, err := strconv.ParseBool(value)
			if err != nil {
				return err
			}
			*o = b
			return nil
		}
	}
	setList := func(o *[]string) func(value string) error {
		return func(value string) error {
			if value != "" {
				*o = splitList(value)
			}
			return nil
		}
	}

	envMap := map[string]func(string) error{
		"RUN_ADDRESS":               setString(&c.ListenAddr),
		"LOG_LEVEL":                 setString(&c.LogLevel),
		"ENVIRONMENT":               setString(&c.Environment),
		"STORE_BACKEND":             setString(&c.StoreBackend),
		"DATABASE_URI":              setString(&c.DatabaseDSN),
		"REDIS_ADDRESS":             setString(&c.RedisAddr),
		"ACCESS_TOKEN_SECRET":       setString(&c.AccessTokenSecret),
		"ACCESS_TOKEN_EXPIRY":       setDuration(&c.AccessTokenExpiry),
		"REFRESH_TOKEN_SECRET":      setString(&c.RefreshTokenSecret),
		"REFRESH_TOKEN_EXPIRY":      setDuration(&c.RefreshTokenExpiry),
		"COOKIE_SECURE":             setBool(&c.CookieSecure),
		"REVOKE_ON_PASSWORD_CHANGE": setBool(&c.RevokeOnPasswordChange),
		"CORS_ORIGIN":               setList(&c.CORSOrigins),
		"S3_ENDPOINT":               setString(&c.S3Endpoint),
		"S3_REGION":                 setString(&c.S3Region),
		"S3_BUCKET":                 setString(&c.S3Bucket),
		"S3_ACCESS_KEY":             setString(&c.S3AccessKey),
		"S3_SECRET_KEY":             setString(&c.S3SecretKey),
		"S3_PUBLIC_URL":             setString(&c.S3PublicURL),
	}

	for key, parseFn := range envMap {
		if err := parseFn(getenv(key)); err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
	}

	return nil
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("vidtube", pflag.ContinueOnError)

	var accessExpiry, refreshExpiry string

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")
	fs.StringVar(&c.StoreBackend, "store", c.StoreBackend, "User store backend (postgres, redis)")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVar(&c.RedisAddr, "redis", c.RedisAddr, "Redis address")
	fs.StringVar(&c.AccessTokenSecret, "access-secret", c.AccessTokenSecret, "Access token signing secret")
	fs.StringVar(&accessExpiry, "access-expiry", "", "Access token lifetime, e.g. 15m or 1d")
	fs.StringVar(&c.RefreshTokenSecret, "refresh-secret", c.RefreshTokenSecret, "Refresh token signing secret")
	fs.StringVar(&refreshExpiry, "refresh-expiry", "", "Refresh token lifetime, e.g. 10d")
	fs.BoolVar(&c.CookieSecure, "cookie-secure", c.CookieSecure, "Send token cookies over https only")
	fs.BoolVar(&c.RevokeOnPasswordChange, "revoke-on-password-change", c.RevokeOnPasswordChange, "Log user out when password changed")
	fs.StringSliceVar(&c.CORSOrigins, "cors-origin", c.CORSOrigins, "Allowed CORS origins")
	fs.StringVar(&c.S3Endpoint, "s3-endpoint", c.S3Endpoint, "S3 compatible storage endpoint")
	fs.StringVar(&c.S3Region, "s3-region", c.S3Region, "S3 region")
	fs.StringVar(&c.S3Bucket, "s3-bucket", c.S3Bucket, "S3 bucket for user assets")
	fs.StringVar(&c.S3AccessKey, "s3-access-key", c.S3AccessKey, "S3 access key")
	fs.StringVar(&c.S3SecretKey, "s3-secret-key", c.S3SecretKey, "S3 secret key")
	fs.StringVar(&c.S3PublicURL, "s3-public-url", c.S3PublicURL, "Base URL of stored assets")

	if err := fs.Parse(args); err != nil {
		return err
	}

	for _, e := range []struct {
		value string
		dst   *time.Duration
	}{{accessExpiry, &c.AccessTokenExpiry}, {refreshExpiry, &c.RefreshTokenExpiry}} {
		if e.value == "" {
			continue
		}
		d, err := parseExpiry(e.value)
		if err != nil {
			return err
		}
		*e.dst = d
	}

	return nil
}

// Check config is enough to start the service
func (c *Config) Validate() error {
	var errs []error

	if c.AccessTokenSecret == "" || c.RefreshTokenSecret == "" {
		errs = append(errs, errors.New("access and refresh token secrets are required"))
	} else if c.AccessTokenSecret == c.RefreshTokenSecret {
		errs = append(errs, errors.New("access and refresh token secrets must differ"))
	}
	if c.AccessTokenExpiry <= 0 || c.RefreshTokenExpiry <= 0 {
		errs = append(errs, errors.New("token expiry must be positive"))
	}

	switch c.StoreBackend {
	case StoreBackendPostgres:
		if c.DatabaseDSN == "" {
			errs = append(errs, errors.New("database uri is required for postgres store"))
		}
	case StoreBackendRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("redis address is required for redis store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store backend %q", c.StoreBackend))
	}

	if c.S3Bucket == "" {
		errs = append(errs, errors.New("s3 bucket is required"))
	}

	return errors.Join(errs...)
}

// Go duration or whole days with 'd' suffix, e.g. '10d'
func parseExpiry(value string) (time.Duration, error) {
	if days, ok := strings.CutSuffix(value, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("invalid expiry %q", value)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid expiry %q", value)
	}
	return d, nil
}

func splitList(value string) []string {
	var items []string
	for item := range strings.SplitSeq(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
