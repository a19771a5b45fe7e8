package core

import (
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Env              string
		Debug            bool
		TestMode         bool
		AppName          string
		Build            string
		SecretKey        string
		RollbarToken     string
		SendgridApiKey   string
		DefaultFromEmail string
		FrontendBaseURL  string
		NotifyByEmail    bool

		Server   ServerConfig
		Database DatabaseConfig
		Client   ClientConfig
	}

	ServerConfig struct {
		Host               string
		Address            string
		DebugHost          string
		ShutdownTimeout    time.Duration
		JWTExpirationDelta time.Duration
	}

	DatabaseConfig struct {
		Engine        string // postgres | inmem
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	// ClientConfig configures the chat client talking to the message API.
	ClientConfig struct {
		BaseURL  string
		Token    string
		UserID   string
		Timeout  time.Duration
		Timezone string
	}
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("appName", "Madrasa")
	v.SetDefault("build", "develop")
	v.SetDefault("secretKey", "k3q@x!v9-madrasa-dev-only-(change)-7h^2e$wz")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("defaultFromEmail", "Madrasa <noreply@localhost>")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("notifyByEmail", false)

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "madrasa")
	v.SetDefault("database.user", "madrasa")
	v.SetDefault("database.password", "madrasa")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("client.baseURL", "http://localhost:8000/v1")
	v.SetDefault("client.token", "")
	v.SetDefault("client.userID", "")
	v.SetDefault("client.timeout", 10*time.Second)
	v.SetDefault("client.timezone", "Local")
}

// NewConfig loads the configuration for the current ENV (DEV by default; TEST, QA, PROD).
// Sources by increasing priority: defaults, config/madrasa.yaml, config/.env.<env>, environment
// variables prefixed with the ENV (ex: PROD_SERVER_ADDRESS).
func NewConfig() (*Config, error) {
	v := viper.New()
	v.SetTypeByDefaultValue(true)
	setDefaults(v)

	env := strings.ToUpper(CleanString(os.Getenv("ENV")))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	confDir := os.Getenv("CONFIG_DIR")
	if confDir == "" {
		confDir = "config"
	}

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(confDir, ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			return nil, errors.Wrapf(err, "loading %s", dotEnvPath)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "checking %s", dotEnvPath)
	}
	v.AutomaticEnv()

	v.SetConfigName("madrasa")
	v.SetConfigType("yaml")
	v.AddConfigPath(confDir)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errors.Wrap(err, "reading config file")
		}
	}

	return fromViper(env, v), nil
}

func fromViper(env string, v *viper.Viper) *Config {
	return &Config{
		Env:              env,
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		AppName:          v.GetString("appName"),
		Build:            v.GetString("build"),
		SecretKey:        v.GetString("secretKey"),
		RollbarToken:     v.GetString("rollbarToken"),
		SendgridApiKey:   v.GetString("sendgridApiKey"),
		DefaultFromEmail: v.GetString("defaultFromEmail"),
		FrontendBaseURL:  v.GetString("frontendBaseURL"),
		NotifyByEmail:    v.GetBool("notifyByEmail"),
		Server: ServerConfig{
			Host:               v.GetString("server.host"),
			Address:            v.GetString("server.address"),
			DebugHost:          v.GetString("server.debugHost"),
			ShutdownTimeout:    v.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta: v.GetDuration("server.jwtExpirationDelta"),
		},
		Database: DatabaseConfig{
			Engine:        strings.ToLower(v.GetString("database.engine")),
			Host:          v.GetString("database.host"),
			Port:          v.GetString("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		Client: ClientConfig{
			BaseURL:  strings.TrimRight(v.GetString("client.baseURL"), "/"),
			Token:    v.GetString("client.token"),
			UserID:   v.GetString("client.userID"),
			Timeout:  v.GetDuration("client.timeout"),
			Timezone: v.GetString("client.timezone"),
		},
	}
}

// Validate checks the settings the API server cannot run without.
func (c *Config) Validate() error {
	return vala.BeginValidation().Validate(
		vala.StringNotEmpty(c.AppName, "appName"),
		vala.StringNotEmpty(c.SecretKey, "secretKey"),
		vala.StringNotEmpty(c.Server.Address, "server.address"),
		vala.StringNotEmpty(c.Database.Engine, "database.engine"),
		positiveDuration(c.Server.JWTExpirationDelta, "server.jwtExpirationDelta"),
	).Check()
}

// FromEmail parses DefaultFromEmail, falling back to a bare noreply address.
func (c *Config) FromEmail() mail.Address {
	if addr, err := mail.ParseAddress(c.DefaultFromEmail); err == nil {
		return *addr
	}
	return mail.Address{Name: c.AppName, Address: "noreply@" + c.Server.Host}
}

// Address returns the database host:port.
func (db DatabaseConfig) Address() string {
	return db.Host + ":" + db.Port
}

// Validate checks the settings the chat client cannot run without.
func (c ClientConfig) Validate() error {
	return vala.BeginValidation().Validate(
		vala.StringNotEmpty(c.BaseURL, "client.baseURL"),
		vala.StringNotEmpty(c.UserID, "client.userID"),
		positiveDuration(c.Timeout, "client.timeout"),
	).Check()
}

// Location resolves Timezone; unknown zones fall back to time.Local.
func (c ClientConfig) Location() *time.Location {
	switch c.Timezone {
	case "", "Local":
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func positiveDuration(d time.Duration, name string) vala.Checker {
	return func() (bool, string) {
		return d > 0, "parameter must be a positive duration: " + name
	}
}
