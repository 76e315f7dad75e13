package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/vurg/notification-service/app/filter"
)

type Config struct {
	// Broker
	MQTTURI              string        `envconfig:"MQTT_URI" validate:"required"`
	MQTTPort             int           `envconfig:"MQTT_PORT" default:"8883" validate:"min=1,max=65535"`
	MQTTUsername         string        `envconfig:"MQTT_USERNAME" validate:"required"`
	MQTTPassword         string        `envconfig:"MQTT_PASSWORD" validate:"required"`
	MQTTClientID         string        `envconfig:"MQTT_CLIENT_ID" default:"NotificationService" validate:"required"`
	MQTTTopic            string        `envconfig:"MQTT_TOPIC" default:"booking" validate:"required"`
	MQTTStatusTopic      string        `envconfig:"MQTT_STATUS_TOPIC" default:"notification/status" validate:"required"`
	MQTTTLS              bool          `envconfig:"MQTT_TLS" default:"true"`
	MQTTCAFile           string        `envconfig:"MQTT_CA_FILE"`
	MQTTInsecure         bool          `envconfig:"MQTT_TLS_INSECURE" default:"false"`
	MQTTConnectTimeout   time.Duration `envconfig:"MQTT_CONNECT_TIMEOUT" default:"30s"`
	MQTTKeepAlive        time.Duration `envconfig:"MQTT_KEEP_ALIVE" default:"60s"`
	MQTTMaxReconnect     time.Duration `envconfig:"MQTT_MAX_RECONNECT_INTERVAL" default:"1m"`
	HeartbeatInterval    time.Duration `envconfig:"HEARTBEAT_INTERVAL" default:"1m" validate:"min=0"`
	PermittedEmails      string        `envconfig:"PERMITTED_EMAILS" validate:"required"`
	AppName              string        `envconfig:"APP_NAME" default:"ToothCheck App" validate:"required"`
	Timezone             string        `envconfig:"TIMEZONE" default:"UTC" validate:"timezone"`
	AppointmentDuration  time.Duration `envconfig:"APPOINTMENT_DURATION" default:"30m" validate:"gt=0"`
	WorkerCount          int           `envconfig:"WORKER_COUNT" default:"1" validate:"min=1"`
	QueueSize            int           `envconfig:"QUEUE_SIZE" default:"64" validate:"min=1"`
	SendTimeout          time.Duration `envconfig:"SEND_TIMEOUT" default:"30s" validate:"gt=0"`
	RetryMaxAttempts     int           `envconfig:"RETRY_MAX_ATTEMPTS" default:"0" validate:"min=0"`
	RetryInitialInterval time.Duration `envconfig:"RETRY_INITIAL_INTERVAL" default:"1s"`
	RetryMaxInterval     time.Duration `envconfig:"RETRY_MAX_INTERVAL" default:"30s"`

	// Email delivery
	EmailProvider        string `envconfig:"EMAIL_PROVIDER" default:"gmail" validate:"oneof=gmail ses smtp noop"`
	EmailFrom            string `envconfig:"EMAIL_FROM" validate:"required,email"`
	GmailCredentialsFile string `envconfig:"GMAIL_CREDENTIALS_FILE" default:"credentials.json"`
	GmailTokenFile       string `envconfig:"GMAIL_TOKEN_FILE" default:"token.json"`
	CredentialStore      string `envconfig:"CREDENTIAL_STORE" default:"file" validate:"oneof=file redis"`
	CredentialRedisKey   string `envconfig:"CREDENTIAL_REDIS_KEY" default:"notifications:credential:gmail"`
	OAuthCallbackPort    int    `envconfig:"OAUTH_CALLBACK_PORT" default:"8085" validate:"min=1,max=65535"`
	AWSRegion            string `envconfig:"AWS_REGION" default:"eu-west-1"`
	SMTPHost             string `envconfig:"SMTP_HOST" validate:"required_if=EmailProvider smtp"`
	SMTPPort             int    `envconfig:"SMTP_PORT" default:"587"`
	SMTPUsername         string `envconfig:"SMTP_USERNAME"`
	SMTPPassword         string `envconfig:"SMTP_PASSWORD"`
	SMTPEncryption       string `envconfig:"SMTP_ENCRYPTION" default:"starttls" validate:"oneof=none starttls ssl_tls"`

	// Credential refresh locking
	LockBackend   string        `envconfig:"LOCK_BACKEND" default:"local" validate:"oneof=local redis mysql"`
	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	MySQLDSN      string        `envconfig:"MYSQL_DSN" validate:"required_if=LockBackend mysql"`
	MySQLMaxOpen  int           `envconfig:"MYSQL_MAX_OPEN" default:"5"`
	MySQLMaxIdle  int           `envconfig:"MYSQL_MAX_IDLE" default:"2"`
	MySQLMaxLife  time.Duration `envconfig:"MYSQL_MAX_LIFETIME" default:"5m"`

	// Status server
	StatusHTTPHost string `envconfig:"STATUS_HTTP_HOST" default:"0.0.0.0"`
	StatusHTTPPort string `envconfig:"STATUS_HTTP_PORT" default:"8080" validate:"numeric"`

	// Logging
	LogLevel      string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=trace debug info warn warning error"`
	LogFormat     string `envconfig:"LOG_FORMAT" default:"text" validate:"oneof=text json"`
	LogFile       string `envconfig:"LOG_FILE"`
	LogMaxSizeMB  int    `envconfig:"LOG_MAX_SIZE_MB" default:"100"`
	LogMaxBackups int    `envconfig:"LOG_MAX_BACKUPS" default:"3"`
	LogMaxAgeDays int    `envconfig:"LOG_MAX_AGE_DAYS" default:"28"`

	Allowlist *filter.Allowlist `ignored:"true"`
	Location  *time.Location    `ignored:"true"`
}

var validate = validator.New()

// Load reads an optional .env file and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds the configuration from the process environment only.
func FromEnv() (*Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", c.Timezone, err)
	}
	c.Location = loc
	c.Allowlist = filter.ParseAllowlist(c.PermittedEmails)
	if c.Allowlist.Len() == 0 {
		return nil, errors.New("invalid config: PERMITTED_EMAILS has no addresses")
	}

	return &c, nil
}

// Validate checks field constraints and backend-specific requirements.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.UsesRedis() && c.RedisAddr == "" {
		return errors.New("invalid config: REDIS_ADDR is required for the redis lock backend or credential store")
	}
	return nil
}

// StatusAddr is the listen address of the status server.
func (c *Config) StatusAddr() string {
	return net.JoinHostPort(c.StatusHTTPHost, c.StatusHTTPPort)
}

// OAuthRedirectURL is the local callback used by the authorize command.
func (c *Config) OAuthRedirectURL() string {
	return "http://localhost:" + strconv.Itoa(c.OAuthCallbackPort) + "/callback"
}

// UsesRedis reports whether any configured backend needs Redis.
func (c *Config) UsesRedis() bool {
	return c.LockBackend == "redis" || c.CredentialStore == "redis"
}
