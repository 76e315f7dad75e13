// Package broker connects to the MQTT broker, receives booking messages, and
// publishes service status.
package broker

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/vurg/notification-service/app/metrics"
	"github.com/vurg/notification-service/app/queue"
)

const (
	QoSAtLeastOnce byte = 1

	disconnectQuiesce = 250 // milliseconds
)

var ErrNotConnected = errors.New("broker not connected")

// Config describes the broker connection.
type Config struct {
	URI                  string
	Port                 int
	Username             string
	Password             string
	ClientID             string
	Topic                string
	TLS                  bool
	CAFile               string
	InsecureSkipVerify   bool
	ConnectTimeout       time.Duration
	KeepAlive            time.Duration
	MaxReconnectInterval time.Duration
	Buffer               int
}

// mqttClient is the subset of mqtt.Client used here.
type mqttClient interface {
	Connect() mqtt.Token
	Disconnect(quiesce uint)
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Unsubscribe(topics ...string) mqtt.Token
}

// Client owns the broker connection. Incoming messages are only handed to
// the Deliveries channel; processing happens in the consumer.
type Client struct {
	cfg        Config
	client     mqttClient
	deliveries chan queue.Delivery
	done       chan struct{}
	closeOnce  sync.Once
	metrics    *metrics.Metrics
	logger     logrus.FieldLogger

	mu        sync.Mutex
	onConnect []func()
}

// New builds the client and its paho options. It does not connect.
func New(cfg Config, m *metrics.Metrics, logger logrus.FieldLogger) (*Client, error) {
	c := newClient(cfg, m, logger)

	opts, err := c.options()
	if err != nil {
		return nil, err
	}
	c.client = mqtt.NewClient(opts)
	return c, nil
}

func newClient(cfg Config, m *metrics.Metrics, logger logrus.FieldLogger) *Client {
	buffer := cfg.Buffer
	if buffer < 0 {
		buffer = 0
	}
	return &Client{
		cfg:        cfg,
		deliveries: make(chan queue.Delivery, buffer),
		done:       make(chan struct{}),
		metrics:    m,
		logger:     logger.WithField("component", "broker"),
	}
}

func (c *Client) options() (*mqtt.ClientOptions, error) {
	server, err := BrokerURL(c.cfg.URI, c.cfg.Port, c.cfg.TLS)
	if err != nil {
		return nil, err
	}

	opts := mqtt.NewClientOptions().
		AddBroker(server).
		SetClientID(c.cfg.ClientID).
		SetUsername(c.cfg.Username).
		SetPassword(c.cfg.Password).
		SetCleanSession(false).
		SetAutoAckDisabled(true).
		SetAutoReconnect(true).
		SetConnectRetry(false).
		SetOrderMatters(true).
		SetOnConnectHandler(func(mqtt.Client) { c.handleConnect() }).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) { c.handleConnectionLost(err) }).
		SetReconnectingHandler(func(mqtt.Client, *mqtt.ClientOptions) {
			c.logger.Warn("reconnecting to broker")
		})

	if c.cfg.ConnectTimeout > 0 {
		opts.SetConnectTimeout(c.cfg.ConnectTimeout)
	}
	if c.cfg.KeepAlive > 0 {
		opts.SetKeepAlive(c.cfg.KeepAlive)
	}
	if c.cfg.MaxReconnectInterval > 0 {
		opts.SetMaxReconnectInterval(c.cfg.MaxReconnectInterval)
	}

	if c.cfg.TLS {
		tlsConfig, err := c.tlsConfig(server)
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsConfig)
	}
	return opts, nil
}

func (c *Client) tlsConfig(server string) (*tls.Config, error) {
	u, err := url.Parse(server)
	if err != nil {
		return nil, fmt.Errorf("parse broker url: %w", err)
	}

	cfg := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		ServerName:         u.Hostname(),
		InsecureSkipVerify: c.cfg.InsecureSkipVerify,
	}

	if c.cfg.CAFile != "" {
		pem, err := os.ReadFile(c.cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("read broker CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("broker CA file %s contains no certificates", c.cfg.CAFile)
		}
		cfg.RootCAs = pool
	}
	return cfg, nil
}

// BrokerURL turns a bare host or URL into the server address paho expects.
// A missing scheme is filled in from useTLS and a missing port from port.
func BrokerURL(uri string, port int, useTLS bool) (string, error) {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return "", errors.New("broker uri is required")
	}

	if !strings.Contains(uri, "://") {
		scheme := "tcp"
		if useTLS {
			scheme = "ssl"
		}
		uri = scheme + "://" + uri
	}

	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("parse broker uri: %w", err)
	}
	switch u.Scheme {
	case "ssl", "tls", "mqtts", "tcp", "mqtt", "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported broker scheme %q", u.Scheme)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("broker uri %q has no host", uri)
	}
	if u.Port() == "" && port > 0 {
		u.Host = u.Hostname() + ":" + strconv.Itoa(port)
	}
	return u.String(), nil
}

// OnConnect registers fn to run after every successful (re)connect.
func (c *Client) OnConnect(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onConnect = append(c.onConnect, fn)
}

// Connect opens the connection. Failure here is fatal for the caller.
func (c *Client) Connect(ctx context.Context) error {
	c.logger.WithField("client_id", c.cfg.ClientID).Info("connecting to broker")
	if err := wait(ctx, c.client.Connect()); err != nil {
		return fmt.Errorf("connect to broker: %w", err)
	}
	return nil
}

// Deliveries returns the channel inbound messages are handed to.
func (c *Client) Deliveries() <-chan queue.Delivery {
	return c.deliveries
}

// IsConnected reports whether the connection is currently up.
func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}

// Publish sends payload to topic at QoS 1.
func (c *Client) Publish(ctx context.Context, topic string, payload []byte) error {
	if !c.client.IsConnected() {
		return ErrNotConnected
	}
	if err := wait(ctx, c.client.Publish(topic, QoSAtLeastOnce, false, payload)); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// Close unsubscribes and disconnects. Pending handler sends are released.
func (c *Client) Close(ctx context.Context) {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.client.IsConnected() {
			if err := wait(ctx, c.client.Unsubscribe(c.cfg.Topic)); err != nil {
				c.logger.WithError(err).Warn("unsubscribe failed")
			}
		}
		c.client.Disconnect(disconnectQuiesce)
		c.metrics.BrokerConnected.Set(0)
		c.logger.Info("broker disconnected")
	})
}

func (c *Client) handleConnect() {
	c.metrics.BrokerConnected.Set(1)
	log := c.logger.WithField("topic", c.cfg.Topic)
	log.Info("connected to broker")

	token := c.client.Subscribe(c.cfg.Topic, QoSAtLeastOnce, c.handleMessage)
	go func() {
		if err := wait(context.Background(), token); err != nil {
			log.WithError(err).Error("subscribe failed")
			return
		}
		log.Info("subscribed")
	}()

	c.mu.Lock()
	hooks := append([]func(){}, c.onConnect...)
	c.mu.Unlock()
	for _, fn := range hooks {
		go fn()
	}
}

func (c *Client) handleConnectionLost(err error) {
	c.metrics.BrokerConnected.Set(0)
	c.logger.WithError(err).Warn("broker connection lost")
}

func (c *Client) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	d := queue.Delivery{
		ID:      uuid.NewString(),
		Topic:   msg.Topic(),
		Payload: msg.Payload(),
		Ack:     msg.Ack,
	}
	c.logger.WithFields(logrus.Fields{
		"message_id": d.ID,
		"topic":      d.Topic,
		"mqtt_id":    msg.MessageID(),
		"duplicate":  msg.Duplicate(),
	}).Debug("message received")

	// Blocking here keeps arrival order but also stalls paho's inbound loop,
	// so a keepalive PINGRESP can go unread while the pool is saturated.
	// The buffer is sized to the pool capacity to make that rare.
	select {
	case c.deliveries <- d:
	case <-c.done:
	}
}

// wait blocks until the token completes or ctx is done.
func wait(ctx context.Context, token mqtt.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
