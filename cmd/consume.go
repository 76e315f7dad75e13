package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/vurg/notification-service/app/broker"
	"github.com/vurg/notification-service/app/calendar"
	"github.com/vurg/notification-service/app/controller"
	"github.com/vurg/notification-service/app/metrics"
	"github.com/vurg/notification-service/app/preparer"
	"github.com/vurg/notification-service/app/queue"
	"github.com/vurg/notification-service/app/service"
	"github.com/vurg/notification-service/config"
)

const shutdownTimeout = 10 * time.Second

var consumeCmd = &cobra.Command{
	Use:   "consume",
	Short: "Start the booking notification consumer",
	Long:  "Connect to the MQTT broker, consume booking events, and email notifications to permitted recipients.",
	Run:   runConsume,
}

// init registers the consume command.
func init() {
	rootCmd.AddCommand(consumeCmd)
}

// runConsume wires dependencies and runs the pipeline until a shutdown signal.
func runConsume(_ *cobra.Command, _ []string) {
	cfg, logger, logCloser := mustSetup()
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	res, err := openResources(ctx, cfg)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open backing stores")
	}
	defer res.Close()

	emailProvider, err := buildEmailProvider(ctx, cfg, res, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to build email provider")
	}

	emailPreparer := preparer.NewChain(preparer.NewHeaderValidator(), preparer.NewMIMEPreparer(cfg.EmailFrom))
	retry := service.NewRetryPolicy(cfg.RetryMaxAttempts, cfg.RetryInitialInterval, cfg.RetryMaxInterval, logger)
	emailService := service.NewEmailService(emailPreparer, emailProvider, retry, logger.WithField("provider", emailProvider.Name()))
	dispatcher := service.NewDispatcher(
		cfg.Allowlist,
		calendar.NewGenerator(cfg.Location, cfg.AppointmentDuration, cfg.EmailFrom),
		service.NewComposer(cfg.AppName),
		emailService,
		m,
		logger,
	)

	brokerClient, err := broker.New(broker.Config{
		URI:                  cfg.MQTTURI,
		Port:                 cfg.MQTTPort,
		Username:             cfg.MQTTUsername,
		Password:             cfg.MQTTPassword,
		ClientID:             cfg.MQTTClientID,
		Topic:                cfg.MQTTTopic,
		TLS:                  cfg.MQTTTLS,
		CAFile:               cfg.MQTTCAFile,
		InsecureSkipVerify:   cfg.MQTTInsecure,
		ConnectTimeout:       cfg.MQTTConnectTimeout,
		KeepAlive:            cfg.MQTTKeepAlive,
		MaxReconnectInterval: cfg.MQTTMaxReconnect,
		Buffer:               deliveryBuffer(cfg),
	}, m, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to configure broker client")
	}

	heartbeat, err := broker.NewHeartbeat(brokerClient, cfg.MQTTStatusTopic, cfg.HeartbeatInterval, m, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to configure heartbeat")
	}
	brokerClient.OnConnect(heartbeat.Beat)

	pool := queue.NewPool(dispatcher, cfg.WorkerCount, cfg.QueueSize, cfg.SendTimeout, m, logger)
	consumer := queue.NewBookingConsumer(dispatcher, pool, logger)

	e := setupStatusServer(controller.NewStatusController(brokerClient, reg))
	go func() {
		logger.WithField("addr", cfg.StatusAddr()).Info("Starting status server")
		if err := e.Start(cfg.StatusAddr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("Status server error")
		}
	}()

	if err := brokerClient.Connect(ctx); err != nil {
		logger.WithError(err).Error("Failed to connect to broker")
		shutdownServer(e, logger)
		os.Exit(1)
	}

	if err := heartbeat.Start(); err != nil {
		logger.WithError(err).Error("Failed to start heartbeat")
	}
	pool.Start()

	if err := consumer.Run(ctx, brokerClient.Deliveries()); err != nil {
		logger.WithError(err).Error("Consumer error")
	}

	logger.Info("Shutting down...")
	pool.Close()
	if err := heartbeat.Stop(); err != nil {
		logger.WithError(err).Warn("Heartbeat shutdown error")
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	brokerClient.Close(closeCtx)
	shutdownServer(e, logger)

	logger.Info("Consumer stopped")
}

// deliveryBuffer sizes the broker hand-off channel to the pool's total
// capacity, so the broker callback only blocks once every shard is full.
func deliveryBuffer(cfg *config.Config) int {
	workers := cfg.WorkerCount
	if workers < 1 {
		workers = 1
	}
	return workers * cfg.QueueSize
}
