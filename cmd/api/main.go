package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/PaulBabatuyi/socialchat/internal/auth"
	"github.com/PaulBabatuyi/socialchat/internal/config"
	"github.com/PaulBabatuyi/socialchat/internal/data"
	"github.com/PaulBabatuyi/socialchat/internal/db"
	"github.com/PaulBabatuyi/socialchat/internal/logger"
	"github.com/PaulBabatuyi/socialchat/internal/messaging"
	"github.com/PaulBabatuyi/socialchat/internal/metrics"
	"github.com/PaulBabatuyi/socialchat/internal/middleware"
	"github.com/PaulBabatuyi/socialchat/internal/notify"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel, cfg.LogFile)
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	dbClient, err := db.New(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		return fmt.Errorf("connect to DB: %w", err)
	}
	defer func() { _ = dbClient.Close(context.Background()) }()

	if err := dbClient.CreateIndexes(ctx); err != nil {
		return fmt.Errorf("create indexes: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	jwtMgr, err := newJWTManager(cfg)
	if err != nil {
		return err
	}

	hub := notify.NewHub()
	pub, closePub, err := newPublisher(ctx, cfg, hub, log)
	if err != nil {
		return err
	}
	defer closePub()

	// Create stores
	usersStore := data.NewUsersStore(dbClient.UsersCollection())
	convStore := data.NewConversationsStore(dbClient.ConversationsCollection())
	msgsStore := data.NewMessagesStore(dbClient.MessagesCollection())

	var tx messaging.Transactor
	if cfg.MongoTransactions {
		tx = dbClient
	}
	chat := messaging.NewService(
		messaging.NewDirectory(convStore, m, log),
		messaging.NewLog(msgsStore, convStore, tx),
		usersStore, pub, m, log,
	)
	srv := newServer(usersStore, chat, jwtMgr, m, log)

	// small burst to allow a couple of quick retries
	limiterStore := middleware.NewLimiterStore(cfg.RateLimitRPM, 3, time.Minute)
	defer limiterStore.Stop()

	grpcServer, err := newGRPCServer(cfg, srv, limiterStore, m, log)
	if err != nil {
		return err
	}

	gin.SetMode(gin.ReleaseMode)
	httpServer := &http.Server{
		Addr: ":" + cfg.HTTPPort,
		Handler: srv.routes(httpOptions{
			corsOrigins:  cfg.CORSOrigins,
			cookieSecure: cfg.CookieSecure,
			limiter:      limiterStore,
			gatherer:     reg,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	errCh := make(chan error, 2)
	go func() {
		log.Info("gRPC server listening", zap.String("addr", lis.Addr().String()))
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- fmt.Errorf("gRPC server: %w", err)
		}
	}()
	go func() {
		log.Info("HTTP server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown", zap.Error(err))
	}
	grpcServer.GracefulStop()
	return runErr
}

// newJWTManager uses JWT_KEYS when set so tokens can be rotated, otherwise
// the single JWT_SECRET.
func newJWTManager(cfg *config.Config) (*auth.JWTManager, error) {
	if cfg.JWTKeys == "" {
		return auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL), nil
	}
	keys, err := cfg.SigningKeys()
	if err != nil {
		return nil, err
	}
	return auth.NewJWTManagerFromKeys(keys, cfg.JWTActiveKid, cfg.TokenTTL), nil
}

// newPublisher puts hub first and adds any configured Redis and
// Kafka publishers. The returned func closes the external ones.
func newPublisher(ctx context.Context, cfg *config.Config, hub *notify.Hub, log *zap.Logger) (notify.Publisher, func(), error) {
	pubs := notify.Multi{hub}
	var closers []func() error

	if cfg.RedisURL != "" {
		rp, err := notify.NewRedisPublisher(ctx, cfg.RedisURL, cfg.RedisChannel)
		if err != nil {
			return nil, nil, fmt.Errorf("redis publisher: %w", err)
		}
		pubs = append(pubs, rp)
		closers = append(closers, rp.Close)
		log.Info("publishing events to redis", zap.String("channel", cfg.RedisChannel))
	}
	if len(cfg.KafkaBrokers) > 0 {
		kp := notify.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		pubs = append(pubs, kp)
		closers = append(closers, kp.Close)
		log.Info("publishing events to kafka", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	}

	closeAll := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				log.Warn("close publisher", zap.Error(err))
			}
		}
	}
	return pubs, closeAll, nil
}

func newGRPCServer(cfg *config.Config, srv *Server, limiter *middleware.LimiterStore, m *metrics.Metrics, log *zap.Logger) (*grpc.Server, error) {
	var serverOpts []grpc.ServerOption

	// If TLS certs are configured, create server credentials
	if cfg.TLSCert != "" && cfg.TLSKey != "" {
		creds, err := credentials.NewServerTLSFromFile(cfg.TLSCert, cfg.TLSKey)
		if err != nil {
			return nil, fmt.Errorf("load TLS certs: %w", err)
		}
		serverOpts = append(serverOpts, grpc.Creds(creds))
	}

	// logging -> rate limiter -> auth
	serverOpts = append(serverOpts, grpc.ChainUnaryInterceptor(
		loggingUnaryInterceptor(log),
		middleware.RateLimitUnaryInterceptor(limiter, unauthenticatedMethods, m),
		authUnaryInterceptor(srv.auth),
	))

	s := grpc.NewServer(serverOpts...)
	registerService(s, srv)
	return s, nil
}
