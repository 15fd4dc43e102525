package cmd

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"guild-chat-service/internal/auth"
	"guild-chat-service/internal/config"
	"guild-chat-service/internal/db"
	"guild-chat-service/internal/grpcserver"
	"guild-chat-service/internal/handlers"
	"guild-chat-service/internal/kafka"
	"guild-chat-service/internal/locks"
	"guild-chat-service/internal/middleware"
	"guild-chat-service/internal/observability"
	"guild-chat-service/internal/permissions"
	"guild-chat-service/internal/rabbitmq"
	"guild-chat-service/internal/repositories"
	"guild-chat-service/internal/services"
	"guild-chat-service/internal/storage"
	"guild-chat-service/internal/telemetry"
	"guild-chat-service/internal/ws"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP, websocket and gRPC health servers",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringP("port", "p", "8083", "HTTP listen port or address")
	serveCmd.Flags().String("grpc-addr", ":9083", "gRPC health listen address")
	serveCmd.Flags().Bool("debug-routes", false, "Mount /debug endpoints")
	bindFlag(config.KeyPort, serveCmd.Flags().Lookup("port"))
	bindFlag(config.KeyGRPCAddr, serveCmd.Flags().Lookup("grpc-addr"))
	bindFlag(config.KeyDebugRoutes, serveCmd.Flags().Lookup("debug-routes"))
}

// eventSink is the broker behind audit and lifecycle events.
type eventSink interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

func openEventSink(cfg config.Config) eventSink {
	switch cfg.EventSink {
	case "kafka":
		jww.INFO.Printf("event sink: kafka brokers=%v topic=%s", cfg.KafkaBrokers, cfg.KafkaTopic)
		return kafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	case "none":
		return rabbitmq.NewNoopPublisher("event sink disabled")
	default:
		pub := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if reason := rabbitmq.PublisherNoopReason(pub); reason != "" {
			jww.WARN.Printf("event sink: %s (%s)", rabbitmq.PublisherMode(pub), reason)
		} else {
			jww.INFO.Printf("event sink: %s exchange=%s", rabbitmq.PublisherMode(pub), cfg.AMQPExchange)
		}
		return pub
	}
}

func openPairLock(ctx context.Context, cfg config.Config) locks.PairLock {
	if cfg.RedisAddr == "" {
		jww.INFO.Printf("redis not configured; direct chat creation relies on the unique pair index")
		return locks.NoopPairLock{}
	}
	rdb, err := locks.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		jww.WARN.Printf("redis unavailable, pair lock disabled: %v", err)
		return locks.NoopPairLock{}
	}
	return locks.NewRedisPairLock(rdb)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.OTLPEndpoint, cfg.ServiceName, cfg.Environment)
	if err != nil {
		return err
	}

	database, err := db.Connect(ctx, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer database.Close()
	if err := db.Migrate(ctx, database); err != nil {
		return err
	}

	sink := openEventSink(cfg)
	observability.SetPublisher(sink, cfg.EventSink)
	emitter := telemetry.NewAuditEmitter(sink, cfg.AuditRoutingKey, cfg.ServiceName, cfg.Environment)

	blobs, err := storage.NewLocalStore(cfg.StorageDir, cfg.PublicBaseURL)
	if err != nil {
		return err
	}

	store := services.Store{
		Tx:          repositories.NewTxRunner(database),
		Users:       repositories.NewUserRepo(database),
		Communities: repositories.NewCommunityRepo(database),
		Channels:    repositories.NewChannelRepo(database),
		Roles:       repositories.NewRoleRepo(database),
		Messages:    repositories.NewMessageRepo(database),
		Reactions:   repositories.NewReactionRepo(database),
		DirectChats: repositories.NewDirectChatRepo(database),
		Invites:     repositories.NewInviteRepo(database),
		Friends:     repositories.NewFriendRepo(database),
	}
	perms := permissions.NewEvaluator(store.Roles)
	hub := ws.NewHub()

	messageSvc := services.NewMessageService(store, perms, blobs, hub)
	reactionSvc := services.NewReactionService(store, messageSvc, hub)
	communitySvc := services.NewCommunityService(store, perms, hub, cfg.InviteTTL)
	roleSvc := services.NewRoleService(store, perms)
	directSvc := services.NewDirectChatService(store, openPairLock(ctx, cfg), hub)
	friendSvc := services.NewFriendService(store, hub)

	verifier := auth.NewJWTVerifier(cfg.JWTSecret, cfg.JWTIssuer)

	router := gin.New()
	router.Use(
		gin.Logger(),
		gin.Recovery(),
		otelgin.Middleware(cfg.ServiceName),
		middleware.RequestID(),
		observability.HTTPMetricsMiddleware(),
	)
	router.GET("/healthz", func(c *gin.Context) {
		if err := database.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.Static("/files", blobs.Dir())
	router.GET("/ws", ws.NewHandler(hub, verifier, store.Users, messageSvc, reactionSvc, cfg.WSSendBuffer, cfg.WSEventsPerSecond).Handle)
	handlers.RegisterDebugRoutes(router, emitter, hub, cfg.DebugRoutes)
	handlers.RegisterRoutes(router, middleware.AuthMiddleware(verifier, store.Users), handlers.API{
		Communities: handlers.NewCommunityHandler(communitySvc, emitter),
		Roles:       handlers.NewRoleHandler(roleSvc, emitter),
		Messages:    handlers.NewMessageHandler(messageSvc, reactionSvc, emitter, cfg.MaxUploadBytes),
		DirectChats: handlers.NewDirectChatHandler(directSvc),
		Friends:     handlers.NewFriendHandler(friendSvc),
	})

	httpLn, err := net.Listen("tcp", cfg.HTTPAddr())
	if err != nil {
		return err
	}
	grpcLn, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		_ = httpLn.Close()
		return err
	}

	srv := &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second}
	health := grpcserver.New()
	errCh := make(chan error, 2)
	go func() {
		jww.INFO.Printf("http server listening on %s", httpLn.Addr())
		if err := srv.Serve(httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		if err := health.Serve(grpcLn); err != nil {
			errCh <- err
		}
	}()
	health.SetServing(true)

	select {
	case <-ctx.Done():
		jww.INFO.Printf("shutting down")
	case err = <-errCh:
		jww.ERROR.Printf("server failed: %v", err)
	}

	health.SetServing(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		jww.WARN.Printf("http shutdown: %v", err)
	}
	hub.CloseAll()
	health.Stop(shutdownCtx)
	if err := sink.Close(); err != nil {
		jww.WARN.Printf("event sink close: %v", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		jww.WARN.Printf("tracing shutdown: %v", err)
	}
	return err
}
