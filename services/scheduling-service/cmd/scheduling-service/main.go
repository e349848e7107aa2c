package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/joseantoniobg/financial-platform-scheduling/libs/config"
	"github.com/joseantoniobg/financial-platform-scheduling/libs/db"
	"github.com/joseantoniobg/financial-platform-scheduling/libs/httpx"
	"github.com/joseantoniobg/financial-platform-scheduling/libs/kafkax"
	otelx "github.com/joseantoniobg/financial-platform-scheduling/libs/otel"
	"github.com/joseantoniobg/financial-platform-scheduling/libs/runtime"
	"github.com/joseantoniobg/financial-platform-scheduling/services/scheduling-service/internal/consumer"
	"github.com/joseantoniobg/financial-platform-scheduling/services/scheduling-service/internal/engine"
	"github.com/joseantoniobg/financial-platform-scheduling/services/scheduling-service/internal/handlers"
	"github.com/joseantoniobg/financial-platform-scheduling/services/scheduling-service/internal/hours"
	"github.com/joseantoniobg/financial-platform-scheduling/services/scheduling-service/internal/inbox"
	"github.com/joseantoniobg/financial-platform-scheduling/services/scheduling-service/internal/outbox"
	"github.com/joseantoniobg/financial-platform-scheduling/services/scheduling-service/internal/storage"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "scheduling-service")
	port, err := config.Port("PORT", "8085")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}

	pool, err := db.Open(ctx, dbURL, db.Options{
		MaxConns: int32(config.Int("DB_MAX_CONNS", 10)),
	})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	apptRepo := storage.NewAppointmentRepository(pool)
	hoursRepo := storage.NewHoursRepository(pool)
	outboxRepo := outbox.NewRepository(pool)
	eng := engine.New(apptRepo, logger)

	defaults := hours.Config{
		Workday: engine.WorkingHours{
			Start: config.Clock("WORKDAY_START", "08:00"),
			End:   config.Clock("WORKDAY_END", "18:00"),
		},
		SlotDuration: time.Duration(config.Int("SLOT_MINUTES", 60)) * time.Minute,
	}
	hoursProvider := hours.NewRepositoryProvider(hoursRepo, defaults)

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	inboxRepo := inbox.NewRepository(pool)
	if topic := strings.TrimSpace(config.String("CRM_HOURS_TOPIC", "crm.consultant.hours.updated.v1")); topic != "" {
		hoursConsumer := consumer.New(logger, inboxRepo, consumer.Config{
			Brokers: config.String("KAFKA_BROKERS", ""),
			GroupID: config.String("KAFKA_GROUP_ID", "scheduling-service"),
			Topic:   topic,
		}, func(ctx context.Context, msg kafka.Message) error {
			var payload struct {
				ConsultantID string `json:"consultant_id"`
				WorkdayStart int    `json:"workday_start_minutes"`
				WorkdayEnd   int    `json:"workday_end_minutes"`
				SlotMinutes  int    `json:"slot_minutes"`
			}
			if err := json.Unmarshal(msg.Value, &payload); err != nil {
				logger.Error("invalid event payload", "err", err, "topic", msg.Topic)
				return nil
			}
			if payload.ConsultantID == "" || payload.WorkdayEnd <= payload.WorkdayStart {
				logger.Error("missing or inconsistent event fields", "topic", msg.Topic)
				return nil
			}

			tx, err := pool.Begin(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = tx.Rollback(ctx) }()

			if err := hoursRepo.Upsert(ctx, tx, storage.ConsultantHours{
				ConsultantID: payload.ConsultantID,
				WorkdayStart: payload.WorkdayStart,
				WorkdayEnd:   payload.WorkdayEnd,
				SlotMinutes:  payload.SlotMinutes,
			}); err != nil {
				return err
			}
			return tx.Commit(ctx)
		})
		go hoursConsumer.Run(ctx)
	}

	schedulingHandler := handlers.NewSchedulingHandler(eng, hoursProvider, outboxRepo, logger, defaults)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	mux.HandleFunc("/api/v1/public/slots", schedulingHandler.Slots)
	mux.HandleFunc("/api/v1/public/book", schedulingHandler.Book)
	mux.HandleFunc("/api/v1/appointments", schedulingHandler.Appointments)
	mux.HandleFunc("/api/v1/appointments/update", schedulingHandler.Update)
	mux.HandleFunc("/api/v1/appointments/cancel", schedulingHandler.Cancel)

	limitPerMinute := config.Int("RATE_LIMIT_PER_MINUTE", 60)
	var rateLimitMW httpx.Middleware
	if addr := strings.TrimSpace(config.String("REDIS_ADDR", "")); addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       config.Int("REDIS_DB", 0),
		})
		defer func() { _ = rdb.Close() }()

		rl := httpx.NewRedisRateLimiter(rdb, limitPerMinute, time.Minute, config.String("RATE_LIMIT_PREFIX", "rl"))
		rateLimitMW = rl.Middleware(logger, isTruthy(config.String("RATE_LIMIT_FAIL_OPEN", "true")))
		logger.Info("rate limiting enabled (redis)", "per_minute", limitPerMinute, "redis_addr", addr)
	} else {
		rl := httpx.NewRateLimiter(limitPerMinute, time.Minute)
		rateLimitMW = rl.Middleware()
		logger.Info("rate limiting enabled (in-memory)", "per_minute", limitPerMinute)
	}

	bodyLimit := int64(config.Int("REQUEST_BODY_LIMIT_BYTES", 1<<20))
	requestTimeout := time.Duration(config.Int("REQUEST_TIMEOUT_SECONDS", 10)) * time.Second

	httpHandler := httpx.Chain(mux,
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins:   parseList(config.String("CORS_ALLOWED_ORIGINS", "")),
			AllowedMethods:   parseList(config.String("CORS_ALLOWED_METHODS", "GET,POST,OPTIONS")),
			AllowedHeaders:   parseList(config.String("CORS_ALLOWED_HEADERS", "Authorization,Content-Type,X-Request-Id")),
			AllowCredentials: isTruthy(config.String("CORS_ALLOW_CREDENTIALS", "false")),
			MaxAge:           time.Duration(config.Int("CORS_MAX_AGE_SECONDS", 600)) * time.Second,
		}),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(bodyLimit),
		httpx.WithTimeout(requestTimeout),
		rateLimitMW,
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "scheduling")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}

func isTruthy(s string) bool {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	default:
		return false
	}
}

func parseList(raw string) []string {
	items := strings.Split(raw, ",")
	out := make([]string, 0, len(items))
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
