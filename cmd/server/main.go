package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"go.uber.org/zap"

	"github.com/troikatech/call-center/internal/api/handlers"
	"github.com/troikatech/call-center/internal/call"
	"github.com/troikatech/call-center/internal/callcontrol"
	"github.com/troikatech/call-center/internal/conversation"
	"github.com/troikatech/call-center/internal/dispatcher"
	"github.com/troikatech/call-center/internal/intelligence"
	"github.com/troikatech/call-center/internal/jobs"
	"github.com/troikatech/call-center/internal/orchestrator"
	"github.com/troikatech/call-center/internal/prompts"
	"github.com/troikatech/call-center/internal/trainings"
	"github.com/troikatech/call-center/pkg/ai"
	"github.com/troikatech/call-center/pkg/audit"
	"github.com/troikatech/call-center/pkg/auth"
	"github.com/troikatech/call-center/pkg/callautomation"
	"github.com/troikatech/call-center/pkg/env"
	"github.com/troikatech/call-center/pkg/features"
	"github.com/troikatech/call-center/pkg/lock"
	"github.com/troikatech/call-center/pkg/logger"
	"github.com/troikatech/call-center/pkg/metrics"
	"github.com/troikatech/call-center/pkg/middleware"
	"github.com/troikatech/call-center/pkg/mongo"
	"github.com/troikatech/call-center/pkg/otel"
	"github.com/troikatech/call-center/pkg/sms"
)

const version = "1.0.0"

// memoryQueueSize bounds the in-process queues used without Redis.
const memoryQueueSize = 1000

type UnifiedServer struct {
	cfg         *env.Config
	redisClient *redis.Client
	handler     *handlers.Handler
	workers     []*jobs.Worker
}

func main() {
	cfg, err := env.Load(".env")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(cfg.LogLevel, cfg.AppEnv, "call-center"); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if cfg.OTELEnabled {
		shutdown, err := otel.InitTracing(context.Background(), otel.Config{
			ServiceName:    "call-center",
			ServiceVersion: version,
			Endpoint:       cfg.OTELEndpoint,
		})
		if err != nil {
			logger.Log.Warn("Failed to initialize OpenTelemetry", zap.Error(err))
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = shutdown(ctx)
			}()
			logger.Log.Info("OpenTelemetry tracing enabled", zap.String("endpoint", cfg.OTELEndpoint))
		}
	}

	logger.Log.Info("Starting Unified Server (API + call orchestration + jobs)",
		zap.String("env", cfg.AppEnv),
		zap.String("port", cfg.AppPort),
		zap.String("store", cfg.StoreDriver),
	)

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Log.Fatal("Failed to parse Redis URL", zap.Error(err))
		}
		redisClient = redis.NewClient(opt)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		cancel()
		defer redisClient.Close()
	} else {
		logger.Log.Warn("REDIS_URL is empty, locks, dedup and queues stay in process memory")
	}

	var store call.Store
	var retriever trainings.Retriever
	var auditor audit.Recorder = audit.NewLogRecorder(logger.Log)
	if cfg.StoreDriver == "mongo" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		mongoClient, err := mongo.NewClient(ctx, cfg.MongoURI, cfg.DBName, logger.Log)
		if err != nil {
			logger.Log.Fatal("Failed to connect to MongoDB", zap.Error(err))
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := mongoClient.Disconnect(ctx); err != nil {
				logger.Log.Warn("Failed to disconnect MongoDB", zap.Error(err))
			}
		}()

		mongoStore := call.NewMongoStore(mongoClient)
		if err := mongoStore.EnsureIndexes(ctx); err != nil {
			logger.Log.Warn("Failed to create call indexes", zap.Error(err))
		}
		mongoRetriever := trainings.NewMongoRetriever(mongoClient)
		if err := mongoRetriever.EnsureIndexes(ctx); err != nil {
			logger.Log.Warn("Failed to create trainings indexes", zap.Error(err))
		}
		cancel()
		store, retriever = mongoStore, mongoRetriever
		auditor = audit.NewMongoRecorder(mongoClient, logger.Log)
	} else {
		store = call.NewMemoryStore()
		logger.Log.Warn("Using the in-memory call store, calls are lost on restart")
	}

	var locker call.Locker
	var deduper dispatcher.Deduper
	var cache trainings.Cache
	var trainingsQueue, postQueue jobs.Queue
	if redisClient != nil {
		locker = lock.NewRedisLock(redisClient, cfg.CallLockTTL)
		deduper = dispatcher.NewRedisDeduper(redisClient, cfg.EventDedupTTL, logger.Log)
		cache = trainings.NewRedisCache(redisClient, cfg.TrainingsCacheTTL)
		trainingsQueue = jobs.NewRedisQueue(redisClient, jobs.QueueTrainings)
		postQueue = jobs.NewRedisQueue(redisClient, jobs.QueuePost)
	} else {
		locker = lock.NewKeyedMutex()
		deduper = dispatcher.NewMemoryDeduper(cfg.EventDedupTTL)
		cache = trainings.NewMemoryCache(cfg.TrainingsCacheTTL)
		trainingsQueue = jobs.NewMemoryQueue(jobs.QueueTrainings, memoryQueueSize)
		postQueue = jobs.NewMemoryQueue(jobs.QueuePost, memoryQueueSize)
	}

	flags := features.New(redisClient, features.Defaults{
		RecognitionRetryMax: cfg.RecognitionRetryMax,
		RecordingEnabled:    cfg.RecordingEnabled,
		SilenceTimeoutSec:   cfg.SilenceTimeoutSec,
	}, logger.Log)

	convConfig, err := env.LoadConversation(cfg.ConversationConfig)
	if err != nil {
		logger.Log.Fatal("Failed to load conversation config", zap.Error(err))
	}
	catalog, err := prompts.NewCatalog(convConfig.Prompts)
	if err != nil {
		logger.Log.Fatal("Failed to load prompts", zap.Error(err))
	}

	endpoint, accessKey, err := callautomation.ParseConnectionString(cfg.ACSConnectionString)
	if err != nil {
		logger.Log.Fatal("Invalid ACS_CONNECTION_STRING", zap.Error(err))
	}
	automation, err := callautomation.NewClient(endpoint, accessKey, time.Duration(cfg.ACSTimeoutMs)*time.Millisecond, logger.Log)
	if err != nil {
		logger.Log.Fatal("Failed to create call automation client", zap.Error(err))
	}
	acs := callcontrol.NewACS(automation, callcontrol.ACSConfig{
		SourceNumber:              cfg.ACSSourceNumber,
		CognitiveServicesEndpoint: cfg.CognitiveServicesEndpoint,
		RecordingContainerURL:     cfg.RecordingContainerURL,
		MediaStreamingURL:         cfg.MediaStreamingURL,
	}, flags, logger.Log)

	aiTimeout := time.Duration(cfg.AITimeoutMs) * time.Millisecond
	if aiTimeout == 0 {
		aiTimeout = 30 * time.Second
	}
	aiManager := newAIManager(cfg, aiTimeout)

	smsSender := sms.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioPhoneNumber, logger.Log)
	if !smsSender.IsConfigured() {
		logger.Log.Warn("Twilio is not configured, post-call SMS are disabled")
	}

	trigger := jobs.NewTrigger(trainingsQueue, postQueue, logger.Log)
	trainingsService := trainings.NewService(retriever, cache, logger.Log)

	conv := conversation.New(conversation.Config{
		Controller: acs,
		LLM:        aiManager,
		Knowledge:  trainingsService,
		Trainer:    trigger,
		Prompts:    catalog,
		Timeout:    aiTimeout,
		Logger:     logger.Log,
	})

	orch := orchestrator.New(orchestrator.Config{
		Controller:   acs,
		Dialer:       acs,
		Conversation: conv,
		Trigger:      trigger,
		Features:     flags,
		Prompts:      catalog,
		Store:        store,
		Locker:       locker,
		Defaults:     defaultInitiate(convConfig),
		PublicURL:    cfg.PublicURL,
		Logger:       logger.Log,
	})

	eventDispatcher := dispatcher.New(dispatcher.Config{
		Store:   store,
		Locker:  locker,
		Deduper: deduper,
		Handler: orch,
		Logger:  logger.Log,
	})

	pipeline := intelligence.New(intelligence.Config{
		LLM:    aiManager,
		SMS:    smsSender,
		Store:  store,
		Locker: locker,
		Logger: logger.Log,
	})

	checks := []handlers.Check{
		{Name: "store", Ping: store.Ping},
		{Name: "llm", Ping: func(context.Context) error {
			if !aiManager.IsAvailable() {
				return errors.New("no AI provider configured")
			}
			return nil
		}},
		{Name: "sms", Ping: func(context.Context) error {
			if !smsSender.IsConfigured() {
				return errors.New("twilio is not configured")
			}
			return nil
		}},
	}
	if redisClient != nil {
		checks = append(checks, handlers.Check{Name: "cache", Ping: func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}})
	}

	apiHandler := handlers.NewHandler(handlers.Config{
		Orchestrator:    orch,
		Dispatcher:      eventDispatcher,
		Store:           store,
		Defaults:        defaultInitiate(convConfig),
		Checks:          checks,
		Audit:           auditor,
		TwilioAuthToken: cfg.TwilioAuthToken,
		PublicURL:       cfg.PublicURL,
		Logger:          logger.Log,
	})

	server := &UnifiedServer{
		cfg:         cfg,
		redisClient: redisClient,
		handler:     apiHandler,
	}
	concurrency := cfg.WorkersConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	for i := 0; i < concurrency; i++ {
		server.workers = append(server.workers,
			jobs.NewWorker(jobs.WorkerConfig{Queue: trainingsQueue, Processor: trainingsService, Logger: logger.Log}),
			jobs.NewWorker(jobs.WorkerConfig{Queue: postQueue, Processor: pipeline, Logger: logger.Log}),
		)
	}

	router := server.setupRouter()

	workersCtx, stopWorkers := context.WithCancel(context.Background())
	var workersDone sync.WaitGroup
	for _, worker := range server.workers {
		workersDone.Add(1)
		go func(w *jobs.Worker) {
			defer workersDone.Done()
			w.Run(workersCtx)
		}(worker)
	}
	logger.Log.Info("Job workers started", zap.Int("workers", len(server.workers)))

	srv := &http.Server{
		Addr:         ":" + cfg.AppPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Log.Info("Unified Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}
	stopWorkers()
	workersDone.Wait()

	logger.Log.Info("Server exited")
}

func newAIManager(cfg *env.Config, timeout time.Duration) *ai.Manager {
	providers := []ai.Provider{}

	if cfg.OpenAIApiKey != "" {
		openAIProvider := ai.NewOpenAIProvider(
			cfg.OpenAIApiKey,
			cfg.OpenAIModel,
			cfg.OpenAIMaxTokens,
			timeout,
			logger.Log,
		)
		providers = append(providers, openAIProvider)
		logger.Log.Info("OpenAI provider initialized", zap.String("model", cfg.OpenAIModel))
	}

	if cfg.AnthropicApiKey != "" {
		anthropicProvider := ai.NewAnthropicProvider(
			cfg.AnthropicApiKey,
			cfg.AnthropicModel,
			cfg.AnthropicMaxTokens,
			timeout,
			logger.Log,
		)
		providers = append(providers, anthropicProvider)
		logger.Log.Info("Anthropic provider initialized", zap.String("model", cfg.AnthropicModel))
	}

	if len(providers) == 0 {
		logger.Log.Warn("No AI providers available, conversation and post-call jobs will fail")
	}
	return ai.NewManager(providers, logger.Log)
}

// defaultInitiate is the snapshot of calls placed by a caller, and the base of
// calls created through the API.
func defaultInitiate(conv *env.Conversation) call.Initiate {
	languages := make([]call.Language, 0, len(conv.Lang.Availables))
	for _, lang := range conv.Lang.Availables {
		languages = append(languages, call.Language(lang))
	}
	return call.Initiate{
		AgentPhoneNumber: conv.AgentPhoneNumber,
		BotCompany:       conv.BotCompany,
		BotName:          conv.BotName,
		Task:             conv.Task,
		Lang: call.LanguageConfig{
			DefaultShortCode: conv.Lang.DefaultShortCode,
			Availables:       languages,
		},
	}
}

func (s *UnifiedServer) setupRouter() *gin.Engine {
	if s.cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.TraceMiddleware())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.RequestSizeLimit(1 << 20)) // 1 MB limit

	if s.cfg.OTELEnabled {
		router.Use(otel.GinMiddleware("/health/liveness", "/health/readiness", "/metrics"))
	}

	router.Use(middleware.RequestLogger(logger.Log, "/health/liveness", "/health/readiness", "/metrics"))
	router.Use(metrics.GinMiddleware())

	corsConfig := cors.DefaultConfig()
	if s.cfg.CORSAllowedOrigins == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = []string{s.cfg.CORSAllowedOrigins}
		corsConfig.AllowCredentials = true
	}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "Idempotency-Key"}
	router.Use(cors.New(corsConfig))

	var mw handlers.Middleware
	if s.cfg.JWTSecret != "" {
		tokenConfig := auth.TokenConfig{
			Secret:   s.cfg.JWTSecret,
			Issuer:   s.cfg.JWTIssuer,
			Audience: s.cfg.JWTAudience,
		}
		mw.Read = append(mw.Read, middleware.AuthMiddleware(tokenConfig), middleware.RequireScope(auth.ScopeCallsRead))
		mw.Write = append(mw.Write, middleware.AuthMiddleware(tokenConfig), middleware.RequireScope(auth.ScopeCallsWrite))
	} else {
		logger.Log.Warn("JWT_SECRET is empty, the call API is not authenticated")
	}
	if s.redisClient != nil {
		rateLimiter := middleware.NewRateLimiter(s.redisClient, s.cfg.APIRateLimitRPM, logger.Log)
		mw.Read = append(mw.Read, rateLimiter.Middleware())
		mw.Write = append(mw.Write, rateLimiter.Middleware(), middleware.IdempotencyMiddleware(s.redisClient, logger.Log))
	}

	s.handler.Register(router, mw)
	return router
}
