// Package bootstrap wires configuration, platform clients, and services into
// a runnable application.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"research-chatbot/internal/ai"
	"research-chatbot/internal/app"
	"research-chatbot/internal/cache"
	"research-chatbot/internal/config"
	"research-chatbot/internal/eval"
	"research-chatbot/internal/logger"
	"research-chatbot/internal/memory"
	mysqlClient "research-chatbot/internal/platform/mysql"
	rabbitmqClient "research-chatbot/internal/platform/rabbitmq"
	redisClient "research-chatbot/internal/platform/redis"
	"research-chatbot/internal/repository"
	"research-chatbot/internal/retrieval"
	"research-chatbot/internal/search"
	"research-chatbot/internal/tool"
	"research-chatbot/internal/worker"
)

type App struct {
	Config *config.Config
	Log    *zap.Logger
	MySQL  *gorm.DB
	Redis  *redis.Client
	MQ     *rabbitmqClient.Conn

	ChatService   *app.ChatService
	IngestService *app.IngestService
	EvalService   *app.EvalService

	StartedAt    time.Time
	workerCancel context.CancelFunc
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	log, err := logger.New(cfg.App.Env, cfg.Log.Level)
	if err != nil {
		return nil, err
	}

	mysqlDB, err := mysqlClient.Connect(cfg)
	if err != nil {
		return nil, err
	}
	if err := mysqlClient.AutoMigrate(mysqlDB); err != nil {
		return nil, err
	}

	redisCli, err := redisClient.Connect(cfg)
	if err != nil {
		return nil, err
	}

	mqConn, err := rabbitmqClient.Connect(cfg)
	if err != nil {
		return nil, err
	}

	sessionRepo := repository.NewSessionRepository(mysqlDB)
	turnRepo := repository.NewTurnRepository(mysqlDB)
	documentRepo := repository.NewDocumentRepository(mysqlDB)
	chunkRepo := repository.NewChunkRepository(mysqlDB)
	evalRepo := repository.NewEvalResultRepository(mysqlDB)

	historyCache := cache.NewHistoryCache(redisCli,
		time.Duration(cfg.Redis.HistoryTTLSeconds)*time.Second,
		time.Duration(cfg.Redis.HistoryDirtyTTLSeconds)*time.Second,
	)
	publisher := rabbitmqClient.NewTurnPublisher(mqConn, cfg.RabbitMQ.TurnPersistQueue)
	memoryManager := memory.NewManager(sessionRepo, turnRepo, historyCache, publisher, cfg.Memory.Window, log)

	aiClient := ai.NewClient()
	embedder := app.NewLLMEmbedder(aiClient, cfg)
	generator := app.NewLLMGenerator(aiClient, cfg)

	index, err := retrieval.NewIndex(cfg.Retrieval.EmbeddingDimension)
	if err != nil {
		return nil, err
	}
	retriever := retrieval.NewRetriever(index, embedder, log)

	ingestService := app.NewIngestService(
		documentRepo, chunkRepo, index, embedder,
		cfg.Retrieval.ChunkSize, cfg.Retrieval.ChunkOverlap, log,
	)
	if err := ingestService.ReloadIndex(ctx); err != nil {
		return nil, fmt.Errorf("initial index load failed: %w", err)
	}

	router := tool.NewRouter(retriever, cfg.Retrieval.TopK, cfg.Retrieval.SimilarityThreshold, cfg.WebSearchEnabled(), log)

	tools := []tool.Tool{
		tool.NewMathTool(),
		tool.NewRAGTool(retriever, generator, cfg.Retrieval.TopK, cfg.Retrieval.SimilarityThreshold),
		tool.NewUnsupportedTool(),
	}
	if cfg.WebSearchEnabled() {
		searcher := search.NewClient(search.Config{
			BaseURL:    cfg.Search.BaseURL,
			APIKey:     cfg.Search.APIKey,
			MaxResults: cfg.Search.MaxResults,
		})
		tools = append(tools, tool.NewWebSearchTool(searcher, generator))
	}

	chatService := app.NewChatService(memoryManager, router, tools, turnRepo, log)

	judge := eval.NewLLMJudge(aiClient, cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.JudgeModel)
	evalService := app.NewEvalService(chatService, judge, evalRepo, cfg.Eval.DatasetPath, log)

	consumerChannel, err := mqConn.NewChannel()
	if err != nil {
		return nil, err
	}
	workerCtx, workerCancel := context.WithCancel(context.Background())
	persistWorker := worker.NewTurnPersistWorker(consumerChannel, cfg.RabbitMQ.TurnPersistQueue, turnRepo, historyCache, log)
	go func() {
		if err := persistWorker.Start(workerCtx); err != nil {
			log.Error("turn persist worker stopped", zap.Error(err))
		}
	}()

	return &App{
		Config:        cfg,
		Log:           log,
		MySQL:         mysqlDB,
		Redis:         redisCli,
		MQ:            mqConn,
		ChatService:   chatService,
		IngestService: ingestService,
		EvalService:   evalService,
		StartedAt:     time.Now(),
		workerCancel:  workerCancel,
	}, nil
}

func (a *App) Close() error {
	var closeErr error
	if a.workerCancel != nil {
		a.workerCancel()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MQ != nil {
		if err := a.MQ.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MySQL != nil {
		sqlDB, err := a.MySQL.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	if a.Log != nil {
		_ = a.Log.Sync()
	}
	return closeErr
}
