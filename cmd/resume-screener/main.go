package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/hertz/pkg/app/server"
	hertzconfig "github.com/cloudwego/hertz/pkg/common/config"
	glog "github.com/cloudwego/hertz/pkg/common/hlog"
	hertzadapter "github.com/hertz-contrib/logger/zerolog"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
	"github.com/spf13/pflag"

	"resume-screener-go/internal/agent"
	"resume-screener-go/internal/api/handler"
	"resume-screener-go/internal/api/router"
	"resume-screener-go/internal/config"
	"resume-screener-go/internal/logger"
	"resume-screener-go/internal/parser"
	"resume-screener-go/internal/processor"
	"resume-screener-go/internal/storage"
	"resume-screener-go/internal/tracing"
)

func main() {
	var configPath string
	pflag.StringVarP(&configPath, "config", "c", "internal/config/config.yaml", "Path to config file")
	pflag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("加载配置失败")
	}

	logger.Init(logger.Config{
		Level:        cfg.Logger.Level,
		Format:       cfg.Logger.Format,
		TimeFormat:   cfg.Logger.TimeFormat,
		ReportCaller: cfg.Logger.ReportCaller,
	})
	// Hertz 的日志走同一个 zerolog 实例
	glog.SetLogger(hertzadapter.From(logger.Logger))
	logger.Info().Msg("配置加载成功")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.InitProvider(ctx, cfg.Tracing)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化链路追踪失败")
	}

	storageManager, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化存储失败")
	}
	defer storageManager.Close()
	logger.Info().Msg("存储服务初始化成功")

	embedder, err := parser.NewEmbedder(cfg.Embedding)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.Embedding.Backend).Msg("初始化Embedder失败")
	}
	logger.Info().
		Str("backend", cfg.Embedding.Backend).
		Int("dimensions", embedder.Dimensions()).
		Msg("Embedder初始化成功")

	extractor, err := parser.NewTextExtractor(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化文本提取器失败")
	}

	pipeline := processor.NewRetrievalPipeline(embedder, storageManager.VectorStore, cfg.Retrieval.TopK)
	scorer := parser.NewScoringEngine()

	// LLM 未配置时退化为Mock模型，问答接口仍可用于联调
	var chatModel model.BaseChatModel
	if cfg.LLM.APIKey != "" {
		chatModel, err = agent.NewOpenAIChatModel(cfg.LLM)
		if err != nil {
			logger.Fatal().Err(err).Msg("初始化LLM客户端失败")
		}
	} else {
		logger.Warn().Msg("未配置LLM API Key，问答将使用Mock模型")
		chatModel = agent.NewMockChatModel("LLM 未配置，无法生成回答。", nil)
	}

	var memory agent.ChatMemory
	if storageManager.Redis != nil {
		memory, err = agent.NewRedisChatMemory(storageManager.Redis.Client)
		if err != nil {
			logger.Fatal().Err(err).Msg("初始化Redis对话历史失败")
		}
		logger.Info().Msg("对话历史使用Redis存储")
	} else {
		memory = agent.NewInMemoryChatMemory()
		logger.Warn().Msg("Redis未配置，对话历史使用进程内存储")
	}

	generator, err := agent.NewAnswerGenerator(chatModel, memory)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化回答生成器失败")
	}

	screeningHandler := handler.NewScreeningHandler(cfg, storageManager, extractor, pipeline, scorer, generator)
	logger.Info().Msg("ScreeningHandler初始化成功")

	serverOpts := []hertzconfig.Option{
		server.WithHostPorts(cfg.Server.Address),
		server.WithHandleMethodNotAllowed(true),
	}
	var tracingCfg *hertztracing.Config
	if cfg.Tracing.Enabled {
		tracer, tcfg := hertztracing.NewServerTracer()
		tracingCfg = tcfg
		serverOpts = append(serverOpts, tracer)
	}

	h := server.New(serverOpts...)
	if tracingCfg != nil {
		h.Use(hertztracing.ServerMiddleware(tracingCfg))
	}

	router.RegisterRoutes(h, cfg, screeningHandler)
	logger.Info().Str("address", cfg.Server.Address).Msg("HTTP服务器启动中")

	go func() {
		if err := h.Run(); err != nil {
			logger.Fatal().Err(err).Msg("启动HTTP服务器失败")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("接收到终止信号，正在优雅退出")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := h.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("服务器关闭失败")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("关闭链路追踪失败")
	}
	logger.Info().Msg("优雅退出完成")
}
