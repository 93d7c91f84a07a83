// Package main is the application entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"ai-doc-chat-go/internal/config"
	"ai-doc-chat-go/internal/handler"
	"ai-doc-chat-go/internal/middleware"
	"ai-doc-chat-go/internal/pipeline"
	"ai-doc-chat-go/internal/repository"
	"ai-doc-chat-go/internal/retrieval"
	"ai-doc-chat-go/internal/service"
	"ai-doc-chat-go/pkg/database"
	"ai-doc-chat-go/pkg/embedding"
	"ai-doc-chat-go/pkg/es"
	"ai-doc-chat-go/pkg/kafka"
	"ai-doc-chat-go/pkg/llm"
	"ai-doc-chat-go/pkg/log"
	"ai-doc-chat-go/pkg/storage"
	"ai-doc-chat-go/pkg/tika"
	"ai-doc-chat-go/pkg/token"
	"ai-doc-chat-go/pkg/tokenizer"
)

func main() {
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()
	log.Info("logger initialized")

	database.InitMySQL(cfg.Database.MySQL.DSN)
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	storage.InitMinIO(cfg.MinIO)
	if err := es.InitES(cfg.Elasticsearch, cfg.Embedding.Dimensions); err != nil {
		log.Errorf("failed to initialize elasticsearch: %s", err)
		return
	}
	kafka.InitProducer(cfg.Kafka)

	docRepo := repository.NewDocumentRepository(database.DB)
	conversationRepo := repository.NewConversationRepository(database.RDB)

	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.WSTokenExpireMinutes)
	tikaClient := tika.NewClient(cfg.Tika)
	embeddingClient := embedding.NewClient(cfg.Embedding)
	llmClient := llm.NewClient(cfg.LLM)

	counter, err := tokenizer.NewTiktokenCounter(cfg.Retrieval.TokenEncoding)
	if err != nil {
		log.Fatalf("failed to initialize tokenizer: %s", err)
	}

	assembler := retrieval.NewAssembler(embeddingClient, counter, retrieval.Config{
		SimilarityThreshold: cfg.Retrieval.SimilarityThreshold,
		MaxChunks:           cfg.Retrieval.MaxChunks,
		MaxContextTokens:    cfg.Retrieval.MaxContextTokens,
	})

	documentService := service.NewDocumentService(docRepo, cfg.MinIO, cfg.Elasticsearch)
	searchService := service.NewSearchService(embeddingClient, es.ESClient, docRepo, cfg.Elasticsearch)
	chatService := service.NewChatService(docRepo, conversationRepo, assembler, llmClient)

	embedder := pipeline.NewBatchEmbedder(embeddingClient, cfg.Embedding)
	processor := pipeline.NewProcessor(&pipeline.TikaExtractor{Client: tikaClient}, embedder, cfg.Pipeline.MaxChunkSize)
	ingestor := pipeline.NewIngestor(processor, docRepo, cfg.MinIO, cfg.Elasticsearch, cfg.Embedding)

	go kafka.StartConsumer(cfg.Kafka, ingestor)

	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())

	chatHandler := handler.NewChatHandler(chatService, jwtManager)

	apiV1 := r.Group("/api/v1")
	{
		documents := apiV1.Group("/documents")
		documents.Use(middleware.AuthMiddleware(jwtManager))
		{
			documentHandler := handler.NewDocumentHandler(documentService)
			documents.POST("", documentHandler.Upload)
			documents.GET("", documentHandler.List)
			documents.GET("/:id", documentHandler.Get)
			documents.DELETE("/:id", documentHandler.Delete)
		}

		search := apiV1.Group("/search")
		search.Use(middleware.AuthMiddleware(jwtManager))
		{
			search.GET("/hybrid", handler.NewSearchHandler(searchService).HybridSearch)
		}

		chatGroup := apiV1.Group("/chat")
		chatGroup.Use(middleware.AuthMiddleware(jwtManager))
		{
			chatGroup.GET("/websocket-token", chatHandler.GetWebsocketToken)
			chatGroup.GET("/stop-token", chatHandler.GetWebsocketStopToken)
		}
	}
	// The websocket carries its own short-lived token in the URL.
	r.GET("/chat/:token", chatHandler.Handle)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutdown signal received, stopping server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP server shutdown failed: %v", err)
	}

	log.Info("server stopped")
}
