package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clipgram/internal/config"
	"clipgram/internal/handlers/apiserver"
	appKafka "clipgram/internal/kafka"
	"clipgram/internal/middleware"
	"clipgram/internal/services"
	"clipgram/internal/storage"

	appRedis "clipgram/internal/redis"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redisDriver "github.com/redis/go-redis/v9"
)

func main() {
	// 1. 加载配置
	cfg, err := config.LoadConfig("")
	if err != nil {
		log.Fatalf("无法加载配置: %v", err)
	}
	log.Println("API 服务器配置加载成功。")

	// 2. 初始化数据库连接
	db, err := storage.InitDB(cfg.Database)
	if err != nil {
		log.Fatalf("无法初始化数据库: %v", err)
	}
	log.Println("API 服务器数据库连接成功。")

	// (可选) 表结构迁移
	if err := storage.AutoMigrateTables(db); err != nil {
		log.Printf("警告：API 服务器数据库表迁移可能失败: %v", err)
	} else {
		log.Println("API 服务器数据库表迁移成功 (如果执行)。")
	}

	// 3. 初始化 Redis Client
	redisClient := redisDriver.NewClient(&redisDriver.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	_, err = redisClient.Ping(context.Background()).Result()
	if err != nil {
		log.Fatalf("无法连接到 Redis: %v", err)
	}
	log.Println("成功连接到 Redis")

	// 4. 初始化 Redis 支撑服务
	tokenBlacklistService := appRedis.NewRedisTokenBlacklist(redisClient)
	followStatsCache := appRedis.NewRedisFollowStatsCache(redisClient, cfg.Redis.FollowStatsTTL)

	// 5. 初始化 Repositories
	userRepo := storage.NewGormUserRepository(db)
	followRepo := storage.NewGormFollowRepository(db)
	requestRepo := storage.NewGormMessageRequestRepository(db)
	threadRepo := storage.NewGormThreadRepository(db)
	messageRepo := storage.NewGormMessageRepository(db)
	notificationRepo := storage.NewGormNotificationRepository(db)

	// 6. 初始化 Kafka Producer
	kfkProducer, err := appKafka.NewEventProducer(cfg.Kafka)
	if err != nil {
		log.Fatalf("无法创建 Kafka 生产者: %v", err)
	}
	defer kfkProducer.Close()
	log.Println("Kafka 生产者初始化成功 (API Server)。")

	// 7. 初始化 Services
	var reviewer services.ContentReviewer
	if cfg.Moderation.Enabled {
		reviewer = services.NewKeywordReviewer(cfg.Moderation.BlockedTerms)
	} else {
		reviewer = services.NewPassthroughReviewer()
	}

	notificationService := services.NewNotificationService(notificationRepo, kfkProducer, cfg.Kafka)
	authService := services.NewAuthService(userRepo, cfg, tokenBlacklistService)
	followService := services.NewFollowService(userRepo, followRepo, followStatsCache, notificationService)
	userService := services.NewUserService(userRepo, followService)
	requestService := services.NewMessageRequestService(db, userRepo, requestRepo, followRepo, threadRepo, reviewer, notificationService)
	threadService := services.NewThreadService(db, userRepo, threadRepo, messageRepo, followRepo)

	// 8. 初始化 Handlers
	authHandler := apiserver.NewAuthHandler(authService)
	userHandler := apiserver.NewUserHandler(userService)
	followHandler := apiserver.NewFollowHandler(followService)
	requestHandler := apiserver.NewMessageRequestHandler(requestService)
	threadHandler := apiserver.NewThreadHandler(threadService)
	notificationHandler := apiserver.NewNotificationHandler(notificationService)

	// 9. 设置 HTTP 路由
	middleware.InitPrometheus()

	r := mux.NewRouter()
	r.Use(middleware.MonitorMiddleware)

	// 9.1 公开路由 (不需要认证)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	authRouter := r.PathPrefix("/auth").Subrouter()
	authRouter.HandleFunc("/register", authHandler.Register).Methods(http.MethodPost)
	authRouter.HandleFunc("/login", authHandler.Login).Methods(http.MethodPost)

	// 公开资料页（匿名可见，不带关注关系）
	r.HandleFunc("/users/{handle}", userHandler.GetProfile).Methods(http.MethodGet)

	// 9.2 API 子路由 (需要认证)
	authMW := middleware.AuthMiddleware(cfg.Auth, tokenBlacklistService)

	apiRouter := r.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(authMW)

	// 登出需要认证来获取 JTI
	apiRouter.HandleFunc("/auth/logout", authHandler.Logout).Methods(http.MethodPost)

	// 用户路由
	apiRouter.HandleFunc("/users/me", userHandler.GetMe).Methods(http.MethodGet)
	apiRouter.HandleFunc("/users/me", userHandler.UpdateProfile).Methods(http.MethodPut)
	apiRouter.HandleFunc("/users/search", userHandler.SearchUsers).Methods(http.MethodGet)
	apiRouter.HandleFunc("/users/{handle}", userHandler.GetProfile).Methods(http.MethodGet)

	// 关注路由
	apiRouter.HandleFunc("/users/{handle}/follow", followHandler.Follow).Methods(http.MethodPost)
	apiRouter.HandleFunc("/users/{handle}/follow", followHandler.Unfollow).Methods(http.MethodDelete)
	apiRouter.HandleFunc("/users/{handle}/followers", followHandler.ListFollowers).Methods(http.MethodGet)
	apiRouter.HandleFunc("/users/{handle}/following", followHandler.ListFollowing).Methods(http.MethodGet)

	// 私信请求路由
	requestRouter := apiRouter.PathPrefix("/message-requests").Subrouter()
	requestRouter.HandleFunc("", requestHandler.SubmitRequest).Methods(http.MethodPost)
	requestRouter.HandleFunc("/pending", requestHandler.ListIncoming).Methods(http.MethodGet)
	requestRouter.HandleFunc("/{requestId:[0-9]+}/accept", requestHandler.Accept).Methods(http.MethodPost)
	requestRouter.HandleFunc("/{requestId:[0-9]+}/decline", requestHandler.Decline).Methods(http.MethodPost)

	// 会话路由
	apiRouter.HandleFunc("/threads", threadHandler.StartThread).Methods(http.MethodPost)
	apiRouter.HandleFunc("/threads", threadHandler.ListThreads).Methods(http.MethodGet)
	apiRouter.HandleFunc("/threads/{threadId:[0-9]+}/messages", threadHandler.PostMessage).Methods(http.MethodPost)
	apiRouter.HandleFunc("/threads/{threadId:[0-9]+}/messages", threadHandler.ListMessages).Methods(http.MethodGet)

	// 通知路由
	apiRouter.HandleFunc("/notifications", notificationHandler.List).Methods(http.MethodGet)
	apiRouter.HandleFunc("/notifications/{notificationId:[0-9]+}", notificationHandler.Dismiss).Methods(http.MethodDelete)
	apiRouter.HandleFunc("/notifications/{notificationId:[0-9]+}/read", notificationHandler.MarkRead).Methods(http.MethodPost)

	// 10. 初始化并启动 Kafka 消费者 (通知落库)
	notificationConsumer, err := appKafka.NewEventConsumer(cfg.Kafka)
	if err != nil {
		log.Fatalf("无法创建通知 Kafka 消费者: %v", err)
	}
	defer notificationConsumer.Close()

	consumerCtx, cancelConsumers := context.WithCancel(context.Background())
	defer cancelConsumers()

	go func() {
		topics := []string{cfg.Kafka.NotificationsTopic}
		log.Printf("Kafka 通知消费者启动，监听 topic: %s, GroupID: %s", cfg.Kafka.NotificationsTopic, cfg.Kafka.ConsumerGroup)
		err := notificationConsumer.Run(consumerCtx, topics, cfg.Kafka.ConsumerGroup, notificationService.ProcessNotificationEvent)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("Kafka 通知消费者错误: %v", err)
		}
		log.Println("Kafka 通知消费者 goroutine 已停止。")
	}()

	// 11. 启动 HTTP 服务器并实现优雅关闭
	serverAddr := fmt.Sprintf("%s:%s", cfg.APIServer.Host, cfg.APIServer.Port)

	// 定义 CORS 选项，从配置中读取
	corsOptions := []handlers.CORSOption{
		handlers.AllowedOrigins(cfg.APIServer.CORS.AllowedOrigins),
		handlers.AllowedMethods(cfg.APIServer.CORS.AllowedMethods),
		handlers.AllowedHeaders(cfg.APIServer.CORS.AllowedHeaders),
		handlers.ExposedHeaders(cfg.APIServer.CORS.ExposedHeaders),
		handlers.MaxAge(cfg.APIServer.CORS.MaxAge),
	}
	if cfg.APIServer.CORS.AllowCredentials {
		corsOptions = append(corsOptions, handlers.AllowCredentials())
	}

	// 将主路由器 r 包装在 CORS 中间件中
	corsHandler := handlers.CORS(corsOptions...)(r)

	srv := &http.Server{
		Addr:           serverAddr,
		Handler:        corsHandler,
		ReadTimeout:    cfg.APIServer.ReadTimeout,
		WriteTimeout:   cfg.APIServer.WriteTimeout,
		IdleTimeout:    time.Second * 60,
		MaxHeaderBytes: cfg.APIServer.MaxHeaderBytes,
	}

	go func() {
		log.Printf("API 服务器启动于 %s", serverAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("API 服务器启动失败: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("收到关闭信号，正在关闭 API 服务器...")

	cancelConsumers() // Signal Kafka consumer to stop

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		log.Fatalf("API 服务器强制关闭: %v", err)
	}

	log.Println("API 服务器已成功关闭")
}
