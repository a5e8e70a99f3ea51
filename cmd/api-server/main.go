// Package main API Server 入口
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pokedex-api/internal/apiserver/auth"
	"pokedex-api/internal/apiserver/image"
	"pokedex-api/internal/apiserver/respond"
	"pokedex-api/internal/apiserver/server"
	"pokedex-api/internal/config"
	"pokedex-api/internal/shared/mailer"
	"pokedex-api/internal/shared/objstore"
	"pokedex-api/internal/shared/ratelimit"
	"pokedex-api/internal/shared/storage/mongostore"
)

// 认证接口限流：每 IP+邮箱 15 分钟 10 次
const (
	authRateLimit  = 10
	authRateWindow = 15 * time.Minute
)

func main() {
	// 加载配置（自动加载 .env，根据 APP_ENV 切换 YAML 配置）
	cfg := config.Load()

	log.Printf("Starting API Server... [env=%s]", cfg.Env)
	log.Printf("Config: %s", cfg.String())

	respond.SetProduction(cfg.IsProduction())

	// 初始化 MongoDB（用户、宝可梦、评价）
	store, err := mongostore.NewStore(cfg.Database.URI, cfg.Database.Name)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer store.Close()
	log.Println("Connected to MongoDB")

	authCfg := auth.Config{
		AccessSecret:  cfg.Auth.AccessTokenSecret,
		RefreshSecret: cfg.Auth.RefreshTokenSecret,
		AccessTTL:     cfg.Auth.AccessTokenTTL,
		RefreshTTL:    cfg.Auth.RefreshTokenTTL,
		SecureCookie:  cfg.IsProduction(),
	}

	// 管理员引导
	if err := auth.EnsureAdminUser(store, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword); err != nil {
		log.Fatalf("Failed to ensure admin user: %v", err)
	}

	// Redis 限流（可选）
	var limiter ratelimit.Limiter
	if cfg.Redis.Enabled {
		addr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
		redisLimiter, err := ratelimit.NewRedisLimiter(addr, cfg.Redis.Password, cfg.Redis.DB, authRateLimit, authRateWindow)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisLimiter.Close()
		limiter = redisLimiter
	} else {
		log.Println("Redis disabled, auth rate limiting off")
	}

	// MinIO 对象存储（图片），不可用时图片上传关闭
	var images *image.Processor
	var objects *objstore.Client
	if client, err := objstore.NewClient(cfg.MinIO); err != nil {
		log.Printf("WARNING: MinIO unavailable, image upload disabled: %v", err)
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := client.EnsureBucket(ctx); err != nil {
			cancel()
			log.Fatalf("Failed to ensure MinIO bucket: %v", err)
		}
		cancel()
		images = image.NewProcessor(client)
		objects = client
		log.Printf("Connected to MinIO at %s", cfg.MinIO.Endpoint)
	}

	h := server.NewHandler(server.Options{
		Store:      store,
		AuthConfig: authCfg,
		Mailer:     mailer.NewSMTPMailer(cfg.Mail),
		Limiter:    limiter,
		Images:     images,
		Objects:    objects,
		PublicURL:  cfg.Server.PublicURL,
	})
	h.ObserveStoreQueries(store)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      h.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// 优雅关闭
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	log.Printf("API Server listening on :%s", cfg.Server.Port)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}

	fmt.Println("Server stopped")
}
