package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"

	"MESS-backend/internal/attendance"
	"MESS-backend/internal/menu"
	"MESS-backend/internal/platform/auth"
	"MESS-backend/internal/platform/db"
	"MESS-backend/internal/subscription"
)

func main() {
	// 設定読み込み
	cfg, err := db.LoadConfig("config/config.yaml")
	if err != nil {
		panic(err)
	}

	// 動作モード取得
	mode := cfg.Mode
	log.Printf("[INFO] mode:%s\n", mode)

	if cfg.Mode != "dev" && cfg.Mode != "release" {
		fmt.Println("Usage: go run main.go [dev|release]")
		return
	}

	if cfg.JWT.Secret == "" {
		panic("jwt.secret is not configured")
	}
	secret := []byte(cfg.JWT.Secret)

	// 食堂設定。時間帯の設定ミス（日付またぎ等）はここで落とす
	messCfg := attendance.ConfigFromYAML(cfg.Mess)
	if err := messCfg.Normalize(); err != nil {
		panic(err)
	}
	log.Printf("[INFO] mess tz:%s radius:%.0fm strict_qr:%v", messCfg.Timezone, messCfg.MaxRadiusM, messCfg.StrictQR)
	if messCfg.ExpectedQR == "" && !messCfg.StrictQR {
		// QR検証未設定のままだと素通しになる（なりすまし対策が無効）
		log.Printf("[WARN] QR expectation not configured; scans pass the QR check unconditionally")
	}

	conn, err := db.Connect(cfg.DB)
	if err != nil {
		panic(err)
	}
	defer conn.Close()

	log.Printf("[INFO] connected to DB: %s", cfg.DB.DBName)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	_ = r.SetTrustedProxies(nil)

	if mode == "dev" {
		// CORS（開発中のみ必要）
		r.Use(cors.New(cors.Config{
			AllowOrigins:     []string{"http://localhost:3000"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
			AllowCredentials: true,
		}))
	}

	// ヘルス
	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	authSvc := auth.NewService(conn, secret)
	subSvc := subscription.NewService(conn)
	attSvc := attendance.NewService(conn, messCfg, attendance.QRAuthenticator{
		Expected: messCfg.ExpectedQR,
		Strict:   messCfg.StrictQR,
	}, subSvc)
	menuSvc := menu.NewService(conn, messCfg.Location())

	// /api/v1
	api := r.Group("/api/v1")
	auth.RegisterPublicRoutes(api, authSvc)

	authed := api.Group("", auth.RequireAuth(secret))
	attendance.RegisterRoutes(authed, attSvc)
	menu.RegisterRoutes(authed, menuSvc)

	admin := authed.Group("", auth.RequireRole(auth.RoleAdmin))
	auth.RegisterAdminRoutes(admin, authSvc)
	attendance.RegisterAdminRoutes(admin, attSvc)
	subscription.RegisterRoutes(admin, subSvc)
	menu.RegisterAdminRoutes(admin, menuSvc)

	// TLS起動（:8443）
	srv := &http.Server{
		Addr:    ":8443",
		Handler: r,
	}

	var certFile, keyFile string
	if mode == "dev" {
		certFile = fmt.Sprintf("config/tls/dev/%s", cfg.Certificate.Cert)
		keyFile = fmt.Sprintf("config/tls/dev/%s", cfg.Certificate.Key)
	} else {
		certFile = fmt.Sprintf("config/tls/release/%s", cfg.Certificate.Cert)
		keyFile = fmt.Sprintf("config/tls/release/%s", cfg.Certificate.Key)
	}

	go func() {
		log.Println("[INFO] listening on https://0.0.0.0:8443")
		if err := srv.ListenAndServeTLS(certFile, keyFile); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit
	log.Println("[INFO] shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal(err)
	}
}
