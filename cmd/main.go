package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"TripleTriad/config"
	"TripleTriad/internal/auth"
	"TripleTriad/internal/catalog"
	"TripleTriad/internal/game/dealer"
	"TripleTriad/internal/game/manager"
	"TripleTriad/internal/lobby"
	"TripleTriad/internal/matchstore"
	"TripleTriad/internal/middleware"
	"TripleTriad/internal/storage"
	"TripleTriad/internal/utils"
	"TripleTriad/internal/websocket"
)

func main() {
	config.Load()
	utils.Init(config.C.Server.LogLevel)

	//-------------------------------------------------------
	// 1. 初始化 Redis / Postgres
	//-------------------------------------------------------
	useRedis := config.C.Store.Backend != "memory"
	if useRedis {
		if err := storage.InitRedis(
			config.C.Redis.Addr,
			config.C.Redis.Password,
			config.C.Redis.DB,
		); err != nil {
			utils.Print.Fatal("Redis init failed", "err", err)
		}
	}

	if err := storage.InitPostgres(config.C.Database.DSN); err != nil {
		utils.Print.Fatal("Postgres init failed", "err", err)
	}

	seed := config.C.Game.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	cards := catalog.NewRepo(storage.DB, dealer.NewDealer(seed).WithShuffle(config.C.Game.ShuffleDecks))
	if err := cards.EnsureSchema(storage.Ctx); err != nil {
		utils.Print.Fatal("catalog schema failed", "err", err)
	}

	//-------------------------------------------------------
	// 2. 对局存储 + 登录 nonce
	//-------------------------------------------------------
	var (
		store  matchstore.Store
		nonces auth.NonceStore
	)
	if useRedis {
		store = matchstore.NewRedisRepo(storage.Rdb, config.C.Store.TTL)
		nonces = auth.NewRedisNonceStore(storage.Rdb)
	} else {
		utils.Print.Warn("using in-memory match store, state is lost on restart")
		store = matchstore.NewMemoryRepo()
		nonces = auth.NewMemoryNonceStore()
	}

	//-------------------------------------------------------
	// 3. 初始化 Gin + CORS
	//-------------------------------------------------------
	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	//-------------------------------------------------------
	// 4. 初始化 Hub（必须最先启动）与 GameManager
	//-------------------------------------------------------
	hub := websocket.NewHub()
	gameMgr := manager.NewGameManager(store, hub, config.C.Game.TurnTimeout)
	hub.OnIncoming = gameMgr.HandlePlayerMessage
	go hub.Run()

	//-------------------------------------------------------
	// 5. 大厅：建局 / 入局
	//-------------------------------------------------------
	svc := lobby.NewService(store, cards, hub)

	// 💡 双方到齐：让 GameManager 接手并启动 Engine
	svc.OnMatchReady = func(rec *matchstore.Record) {
		if err := gameMgr.StartMatch(rec); err != nil {
			utils.Print.Error("StartMatch error", "match", rec.ID, "err", err)
		}
	}

	auth.NewHandler(nonces, config.C.JWT.Secret, config.C.JWT.TTL).Register(r.Group("/auth"))

	//-------------------------------------------------------
	// 6. 需要 JWT 的路由：WebSocket + 对局 API
	//-------------------------------------------------------
	secret := []byte(config.C.JWT.Secret)
	authed := r.Group("/", middleware.JwtAuthMiddleware(secret))
	{
		authed.GET("/ws", websocket.ServeWS(hub))
		lobby.NewHandler(svc, gameMgr).Register(authed)
	}

	//-------------------------------------------------------
	// 7. 启动服务器，收到信号后优雅退出
	//-------------------------------------------------------
	srv := &http.Server{Addr: config.C.Server.Port, Handler: r}
	go func() {
		utils.Print.Info("Server running", "addr", config.C.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.Print.Fatal("server failed", "err", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	gameMgr.Close()
	hub.Close()
	storage.Close()
	utils.Print.Info("Server stopped")
}
