package main

import (
	"ace/internal/common"
	"ace/internal/engine/broadcast"
	"ace/internal/server/dao"
	"ace/internal/server/dispatch"
	"ace/internal/server/handler"
	"ace/internal/server/middleware"
	"ace/internal/server/rpccall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	common.InitConf()
	common.InitLog()
	config := common.GetConfig()
	logger := common.GetLogger()
	defer logger.Sync()

	if err := dao.InitMySQL(config); err != nil {
		logger.Fatal("init database", zap.Error(err))
	}

	bus := broadcast.New()
	dispatcher := dispatch.New(config.RedisAddr, config.RedisPassword, logger)
	defer dispatcher.Close()
	handler.Init(bus, dispatcher)

	// worker把run进度推到这里，再进本进程的broadcaster喂SSE
	callback := rpccall.NewCallbackServer(bus, logger)
	go func() {
		if err := callback.Start(config.ProgressRPCAddr); err != nil {
			logger.Fatal("progress callback server", zap.Error(err))
		}
	}()

	if config.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	r.POST("/login", handler.UserLogin)

	authed := r.Group("/", middleware.JWTAuthMiddleware())
	authed.GET("/task", handler.ListTasks)
	authed.GET("/task/:id", handler.GetTask)
	authed.GET("/run", handler.ListRuns)
	authed.GET("/run/:run_id", handler.GetRun)
	authed.GET("/subscribe/:run_id", handler.SubscribeRun)
	authed.GET("/stats", handler.QueueStats)
	authed.GET("/alert", handler.ListAlerts)

	ops := authed.Group("/", middleware.RequireOperator())
	ops.POST("/task", handler.SubmitTask)
	ops.POST("/task/:id/cancel", handler.CancelTask)
	ops.POST("/alert/:id/ack", handler.AcknowledgeAlert)
	ops.POST("/alert/:id/resolve", handler.ResolveAlert)

	logger.Info("api server starting", zap.String("addr", config.ListenAddr))
	if err := r.RunTLS(config.ListenAddr, config.CertPath, config.KeyPath); err != nil {
		panic(err)
	}
}
