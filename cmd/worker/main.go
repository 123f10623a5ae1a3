package main

import (
	"ace/internal/common"
	"ace/internal/worker"

	"go.uber.org/zap"
)

func main() {
	common.InitConf()
	common.InitLog()
	logger := common.GetLogger()
	defer logger.Sync()

	if err := worker.Run(); err != nil {
		logger.Fatal("worker exited", zap.Error(err))
	}
}
