package main

import (
	"funnel-api/core/logger"
	"funnel-api/core/server"
)

func main() {
	if err := server.Run(); err != nil {
		logger.Error("run server error", "error", err)
	}
}
