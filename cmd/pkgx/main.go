package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	logger "github.com/sirupsen/logrus"

	"github.com/Arcoson/PackageEngine/internal/app"
)

func main() {
	_ = godotenv.Load()

	logger.SetFormatter(&logger.TextFormatter{
		FullTimestamp: true,
	})
	if level, err := logger.ParseLevel(os.Getenv("PKGX_LOG_LEVEL")); err == nil {
		logger.SetLevel(level)
	} else {
		logger.SetLevel(logger.WarnLevel)
	}

	if err := app.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
