package main

import (
	"log"

	"github.com/joho/godotenv"

	"voice-notes/internal/bootstrap"
)

func main() {
	_ = godotenv.Load()

	app, err := bootstrap.New()
	if err != nil {
		log.Fatalf("bootstrap app: %v", err)
	}

	if err := app.Run(); err != nil {
		log.Fatalf("run app: %v", err)
	}
}
