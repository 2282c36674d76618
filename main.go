package main

import (
	"log"

	"github.com/joho/godotenv"

	"voice-notes/internal/bootstrap"
)

func main() {
	// Optional; env vars beat .env values either way.
	_ = godotenv.Load()

	app, err := bootstrap.New()
	if err != nil {
		log.Fatalf("bootstrap app: %v", err)
	}

	if err := app.Run(); err != nil {
		log.Fatalf("run app: %v", err)
	}
}
