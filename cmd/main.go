package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"media_relay_bot/internal/bot"
	"media_relay_bot/internal/pkg/account"
	"media_relay_bot/internal/pkg/account/postgres_storage"
	"media_relay_bot/internal/pkg/login/usecase"
	"media_relay_bot/internal/pkg/telegram"
	"media_relay_bot/internal/pkg/transfer"
)

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file, using environment")
	}

	token := os.Getenv("TELEGRAM_TOKEN")
	if token == "" {
		log.Fatal("TELEGRAM_TOKEN is not set")
	}

	apiID, err := strconv.Atoi(os.Getenv("API_ID"))
	if err != nil {
		log.Fatal("API_ID must be a number")
	}

	apiHash := os.Getenv("API_HASH")
	if apiHash == "" {
		log.Fatal("API_HASH is not set")
	}

	bufferPath := os.Getenv("BUFFER_PATH")
	if bufferPath == "" {
		bufferPath = os.TempDir()
	}

	var storage account.Storage
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		db, err := sql.Open("postgres", dsn)
		if err != nil {
			log.Fatalf("failed to open database: %v", err)
		}
		if err := db.Ping(); err != nil {
			log.Fatalf("failed to ping database: %v", err)
		}
		storage = postgres_storage.NewPostgresStorage(db)
	} else {
		storage = account.NewMemoryStorage()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	factory := telegram.NewGotd(apiID, apiHash, token)

	botClient, stopBotClient, err := factory.Bot(ctx)
	if err != nil {
		log.Fatalf("failed to connect MTProto bot client: %v", err)
	}
	defer stopBotClient()

	b := bot.New(token, storage)

	loginManager := usecase.NewManager(factory, storage, b)
	b.SetLoginManager(loginManager)
	go loginManager.RunReaper(ctx)

	transfers := transfer.NewService(factory, botClient, storage, bufferPath, transfer.DefaultWorkers)
	b.SetTransferService(transfers)

	b.Start(ctx)
}
