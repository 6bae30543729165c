package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/Palindrome-Puzzles/jolly-roger/internal/config"
	"github.com/Palindrome-Puzzles/jolly-roger/internal/domain/account"
	"github.com/Palindrome-Puzzles/jolly-roger/internal/domain/call"
	"github.com/Palindrome-Puzzles/jolly-roger/internal/domain/mediasoup"
	"github.com/Palindrome-Puzzles/jolly-roger/internal/domain/registry"
	"github.com/Palindrome-Puzzles/jolly-roger/internal/domain/subscriber"
	"github.com/Palindrome-Puzzles/jolly-roger/pkg/database"
)

const usage = `
Jolly Roger - Database CLI Tool

Usage:
  migrate [command]

Commands:
  up       Run GORM auto-migrations for all tables
  status   Show database connection status
  reset    Drop all tables and re-run migrations (DANGEROUS)
`

func allModels() []interface{} {
	return []interface{}{
		&registry.Server{},
		&subscriber.Subscriber{},
		&call.Call{},
		&call.Peer{},
		&mediasoup.Router{},
		&mediasoup.ProducerServer{},
		&mediasoup.ConnectRequest{},
		&account.User{},
		&account.APIKey{},
		&account.Setting{},
		&account.UploadToken{},
	}
}

func main() {
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	command := flag.Arg(0)
	if command == "" {
		command = "up"
	}

	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	switch command {
	case "up":
		if err := db.AutoMigrate(allModels()...); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		fmt.Println("migrations applied")
	case "status":
		sqlDB, err := db.DB()
		if err != nil {
			log.Fatalf("Failed to get connection: %v", err)
		}
		if err := sqlDB.Ping(); err != nil {
			log.Fatalf("Database unreachable: %v", err)
		}
		fmt.Println("database reachable")
	case "reset":
		if err := db.Migrator().DropTable(allModels()...); err != nil {
			log.Fatalf("Drop failed: %v", err)
		}
		if err := db.AutoMigrate(allModels()...); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		fmt.Println("database reset")
	default:
		flag.Usage()
		os.Exit(2)
	}
}
