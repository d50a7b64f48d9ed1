package main

import (
	"context"
	"log"
	"time"

	"elevaite-rbac/internal/rbac/config"
	"elevaite-rbac/internal/rbac/engine"
	"elevaite-rbac/internal/rbac/repository"
	"elevaite-rbac/internal/rbac/router"
	"elevaite-rbac/internal/rbac/schema"
	"elevaite-rbac/internal/rbac/util"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	util.InitLogger()

	// 1. Load Config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. Init MongoDB
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			log.Printf("Failed to disconnect DB: %v", err)
		}
	}()

	db := client.Database(cfg.DBName)

	// 3. Init Layers
	store := repository.NewMongoStore(db)

	if err := store.EnsureIndexes(context.Background()); err != nil {
		log.Printf("Warning: Failed to ensure indexes: %v", err)
	}

	docs, err := schema.Load()
	if err != nil {
		log.Fatalf("Failed to load permission schemas: %v", err)
	}

	eng, err := engine.New(engine.DefaultClasses(), engine.DefaultPrecedenceOrder(), docs)
	if err != nil {
		log.Fatalf("Failed to compile permission schemas: %v", err)
	}

	// 4. Init Echo & Routes
	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	router.RegisterRoutes(e, eng, store)

	// 5. Start Server
	log.Printf("Starting server on :%s", cfg.Port)
	if err := e.Start(":" + cfg.Port); err != nil {
		e.Logger.Fatal(err)
	}
}
