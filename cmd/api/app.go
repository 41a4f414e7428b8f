package main

import (
	"context"
	"fmt"
	"time"

	"github.com/premiumpay/premium-pay-api/internal/config"
	"github.com/premiumpay/premium-pay-api/internal/logger"
	"github.com/premiumpay/premium-pay-api/internal/repository"
	"github.com/premiumpay/premium-pay-api/internal/services"
	"github.com/premiumpay/premium-pay-api/internal/storage"
	"github.com/premiumpay/premium-pay-api/internal/utils"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// app holds the process-wide dependencies shared by every command.
type app struct {
	cfg      *config.Config
	log      *logrus.Logger
	client   *mongo.Client
	tokens   *utils.TokenService
	accounts *services.AccountService
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat, cfg.AppEnv)

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("connect to MongoDB: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping MongoDB: %w", err)
	}
	log.WithField("database", cfg.MongoDatabase).Info("connected to MongoDB")

	images, err := newImageStorage(cfg)
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	tokens, err := utils.NewTokenService(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	db := client.Database(cfg.MongoDatabase)
	accounts := services.NewAccountService(tokens, images, log)
	for _, kind := range services.Kinds() {
		repo := repository.NewAccountRepository(db, kind.Collection)
		if err := repo.EnsureIndexes(connectCtx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, fmt.Errorf("ensure %s indexes: %w", kind.Collection, err)
		}
		accounts.Register(kind, repo)
	}

	return &app{cfg: cfg, log: log, client: client, tokens: tokens, accounts: accounts}, nil
}

func newImageStorage(cfg *config.Config) (storage.ImageStorage, error) {
	if cfg.StorageDriver == "cloudinary" {
		return storage.NewCloudinaryStorage(cfg.CloudinaryURL, cfg.CloudinaryUploadFolder, cfg.MaxUploadBytes)
	}
	return storage.NewLocalStorage(cfg.UploadDir, cfg.MaxUploadBytes)
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.client.Disconnect(ctx); err != nil {
		a.log.WithError(err).Warn("disconnect MongoDB")
	}
}
