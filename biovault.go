// Package biovault wires the biometric credential subsystem together:
// encrypted credential storage on Postgres, the WebAuthn platform
// credential provider, session token issuance and the optional attestation
// snapshot archive. Host applications construct a Subsystem once and use
// the orchestrator for registration, login and capability checks.
package biovault

import (
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/pocketledger/biovault/internal/config"
	"github.com/pocketledger/biovault/internal/crypto"
	"github.com/pocketledger/biovault/internal/logger"
	"github.com/pocketledger/biovault/internal/model"
	"github.com/pocketledger/biovault/internal/provider"
	"github.com/pocketledger/biovault/internal/repository/postgres"
	"github.com/pocketledger/biovault/internal/service"
	"github.com/pocketledger/biovault/internal/session"
	storage "github.com/pocketledger/biovault/internal/storage/minio"
	"github.com/pocketledger/biovault/internal/token"
)

// Authenticator is the platform ceremony endpoint the host application
// supplies; pass nil when the environment has no platform authenticator and
// every biometric operation degrades to the unsupported-platform result.
type Authenticator = provider.Authenticator

// Subsystem is the assembled biometric credential subsystem.
type Subsystem struct {
	Biometric   *service.Biometric
	Credentials *service.Credentials
	Provider    model.CredentialProvider

	db     *postgres.Connection
	logger *logger.Logger
}

// New loads configuration from the environment and assembles the subsystem.
func New(ctx context.Context, authenticator Authenticator) (*Subsystem, error) {
	cfg, err := config.NewConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return NewWithConfig(ctx, cfg, authenticator)
}

// NewWithConfig assembles the subsystem from an explicit configuration.
// The attestation archive is optional: an empty storage endpoint disables
// snapshot uploads without affecting credential operations.
func NewWithConfig(ctx context.Context, cfg *config.Config, authenticator Authenticator) (*Subsystem, error) {
	log := logger.New(cfg.LogLevel)

	db, err := postgres.NewConnection(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	userRepo := postgres.NewUserRepository(db)
	credentialRepo := postgres.NewCredentialRepository(db)
	engine := crypto.NewEngine(cfg.Encryption.Pepper)
	tokenManager := token.NewJWT(cfg.JWT.Secret)
	sessions := session.NewFileCache(cfg.Session.CachePath)

	var archive model.Storage
	if cfg.Storage.Endpoint != "" {
		minioClient, err := minio.New(cfg.Storage.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.Storage.AccessKey, cfg.Storage.SecretKey, ""),
			Secure: cfg.Storage.UseSSL,
		})
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create minio client: %w", err)
		}
		archive, err = storage.NewClient(ctx, minioClient, cfg.Storage.Bucket)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize snapshot archive: %w", err)
		}
	}

	credentialStore := service.NewCredentials(credentialRepo, engine, archive, log)

	prov := provider.Detect(provider.Config{
		RPID:            cfg.RelyingParty.ID,
		RPDisplayName:   cfg.RelyingParty.DisplayName,
		RPOrigins:       cfg.RelyingParty.Origins,
		CeremonyTimeout: cfg.RelyingParty.CeremonyTimeout,
	}, authenticator, credentialStore, log)

	biometric := service.NewBiometric(prov, userRepo, sessions, tokenManager, log)

	return &Subsystem{
		Biometric:   biometric,
		Credentials: credentialStore,
		Provider:    prov,
		db:          db,
		logger:      log,
	}, nil
}

// Close releases the database pool.
func (s *Subsystem) Close() error {
	return s.db.Close()
}
