package app

import (
	"fmt"
	"log"
	"strings"

	"fitroom/internal/config"
	"fitroom/internal/imagestore"
)

// initStore picks the render store origin and wraps it with the LRU
// cache. Selection order: S3 when configured, then Postgres, then
// in-memory.
func initStore(cfg *config.Config) (imagestore.Store, func() imagestore.MetricsSnapshot, error) {
	origin, err := chooseOriginStore(cfg)
	if err != nil {
		return nil, nil, err
	}
	cached := imagestore.NewCachedStore(origin, imagestore.DefaultCacheConfig())
	return cached, cached.Metrics, nil
}

func chooseOriginStore(cfg *config.Config) (imagestore.Store, error) {
	s3Cfg := imagestore.S3Config{
		Endpoint:  cfg.Store.Endpoint,
		Region:    cfg.Store.Region,
		AccessKey: cfg.Store.AccessKey,
		SecretKey: cfg.Store.SecretKey,
		Bucket:    cfg.Store.Bucket,
		UseSSL:    cfg.Store.UseSSL,
	}
	if s3Cfg.CanUse() {
		s3Store, err := imagestore.NewS3Store(s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize s3 image store: %w", err)
		}
		log.Printf("image store: s3 bucket=%s endpoint=%s", s3Cfg.Bucket, s3Cfg.Endpoint)
		return s3Store, nil
	}

	if dsn := strings.TrimSpace(cfg.DatabaseURL); dsn != "" {
		db, err := imagestore.OpenPostgres(dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open db: %w", err)
		}
		log.Printf("image store: postgres")
		return imagestore.NewPostgresStore(db), nil
	}

	log.Printf("image store: in-memory (renders are lost on restart)")
	return imagestore.NewMemoryStore(), nil
}
