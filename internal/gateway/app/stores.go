package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"labsite/internal/flagstore"
	"labsite/internal/gateway/config"
	"labsite/internal/media"
	"labsite/internal/popup"
)

type gatewayStores struct {
	popups  popup.Store
	durable flagstore.KV
	session *flagstore.SessionStore
	media   media.Store

	db    *sql.DB
	redis *redis.Client
}

func (s *gatewayStores) Close() error {
	var errs []string
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close stores: %s", strings.Join(errs, "; "))
	}
	return nil
}

func initStores(ctx context.Context, cfg *config.Config) (*gatewayStores, error) {
	stores := &gatewayStores{
		session: flagstore.NewSessionStore(0, cfg.SessionTTL),
	}

	if dsn := strings.TrimSpace(cfg.DatabaseURL); dsn != "" {
		db, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open db: %w", err)
		}
		stores.db = db
		stores.popups = popup.NewCachedStore(popup.NewPostgresStore(db), popup.DefaultCacheConfig())
		log.Printf("popup store: postgres")
	} else {
		stores.popups = popup.NewCachedStore(popup.NewMemoryStore(), popup.DefaultCacheConfig())
		log.Printf("popup store: in-memory")
	}

	if err := seedPopups(ctx, stores.popups, cfg.PopupSeedPath); err != nil {
		_ = stores.Close()
		return nil, err
	}

	durable, err := chooseDurableStore(ctx, cfg, stores)
	if err != nil {
		_ = stores.Close()
		return nil, err
	}
	stores.durable = durable

	mediaStore, err := chooseMediaStore(cfg)
	if err != nil {
		_ = stores.Close()
		return nil, err
	}
	stores.media = mediaStore
	return stores, nil
}

// seedPopups upserts the records of a JSON array file, if configured.
func seedPopups(ctx context.Context, store popup.Store, path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read popup seed: %w", err)
	}
	var records []popup.Record
	if err := json.Unmarshal(raw, &records); err != nil {
		return fmt.Errorf("parse popup seed %s: %w", path, err)
	}
	for _, rec := range records {
		if err := store.Put(ctx, rec); err != nil {
			return fmt.Errorf("seed popup %d: %w", rec.ID, err)
		}
	}
	log.Printf("popup store: seeded count=%d path=%s", len(records), path)
	return nil
}

// chooseDurableStore prefers redis, then the database, then a local file.
func chooseDurableStore(ctx context.Context, cfg *config.Config, stores *gatewayStores) (flagstore.KV, error) {
	if cfg.Redis.Enabled() {
		dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		client, err := flagstore.DialRedis(dialCtx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, fmt.Errorf("failed to connect redis: %w", err)
		}
		stores.redis = client
		log.Printf("popup flags: redis addr=%s db=%d", cfg.Redis.Addr, cfg.Redis.DB)
		return flagstore.NewRedisStore(client, "labsite:"), nil
	}
	if stores.db != nil {
		log.Printf("popup flags: postgres")
		return flagstore.NewPostgresStore(stores.db), nil
	}
	log.Printf("popup flags: file path=%s", cfg.PopupStatePath)
	return flagstore.NewFileStore(cfg.PopupStatePath), nil
}

func chooseMediaStore(cfg *config.Config) (media.Store, error) {
	if cfg.Media.CanUseS3() {
		s3Store, err := media.NewS3Store(media.S3Config{
			Endpoint:      cfg.Media.Endpoint,
			Region:        cfg.Media.Region,
			AccessKey:     cfg.Media.AccessKey,
			SecretKey:     cfg.Media.SecretKey,
			Bucket:        cfg.Media.Bucket,
			UseSSL:        cfg.Media.UseSSL,
			PublicBaseURL: cfg.Media.PublicBaseURL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize media s3 store: %w", err)
		}
		log.Printf("media store: s3 bucket=%s endpoint=%s", cfg.Media.Bucket, cfg.Media.Endpoint)
		return s3Store, nil
	}
	if cfg.Media.Endpoint != "" {
		log.Printf("media store: using in-memory fallback (s3 config incomplete)")
	}
	return media.NewMemoryStore(cfg.PublicBaseURL + "/media"), nil
}
