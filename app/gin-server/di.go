package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/do/v2"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/scribe/config"
	"github.com/yoockh/scribe/internal/api/handlers"
	"github.com/yoockh/scribe/internal/cache"
	"github.com/yoockh/scribe/internal/providers/llm"
	"github.com/yoockh/scribe/internal/providers/stt"
	"github.com/yoockh/scribe/internal/realtime"
	"github.com/yoockh/scribe/internal/repositories"
	"github.com/yoockh/scribe/internal/repositories/memory"
	mongorepo "github.com/yoockh/scribe/internal/repositories/mongo"
	pgrepo "github.com/yoockh/scribe/internal/repositories/postgres"
	"github.com/yoockh/scribe/internal/services"
	"github.com/yoockh/scribe/internal/storage"
	"github.com/yoockh/scribe/internal/workers"
)

const appContext = "app.context"

func setupDI(ctx context.Context, cfg *config.Config, log *logrus.Logger) do.Injector {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	do.ProvideValue(injector, log)
	do.ProvideNamedValue(injector, appContext, ctx)

	registerStorage(injector)
	registerProviders(injector)
	registerRealtime(injector)
	registerServices(injector)

	return injector
}

func appCtx(i do.Injector) context.Context {
	return do.MustInvokeNamed[context.Context](i, appContext)
}

func registerStorage(injector do.Injector) {
	// nil when REDIS_URL is unset
	do.Provide(injector, func(i do.Injector) (*redis.Client, error) {
		cfg := do.MustInvoke[*config.Config](i)
		if cfg.RedisURL == "" {
			return nil, nil
		}
		return config.NewRedis(appCtx(i), cfg)
	})

	do.Provide(injector, func(i do.Injector) (repositories.SessionRepository, error) {
		cfg := do.MustInvoke[*config.Config](i)
		log := do.MustInvoke[*logrus.Logger](i)
		if cfg.MongoURI == "" {
			log.Warn("MONGO_URI not set, sessions kept in memory")
			return memory.NewSessionRepo(), nil
		}
		client, err := config.NewMongo(appCtx(i), cfg)
		if err != nil {
			return nil, err
		}
		db := client.Database(cfg.MongoDB)
		if err := config.EnsureMongoIndexes(appCtx(i), db); err != nil {
			return nil, err
		}
		return mongorepo.NewSessionRepo(db), nil
	})

	do.Provide(injector, func(i do.Injector) (repositories.SegmentRepository, error) {
		cfg := do.MustInvoke[*config.Config](i)
		log := do.MustInvoke[*logrus.Logger](i)
		if cfg.PostgresURI == "" {
			log.Warn("POSTGRES_URI not set, transcript segments kept in memory")
			return memory.NewSegmentRepo(), nil
		}
		db, err := config.NewPostgres(cfg)
		if err != nil {
			return nil, err
		}
		if err := pgrepo.AutoMigrate(db); err != nil {
			return nil, err
		}
		return pgrepo.NewSegmentRepo(db), nil
	})

	do.Provide(injector, func(i do.Injector) (cache.Cache, error) {
		if rdb := do.MustInvoke[*redis.Client](i); rdb != nil {
			return cache.NewRedisCache(rdb), nil
		}
		return cache.NewMemoryCache(appCtx(i), 5*time.Minute), nil
	})

	do.Provide(injector, func(i do.Injector) (storage.Archive, error) {
		cfg := do.MustInvoke[*config.Config](i)
		if cfg.TranscriptBucket == "" {
			return nil, nil
		}
		return storage.NewGCSArchive(appCtx(i), cfg.TranscriptBucket)
	})
}

func registerProviders(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (stt.Provider, error) {
		cfg := do.MustInvoke[*config.Config](i)
		switch strings.ToLower(cfg.STTProvider) {
		case "vertex":
			return llm.NewVertexGemini(appCtx(i), cfg.VertexProjectID, cfg.VertexLocation, cfg.GeminiModel)
		case "google-speech":
			return stt.NewGoogleSpeech(appCtx(i), cfg.SpeechLanguage)
		case "gemini":
			return llm.NewGeminiAPI(appCtx(i), cfg.GeminiAPIKey, cfg.GeminiModel)
		}
		return nil, fmt.Errorf("unsupported STT_PROVIDER %q", cfg.STTProvider)
	})

	do.Provide(injector, func(i do.Injector) (llm.Provider, error) {
		cfg := do.MustInvoke[*config.Config](i)
		switch strings.ToLower(cfg.LLMProvider) {
		case "vertex":
			return llm.NewVertexGemini(appCtx(i), cfg.VertexProjectID, cfg.VertexLocation, cfg.GeminiModel)
		case "gemini":
			return llm.NewGeminiAPI(appCtx(i), cfg.GeminiAPIKey, cfg.GeminiModel)
		}
		return nil, fmt.Errorf("unsupported LLM_PROVIDER %q", cfg.LLMProvider)
	})
}

func registerRealtime(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*realtime.Hub, error) {
		log := do.MustInvoke[*logrus.Logger](i)
		var bus realtime.Bus
		if rdb := do.MustInvoke[*redis.Client](i); rdb != nil {
			bus = realtime.NewRedisBus(rdb)
		}
		hub := realtime.NewHub(log, bus)
		go hub.Run(appCtx(i))
		return hub, nil
	})
}

func registerServices(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (services.SessionService, error) {
		return services.NewSessionService(do.MustInvoke[repositories.SessionRepository](i)), nil
	})

	do.Provide(injector, func(i do.Injector) (services.TranscriptService, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return services.NewTranscriptService(
			do.MustInvoke[repositories.SegmentRepository](i),
			do.MustInvoke[services.SessionService](i),
			do.MustInvoke[cache.Cache](i),
			cfg.ExportCacheTTL,
			do.MustInvoke[*logrus.Logger](i),
		), nil
	})

	do.Provide(injector, func(i do.Injector) (*workers.IngestQueue, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return workers.NewIngestQueue(
			appCtx(i),
			do.MustInvoke[stt.Provider](i),
			do.MustInvoke[services.TranscriptService](i),
			do.MustInvoke[*realtime.Hub](i),
			do.MustInvoke[*logrus.Logger](i),
			cfg.QueueHighWater,
		), nil
	})

	do.Provide(injector, func(i do.Injector) (services.FinalizeService, error) {
		return services.NewFinalizeService(
			appCtx(i),
			do.MustInvoke[services.SessionService](i),
			do.MustInvoke[services.TranscriptService](i),
			do.MustInvoke[llm.Provider](i),
			do.MustInvoke[*workers.IngestQueue](i),
			do.MustInvoke[*realtime.Hub](i),
			do.MustInvoke[storage.Archive](i),
			do.MustInvoke[*logrus.Logger](i),
		), nil
	})

	do.Provide(injector, func(i do.Injector) (*handlers.SessionHandler, error) {
		return handlers.NewSessionHandler(
			do.MustInvoke[services.SessionService](i),
			do.MustInvoke[services.TranscriptService](i),
			do.MustInvoke[services.FinalizeService](i),
		), nil
	})

	do.Provide(injector, func(i do.Injector) (*handlers.WSHandler, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return handlers.NewWSHandler(
			appCtx(i),
			do.MustInvoke[services.SessionService](i),
			do.MustInvoke[*workers.IngestQueue](i),
			do.MustInvoke[services.FinalizeService](i),
			do.MustInvoke[*realtime.Hub](i),
			do.MustInvoke[*logrus.Logger](i),
			cfg.AllowedOrigins,
		), nil
	})
}
