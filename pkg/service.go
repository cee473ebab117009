package pkg

import (
	"context"
	"fmt"
	"sync"
	"time"

	eh "github.com/looplab/eventhorizon"
	"github.com/looplab/eventhorizon/eventbus/local"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/consent-lineage/consent-sync-service/domain"
	"github.com/consent-lineage/consent-sync-service/engine"
	"github.com/consent-lineage/consent-sync-service/lineage"
	"github.com/consent-lineage/consent-sync-service/pkg/logger"
	"github.com/consent-lineage/consent-sync-service/policy"
	"github.com/consent-lineage/consent-sync-service/store"
)

type ConsentSyncConfig struct {
	// MongoURI selects the mongo-backed authoritative store; empty
	// keeps everything in process memory.
	MongoURI      string
	MongoDatabase string
	// RedisAddress selects the shared duplicate-submission cache.
	RedisAddress string
	// LineagePath is the JSONL audit trail; empty keeps the log in
	// memory.
	LineagePath string

	// DefaultValidity is the server-assigned consent lifetime; zero
	// means consents do not expire.
	DefaultValidity time.Duration
	SkewTolerance   time.Duration
	DedupTTL        time.Duration
	// RequestedScopes are the purposes checked on every submission.
	RequestedScopes []string
}

// ConsentSyncService owns the server-side collaborators and their
// lifecycle.
type ConsentSyncService struct {
	Config   ConsentSyncConfig
	Engine   *engine.Engine
	EventBus *local.EventBus

	mongoClient *mongo.Client
	redisClient *redis.Client
	fileLog     *lineage.FileLog
}

var instance *ConsentSyncService
var oneInstance sync.Once

func ConsentSyncInstance() *ConsentSyncService {
	oneInstance.Do(func() {
		instance = &ConsentSyncService{}
	})
	return instance
}

func (s *ConsentSyncService) Configure() error {
	if s.Config.SkewTolerance <= 0 {
		s.Config.SkewTolerance = domain.DefaultSkewTolerance
	}
	if s.Config.DedupTTL <= 0 {
		s.Config.DedupTTL = store.DefaultDedupTTL
	}
	return nil
}

// Start builds the stores, the lineage log and the validity engine
// according to the configuration.
func (s *ConsentSyncService) Start() error {
	authoritative, err := s.authoritativeStore()
	if err != nil {
		return err
	}
	dedup := s.dedupCache()

	var log lineage.Log
	if s.Config.LineagePath != "" {
		fileLog, err := lineage.OpenFileLog(s.Config.LineagePath)
		if err != nil {
			return err
		}
		s.fileLog = fileLog
		log = fileLog
	} else {
		log = lineage.NewMemoryLog()
	}

	s.EventBus = local.NewEventBus(local.NewGroup())
	s.EventBus.AddObserver(eh.MatchAny(), &logger.EventLogger{})

	s.Engine = engine.New(authoritative, dedup, policy.PurposeMatrix{}, log)
	s.Engine.Validator = domain.TimestampValidator{SkewTolerance: s.Config.SkewTolerance}
	s.Engine.Publisher = s.EventBus
	s.Engine.DefaultValidity = s.Config.DefaultValidity
	s.Engine.DedupTTL = s.Config.DedupTTL

	logger.Logger().Infof("consent sync engine started (mongo=%v redis=%v lineage=%q)",
		s.Config.MongoURI != "", s.Config.RedisAddress != "", s.Config.LineagePath)
	return nil
}

func (s *ConsentSyncService) Shutdown() error {
	if s.fileLog != nil {
		if err := s.fileLog.Close(); err != nil {
			return err
		}
	}
	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			return err
		}
	}
	if s.mongoClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.mongoClient.Disconnect(ctx)
	}
	return nil
}

func (s *ConsentSyncService) authoritativeStore() (store.Authoritative, error) {
	if s.Config.MongoURI == "" {
		return store.NewMemoryStore(), nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(s.Config.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}
	s.mongoClient = client
	database := s.Config.MongoDatabase
	if database == "" {
		database = "consent"
	}
	return store.NewMongoStore(client, database), nil
}

func (s *ConsentSyncService) dedupCache() store.DedupCache {
	if s.Config.RedisAddress == "" {
		return store.NewTTLDedup()
	}
	s.redisClient = redis.NewClient(&redis.Options{Addr: s.Config.RedisAddress})
	return store.NewRedisDedup(s.redisClient)
}
