package pkg

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/consent-lineage/consent-sync-service/domain"
)

func TestConsentSyncService(t *testing.T) {

	t.Run("configure fills in the defaults", func(t *testing.T) {
		service := &ConsentSyncService{}
		assert.NoError(t, service.Configure())
		assert.Equal(t, domain.DefaultSkewTolerance, service.Config.SkewTolerance)
		assert.NotZero(t, service.Config.DedupTTL)
	})

	t.Run("start wires an engine with in-process collaborators", func(t *testing.T) {
		service := &ConsentSyncService{}
		assert.NoError(t, service.Configure())
		assert.NoError(t, service.Start())
		defer func() { assert.NoError(t, service.Shutdown()) }()

		assert.NotNil(t, service.Engine)
		assert.NotNil(t, service.EventBus)

		record := domain.NewConsentRecord("device:1", []byte("abc123"), time.Now().UTC().Add(-time.Minute))
		record.State = domain.StateSubmitted
		record.RequestAt = time.Now().UTC()

		result, err := service.Engine.Receive(context.Background(), record, service.Config.RequestedScopes)
		assert.NoError(t, err)
		assert.Equal(t, domain.DecisionGranted, result.Decision)
	})

	t.Run("start opens the configured lineage file", func(t *testing.T) {
		service := &ConsentSyncService{}
		service.Config.LineagePath = filepath.Join(t.TempDir(), "lineage.log")
		assert.NoError(t, service.Configure())
		assert.NoError(t, service.Start())
		assert.NoError(t, service.Shutdown())
	})

	t.Run("the singleton is stable", func(t *testing.T) {
		assert.Same(t, ConsentSyncInstance(), ConsentSyncInstance())
	})
}
