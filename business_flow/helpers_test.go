package businessflow

import (
	"testing"

	"github.com/amirphl/tv-slot-pool/config"
	"github.com/amirphl/tv-slot-pool/repository"
	"github.com/amirphl/tv-slot-pool/utils"
)

type testPool struct {
	store     *repository.MemoryStore
	policy    PoolPolicy
	allocator SlotAllocatorFlow
	query     SlotQueryFlow
}

func newTestPool(t *testing.T, tweak func(cfg *config.PoolConfig)) *testPool {
	t.Helper()

	cfg := config.DefaultPoolConfig()
	cfg.Store = config.StoreMemory
	cfg.EmailDomain = "tv.test"
	cfg.UsernamePrefix = "tv"
	if tweak != nil {
		tweak(&cfg)
	}

	store := repository.NewMemoryStore()
	policy := NewPoolPolicy(cfg)
	allocator := NewSlotAllocatorFlow(store, policy, NewLocalGrowthLocker(), utils.DiscardLogger())

	return &testPool{
		store:     store,
		policy:    policy,
		allocator: allocator,
		query:     NewSlotQueryFlow(store, policy, allocator),
	}
}
