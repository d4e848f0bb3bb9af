package benchmark

import (
	"context"
	"fmt"
	"runtime"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/ekodi-ai/gatekeeper/internal/core/domain"
	"github.com/ekodi-ai/gatekeeper/internal/core/service"
	"github.com/ekodi-ai/gatekeeper/internal/storage/memory"
)

// SessionCounts defines the session counts for benchmarking.
var SessionCounts = []int{1000, 10000, 50000, 100000}

// SmallSessionCounts for quick benchmarks.
var SmallSessionCounts = []int{1000, 5000, 10000}

var benchSecret = []byte("bench-secret-bench-secret-bench-secret!!")

func newSessionID() string {
	return ulid.Make().String()
}

// newAuthority wires a TokenAuthority over fresh memory stores.
func newAuthority(b *testing.B) (*service.TokenAuthority, *memory.SessionStore) {
	b.Helper()
	sessions := memory.NewSessionStore()
	ta, err := service.NewTokenAuthority(service.TokenConfig{
		Secret:     benchSecret,
		Issuer:     "bench",
		AccessTTL:  time.Hour,
		RefreshTTL: 24 * time.Hour,
	}, service.NewSessionRegistry(sessions), memory.NewRevocationStore())
	if err != nil {
		b.Fatalf("NewTokenAuthority failed: %v", err)
	}
	return ta, sessions
}

// prefillSessions registers count sessions spread over 1000 users.
func prefillSessions(ctx context.Context, b *testing.B, reg *service.SessionRegistry, count int) []string {
	b.Helper()
	ids := make([]string, count)
	exp := time.Now().Add(24 * time.Hour)
	for i := range ids {
		ids[i] = newSessionID()
		if err := reg.Add(ctx, userID(i), ids[i], exp); err != nil {
			b.Fatalf("Add failed: %v", err)
		}
	}
	return ids
}

func userID(i int) string {
	return fmt.Sprintf("user-%d", i%1000)
}

func benchUser(i int, role domain.Role) *domain.User {
	return &domain.User{
		ID:       userID(i),
		Email:    fmt.Sprintf("bench-%d@example.com", i),
		Role:     role,
		Tier:     domain.TierFree,
		IsStaff:  role.IsStaff(),
		IsActive: true,
	}
}

// reportMemory reports heap usage after a forced GC.
func reportMemory(b *testing.B, prefix string) {
	var m runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&m)
	b.ReportMetric(float64(m.HeapAlloc)/1024/1024, prefix+"_heap_MB")
}
