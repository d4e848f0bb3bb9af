package benchmark

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ekodi-ai/gatekeeper/internal/core/service"
	"github.com/ekodi-ai/gatekeeper/internal/storage/memory"
)

// BenchmarkSessionAdd benchmarks registering sessions.
func BenchmarkSessionAdd(b *testing.B) {
	ctx := context.Background()
	reg := service.NewSessionRegistry(memory.NewSessionStore())
	exp := time.Now().Add(time.Hour)

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if err := reg.Add(ctx, userID(i), newSessionID(), exp); err != nil {
			b.Fatalf("Add failed: %v", err)
		}
	}
}

// BenchmarkSessionContains benchmarks the per-request liveness check.
func BenchmarkSessionContains(b *testing.B) {
	for _, count := range SessionCounts {
		b.Run(fmt.Sprintf("sessions_%d", count), func(b *testing.B) {
			ctx := context.Background()
			reg := service.NewSessionRegistry(memory.NewSessionStore())
			ids := prefillSessions(ctx, b, reg, count)

			b.ResetTimer()
			b.ReportAllocs()

			for i := 0; i < b.N; i++ {
				idx := i % count
				ok, err := reg.Contains(ctx, userID(idx), ids[idx])
				if err != nil || !ok {
					b.Fatalf("Contains(%d) = %v, %v", idx, ok, err)
				}
			}

			b.StopTimer()
			reportMemory(b, "registry")
		})
	}
}

// BenchmarkSessionAllCounts benchmarks the admin aggregate.
func BenchmarkSessionAllCounts(b *testing.B) {
	for _, count := range SmallSessionCounts {
		b.Run(fmt.Sprintf("sessions_%d", count), func(b *testing.B) {
			ctx := context.Background()
			reg := service.NewSessionRegistry(memory.NewSessionStore())
			prefillSessions(ctx, b, reg, count)

			b.ResetTimer()
			b.ReportAllocs()

			for i := 0; i < b.N; i++ {
				if _, err := reg.AllCounts(ctx); err != nil {
					b.Fatalf("AllCounts failed: %v", err)
				}
			}
		})
	}
}

// BenchmarkSessionContainsParallel benchmarks concurrent lookups while
// writers keep adding sessions.
func BenchmarkSessionContainsParallel(b *testing.B) {
	ctx := context.Background()
	reg := service.NewSessionRegistry(memory.NewSessionStore())
	ids := prefillSessions(ctx, b, reg, 10000)
	exp := time.Now().Add(time.Hour)

	b.ResetTimer()
	b.ReportAllocs()

	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			if i%10 == 0 {
				_ = reg.Add(ctx, userID(i), newSessionID(), exp)
			} else {
				idx := i % len(ids)
				_, _ = reg.Contains(ctx, userID(idx), ids[idx])
			}
			i++
		}
	})
}
