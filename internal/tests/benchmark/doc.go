// Package benchmark measures the per-request cost gatekeeper adds in front
// of a handler: the admission decision, sliding-window checks, token
// verification against the revocation stores and session membership lookups.
//
// Everything runs against the in-memory stores, so numbers reflect CPU and
// lock contention rather than network round trips.
//
//	go test -run=^$ -bench=. -benchmem ./internal/tests/benchmark
//	go test -run=^$ -bench=BenchmarkTokenVerify -count=10 ./internal/tests/benchmark > new.txt
package benchmark
