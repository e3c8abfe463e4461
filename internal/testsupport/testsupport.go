// Package testsupport provides small, deterministic fakes for the engine's
// two abstract capabilities, used by package tests in place of a mock
// framework (the corpus tests this way: a typed test harness, not mocks).
package testsupport

import (
	"context"
	"crypto/sha256"
	"errors"
	"math"
	"sync"

	"github.com/codexfi/memory/internal/capability"
)

// FakeEmbedder deterministically maps text to a unit vector of Dim
// dimensions by hashing the text into a seed and filling+normalizing a
// vector from it. Same text, same role, always the same vector.
type FakeEmbedder struct {
	Dim int

	mu      sync.Mutex
	calls   int
	failNext bool
}

func NewFakeEmbedder(dim int) *FakeEmbedder {
	return &FakeEmbedder{Dim: dim}
}

func (f *FakeEmbedder) Dimension() int { return f.Dim }

// FailNextCall makes the next Embed call return an error, for testing
// failure handling.
func (f *FakeEmbedder) FailNextCall() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failNext = true
}

func (f *FakeEmbedder) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *FakeEmbedder) Embed(ctx context.Context, text string, role capability.Role) ([]float32, error) {
	f.mu.Lock()
	f.calls++
	shouldFail := f.failNext
	f.failNext = false
	f.mu.Unlock()

	if shouldFail {
		return nil, errors.New("fake embedder: simulated failure")
	}

	sum := sha256.Sum256([]byte(string(role) + "|" + text))
	vec := make([]float32, f.Dim)
	for i := 0; i < f.Dim; i++ {
		b := sum[i%len(sum)]
		vec[i] = float32(int(b) - 128)
	}

	var norm float64
	for _, x := range vec {
		norm += float64(x) * float64(x)
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		vec[0] = 1
		return vec, nil
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec, nil
}

// FakeExtractor returns a pre-programmed, caller-controlled list of facts
// for the next Extract call, regardless of the messages passed in. Tests
// queue exactly the facts they want to observe flowing through the engine.
type FakeExtractor struct {
	mu    sync.Mutex
	queue [][]capability.Fact
	err   error
}

func NewFakeExtractor() *FakeExtractor { return &FakeExtractor{} }

// Enqueue queues facts as the result of one future Extract call; queued
// results are returned in FIFO order, one per call.
func (f *FakeExtractor) Enqueue(facts []capability.Fact) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, facts)
}

// FailNext makes the next Extract call return err.
func (f *FakeExtractor) FailNext(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *FakeExtractor) Extract(ctx context.Context, messages []capability.Message, mode capability.Mode) ([]capability.Fact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		err := f.err
		f.err = nil
		return nil, err
	}
	if len(f.queue) == 0 {
		return nil, nil
	}
	next := f.queue[0]
	f.queue = f.queue[1:]
	return next, nil
}
