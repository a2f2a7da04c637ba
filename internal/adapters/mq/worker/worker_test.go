package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	queue "github.com/okian/sumcheck/internal/adapters/mq/queue"
	worker "github.com/okian/sumcheck/internal/adapters/mq/worker"
	model "github.com/okian/sumcheck/internal/domain/model"
	logging "github.com/okian/sumcheck/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

type mockQueue struct {
	items chan queue.Item
	once  sync.Once
}

func newMockQueue() *mockQueue {
	return &mockQueue{items: make(chan queue.Item, 16)}
}

func (mq *mockQueue) Dequeue(_ context.Context) <-chan queue.Item {
	return mq.items
}

func (mq *mockQueue) Close() error {
	mq.once.Do(func() { close(mq.items) })
	return nil
}

func (mq *mockQueue) add(id string) {
	mq.items <- queue.Item{
		Analysis:   model.Analysis{ID: id, UserID: "user-1", Score: 50},
		EnqueuedAt: time.Now(),
	}
}

// mockSaver fails the first failures[id] attempts for an id.
type mockSaver struct {
	mu       sync.Mutex
	saved    map[string]model.Analysis
	attempts map[string]int
	failures map[string]int
	delay    time.Duration
}

func newMockSaver() *mockSaver {
	return &mockSaver{
		saved:    make(map[string]model.Analysis),
		attempts: make(map[string]int),
		failures: make(map[string]int),
	}
}

func (ms *mockSaver) SaveAnalysis(_ context.Context, a model.Analysis) error { //nolint:gocritic // hugeParam: matches Saver
	if ms.delay > 0 {
		time.Sleep(ms.delay)
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ms.attempts[a.ID]++
	if ms.attempts[a.ID] <= ms.failures[a.ID] {
		return errors.New("database is locked")
	}
	ms.saved[a.ID] = a
	return nil
}

func (ms *mockSaver) failFirst(id string, n int) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.failures[id] = n
}

func (ms *mockSaver) has(id string) bool {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	_, ok := ms.saved[id]
	return ok
}

func (ms *mockSaver) count() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return len(ms.saved)
}

func (ms *mockSaver) attemptsFor(id string) int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.attempts[id]
}

// eventually polls cond until it holds or the deadline passes.
func eventually(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a new InMemoryWorker", t, func() {
		_ = logging.Init()

		q := newMockQueue()
		saver := newMockSaver()

		convey.Convey("When creating a worker with options", func() {
			w := worker.NewInMemoryWorker(q, saver, worker.WithName("test-worker"), worker.WithRetries(1, time.Millisecond))

			convey.Convey("Then it should be created successfully", func() {
				convey.So(w, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When running a worker", func() {
			w := worker.NewInMemoryWorker(q, saver, worker.WithRetries(2, time.Millisecond))
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			go w.Run(ctx)

			convey.Convey("And an analysis is queued", func() {
				q.add("a-1")

				convey.Convey("Then it is persisted", func() {
					convey.So(eventually(func() bool { return saver.has("a-1") }), convey.ShouldBeTrue)
				})
			})

			convey.Convey("And the store fails transiently", func() {
				saver.failFirst("a-2", 2)
				q.add("a-2")

				convey.Convey("Then the save is retried until it succeeds", func() {
					convey.So(eventually(func() bool { return saver.has("a-2") }), convey.ShouldBeTrue)
					convey.So(saver.attemptsFor("a-2"), convey.ShouldEqual, 3)
				})
			})

			convey.Convey("And the store keeps failing", func() {
				saver.failFirst("a-3", 10)
				q.add("a-3")
				q.add("a-4")

				convey.Convey("Then the item is dropped after the retries and the loop moves on", func() {
					convey.So(eventually(func() bool { return saver.has("a-4") }), convey.ShouldBeTrue)
					convey.So(saver.has("a-3"), convey.ShouldBeFalse)
					convey.So(saver.attemptsFor("a-3"), convey.ShouldEqual, 3)
				})
			})

			convey.Convey("And when shutting down", func() {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
				defer shutdownCancel()

				err := w.Shutdown(shutdownCtx)

				convey.Convey("Then it should shutdown gracefully", func() {
					convey.So(err, convey.ShouldBeNil)
				})
			})
		})

		convey.Convey("When context is cancelled", func() {
			w := worker.NewInMemoryWorker(q, saver)
			ctx, cancel := context.WithCancel(context.Background())
			go w.Run(ctx)
			cancel()

			convey.Convey("Then the worker stops and shutdown returns at once", func() {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
				defer shutdownCancel()
				convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
			})
		})

		convey.Convey("When the worker never started", func() {
			w := worker.NewInMemoryWorker(q, saver)

			convey.Convey("Then shutdown times out", func() {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
				defer shutdownCancel()
				err := w.Shutdown(shutdownCtx)
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, context.DeadlineExceeded), convey.ShouldBeTrue)
			})
		})
	})
}

func TestWorkerPool(t *testing.T) {
	convey.Convey("Given a new worker pool", t, func() {
		_ = logging.Init()

		q := newMockQueue()
		saver := newMockSaver()

		convey.Convey("When creating a pool with a zero count", func() {
			pool := worker.NewPool(0, q, saver)

			convey.Convey("Then it has one worker", func() {
				convey.So(pool.Size(), convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When starting a pool", func() {
			pool := worker.NewPool(2, q, saver)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			pool.Start(ctx)

			convey.Convey("And processing multiple analyses", func() {
				for i := 0; i < 3; i++ {
					q.add(fmt.Sprintf("a-%d", i))
				}

				convey.Convey("Then all are persisted", func() {
					convey.So(eventually(func() bool { return saver.count() == 3 }), convey.ShouldBeTrue)
					convey.So(eventually(func() bool { return pool.Processed() == 3 }), convey.ShouldBeTrue)
					convey.So(pool.Failed(), convey.ShouldEqual, 0)
				})
			})

			convey.Convey("And when shutting down", func() {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
				defer shutdownCancel()

				err := pool.Shutdown(shutdownCtx)

				convey.Convey("Then it should shutdown gracefully", func() {
					convey.So(err, convey.ShouldBeNil)
				})
			})
		})

		convey.Convey("When stopping a pool", func() {
			pool := worker.NewPool(2, q, saver)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			pool.Start(ctx)
			pool.Stop()

			convey.Convey("Then later items are not persisted", func() {
				q.add("late")
				time.Sleep(30 * time.Millisecond)
				convey.So(saver.has("late"), convey.ShouldBeFalse)
			})
		})
	})
}

func TestWorkerPoolDrain(t *testing.T) {
	convey.Convey("Given a pool reading from a real queue", t, func() {
		_ = logging.Init()

		q := queue.NewInMemoryQueue(queue.WithCapacity(64))
		saver := newMockSaver()
		saver.delay = time.Millisecond
		pool := worker.NewPool(3, q, saver)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		pool.Start(ctx)

		for i := 0; i < 50; i++ {
			convey.So(q.Enqueue(ctx, model.Analysis{ID: fmt.Sprintf("a-%d", i)}), convey.ShouldBeNil)
		}

		convey.Convey("When the pool shuts down", func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			err := pool.Shutdown(shutdownCtx)

			convey.Convey("Then everything queued before shutdown is persisted", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(saver.count(), convey.ShouldEqual, 50)
				convey.So(pool.Processed(), convey.ShouldEqual, 50)
				convey.So(errors.Is(q.Enqueue(ctx, model.Analysis{ID: "late"}), queue.ErrClosed), convey.ShouldBeTrue)
			})
		})
	})
}

func TestWorkerConcurrency(t *testing.T) {
	convey.Convey("Given a pool with multiple workers", t, func() {
		_ = logging.Init()

		q := newMockQueue()
		saver := newMockSaver()
		pool := worker.NewPool(4, q, saver, worker.WithRetries(0, time.Millisecond))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		pool.Start(ctx)

		convey.Convey("When some saves fail permanently", func() {
			var wg sync.WaitGroup
			for i := 0; i < 4; i++ {
				wg.Add(1)
				go func(g int) {
					defer wg.Done()
					for j := 0; j < 3; j++ {
						id := fmt.Sprintf("g%d-%d", g, j)
						if j == 0 {
							saver.failFirst(id, 1)
						}
						q.add(id)
					}
				}(i)
			}
			wg.Wait()

			convey.Convey("Then the counters add up", func() {
				convey.So(eventually(func() bool { return pool.Processed()+pool.Failed() == 12 }), convey.ShouldBeTrue)
				convey.So(pool.Failed(), convey.ShouldEqual, 4)
				convey.So(saver.count(), convey.ShouldEqual, 8)
			})
		})
	})
}
