package media

import (
	"context"
	"log"
	"path"
	"sync"
	"time"

	"labsite/internal/simulation"
)

const defaultArchiveTimeout = 30 * time.Second

// FrameKey is where the final frame of a simulation task is archived.
func FrameKey(taskID string) string {
	return path.Join("simulations", taskID, "latest.png")
}

// FrameArchive uploads the last frame of every finished simulation.
// Observe is meant to be passed to simulation.WithObserver.
type FrameArchive struct {
	store   Store
	timeout time.Duration

	wg   sync.WaitGroup
	mu   sync.Mutex
	urls map[string]string
}

func NewFrameArchive(store Store, timeout time.Duration) *FrameArchive {
	if timeout <= 0 {
		timeout = defaultArchiveTimeout
	}
	return &FrameArchive{store: store, timeout: timeout, urls: make(map[string]string)}
}

func (a *FrameArchive) Observe(evt simulation.Event) {
	if a == nil || a.store == nil {
		return
	}
	if evt.Kind != simulation.EventStatus || !evt.Snapshot.Status.Terminal() {
		return
	}
	snap := evt.Snapshot
	if snap.TaskID == "" || snap.LatestFrame == "" {
		return
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.archive(snap)
	}()
}

func (a *FrameArchive) archive(snap simulation.Snapshot) {
	png, err := simulation.DecodeFrame(snap.LatestFrame)
	if err != nil {
		log.Printf("media: frame archive skipped task_id=%s err=%v", snap.TaskID, err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	url, err := a.store.Put(ctx, FrameKey(snap.TaskID), "image/png", png)
	if err != nil {
		log.Printf("media: frame archive failed task_id=%s status=%s err=%v", snap.TaskID, snap.Status, err)
		return
	}
	a.mu.Lock()
	a.urls[snap.TaskID] = url
	a.mu.Unlock()
	log.Printf("media: frame archived task_id=%s status=%s bytes=%d", snap.TaskID, snap.Status, len(png))
}

// URL returns the archived frame address for taskID, if any.
func (a *FrameArchive) URL(taskID string) (string, bool) {
	if a == nil {
		return "", false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	u, ok := a.urls[taskID]
	return u, ok
}

// Flush waits for pending uploads.
func (a *FrameArchive) Flush() {
	if a == nil {
		return
	}
	a.wg.Wait()
}
