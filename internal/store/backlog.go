package store

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"muxfleet/pkg/types"
)

const backlogVersion = 1

type backlogDoc struct {
	Version int                 `json:"version"`
	Items   []types.BacklogItem `json:"items"`
}

// BacklogStore owns backlog.json: global, un-workspaced planning items.
type BacklogStore struct {
	mu   sync.RWMutex
	file *file
	byID map[string]types.BacklogItem
}

// NewBacklogStore loads (or initializes) backlog.json under baseDir.
func NewBacklogStore(baseDir string) (*BacklogStore, error) {
	bs := &BacklogStore{file: newFile(baseDir, "backlog.json"), byID: make(map[string]types.BacklogItem)}
	var doc backlogDoc
	ok, err := bs.file.load(backlogVersion, nil, &doc)
	if err != nil {
		return nil, err
	}
	if ok {
		for _, it := range doc.Items {
			bs.byID[it.ID] = it
		}
	} else if err := bs.file.save(backlogDoc{Version: backlogVersion, Items: []types.BacklogItem{}}); err != nil {
		return nil, err
	}
	return bs, nil
}

func (bs *BacklogStore) snapshotLocked() []types.BacklogItem {
	out := make([]types.BacklogItem, 0, len(bs.byID))
	for _, it := range bs.byID {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (bs *BacklogStore) persistLocked() error {
	return bs.file.save(backlogDoc{Version: backlogVersion, Items: bs.snapshotLocked()})
}

// List returns every backlog item, oldest first.
func (bs *BacklogStore) List() []types.BacklogItem {
	bs.mu.RLock()
	defer bs.mu.RUnlock()
	return bs.snapshotLocked()
}

// Create adds a new backlog item.
func (bs *BacklogStore) Create(kind, title, description, priority string) (types.BacklogItem, error) {
	if title == "" {
		return types.BacklogItem{}, fmt.Errorf("backlog item title is required")
	}
	bs.mu.Lock()
	defer bs.mu.Unlock()
	now := time.Now().UTC()
	it := types.BacklogItem{
		ID: uuid.NewString(), Type: kind, Title: title, Description: description,
		Priority: priority, Status: "open", CreatedAt: now, UpdatedAt: now,
	}
	bs.byID[it.ID] = it
	if err := bs.persistLocked(); err != nil {
		delete(bs.byID, it.ID)
		return types.BacklogItem{}, err
	}
	return it, nil
}

// SetStatus updates a backlog item's status.
func (bs *BacklogStore) SetStatus(id, status string) error {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	it, ok := bs.byID[id]
	if !ok {
		return fmt.Errorf("backlog item %s not found", id)
	}
	prev := it
	it.Status = status
	it.UpdatedAt = time.Now().UTC()
	bs.byID[id] = it
	if err := bs.persistLocked(); err != nil {
		bs.byID[id] = prev
		return err
	}
	return nil
}

// Delete removes a backlog item.
func (bs *BacklogStore) Delete(id string) error {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	it, ok := bs.byID[id]
	if !ok {
		return fmt.Errorf("backlog item %s not found", id)
	}
	delete(bs.byID, id)
	if err := bs.persistLocked(); err != nil {
		bs.byID[id] = it
		return err
	}
	return nil
}
