package store

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"muxfleet/pkg/types"
)

const workspacesVersion = 1

type workspacesDoc struct {
	Version    int              `json:"version"`
	Workspaces []types.Workspace `json:"workspaces"`
}

// WorkspaceStore owns workspaces.json: in-memory state guarded by a mutex,
// synchronously persisted on every mutation before the caller is returned
// to, matching the spec's "mutations are persisted synchronously before
// notifying" rule.
type WorkspaceStore struct {
	mu    sync.RWMutex
	file  *file
	byID  map[string]types.Workspace
}

// NewWorkspaceStore loads (or initializes) workspaces.json under baseDir.
func NewWorkspaceStore(baseDir string) (*WorkspaceStore, error) {
	ws := &WorkspaceStore{
		file: newFile(baseDir, "workspaces.json"),
		byID: make(map[string]types.Workspace),
	}
	var doc workspacesDoc
	ok, err := ws.file.load(workspacesVersion, nil, &doc)
	if err != nil {
		return nil, err
	}
	if ok {
		for _, w := range doc.Workspaces {
			ws.byID[w.ID] = w
		}
	} else {
		if err := ws.file.save(workspacesDoc{Version: workspacesVersion, Workspaces: []types.Workspace{}}); err != nil {
			return nil, err
		}
	}
	return ws, nil
}

func (ws *WorkspaceStore) snapshotLocked() []types.Workspace {
	out := make([]types.Workspace, 0, len(ws.byID))
	for _, w := range ws.byID {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (ws *WorkspaceStore) persistLocked() error {
	return ws.file.save(workspacesDoc{Version: workspacesVersion, Workspaces: ws.snapshotLocked()})
}

// List returns every workspace, oldest first.
func (ws *WorkspaceStore) List() []types.Workspace {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return ws.snapshotLocked()
}

// Get returns a single workspace by id.
func (ws *WorkspaceStore) Get(id string) (types.Workspace, bool) {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	w, ok := ws.byID[id]
	return w, ok
}

// Create validates and persists a new workspace.
func (ws *WorkspaceStore) Create(name, description string) (types.Workspace, error) {
	if name == "" {
		return types.Workspace{}, fmt.Errorf("workspace name is required")
	}
	if len([]rune(name)) > types.MaxWorkspaceNameLen {
		return types.Workspace{}, fmt.Errorf("workspace name exceeds %d characters", types.MaxWorkspaceNameLen)
	}

	ws.mu.Lock()
	defer ws.mu.Unlock()

	now := time.Now().UTC()
	w := types.Workspace{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	ws.byID[w.ID] = w
	if err := ws.persistLocked(); err != nil {
		delete(ws.byID, w.ID)
		return types.Workspace{}, err
	}
	return w, nil
}

// Update changes a workspace's name/description/hidden flag.
func (ws *WorkspaceStore) Update(id string, name, description *string, hidden *bool) (types.Workspace, error) {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	w, ok := ws.byID[id]
	if !ok {
		return types.Workspace{}, fmt.Errorf("workspace %s not found", id)
	}
	prev := w
	if name != nil {
		if *name == "" {
			return types.Workspace{}, fmt.Errorf("workspace name is required")
		}
		if len([]rune(*name)) > types.MaxWorkspaceNameLen {
			return types.Workspace{}, fmt.Errorf("workspace name exceeds %d characters", types.MaxWorkspaceNameLen)
		}
		w.Name = *name
	}
	if description != nil {
		w.Description = *description
	}
	if hidden != nil {
		w.Hidden = *hidden
	}
	w.UpdatedAt = time.Now().UTC()
	ws.byID[id] = w
	if err := ws.persistLocked(); err != nil {
		ws.byID[id] = prev
		return types.Workspace{}, err
	}
	return w, nil
}

// Delete removes a workspace record only. Store.DeleteWorkspace null-binds
// the affected sessions in the binding store first and then calls this; the
// two are separate file writes.
func (ws *WorkspaceStore) Delete(id string) error {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	w, ok := ws.byID[id]
	if !ok {
		return fmt.Errorf("workspace %s not found", id)
	}
	delete(ws.byID, id)
	if err := ws.persistLocked(); err != nil {
		ws.byID[id] = w
		return err
	}
	return nil
}
