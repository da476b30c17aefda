package store

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"muxfleet/pkg/types"
)

const todosVersion = 1

type todosDoc struct {
	Version int          `json:"version"`
	Todos   []types.Todo `json:"todos"`
}

// TodoStore owns todos.json: workspace-scoped checklist items.
type TodoStore struct {
	mu   sync.RWMutex
	file *file
	byID map[string]types.Todo
}

// NewTodoStore loads (or initializes) todos.json under baseDir.
func NewTodoStore(baseDir string) (*TodoStore, error) {
	ts := &TodoStore{file: newFile(baseDir, "todos.json"), byID: make(map[string]types.Todo)}
	var doc todosDoc
	ok, err := ts.file.load(todosVersion, nil, &doc)
	if err != nil {
		return nil, err
	}
	if ok {
		for _, td := range doc.Todos {
			ts.byID[td.ID] = td
		}
	} else if err := ts.file.save(todosDoc{Version: todosVersion, Todos: []types.Todo{}}); err != nil {
		return nil, err
	}
	return ts, nil
}

func (ts *TodoStore) snapshotLocked() []types.Todo {
	out := make([]types.Todo, 0, len(ts.byID))
	for _, td := range ts.byID {
		out = append(out, td)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (ts *TodoStore) persistLocked() error {
	return ts.file.save(todosDoc{Version: todosVersion, Todos: ts.snapshotLocked()})
}

// ListByWorkspace returns every todo bound to workspaceID (nil for the
// unbound todos), oldest first.
func (ts *TodoStore) ListByWorkspace(workspaceID *string) []types.Todo {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	var out []types.Todo
	for _, td := range ts.snapshotLocked() {
		if sameWorkspaceID(td.WorkspaceID, workspaceID) {
			out = append(out, td)
		}
	}
	return out
}

func sameWorkspaceID(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Create adds a new todo.
func (ts *TodoStore) Create(workspaceID *string, text string) (types.Todo, error) {
	if text == "" {
		return types.Todo{}, fmt.Errorf("todo text is required")
	}
	ts.mu.Lock()
	defer ts.mu.Unlock()
	now := time.Now().UTC()
	td := types.Todo{ID: uuid.NewString(), WorkspaceID: workspaceID, Text: text, CreatedAt: now, UpdatedAt: now}
	ts.byID[td.ID] = td
	if err := ts.persistLocked(); err != nil {
		delete(ts.byID, td.ID)
		return types.Todo{}, err
	}
	return td, nil
}

// SetCompleted toggles a todo's completed flag.
func (ts *TodoStore) SetCompleted(id string, completed bool) error {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	td, ok := ts.byID[id]
	if !ok {
		return fmt.Errorf("todo %s not found", id)
	}
	prev := td
	td.Completed = completed
	td.UpdatedAt = time.Now().UTC()
	ts.byID[id] = td
	if err := ts.persistLocked(); err != nil {
		ts.byID[id] = prev
		return err
	}
	return nil
}

// Delete removes a todo.
func (ts *TodoStore) Delete(id string) error {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	td, ok := ts.byID[id]
	if !ok {
		return fmt.Errorf("todo %s not found", id)
	}
	delete(ts.byID, id)
	if err := ts.persistLocked(); err != nil {
		ts.byID[id] = td
		return err
	}
	return nil
}
