package store

import "fmt"

// Store composes the five persisted collections behind one constructor so
// the rest of the server holds a single handle.
type Store struct {
	Workspaces *WorkspaceStore
	Bindings   *BindingStore
	Todos      *TodoStore
	Backlog    *BacklogStore
}

// New loads (or initializes) every persisted file under baseDir.
func New(baseDir string) (*Store, error) {
	workspaces, err := NewWorkspaceStore(baseDir)
	if err != nil {
		return nil, fmt.Errorf("loading workspaces: %w", err)
	}
	bindings, err := NewBindingStore(baseDir)
	if err != nil {
		return nil, fmt.Errorf("loading bindings: %w", err)
	}
	todos, err := NewTodoStore(baseDir)
	if err != nil {
		return nil, fmt.Errorf("loading todos: %w", err)
	}
	backlog, err := NewBacklogStore(baseDir)
	if err != nil {
		return nil, fmt.Errorf("loading backlog: %w", err)
	}
	return &Store{Workspaces: workspaces, Bindings: bindings, Todos: todos, Backlog: backlog}, nil
}

// DeleteWorkspace removes a workspace and null-binds every session that
// referenced it. The binding-map write happens first so a crash between
// the two leaves sessions unbound rather than referencing a workspace
// record that no longer exists.
func (s *Store) DeleteWorkspace(id string) error {
	if err := s.Bindings.ClearWorkspace(id); err != nil {
		return fmt.Errorf("clearing workspace bindings: %w", err)
	}
	if err := s.Workspaces.Delete(id); err != nil {
		return fmt.Errorf("deleting workspace: %w", err)
	}
	return nil
}
