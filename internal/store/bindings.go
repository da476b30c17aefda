package store

import (
	"sync"
)

const (
	bindingsVersion = 1
	hiddenVersion   = 1
)

type bindingsDoc struct {
	Version int               `json:"version"`
	Map     map[string]*string `json:"map"`
}

type hiddenDoc struct {
	Version int      `json:"version"`
	IDs     []string `json:"ids"`
}

// BindingStore owns session-workspaces.json and hidden-sessions.json: the
// binding map (session id -> workspace id or nil, meaning "managed, no
// workspace") and the hidden-session set (a subset of the binding map's
// keys). Both are guarded by one mutex; each operation writes only the
// file it changes, except RemoveManaged, which writes the binding file and
// then (if the session was hidden) the hidden file.
type BindingStore struct {
	mu          sync.RWMutex
	bindingFile *file
	hiddenFile  *file
	binding     map[string]*string
	hidden      map[string]struct{}
}

// NewBindingStore loads (or initializes) both files under baseDir.
func NewBindingStore(baseDir string) (*BindingStore, error) {
	bs := &BindingStore{
		bindingFile: newFile(baseDir, "session-workspaces.json"),
		hiddenFile:  newFile(baseDir, "hidden-sessions.json"),
		binding:     make(map[string]*string),
		hidden:      make(map[string]struct{}),
	}

	var bdoc bindingsDoc
	ok, err := bs.bindingFile.load(bindingsVersion, nil, &bdoc)
	if err != nil {
		return nil, err
	}
	if ok {
		for k, v := range bdoc.Map {
			bs.binding[k] = v
		}
	} else if err := bs.bindingFile.save(bindingsDoc{Version: bindingsVersion, Map: map[string]*string{}}); err != nil {
		return nil, err
	}

	var hdoc hiddenDoc
	ok, err = bs.hiddenFile.load(hiddenVersion, nil, &hdoc)
	if err != nil {
		return nil, err
	}
	if ok {
		for _, id := range hdoc.IDs {
			bs.hidden[id] = struct{}{}
		}
	} else if err := bs.hiddenFile.save(hiddenDoc{Version: hiddenVersion, IDs: []string{}}); err != nil {
		return nil, err
	}

	return bs, nil
}

func (bs *BindingStore) persistBindingLocked() error {
	m := make(map[string]*string, len(bs.binding))
	for k, v := range bs.binding {
		m[k] = v
	}
	return bs.bindingFile.save(bindingsDoc{Version: bindingsVersion, Map: m})
}

func (bs *BindingStore) persistHiddenLocked() error {
	ids := make([]string, 0, len(bs.hidden))
	for id := range bs.hidden {
		ids = append(ids, id)
	}
	return bs.hiddenFile.save(hiddenDoc{Version: hiddenVersion, IDs: ids})
}

// IsManaged reports whether sessionID has a binding map entry.
func (bs *BindingStore) IsManaged(sessionID string) bool {
	bs.mu.RLock()
	defer bs.mu.RUnlock()
	_, ok := bs.binding[sessionID]
	return ok
}

// IsHidden reports whether sessionID is currently in the hidden set.
func (bs *BindingStore) IsHidden(sessionID string) bool {
	bs.mu.RLock()
	defer bs.mu.RUnlock()
	_, ok := bs.hidden[sessionID]
	return ok
}

// WorkspaceOf returns the workspace id bound to sessionID, or nil if
// managed-without-workspace; ok is false if the session is not managed.
func (bs *BindingStore) WorkspaceOf(sessionID string) (workspaceID *string, ok bool) {
	bs.mu.RLock()
	defer bs.mu.RUnlock()
	v, ok := bs.binding[sessionID]
	return v, ok
}

// Snapshot returns a copy of the full binding map and hidden set, for the
// Discovery Engine to join against the session snapshot.
func (bs *BindingStore) Snapshot() (binding map[string]*string, hidden map[string]struct{}) {
	bs.mu.RLock()
	defer bs.mu.RUnlock()
	binding = make(map[string]*string, len(bs.binding))
	for k, v := range bs.binding {
		binding[k] = v
	}
	hidden = make(map[string]struct{}, len(bs.hidden))
	for k := range bs.hidden {
		hidden[k] = struct{}{}
	}
	return binding, hidden
}

// AddManaged adds sessionID to the binding map with an optional workspace.
// addManaged(s); removeManaged(s) must leave the map unchanged, so adding
// an already-managed session simply overwrites its workspace binding.
func (bs *BindingStore) AddManaged(sessionID string, workspaceID *string) error {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	prev, existed := bs.binding[sessionID]
	bs.binding[sessionID] = workspaceID
	if err := bs.persistBindingLocked(); err != nil {
		if existed {
			bs.binding[sessionID] = prev
		} else {
			delete(bs.binding, sessionID)
		}
		return err
	}
	return nil
}

// RemoveManaged deletes sessionID's binding entry and removes it from the
// hidden set, if present.
func (bs *BindingStore) RemoveManaged(sessionID string) error {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	prevBinding, existed := bs.binding[sessionID]
	_, wasHidden := bs.hidden[sessionID]
	delete(bs.binding, sessionID)
	delete(bs.hidden, sessionID)

	if err := bs.persistBindingLocked(); err != nil {
		if existed {
			bs.binding[sessionID] = prevBinding
		}
		return err
	}
	if wasHidden {
		if err := bs.persistHiddenLocked(); err != nil {
			bs.hidden[sessionID] = struct{}{}
			return err
		}
	}
	return nil
}

// SetWorkspace updates sessionID's workspace binding. Calling it twice with
// the same value has the same effect as calling it once.
func (bs *BindingStore) SetWorkspace(sessionID string, workspaceID *string) error {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	prev, existed := bs.binding[sessionID]
	bs.binding[sessionID] = workspaceID
	if err := bs.persistBindingLocked(); err != nil {
		if existed {
			bs.binding[sessionID] = prev
		} else {
			delete(bs.binding, sessionID)
		}
		return err
	}
	return nil
}

// ClearWorkspace sets every binding entry currently pointing at workspaceID
// to nil, used by workspace deletion's cascade.
func (bs *BindingStore) ClearWorkspace(workspaceID string) error {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	type change struct {
		sessionID string
		prev      *string
	}
	var changed []change
	for sessionID, wid := range bs.binding {
		if wid != nil && *wid == workspaceID {
			changed = append(changed, change{sessionID, wid})
			bs.binding[sessionID] = nil
		}
	}
	if len(changed) == 0 {
		return nil
	}
	if err := bs.persistBindingLocked(); err != nil {
		for _, c := range changed {
			bs.binding[c.sessionID] = c.prev
		}
		return err
	}
	return nil
}

// Hide adds sessionID to the hidden set. hide(s); unhide(s) must leave the
// hidden set unchanged.
func (bs *BindingStore) Hide(sessionID string) error {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	if _, ok := bs.hidden[sessionID]; ok {
		return nil
	}
	bs.hidden[sessionID] = struct{}{}
	if err := bs.persistHiddenLocked(); err != nil {
		delete(bs.hidden, sessionID)
		return err
	}
	return nil
}

// Unhide removes sessionID from the hidden set; used both by the explicit
// unhide operation and by attach-to-hidden-session, which must unhide in
// the same operation as re-managing the session.
func (bs *BindingStore) Unhide(sessionID string) error {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	if _, ok := bs.hidden[sessionID]; !ok {
		return nil
	}
	delete(bs.hidden, sessionID)
	if err := bs.persistHiddenLocked(); err != nil {
		bs.hidden[sessionID] = struct{}{}
		return err
	}
	return nil
}
