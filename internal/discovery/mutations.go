package discovery

// Mutation operations write through to the persisted binding store and
// then republish the snapshot — the persist-before-notify ordering the
// concurrency model requires. Each returns the persistence error, if any;
// a failed write is never followed by a publish.

// AddManaged marks sessionID as managed, optionally under workspaceID.
func (e *Engine) AddManaged(sessionID string, workspaceID *string) error {
	if err := e.bindings.AddManaged(sessionID, workspaceID); err != nil {
		return err
	}
	e.publish(false)
	return nil
}

// RemoveManaged un-manages sessionID, also clearing it from the hidden set.
func (e *Engine) RemoveManaged(sessionID string) error {
	if err := e.bindings.RemoveManaged(sessionID); err != nil {
		return err
	}
	e.publish(false)
	return nil
}

// SetWorkspace rebinds sessionID to workspaceID (nil to unbind).
func (e *Engine) SetWorkspace(sessionID string, workspaceID *string) error {
	if err := e.bindings.SetWorkspace(sessionID, workspaceID); err != nil {
		return err
	}
	e.publish(false)
	return nil
}

// Hide removes sessionID from the default listing without un-managing it.
func (e *Engine) Hide(sessionID string) error {
	if err := e.bindings.Hide(sessionID); err != nil {
		return err
	}
	e.publish(false)
	return nil
}

// Unhide restores sessionID to the default listing. Used both by the
// explicit unhide operation and by attach-to-hidden-session, which must
// unhide in the same logical step as re-managing the session.
func (e *Engine) Unhide(sessionID string) error {
	if err := e.bindings.Unhide(sessionID); err != nil {
		return err
	}
	e.publish(false)
	return nil
}

// Republish re-sends the current snapshot to every subscriber without
// changing any state. Used after a mutation that writes through the shared
// binding store directly (workspace deletion's cascade) rather than through
// one of this file's own methods.
func (e *Engine) Republish() {
	e.publish(false)
}

// IsManaged reports whether sessionID currently has a binding map entry,
// letting callers (the attach endpoint) decide whether to create a fresh
// binding or merely unhide an existing one without clobbering its
// workspace assignment.
func (e *Engine) IsManaged(sessionID string) bool {
	return e.bindings.IsManaged(sessionID)
}
