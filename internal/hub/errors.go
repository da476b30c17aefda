package hub

import (
	"fmt"

	"muxfleet/internal/muxerrors"
)

func errSessionNotFound(sessionID string) error {
	return fmt.Errorf("%w: %s", muxerrors.ErrSessionNotFound, sessionID)
}
