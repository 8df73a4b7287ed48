package websocket_test

import (
	"github.com/promotion/posecore/internal/storage"
	"github.com/promotion/posecore/internal/storage/websocket"
)

// Compile-time interface check.
var _ storage.Backend = (*websocket.Backend)(nil)
