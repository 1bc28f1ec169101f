// Package watcher implements the variable registry and the typed
// watched-variable cells of the Watcher Manager (spec §4). The Manager that
// wires the frame buffer, stream/log state machine, monitor throttler,
// cross-thread command pipe and control codec together around a single
// shared clock lives in the manager subpackage.
package watcher

import (
	"github.com/BelaPlatform/watcher-go/internal/watcher/wtype"
)

// Re-exported so callers of this package don't need a second import for the
// value vocabulary every other watcher subpackage already depends on.
type ValueType = wtype.ValueType
type TimestampMode = wtype.TimestampMode
type Handle = wtype.Handle

const (
	TypeChar    = wtype.TypeChar
	TypeUint32  = wtype.TypeUint32
	TypeInt32   = wtype.TypeInt32
	TypeFloat32 = wtype.TypeFloat32
	TypeFloat64 = wtype.TypeFloat64

	TimestampBlock  = wtype.TimestampBlock
	TimestampSample = wtype.TimestampSample
)
