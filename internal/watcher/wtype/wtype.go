// Package wtype holds the value/timestamp-mode vocabulary shared by every
// watcher subpackage that needs it (frame, pipe, control, inbound, manager)
// so none of them need to import the top-level watcher package and risk an
// import cycle.
package wtype

import (
	"fmt"
	"math"
)

// ValueType is the closed set of element types a watched variable may hold.
// Per the design note on tagged variants, the storage cell behind a variable
// is not generic: the type is immutable once a variable is registered, so
// switching on the ValueType tag (Size, BitsOf, ValueOf) is enough to keep
// the notify path free of per-instantiation code. watcher.Var[T] is only a
// thin typed accessor over that untyped cell.
type ValueType uint8

const (
	TypeChar ValueType = iota
	TypeUint32
	TypeInt32
	TypeFloat32
	TypeFloat64
)

// Size returns the wire size, in bytes, of one value of this type.
func (t ValueType) Size() int {
	switch t {
	case TypeChar:
		return 1
	case TypeUint32, TypeInt32, TypeFloat32:
		return 4
	case TypeFloat64:
		return 8
	default:
		return 0
	}
}

// IsInteger reports whether setMask is defined for this type.
func (t ValueType) IsInteger() bool {
	switch t {
	case TypeChar, TypeUint32, TypeInt32:
		return true
	default:
		return false
	}
}

func (t ValueType) String() string {
	switch t {
	case TypeChar:
		return "char"
	case TypeUint32:
		return "uint32"
	case TypeInt32:
		return "int32"
	case TypeFloat32:
		return "float32"
	case TypeFloat64:
		return "float64"
	default:
		return fmt.Sprintf("ValueType(%d)", uint8(t))
	}
}

// ParseValueType maps a type name (as used on the wire / in the control
// protocol) back to its ValueType. ok is false for unrecognised names.
func ParseValueType(name string) (ValueType, bool) {
	switch name {
	case "char":
		return TypeChar, true
	case "uint32":
		return TypeUint32, true
	case "int32":
		return TypeInt32, true
	case "float32":
		return TypeFloat32, true
	case "float64":
		return TypeFloat64, true
	default:
		return 0, false
	}
}

// TimestampMode is fixed per variable at registration (spec §3).
type TimestampMode uint8

const (
	// TimestampBlock: one absolute timestamp per frame.
	TimestampBlock TimestampMode = iota
	// TimestampSample: one relative timestamp per sample, trailing the value array.
	TimestampSample
)

func (m TimestampMode) String() string {
	if m == TimestampSample {
		return "sample"
	}
	return "block"
}

// Handle is an opaque, stable reference to a registered variable. It is
// small and comparable so it can be used as a map key or passed across the
// command pipe without allocation.
type Handle struct {
	id uint32
}

// NewHandle wraps a registry-assigned id. Only the registry should call this.
func NewHandle(id uint32) Handle { return Handle{id: id} }

// ID returns the underlying small integer, also used as the transport buffer id.
func (h Handle) ID() uint32 { return h.id }

// Valid reports whether h carries a registry-assigned (non-zero) id. It does
// not check whether that variable is still registered.
func (h Handle) Valid() bool { return h.id != 0 }

func (h Handle) String() string { return fmt.Sprintf("handle(%d)", h.id) }

// BitsOf packs a typed value into a uint64 so the cell can hold any
// supported scalar behind a single atomic word (spec §5: remote-value reads
// and writes are word-sized).
func BitsOf(t ValueType, v float64) uint64 {
	switch t {
	case TypeChar:
		return uint64(uint8(int8(v)))
	case TypeUint32:
		return uint64(uint32(v))
	case TypeInt32:
		return uint64(uint32(int32(v)))
	case TypeFloat32:
		return uint64(math.Float32bits(float32(v)))
	case TypeFloat64:
		return math.Float64bits(v)
	default:
		return 0
	}
}

// ValueOf unpacks a uint64 cell back into a float64, the lingua franca used
// by the control protocol's numeric set/list commands.
func ValueOf(t ValueType, bits uint64) float64 {
	switch t {
	case TypeChar:
		return float64(int8(uint8(bits)))
	case TypeUint32:
		return float64(uint32(bits))
	case TypeInt32:
		return float64(int32(uint32(bits)))
	case TypeFloat32:
		return float64(math.Float32frombits(uint32(bits)))
	case TypeFloat64:
		return math.Float64frombits(bits)
	default:
		return 0
	}
}
