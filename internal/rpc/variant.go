package rpc

import "fmt"

// Type tags a Variant. Values are wire bytes and must not change.
type Type uint8

const (
	TypeNil     Type = 0
	TypeBool    Type = 1
	TypeInt     Type = 2
	TypeFloat   Type = 3
	TypeString  Type = 4
	TypeVector3 Type = 5
	TypeArray   Type = 6
	TypeDict    Type = 7
)

func (t Type) String() string {
	switch t {
	case TypeNil:
		return "nil"
	case TypeBool:
		return "bool"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeString:
		return "string"
	case TypeVector3:
		return "vector3"
	case TypeArray:
		return "array"
	case TypeDict:
		return "dict"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

type Vector3 struct {
	X, Y, Z float64
}

// DictEntry preserves wire order; the dict payload is a sequence of
// (key, value) pairs, not an unordered map.
type DictEntry struct {
	Key   string
	Value Variant
}

// Variant is one RPC argument. Exactly the field selected by Type is
// meaningful.
type Variant struct {
	Type  Type
	Bool  bool
	Int   int64
	Float float64
	Str   string
	Vec   Vector3
	Array []Variant
	Dict  []DictEntry
}

func Nil() Variant            { return Variant{Type: TypeNil} }
func Bool(b bool) Variant     { return Variant{Type: TypeBool, Bool: b} }
func Int(i int64) Variant     { return Variant{Type: TypeInt, Int: i} }
func Float(f float64) Variant { return Variant{Type: TypeFloat, Float: f} }
func Str(s string) Variant    { return Variant{Type: TypeString, Str: s} }

func Vec3(x, y, z float64) Variant {
	return Variant{Type: TypeVector3, Vec: Vector3{X: x, Y: y, Z: z}}
}

func Array(items ...Variant) Variant { return Variant{Type: TypeArray, Array: items} }

func Dict(entries ...DictEntry) Variant { return Variant{Type: TypeDict, Dict: entries} }

func (v Variant) String() string {
	switch v.Type {
	case TypeNil:
		return "nil"
	case TypeBool:
		return fmt.Sprintf("%t", v.Bool)
	case TypeInt:
		return fmt.Sprintf("%d", v.Int)
	case TypeFloat:
		return fmt.Sprintf("%g", v.Float)
	case TypeString:
		return fmt.Sprintf("%q", v.Str)
	case TypeVector3:
		return fmt.Sprintf("(%g, %g, %g)", v.Vec.X, v.Vec.Y, v.Vec.Z)
	case TypeArray:
		return fmt.Sprintf("array[%d]", len(v.Array))
	case TypeDict:
		return fmt.Sprintf("dict[%d]", len(v.Dict))
	default:
		return v.Type.String()
	}
}
