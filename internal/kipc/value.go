package kipc

// Wire type tags. These are the q IPC type codes published by KX Systems:
// atoms are the negated vector codes, compound types are non-negative. They
// are an external compatibility contract with the tickerplant and must never
// be changed.
const (
	tagList    int8 = 0
	tagBoolVec int8 = 1
	tagIntVec  int8 = 6
	tagLongVec int8 = 7
	tagRealVec int8 = 8
	tagFltVec  int8 = 9
	tagCharVec int8 = 10
	tagSymVec  int8 = 11

	tagBool   int8 = -1
	tagShort  int8 = -5
	tagInt    int8 = -6
	tagLong   int8 = -7
	tagReal   int8 = -8
	tagFloat  int8 = -9
	tagSymbol int8 = -11

	tagDict int8 = 99
	tagNull int8 = 101 // generic null, ::

	tagError int8 = -128 // error response marker
)

// Value is a q value: an atom, a compound, or the generic null. The publisher
// only ever constructs the variants below; the decoder additionally widens a
// few numeric atom and vector types into them (see codec.go).
type Value interface {
	// kvalue restricts implementations to this package.
	kvalue()
}

// Bool is a boolean atom (type -1).
type Bool bool

// Long is a 64-bit integer atom (type -7), q's default integer.
type Long int64

// Float is a 64-bit float atom (type -9), q's default float.
type Float float64

// Symbol is an interned-string atom (type -11), null-terminated on the wire.
type Symbol string

// String is a char vector (type 10). Distinct from Symbol: it carries a
// length prefix rather than a terminator and is not interned by the server.
type String string

// List is a heterogeneous general list (type 0), used for RPC argument tuples.
type List []Value

// Dict is an ordered dictionary (type 99): a list of keys and a list of
// values of equal length. Insertion order is preserved; keys are unique
// within one dictionary by construction.
type Dict struct {
	Keys []Value
	Vals []Value
}

// Null is the generic null atom (type 101), explicit absence. Distinct from
// an empty List.
type Null struct{}

func (Bool) kvalue()   {}
func (Long) kvalue()   {}
func (Float) kvalue()  {}
func (Symbol) kvalue() {}
func (String) kvalue() {}
func (List) kvalue()   {}
func (Dict) kvalue()   {}
func (Null) kvalue()   {}

// NewDict returns an empty dictionary ready for ordered insertion.
func NewDict() *Dict {
	return &Dict{}
}

// Set appends the pair, replacing the value in place if the key is already
// present so key uniqueness holds. Only atom keys are deduplicated; compound
// keys are always appended.
func (d *Dict) Set(k, v Value) *Dict {
	for i, existing := range d.Keys {
		if sameAtom(existing, k) {
			d.Vals[i] = v
			return d
		}
	}
	d.Keys = append(d.Keys, k)
	d.Vals = append(d.Vals, v)
	return d
}

func sameAtom(a, b Value) bool {
	switch av := a.(type) {
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case Long:
		bv, ok := b.(Long)
		return ok && av == bv
	case Float:
		bv, ok := b.(Float)
		return ok && av == bv
	case Symbol:
		bv, ok := b.(Symbol)
		return ok && av == bv
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	case Null:
		_, ok := b.(Null)
		return ok
	default:
		return false
	}
}

// Len returns the number of pairs.
func (d Dict) Len() int { return len(d.Keys) }
