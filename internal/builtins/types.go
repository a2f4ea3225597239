package builtins

import "math/big"

// BuiltinType represents the built-in types in the Kanso language
type BuiltinType string

const (
	// Unsigned integers
	U8   BuiltinType = "U8"
	U16  BuiltinType = "U16"
	U32  BuiltinType = "U32"
	U64  BuiltinType = "U64"
	U128 BuiltinType = "U128"
	U256 BuiltinType = "U256"

	// Signed integers
	I8   BuiltinType = "I8"
	I16  BuiltinType = "I16"
	I32  BuiltinType = "I32"
	I64  BuiltinType = "I64"
	I128 BuiltinType = "I128"
	I256 BuiltinType = "I256"

	// Other primitives
	Bool    BuiltinType = "Bool"
	Address BuiltinType = "Address"

	// Storage map constructor
	Slots BuiltinType = "Slots"
)

var bitWidths = map[BuiltinType]int{
	U8: 8, U16: 16, U32: 32, U64: 64, U128: 128, U256: 256,
	I8: 8, I16: 16, I32: 32, I64: 64, I128: 128, I256: 256,
	Address: 160,
}

// BuiltinTypes contains all valid built-in types
var BuiltinTypes = map[string]bool{
	string(U8):   true,
	string(U16):  true,
	string(U32):  true,
	string(U64):  true,
	string(U128): true,
	string(U256): true,

	string(I8):   true,
	string(I16):  true,
	string(I32):  true,
	string(I64):  true,
	string(I128): true,
	string(I256): true,

	string(Bool):    true,
	string(Address): true,
}

// IsBuiltinType checks if a type name is a built-in type
func IsBuiltinType(typeName string) bool {
	return BuiltinTypes[typeName]
}

// IsIntegerType reports whether values of the type are integers. Address
// counts as an unsigned 160-bit integer.
func IsIntegerType(typeName string) bool {
	_, ok := bitWidths[BuiltinType(typeName)]
	return ok
}

// IsSigned checks if a type is a signed integer type
func IsSigned(typeName string) bool {
	switch BuiltinType(typeName) {
	case I8, I16, I32, I64, I128, I256:
		return true
	default:
		return false
	}
}

// Bits returns the width of an integer type, or 0 for non-integer types.
func Bits(typeName string) int {
	return bitWidths[BuiltinType(typeName)]
}

// Range returns the inclusive bounds of an integer type.
func Range(typeName string) (lo, hi *big.Int, ok bool) {
	bits := Bits(typeName)
	if bits == 0 {
		return nil, nil, false
	}
	one := big.NewInt(1)
	if IsSigned(typeName) {
		half := new(big.Int).Lsh(one, uint(bits-1))
		return new(big.Int).Neg(half), new(big.Int).Sub(half, one), true
	}
	return big.NewInt(0), new(big.Int).Sub(new(big.Int).Lsh(one, uint(bits)), one), true
}
