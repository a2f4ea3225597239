package errors

import "strings"

// Error codes for the Kanso verifier
// These codes are used in diagnostics and documentation
// to provide consistent error identification across the toolchain.
//
// Error code ranges:
// E0100-E0199: Annotation (contract clause) errors
// E0200-E0299: Program IR errors
// E0400-E0499: Storage model errors
// E0600-E0699: Call-graph composition errors
// E0800-E0899: Warning codes

const (
	// Annotation errors (E0100-E0199)

	// E0100: A clause could not be parsed
	ErrorMalformedClause = "E0100"

	// E0101: Reference to an undeclared name
	ErrorUnknownIdentifier = "E0101"

	// E0102: A logical variable is declared twice
	ErrorDuplicateDeclaration = "E0102"

	// E0103: Two update clauses for one storage variable
	ErrorDuplicateUpdateClause = "E0103"

	// E0104: Unrecognised @keyword
	ErrorUnknownClauseKeyword = "E0104"

	// E0105: old(...) or return used where it has no meaning
	ErrorMisplacedSelector = "E0105"

	// Program IR errors (E0200-E0299)

	// E0200: Construct outside the verifiable subset
	ErrorUnsupportedConstruct = "E0200"

	// E0201: Bool used as integer or the reverse
	ErrorSortMismatch = "E0201"

	// E0202: Call to a function that does not exist
	ErrorUnknownCallee = "E0202"

	// E0203: Call with the wrong number of arguments or results
	ErrorArityMismatch = "E0203"

	// E0204: Type name is not a builtin
	ErrorUnknownType = "E0204"

	// Storage errors (E0400-E0499)

	// E0400: Reference to a storage variable not in the layout
	ErrorUnknownStorageVariable = "E0400"

	// E0401: Storage access with the wrong number of keys
	ErrorKeyArityMismatch = "E0401"

	// Composition errors (E0600-E0699)

	// E0600: Recursion in the call graph
	ErrorCyclicCallGraph = "E0600"

	// E0601: A callee failed verification
	ErrorBlockedByCallee = "E0601"

	// Warning codes

	// W0001: Function has no contract and no callers
	WarningUncontractedRoot = "W0001"
)

// GetErrorDescription returns a human-readable description of the error code
func GetErrorDescription(code string) string {
	switch code {
	case ErrorMalformedClause:
		return "Contract clause could not be parsed"
	case ErrorUnknownIdentifier:
		return "Name is used but not declared"
	case ErrorDuplicateDeclaration:
		return "Logical variable is declared more than once"
	case ErrorDuplicateUpdateClause:
		return "Storage variable has more than one update clause"
	case ErrorUnknownClauseKeyword:
		return "Unknown contract clause keyword"
	case ErrorMisplacedSelector:
		return "old() or return used outside a postcondition"
	case ErrorUnsupportedConstruct:
		return "Construct is not supported by the verifier"
	case ErrorSortMismatch:
		return "Boolean and integer expressions are mixed"
	case ErrorUnknownCallee:
		return "Called function is not defined in the contract"
	case ErrorArityMismatch:
		return "Wrong number of arguments or results"
	case ErrorUnknownType:
		return "Type is not a builtin type"
	case ErrorUnknownStorageVariable:
		return "Storage variable is not declared in a #[storage] struct"
	case ErrorKeyArityMismatch:
		return "Storage access uses the wrong number of keys"
	case ErrorCyclicCallGraph:
		return "Recursive call chains cannot be verified modularly"
	case ErrorBlockedByCallee:
		return "A callee failed verification so its contract cannot be assumed"
	case WarningUncontractedRoot:
		return "Function has no contract and is checked against the empty contract"
	default:
		return "Unknown error code"
	}
}

// IsWarning returns true if the error code represents a warning rather than an error
func IsWarning(code string) bool {
	return code >= "E0800" && code < "E0900" || strings.HasPrefix(code, "W")
}

// GetErrorCategory returns the category of the error based on its code
func GetErrorCategory(code string) string {
	switch {
	case code >= "E0100" && code < "E0200":
		return "Annotation"
	case code >= "E0200" && code < "E0300":
		return "Program IR"
	case code >= "E0400" && code < "E0500":
		return "Storage"
	case code >= "E0600" && code < "E0700":
		return "Composition"
	case code >= "E0800" && code < "E0900":
		return "Warning"
	case strings.HasPrefix(code, "W"):
		return "Warning"
	default:
		return "Unknown"
	}
}
