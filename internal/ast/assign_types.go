package ast

type AssignType int

const (
	// Special / error
	ILLEGAL_ASSIGN AssignType = iota
	ASSIGN
	PLUS_ASSIGN
	MINUS_ASSIGN
	STAR_ASSIGN
	SLASH_ASSIGN
	PERCENT_ASSIGN
)

func (a AssignType) String() string {
	switch a {
	case ASSIGN:
		return "="
	case PLUS_ASSIGN:
		return "+="
	case MINUS_ASSIGN:
		return "-="
	case STAR_ASSIGN:
		return "*="
	case SLASH_ASSIGN:
		return "/="
	case PERCENT_ASSIGN:
		return "%="
	default:
		return "?="
	}
}

// BinaryOp returns the arithmetic operator a compound assignment applies,
// or "" for plain assignment.
func (a AssignType) BinaryOp() string {
	switch a {
	case PLUS_ASSIGN:
		return "+"
	case MINUS_ASSIGN:
		return "-"
	case STAR_ASSIGN:
		return "*"
	case SLASH_ASSIGN:
		return "/"
	case PERCENT_ASSIGN:
		return "%"
	default:
		return ""
	}
}
