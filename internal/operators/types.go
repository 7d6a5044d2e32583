package operators

// PropertyType is the value type of a property. Its string form is part of
// the persisted query JSON.
type PropertyType string

const (
	TypeString   PropertyType = "string"
	TypeNumber   PropertyType = "number"
	TypeBoolean  PropertyType = "boolean"
	TypeDateTime PropertyType = "dateTime"
	TypeFunction PropertyType = "function"
	TypeInterval PropertyType = "interval"
	TypeTimeSpan PropertyType = "timeSpan"
)

// AllTypes lists every property type in declaration order.
var AllTypes = []PropertyType{
	TypeString,
	TypeNumber,
	TypeBoolean,
	TypeDateTime,
	TypeFunction,
	TypeInterval,
	TypeTimeSpan,
}

// Valid reports whether t is a known property type.
func (t PropertyType) Valid() bool {
	for _, known := range AllTypes {
		if t == known {
			return true
		}
	}
	return false
}

// IsNumeric reports whether values of t are compared numerically.
func (t PropertyType) IsNumeric() bool {
	switch t {
	case TypeNumber, TypeDateTime, TypeTimeSpan, TypeInterval:
		return true
	default:
		return false
	}
}
