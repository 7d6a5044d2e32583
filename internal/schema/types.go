package schema

import (
	"strings"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/paveg/adxql/internal/expression"
)

// PropertyTypeFor maps a CSL type to the builder's property type.
func PropertyTypeFor(cslType string) expression.PropertyType {
	switch strings.ToLower(cslType) {
	case "real", "int", "long":
		return expression.TypeNumber
	case "datetime":
		return expression.TypeDateTime
	case "bool":
		return expression.TypeBoolean
	default:
		return expression.TypeString
	}
}

var clrTypes = map[string]string{
	"bool":     "System.SByte",
	"datetime": "System.DateTime",
	"decimal":  "System.Data.SqlTypes.SqlDecimal",
	"dynamic":  "System.Object",
	"guid":     "System.Guid",
	"int":      "System.Int32",
	"long":     "System.Int64",
	"real":     "System.Double",
	"string":   "System.String",
	"timespan": "System.TimeSpan",
}

// ClrType returns the .NET type name the cluster reports for a CSL type.
func ClrType(cslType string) string {
	if t, ok := clrTypes[strings.ToLower(cslType)]; ok {
		return t
	}
	return "System.Object"
}

// ArrowType maps a CSL type to the Arrow type used for result frames.
func ArrowType(cslType string) arrow.DataType {
	switch strings.ToLower(cslType) {
	case "bool":
		return arrow.FixedWidthTypes.Boolean
	case "int":
		return arrow.PrimitiveTypes.Int32
	case "long":
		return arrow.PrimitiveTypes.Int64
	case "real":
		return arrow.PrimitiveTypes.Float64
	case "datetime":
		return &arrow.TimestampType{Unit: arrow.Nanosecond, TimeZone: "UTC"}
	case "timespan":
		return arrow.FixedWidthTypes.Duration_ns
	default:
		return arrow.BinaryTypes.String
	}
}

// ArrowSchema builds the Arrow schema of a frame holding columns. Every
// field is nullable and records its CSL type in the field metadata.
func ArrowSchema(columns []Column) *arrow.Schema {
	fields := make([]arrow.Field, 0, len(columns))
	for _, c := range columns {
		fields = append(fields, arrow.Field{
			Name:     c.Name,
			Type:     ArrowType(c.CslType),
			Nullable: true,
			Metadata: arrow.NewMetadata([]string{"cslType"}, []string{c.CslType}),
		})
	}
	return arrow.NewSchema(fields, nil)
}
