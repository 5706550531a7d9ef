package datagen

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Supplier produces one value per generation iteration.
type Supplier interface {
	Next(ctx context.Context, iteration int) (any, error)
}

// SupplierFunc adapts a function to Supplier.
type SupplierFunc func(ctx context.Context, iteration int) (any, error)

func (f SupplierFunc) Next(ctx context.Context, iteration int) (any, error) {
	return f(ctx, iteration)
}

// Stringify renders a generated or configured value as text. Lists render as
// "[a, b]" so an empty list becomes "[]".
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case []any:
		parts := make([]string, len(t))
		for i, item := range t {
			parts[i] = Stringify(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case []string:
		return "[" + strings.Join(t, ", ") + "]"
	default:
		return fmt.Sprint(t)
	}
}
