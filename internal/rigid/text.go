package rigid

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ParseValues reads whitespace-separated floats and requires exactly want of them.
func ParseValues(text string, want int) ([]float64, error) {
	fields := strings.Fields(text)
	if len(fields) != want {
		return nil, malformed("", "expected %d values, got %d", want, len(fields))
	}
	values := make([]float64, len(fields))
	for i, field := range fields {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, malformed("", "value %d (%q) is not a number", i, field)
		}
		values[i] = v
	}
	return values, nil
}

// Parse decodes a 4x4 row-major text matrix. The all-zero matrix parses to
// the sentinel.
func Parse(text string) (Transform, error) {
	values, err := ParseValues(text, 16)
	if err != nil {
		return Sentinel, err
	}
	return FromMatrix(4, 4, values)
}

// ParseCorners decodes a 2x4 row-major block of homogeneous corners.
func ParseCorners(text string) (Corners, error) {
	values, err := ParseValues(text, 8)
	if err != nil {
		return Corners{}, err
	}
	var c Corners
	for i, v := range values {
		c[i/4][i%4] = v
	}
	return c, nil
}

// Format renders t as four text rows using numpy's savetxt float layout.
func Format(t Transform) string {
	return formatRows(t[:], 4)
}

// FormatCorners renders c as two text rows.
func FormatCorners(c Corners) string {
	flat := c.Flat()
	return formatRows(flat[:], 4)
}

func formatRows(values []float64, cols int) string {
	var b strings.Builder
	for i, v := range values {
		if i%cols != 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strconv.FormatFloat(v, 'e', 18, 64))
		if i%cols == cols-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// WithSource annotates a MalformedTransformError with the file or stream it
// came from. Other errors are wrapped with the source as context.
func WithSource(err error, source string) error {
	if err == nil {
		return nil
	}
	var m *MalformedTransformError
	if errors.As(err, &m) {
		clone := *m
		clone.Source = source
		return &clone
	}
	return fmt.Errorf("%s: %w", source, err)
}
