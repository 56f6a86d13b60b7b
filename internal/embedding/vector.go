package embedding

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Dimensions is the fixed vector length the external provider returns.
// Vectors of any other length are treated as absent.
const Dimensions = 1536

// Valid reports whether a vector is usable: correct length, finite values.
func Valid(vector []float64) bool {
	if len(vector) != Dimensions {
		return false
	}
	for _, value := range vector {
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return false
		}
	}
	return true
}

// Cosine returns the cosine similarity of two vectors, or 0 when either is
// degenerate or the lengths differ.
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// ToLiteral renders a vector as the pgvector text literal "[x,y,...]".
func ToLiteral(vector []float64) (string, error) {
	if len(vector) != Dimensions {
		return "", fmt.Errorf("expected %d dimensions, got %d", Dimensions, len(vector))
	}

	var builder strings.Builder
	builder.Grow(len(vector) * 8)
	builder.WriteByte('[')
	for i, value := range vector {
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return "", fmt.Errorf("vector has non-finite value at index %d", i)
		}
		if i > 0 {
			builder.WriteByte(',')
		}
		builder.WriteString(strconv.FormatFloat(value, 'f', -1, 64))
	}
	builder.WriteByte(']')
	return builder.String(), nil
}

// ParseLiteral parses a pgvector text literal back into a vector. A literal of
// the wrong dimensionality is an error so callers fall back to keyword-only
// scoring.
func ParseLiteral(literal string) ([]float64, error) {
	trimmed := strings.TrimSpace(literal)
	if !strings.HasPrefix(trimmed, "[") || !strings.HasSuffix(trimmed, "]") {
		return nil, fmt.Errorf("malformed vector literal")
	}

	inner := strings.TrimSpace(trimmed[1 : len(trimmed)-1])
	if inner == "" {
		return nil, fmt.Errorf("empty vector literal")
	}

	parts := strings.Split(inner, ",")
	if len(parts) != Dimensions {
		return nil, fmt.Errorf("expected %d dimensions, got %d", Dimensions, len(parts))
	}

	vector := make([]float64, len(parts))
	for i, part := range parts {
		value, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("parse vector component %d: %w", i, err)
		}
		vector[i] = value
	}
	return vector, nil
}
