package newsletter

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// normalizeEmail trims and lowercases an address and checks its syntax.
func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", invalid("email", "is required")
	}
	if err := validate.Var(email, "email,max=254"); err != nil {
		return "", invalid("email", "is not a valid address")
	}
	return email, nil
}

func chunk[T any](items []T, size int) [][]T {
	if size <= 0 || len(items) == 0 {
		return nil
	}
	out := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		out = append(out, items[start:end])
	}
	return out
}
