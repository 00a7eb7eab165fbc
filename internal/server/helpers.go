package server

import (
	"strconv"
	"strings"
	"unicode"

	"opinara/internal/models"

	"github.com/gofiber/fiber/v2"
)

// parseID extracts a route parameter by name as a positive uint.
// The error message is derived from the parameter name (e.g. "id" -> "Invalid ID",
// "commentId" -> "Invalid comment ID").
func parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(param), 10, 32)
	if err != nil || id == 0 {
		return 0, models.NewValidationError("Invalid " + humanizeParam(param))
	}
	return uint(id), nil
}

// humanizeParam converts a route param name into a human-readable label.
func humanizeParam(param string) string {
	if param == "id" {
		return "ID"
	}
	if strings.HasSuffix(param, "Id") {
		return strings.ToLower(strings.Join(splitCamel(param[:len(param)-2]), " ")) + " ID"
	}
	return param
}

// splitCamel splits a camelCase string into words.
func splitCamel(s string) []string {
	var words []string
	start := 0
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) {
			words = append(words, s[start:i])
			start = i
		}
	}
	return append(words, s[start:])
}

// positiveQueryInt reads an optional positive integer query parameter. An
// absent parameter yields 0, which services treat as "use the default".
// Present but non-numeric or non-positive values are rejected.
func positiveQueryInt(c *fiber.Ctx, name string) (int, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, models.NewValidationError(name + " must be a positive integer")
	}
	return n, nil
}

// currentUserID returns the authenticated caller stored by AuthRequired.
func currentUserID(c *fiber.Ctx) (uint, error) {
	userID, ok := c.Locals("userID").(uint)
	if !ok || userID == 0 {
		return 0, models.NewUnauthorizedError("Authorization required")
	}
	return userID, nil
}

// parseBody decodes a JSON request body, mapping decode failures to a
// validation error.
func parseBody(c *fiber.Ctx, dest any) error {
	if err := c.BodyParser(dest); err != nil {
		return models.NewValidationError("Invalid request body")
	}
	return nil
}
