package validation

import (
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

var (
	scriptPattern = regexp.MustCompile(`(?i)(<script|<iframe|javascript:|onerror=|onload=|onclick=)`)
	// Mining case numbers look like 800.123/2020 or 800123.
	caseIDPattern = regexp.MustCompile(`^[0-9][0-9./ -]{0,30}$`)
)

type Config struct {
	MaxHolderLength   int
	MaxQuestionLength int
	Logger            *zap.Logger
}

// Middleware validates analyze request payloads before they reach the
// handlers.
func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxHolderLength == 0 {
		cfg.MaxHolderLength = 300
	}
	if cfg.MaxQuestionLength == 0 {
		cfg.MaxQuestionLength = 2000
	}

	return func(c *fiber.Ctx) error {
		if c.Method() != "POST" {
			return c.Next()
		}

		contentType := c.Get("Content-Type")
		if contentType != "" && !strings.Contains(contentType, "application/json") {
			return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
				"error": "Unsupported content type",
			})
		}

		if !strings.Contains(c.Path(), "/api/v1/analyses") {
			return c.Next()
		}

		var req map[string]interface{}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid JSON format",
			})
		}

		caseID, ok := req["case_id"].(string)
		if !ok || caseID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "case_id is required and must be a string",
			})
		}
		if !caseIDPattern.MatchString(caseID) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid case_id format",
			})
		}

		holder, ok := req["holder"].(string)
		if !ok || holder == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "holder is required and must be a string",
			})
		}
		if len(holder) > cfg.MaxHolderLength {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "holder exceeds maximum length",
			})
		}

		if question, ok := req["question"].(string); ok {
			if len(question) > cfg.MaxQuestionLength {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "question exceeds maximum length",
				})
			}
			if scriptPattern.MatchString(question) {
				cfg.Logger.Warn("Potential injection attempt",
					zap.String("ip", c.IP()),
					zap.String("question", question),
				)
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid question content",
				})
			}
		}

		return c.Next()
	}
}
