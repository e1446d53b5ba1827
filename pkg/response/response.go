package response

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Code is the machine-readable error code in an error envelope
type Code string

const (
	CodeValidationError Code = "VALIDATION_ERROR"
	CodeUnauthorized    Code = "UNAUTHORIZED"
	CodeJobNotFound     Code = "JOB_NOT_FOUND"
	CodeRateLimited     Code = "RATE_LIMITED"
	CodeQueueError      Code = "QUEUE_ERROR"
	CodeServiceError    Code = "SERVICE_ERROR"
)

// ErrorResponse is the body of every non-streamed failure
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// RetryDetails tells a throttled caller when to come back
type RetryDetails struct {
	RetryAfterSeconds int `json:"retry_after_seconds"`
}

func Error(c *fiber.Ctx, status int, code Code, message string, details any) error {
	return c.Status(status).JSON(ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

func ValidationError(c *fiber.Ctx, message string, details any) error {
	return Error(c, fiber.StatusBadRequest, CodeValidationError, message, details)
}

func Unauthorized(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusUnauthorized, CodeUnauthorized, message, nil)
}

func JobNotFound(c *fiber.Ctx, jobID string) error {
	return Error(c, fiber.StatusNotFound, CodeJobNotFound, "Job not found", fiber.Map{"job_id": jobID})
}

// RateLimited rejects a throttled request and sets Retry-After. A
// non-positive retryAfter is reported as one second.
func RateLimited(c *fiber.Ctx, retryAfter time.Duration) error {
	secs := int(retryAfter.Round(time.Second).Seconds())
	if secs < 1 {
		secs = 1
	}
	c.Set(fiber.HeaderRetryAfter, strconv.Itoa(secs))
	return Error(c, fiber.StatusTooManyRequests, CodeRateLimited, "Rate limit exceeded", RetryDetails{RetryAfterSeconds: secs})
}

// QueueError reports that a background job could not be enqueued
func QueueError(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusServiceUnavailable, CodeQueueError, message, nil)
}

func ServiceError(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusInternalServerError, CodeServiceError, message, nil)
}

func OK(c *fiber.Ctx, data any) error {
	return c.JSON(data)
}

// Accepted answers a request whose work continues in the background
func Accepted(c *fiber.Ctx, data any) error {
	return c.Status(fiber.StatusAccepted).JSON(data)
}
