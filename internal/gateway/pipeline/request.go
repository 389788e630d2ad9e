package pipeline

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strings"

	"github.com/samber/lo"

	"github.com/mrmushfiq/blinkshot-gateway/internal/shared/models"
)

const (
	MinDimension = 16
	MaxDimension = 1440
	MinSteps     = 1
	MaxSteps     = 10

	DefaultDimension = 512
	DefaultSteps     = 3
)

// Parse decodes and validates a raw request body and returns the normalized
// generation parameters.
func Parse(body []byte) (models.GenerationParams, error) {
	var req models.GenerationRequest
	if len(bytes.TrimSpace(body)) == 0 {
		return models.GenerationParams{}, validationError("request body is required")
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return models.GenerationParams{}, describeDecodeError(err)
	}
	if err := rejectNulls(body); err != nil {
		return models.GenerationParams{}, err
	}
	return Normalize(req)
}

// typedFields are the request fields in reporting order. A literal null is
// not a valid value for any of them, even the optional ones.
var typedFields = []struct{ name, kind string }{
	{"prompt", "string"},
	{"width", "number"},
	{"height", "number"},
	{"steps", "number"},
	{"imageStyle", "string"},
	{"userAPIKey", "string"},
}

// rejectNulls reports the first field sent as an explicit null. Omitting a
// field is fine; encoding/json would otherwise treat both the same.
func rejectNulls(body []byte) *Error {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil
	}
	for _, f := range typedFields {
		for key, value := range raw {
			// Struct decoding matches keys case-insensitively, so this must too.
			if value == nil && strings.EqualFold(key, f.name) {
				return validationError("%s: expected %s, received null", f.name, f.kind)
			}
		}
	}
	return nil
}

// Normalize validates req, applies defaults, snaps dimensions to multiples of
// 16 and folds the style into the prompt.
func Normalize(req models.GenerationRequest) (models.GenerationParams, error) {
	if req.Prompt == nil {
		return models.GenerationParams{}, validationError("prompt: required")
	}
	prompt := *req.Prompt
	if strings.TrimSpace(prompt) == "" {
		return models.GenerationParams{}, validationError("prompt: must not be empty")
	}

	width, err := bounded("width", req.Width, DefaultDimension, MinDimension, MaxDimension)
	if err != nil {
		return models.GenerationParams{}, err
	}
	height, err := bounded("height", req.Height, DefaultDimension, MinDimension, MaxDimension)
	if err != nil {
		return models.GenerationParams{}, err
	}
	steps, err := bounded("steps", req.Steps, DefaultSteps, MinSteps, MaxSteps)
	if err != nil {
		return models.GenerationParams{}, err
	}
	if steps != math.Trunc(steps) {
		return models.GenerationParams{}, validationError("steps: expected integer, received %v", steps)
	}

	if req.ImageStyle != nil && *req.ImageStyle != "" {
		prompt = *req.ImageStyle + " style: " + prompt
	}

	var apiKey string
	if req.UserAPIKey != nil {
		apiKey = strings.TrimSpace(*req.UserAPIKey)
	}

	return models.GenerationParams{
		Prompt: prompt,
		APIKey: apiKey,
		Width:  RoundToNearest16(width),
		Height: RoundToNearest16(height),
		Steps:  int(steps),
	}, nil
}

// RoundToNearest16 rounds half up to the nearest multiple of 16, kept inside
// [MinDimension, MaxDimension].
func RoundToNearest16(value float64) int {
	rounded := int(math.Floor(value/16+0.5)) * 16
	return lo.Clamp(rounded, MinDimension, MaxDimension)
}

func bounded(field string, value *float64, def, low, high float64) (float64, error) {
	if value == nil {
		return def, nil
	}
	v := *value
	if v < low {
		return 0, validationError("%s: must be greater than or equal to %v, received %v", field, low, v)
	}
	if v > high {
		return 0, validationError("%s: must be less than or equal to %v, received %v", field, high, v)
	}
	return v, nil
}

func describeDecodeError(err error) *Error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		if typeErr.Field == "" {
			return validationError("request body must be a JSON object")
		}
		return validationError("%s: expected %s, received %s", typeErr.Field, expectedType(typeErr.Type.Kind().String()), typeErr.Value)
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return validationError("invalid JSON at offset %d: %v", syntaxErr.Offset, syntaxErr)
	}
	return validationError("invalid request body: %v", err)
}

func expectedType(kind string) string {
	switch kind {
	case "float64":
		return "number"
	default:
		return kind
	}
}
