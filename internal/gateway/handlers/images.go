package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/mrmushfiq/blinkshot-gateway/internal/gateway/pipeline"
	"github.com/mrmushfiq/blinkshot-gateway/internal/shared/models"
)

const maxBodyBytes = 1 << 20

// Generator runs a raw generation request through admission and dispatch.
type Generator interface {
	Handle(ctx context.Context, body []byte, identity string) (*pipeline.Result, error)
}

type ImageHandler struct {
	generator Generator
}

func NewImageHandler(generator Generator) *ImageHandler {
	return &ImageHandler{generator: generator}
}

// HandleGenerateImages handles POST /generateImages
func (h *ImageHandler) HandleGenerateImages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSONError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeJSONError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	identity := ClientIdentity(r)
	ctx = zerolog.Ctx(ctx).With().Str("identity", identity).Logger().WithContext(ctx)

	res, err := h.generator.Handle(ctx, body, identity)
	if err != nil {
		writePipelineError(w, err)
		return
	}

	if res.Quota != nil {
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", res.Quota.Limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", res.Quota.Remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", res.Quota.Reset.UnixMilli()))
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Latency-Ms", fmt.Sprintf("%d", res.LatencyMs))
	w.WriteHeader(http.StatusOK)
	w.Write(res.Image)
}

// HandleImageStyles handles GET /imageStyles
func (h *ImageHandler) HandleImageStyles(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(models.ImageStyles)
}

func writePipelineError(w http.ResponseWriter, err error) {
	var pe *pipeline.Error
	if !errors.As(err, &pe) {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	switch pe.Kind {
	case pipeline.KindForbidden:
		writeText(w, pe.StatusCode, pe.Message())
	case pipeline.KindRateLimited:
		if pe.RetryAfter > 0 {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(math.Ceil(pe.RetryAfter.Seconds()))))
		}
		writeText(w, pe.StatusCode, pe.Message())
	default:
		writeJSONError(w, pe.StatusCode, pe.Message())
	}
}

func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	io.WriteString(w, msg)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
