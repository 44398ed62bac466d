package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/FranksOps/shopscrape/internal/product"
)

const maxBodyBytes = 1 << 20

// ScrapeRequest is the body of POST /api/scrape.
type ScrapeRequest struct {
	URL    string `json:"url" validate:"required,max=2048"`
	Source string `json:"source,omitempty" validate:"omitempty,max=64"`
}

// BatchRequest is the body of POST /api/scrape/batch.
type BatchRequest struct {
	URLs []string `json:"urls" validate:"required,dive,required,max=2048"`
}

type handlers struct {
	scraper      Scraper
	sources      []product.SourceID
	validate     *validator.Validate
	logger       *slog.Logger
	maxBatchSize int
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "ok"})
}

func (h *handlers) listSources(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string][]product.SourceID{"sources": h.sources})
}

func (h *handlers) scrape(w http.ResponseWriter, r *http.Request) {
	log := h.logger.With("op", "api.scrape", "request_id", middleware.GetReqID(r.Context()))

	var req ScrapeRequest
	if !h.decode(w, r, log, &req) {
		return
	}

	res := h.scraper.ScrapeProduct(r.Context(), product.Request{
		URL:    strings.TrimSpace(req.URL),
		Source: product.SourceID(strings.ToLower(strings.TrimSpace(req.Source))),
	})
	render.JSON(w, r, res)
}

func (h *handlers) scrapeBatch(w http.ResponseWriter, r *http.Request) {
	log := h.logger.With("op", "api.scrapeBatch", "request_id", middleware.GetReqID(r.Context()))

	var req BatchRequest
	if !h.decode(w, r, log, &req) {
		return
	}
	if len(req.URLs) > h.maxBatchSize {
		log.Warn("batch too large", "size", len(req.URLs), "max", h.maxBatchSize)
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, product.Failed(fmt.Sprintf("Batch too large: %d urls, at most %d allowed", len(req.URLs), h.maxBatchSize)))
		return
	}

	urls := make([]string, len(req.URLs))
	for i, u := range req.URLs {
		urls[i] = strings.TrimSpace(u)
	}
	log.Info("batch accepted", "size", len(urls))

	render.JSON(w, r, h.scraper.ScrapeMultipleProducts(r.Context(), urls))
}

// decode reads and validates a JSON body. On failure it writes a 400 and
// returns false.
func (h *handlers) decode(w http.ResponseWriter, r *http.Request, log *slog.Logger, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := render.DecodeJSON(r.Body, v); err != nil {
		log.Error("failed to decode request body", "err", err)
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, product.Failed("Failed to decode request"))
		return false
	}

	if err := h.validate.Struct(v); err != nil {
		log.Error("invalid request", "err", err)
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, product.Failed(validationMessage(err)))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "Invalid request"
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.ActualTag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("field %s is required", fe.Field()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("field %s exceeds %s characters", fe.Field(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("field %s is not valid", fe.Field()))
		}
	}
	return "Invalid request: " + strings.Join(msgs, ", ")
}
