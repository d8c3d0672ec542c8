package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"sjsage522/grocerydeals/internal/scraper"
	"sjsage522/grocerydeals/logger"
	apperrors "sjsage522/grocerydeals/pkg/errors"
	"sjsage522/grocerydeals/services/deals"
)

// DealReader serves cached or freshly scraped deals
type DealReader interface {
	Stores() []scraper.StoreConfig
	Store(id int) (scraper.StoreConfig, bool)
	ScrapeDealsForStore(ctx context.Context, storeID int) ([]scraper.ScrapedDeal, error)
	ClearCache()
}

// Syncer runs forced syncs. The worker satisfies it so API-triggered syncs
// are published like scheduled ones.
type Syncer interface {
	SyncStore(ctx context.Context, storeID int) deals.SyncResult
	SyncAll(ctx context.Context) []deals.SyncResult
}

type Handlers struct {
	deals  DealReader
	syncer Syncer
	log    *logger.Logger
}

func NewHandlers(reader DealReader, syncer Syncer) *Handlers {
	return &Handlers{
		deals:  reader,
		syncer: syncer,
		log:    logger.ForAPI(),
	}
}

// DealsResponse is the body of a store deals request
type DealsResponse struct {
	StoreID   int                   `json:"store_id"`
	StoreName string                `json:"store_name"`
	Count     int                   `json:"count"`
	Deals     []scraper.ScrapedDeal `json:"deals"`
}

// SyncAllResponse summarizes a sync of every store
type SyncAllResponse struct {
	Succeeded int                `json:"succeeded"`
	Failed    int                `json:"failed"`
	Results   []deals.SyncResult `json:"results"`
}

// Health reports liveness
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"stores": len(h.deals.Stores()),
		"time":   time.Now().UTC(),
	})
}

// ListStores returns the configured stores
func (h *Handlers) ListStores(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.deals.Stores())
}

// GetDeals returns the deals for one store, served from cache when fresh
func (h *Handlers) GetDeals(w http.ResponseWriter, r *http.Request) {
	storeID, ok := h.storeID(w, r)
	if !ok {
		return
	}

	result, err := h.deals.ScrapeDealsForStore(r.Context(), storeID)
	if err != nil {
		h.respondScrapeError(w, storeID, err)
		return
	}

	cfg, _ := h.deals.Store(storeID)
	h.respondJSON(w, http.StatusOK, DealsResponse{
		StoreID:   storeID,
		StoreName: cfg.Name,
		Count:     len(result),
		Deals:     result,
	})
}

// SyncStore forces a scrape of one store
func (h *Handlers) SyncStore(w http.ResponseWriter, r *http.Request) {
	storeID, ok := h.storeID(w, r)
	if !ok {
		return
	}
	if _, known := h.deals.Store(storeID); !known {
		h.respondError(w, http.StatusNotFound, apperrors.NewUnknownStore(storeID).Error())
		return
	}

	result := h.syncer.SyncStore(r.Context(), storeID)
	status := http.StatusOK
	if !result.OK() {
		status = http.StatusBadGateway
	}
	h.respondJSON(w, status, result)
}

// SyncAll forces a scrape of every store
func (h *Handlers) SyncAll(w http.ResponseWriter, r *http.Request) {
	results := h.syncer.SyncAll(r.Context())

	resp := SyncAllResponse{Results: results}
	for _, res := range results {
		if res.OK() {
			resp.Succeeded++
		} else {
			resp.Failed++
		}
	}
	h.respondJSON(w, http.StatusOK, resp)
}

// ClearCache drops every cached deal list
func (h *Handlers) ClearCache(w http.ResponseWriter, r *http.Request) {
	h.deals.ClearCache()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) storeID(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := chi.URLParam(r, "storeID")
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		h.respondError(w, http.StatusBadRequest, "invalid store id: "+raw)
		return 0, false
	}
	return id, true
}

func (h *Handlers) respondScrapeError(w http.ResponseWriter, storeID int, err error) {
	switch apperrors.TypeOf(err) {
	case apperrors.ErrorTypeUnknownStore:
		h.respondError(w, http.StatusNotFound, err.Error())
	default:
		h.log.Error().Err(err).Int("store_id", storeID).Msg("Failed to get deals")
		h.respondError(w, http.StatusBadGateway, err.Error())
	}
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
