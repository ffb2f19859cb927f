package save

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/YusovID/order-dedup/internal/models"
	resp "github.com/YusovID/order-dedup/lib/api/response"
	"github.com/YusovID/order-dedup/lib/logger/sl"
)

type Response struct {
	resp.Response
	SellerID string `json:"seller_id"`
}

type PolicySaver interface {
	SavePolicy(ctx context.Context, sellerID string, policy *models.DetectionPolicy) error
}

type PolicyInvalidator interface {
	Invalidate(ctx context.Context, sellerID string) error
}

// New заменяет политику продавца и сбрасывает ее копию в кэше, чтобы
// следующий заказ проверялся уже по новой политике.
func New(log *slog.Logger, storage PolicySaver, cache PolicyInvalidator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const fn = "handlers.policy.save.New"

		sellerID := chi.URLParam(r, "id")

		log := log.With(
			slog.String("fn", fn),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("seller_id", sellerID),
		)

		if sellerID == "" {
			resp.Fail(w, r, http.StatusBadRequest, "seller id is required")

			return
		}

		var policy models.DetectionPolicy

		if err := render.DecodeJSON(r.Body, &policy); err != nil {
			log.Error("failed to decode json body", sl.Err(err))

			resp.Fail(w, r, http.StatusBadRequest, "failed to decode request")

			return
		}

		if err := storage.SavePolicy(r.Context(), sellerID, &policy); err != nil {
			if errors.Is(err, models.ErrInvalidPolicy) {
				log.Info("invalid policy", sl.Err(err))

				resp.Fail(w, r, http.StatusBadRequest, err.Error())

				return
			}

			log.Error("failed to save policy", sl.Err(err))

			resp.Fail(w, r, http.StatusInternalServerError, "failed to save policy")

			return
		}

		// устаревшая запись все равно истечет по TTL
		if err := cache.Invalidate(r.Context(), sellerID); err != nil {
			log.Warn("failed to invalidate cached policy", sl.Err(err))
		}

		log.Info("policy saved", slog.Int("rules", len(policy.Rules)))

		resp.Render(w, r, http.StatusOK, Response{
			Response: resp.OK(),
			SellerID: sellerID,
		})
	}
}
