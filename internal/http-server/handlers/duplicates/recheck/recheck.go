package recheck

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/YusovID/order-dedup/internal/models"
	strg "github.com/YusovID/order-dedup/internal/storage"
	resp "github.com/YusovID/order-dedup/lib/api/response"
	"github.com/YusovID/order-dedup/lib/logger/sl"
)

type Request struct {
	ID string `validate:"required"`
}

type Response struct {
	resp.Response
	OrderID  string                  `json:"order_id"`
	Result   *models.DetectionResult `json:"result"`
	Degraded bool                    `json:"degraded,omitempty"`
}

type OrderGetter interface {
	GetOrder(ctx context.Context, orderID string) (*models.OrderSnapshot, error)
}

type DuplicateDetector interface {
	Detect(ctx context.Context, subject *models.OrderSnapshot) *models.DetectionResult
}

// New повторно проверяет сохраненный заказ, исключая его самого из
// кандидатов.
func New(log *slog.Logger, storage OrderGetter, detector DuplicateDetector) http.HandlerFunc {
	validate := resp.NewValidator()

	return func(w http.ResponseWriter, r *http.Request) {
		const fn = "handlers.duplicates.recheck.New"

		log := log.With(
			slog.String("fn", fn),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		req := Request{ID: chi.URLParam(r, "id")}

		if err := validate.Struct(req); err != nil {
			log.Error("invalid request", sl.Err(err))

			resp.Fail(w, r, http.StatusBadRequest, "order id is required")

			return
		}

		order, err := storage.GetOrder(r.Context(), req.ID)
		if errors.Is(err, strg.ErrNoOrder) {
			log.Info("order not found", slog.String("order_id", req.ID))

			resp.Fail(w, r, http.StatusNotFound, "order not found")

			return
		}
		if err != nil {
			log.Error("failed to get order", sl.Err(err))

			resp.Fail(w, r, http.StatusInternalServerError, "failed to get order")

			return
		}

		order.ExcludeOrderID = order.ID

		result := detector.Detect(r.Context(), order)

		log.Info("order rechecked",
			slog.String("order_id", req.ID),
			slog.Bool("is_duplicate", result.IsDuplicate),
		)

		resp.Render(w, r, http.StatusOK, Response{
			Response: resp.OK(),
			OrderID:  req.ID,
			Result:   result,
			Degraded: result.Err != nil,
		})
	}
}
