package check

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/YusovID/order-dedup/internal/models"
	resp "github.com/YusovID/order-dedup/lib/api/response"
	"github.com/YusovID/order-dedup/lib/logger/sl"
)

type Response struct {
	resp.Response
	Result *models.DetectionResult `json:"result"`

	// Degraded выставляется, если детектор не смог обратиться к хранилищам.
	Degraded bool `json:"degraded,omitempty"`
}

type DuplicateDetector interface {
	Detect(ctx context.Context, subject *models.OrderSnapshot) *models.DetectionResult
}

// New проверяет на дубли еще не сохраненный заказ.
func New(log *slog.Logger, detector DuplicateDetector) http.HandlerFunc {
	validate := resp.NewValidator()

	return func(w http.ResponseWriter, r *http.Request) {
		const fn = "handlers.duplicates.check.New"

		log := log.With(
			slog.String("fn", fn),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var order models.OrderSnapshot

		if err := render.DecodeJSON(r.Body, &order); err != nil {
			log.Error("failed to decode json body", sl.Err(err))

			resp.Fail(w, r, http.StatusBadRequest, "failed to decode request")

			return
		}

		if err := validate.Struct(order); err != nil {
			log.Error("invalid request", sl.Err(err))

			resp.Invalid(w, r, err)

			return
		}

		result := detector.Detect(r.Context(), &order)

		log.Info("order checked",
			slog.String("seller_id", order.SellerID),
			slog.Bool("is_duplicate", result.IsDuplicate),
			slog.Int("rules_checked", result.RulesChecked),
		)

		resp.Render(w, r, http.StatusOK, Response{
			Response: resp.OK(),
			Result:   result,
			Degraded: result.Err != nil,
		})
	}
}
