package models

import "time"

type DuplicateMatch struct {
	CandidateOrderID     string `json:"candidate_order_id"`
	CandidateOrderNumber string `json:"candidate_order_number"`
	MatchedRuleName      string `json:"matched_rule_name"`
}

// DetectionResult - итог одного вызова детектора.
// IsDuplicate истинно только при непустом DuplicateOrders.
type DetectionResult struct {
	IsDuplicate     bool             `json:"is_duplicate"`
	DuplicateOrders []DuplicateMatch `json:"duplicate_orders"`
	RulesChecked    int              `json:"rules_checked"`
	ProcessingTime  time.Duration    `json:"processing_time"`

	// Err - сбой хранилища, из-за которого проверка деградировала, если был.
	Err error `json:"-"`
}

// DetectionEvent публикуется для заказов, признанных дублями.
type DetectionEvent struct {
	OrderID     string           `json:"order_id"`
	OrderNumber string           `json:"order_number"`
	SellerID    string           `json:"seller_id"`
	Result      *DetectionResult `json:"result"`
	DetectedAt  time.Time        `json:"detected_at"`
}
