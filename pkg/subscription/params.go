package subscription

import (
	"encoding/json"
	"strconv"

	"github.com/google/uuid"
)

// Wire names of the attribute fields a request payload may set. Anything
// outside this set is dropped without error: mass-assignment protection is
// a security boundary here, not a validation concern, so unknown fields
// are never reported back to the caller.
const (
	FieldPlanID       = "plan_id"
	FieldCardToken    = "credit_card_token"
	FieldCurrentPrice = "current_price"
	FieldCardType     = "card_type"
	FieldLastFour     = "last_four"
	FieldCouponCode   = "coupon_code"
)

// Params holds the permitted subscription attributes extracted from a
// request payload. Pointer fields distinguish "absent" from "set to zero
// value" so updates only touch what the payload actually carried.
type Params struct {
	PlanID       *uuid.UUID
	CardToken    string
	CurrentPrice *int64
	CardType     string
	LastFour     string
	CouponCode   *string
}

// FilterParams applies the permitted-field allowlist to a decoded payload.
// The filtering is unconditional: there is no mode in which extra fields
// pass through. Values may arrive as strings (form encoding) or JSON
// numbers; anything unparseable is treated as absent.
func FilterParams(raw map[string]any) Params {
	var p Params

	if id, ok := parseUUID(raw[FieldPlanID]); ok {
		p.PlanID = &id
	}
	if s, ok := parseString(raw[FieldCardToken]); ok {
		p.CardToken = s
	}
	if n, ok := parseInt(raw[FieldCurrentPrice]); ok {
		p.CurrentPrice = &n
	}
	if s, ok := parseString(raw[FieldCardType]); ok {
		p.CardType = s
	}
	if s, ok := parseString(raw[FieldLastFour]); ok {
		p.LastFour = s
	}
	if s, ok := parseString(raw[FieldCouponCode]); ok {
		p.CouponCode = &s
	}

	return p
}

func parseString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func parseUUID(v any) (uuid.UUID, bool) {
	s, ok := v.(string)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func parseInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	}
	return 0, false
}
