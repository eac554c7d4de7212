// Package intake translates external stimuli into transition requests for
// the engine: payment-gateway callbacks, the expiry sweep and manual admin
// actions all funnel through the same Apply entry point with different
// actors.
package intake

import (
	"github.com/iliyamo/hotel-booking-lifecycle/internal/engine"
	"github.com/iliyamo/hotel-booking-lifecycle/internal/model"
)

// Well-known system actors recorded in the audit trail.
const (
	ActorGateway = "system:gateway"
	ActorSweeper = "system:sweeper"
)

// gatewayActions maps the payment gateway's status vocabulary onto payment
// domain actions.
var gatewayActions = map[string]model.Action{
	"approved":        model.ActionApprove,
	"refused":         model.ActionRefuse,
	"in_review":       model.ActionBeginReview,
	"proof_submitted": model.ActionSubmitProof,
	"cancelled":       model.ActionCancel,
}

// ActionForGatewayStatus resolves a gateway status to the payment action
// it requests.  The second return value is false for unknown statuses.
func ActionForGatewayStatus(status string) (model.Action, bool) {
	a, ok := gatewayActions[status]
	return a, ok
}

// GatewayRequest builds the engine request for a gateway callback.  The
// raw gateway payload fields travel in the audit metadata.  Gateways
// redeliver callbacks, so the request opts into the engine's duplicate
// handling: a redelivered terminal outcome is a success no-op, decided
// under the booking lock.
func GatewayRequest(bookingID, paymentID uint64, action model.Action, payload map[string]string) *engine.Request {
	return &engine.Request{
		BookingID:       bookingID,
		Domain:          model.DomainPayment,
		PaymentID:       paymentID,
		Action:          action,
		Actor:           ActorGateway,
		Metadata:        payload,
		AcceptDuplicate: true,
	}
}

// ExpireRequest builds the engine request the sweeper applies to a booking
// past its payment deadline.
func ExpireRequest(bookingID uint64) *engine.Request {
	return &engine.Request{
		BookingID: bookingID,
		Domain:    model.DomainBooking,
		Action:    model.ActionExpire,
		Actor:     ActorSweeper,
	}
}

// AdminRequest builds the engine request for a manual admin action.
func AdminRequest(bookingID, paymentID uint64, domain model.Domain, action model.Action, actor string, override bool, metadata map[string]string) *engine.Request {
	return &engine.Request{
		BookingID: bookingID,
		Domain:    domain,
		PaymentID: paymentID,
		Action:    action,
		Actor:     actor,
		Override:  override,
		Metadata:  metadata,
	}
}
