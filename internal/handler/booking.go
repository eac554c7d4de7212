package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hotel-booking-lifecycle/internal/model"
	"github.com/iliyamo/hotel-booking-lifecycle/internal/repository"
)

// BookingHandler creates bookings and payment retries.  Creation is the
// only write that bypasses the engine: a new booking starts in the initial
// state of every domain, so there is no transition to validate.
type BookingHandler struct {
	BookingRepo *repository.BookingRepo
}

// NewBookingHandler constructs a BookingHandler.
func NewBookingHandler(bookingRepo *repository.BookingRepo) *BookingHandler {
	if bookingRepo == nil {
		panic("nil repository passed to NewBookingHandler")
	}
	return &BookingHandler{BookingRepo: bookingRepo}
}

// CreateBooking handles POST /v1/bookings.  It creates the booking in
// PENDING_PAYMENT together with its initial PENDING payment and returns
// both identifiers.
func (h *BookingHandler) CreateBooking(c echo.Context) error {
	var body struct {
		CustomerID       uint64 `json:"customer_id"`
		RoomID           uint64 `json:"room_id"`
		RoomCategory     string `json:"room_category"`
		CheckInDate      string `json:"check_in_date"`  // YYYY-MM-DD
		CheckOutDate     string `json:"check_out_date"` // YYYY-MM-DD
		TotalAmountCents uint32 `json:"total_amount_cents"`
		PaymentMethod    string `json:"payment_method"`
		DeadlineHours    int    `json:"payment_deadline_hours"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.CustomerID == 0 || body.RoomID == 0 || body.RoomCategory == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "customer_id, room_id and room_category are required"})
	}
	checkIn, err := time.Parse("2006-01-02", body.CheckInDate)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid check_in_date"})
	}
	checkOut, err := time.Parse("2006-01-02", body.CheckOutDate)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid check_out_date"})
	}
	if !checkOut.After(checkIn) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "check_out_date must be after check_in_date"})
	}
	if body.DeadlineHours <= 0 {
		body.DeadlineHours = 48
	}

	booking := &model.Booking{
		CustomerID:       body.CustomerID,
		RoomID:           body.RoomID,
		RoomCategory:     body.RoomCategory,
		CheckInDate:      checkIn,
		CheckOutDate:     checkOut,
		TotalAmountCents: body.TotalAmountCents,
		PaymentDeadline:  time.Now().UTC().Add(time.Duration(body.DeadlineHours) * time.Hour),
	}
	payment := &model.Payment{
		AmountCents: body.TotalAmountCents,
		Method:      body.PaymentMethod,
	}
	if err := h.BookingRepo.CreateWithPayment(c.Request().Context(), booking, payment); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create booking"})
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"booking_id":       booking.ID,
		"payment_id":       payment.ID,
		"status":           booking.Status,
		"payment_deadline": booking.PaymentDeadline.Format(time.RFC3339),
	})
}

// AddPayment handles POST /v1/bookings/:id/payments.  It records a new
// PENDING payment attempt (retry or partial payment) for the booking.
func (h *BookingHandler) AddPayment(c echo.Context) error {
	bookingID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || bookingID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	var body struct {
		AmountCents uint32 `json:"amount_cents"`
		Method      string `json:"method"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.AmountCents == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "amount_cents is required"})
	}
	payment := &model.Payment{
		BookingID:   bookingID,
		AmountCents: body.AmountCents,
		Method:      body.Method,
	}
	if err := h.BookingRepo.AddPayment(c.Request().Context(), payment); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create payment"})
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"payment_id": payment.ID,
		"status":     payment.Status,
	})
}
