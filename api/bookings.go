package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/valetmatch/valetmatch/internal/domain"
	"github.com/valetmatch/valetmatch/internal/repository"
	"github.com/valetmatch/valetmatch/internal/service/booking"
	"github.com/valetmatch/valetmatch/internal/service/dispatch"
)

type BookingHandler struct {
	bookings booking.BookingUseCase
	dispatch dispatch.DispatchUseCase
}

type createBookingRequest struct {
	CustomerName        string `json:"customer_name"`
	CustomerEmail       string `json:"customer_email"`
	CustomerPhone       string `json:"customer_phone"`
	Postcode            string `json:"postcode"`
	AddressLine1        string `json:"address_line1"`
	City                string `json:"city"`
	BookingDate         string `json:"booking_date"`
	BookingTime         string `json:"booking_time"`
	VehicleSize         string `json:"vehicle_size"`
	ServiceTier         string `json:"service_tier"`
	ServiceLocation     string `json:"service_location"`
	SpecialInstructions string `json:"special_instructions"`
	PricePence          int64  `json:"price_pence"`
}

type bookingResponse struct {
	ID                 string   `json:"id"`
	Status             string   `json:"status"`
	Postcode           string   `json:"postcode"`
	BookingDate        string   `json:"booking_date"`
	BookingTime        string   `json:"booking_time"`
	VehicleSize        string   `json:"vehicle_size"`
	ServiceTier        string   `json:"service_tier"`
	ServiceLocation    string   `json:"service_location"`
	PricePence         int64    `json:"price_pence"`
	CommissionPence    int64    `json:"commission_pence"`
	PayoutPence        int64    `json:"payout_pence"`
	AssignedValeterID  string   `json:"assigned_valeter_id,omitempty"`
	NotifiedValeterIDs []string `json:"notified_valeter_ids,omitempty"`
	AcceptanceDeadline string   `json:"acceptance_deadline,omitempty"`
	CreatedAt          string   `json:"created_at"`
}

func toBookingResponse(b *domain.Booking) bookingResponse {
	resp := bookingResponse{
		ID:                 b.ID,
		Status:             string(b.Status),
		Postcode:           b.Postcode,
		BookingDate:        b.BookingDate.Format("2006-01-02"),
		BookingTime:        b.BookingTime,
		VehicleSize:        string(b.VehicleSize),
		ServiceTier:        string(b.ServiceTier),
		ServiceLocation:    string(b.ServiceLocation),
		PricePence:         b.PricePence,
		CommissionPence:    b.CommissionPence,
		PayoutPence:        b.PayoutPence,
		NotifiedValeterIDs: b.NotifiedValeterIDs,
		CreatedAt:          b.CreatedAt.Format(time.RFC3339),
	}
	if b.AssignedValeterID != nil {
		resp.AssignedValeterID = *b.AssignedValeterID
	}
	if b.AcceptanceDeadline != nil {
		resp.AcceptanceDeadline = b.AcceptanceDeadline.Format(time.RFC3339)
	}
	return resp
}

func NewBookingHandler(bookings booking.BookingUseCase, dispatchSvc dispatch.DispatchUseCase) *BookingHandler {
	return &BookingHandler{bookings: bookings, dispatch: dispatchSvc}
}

func (h *BookingHandler) Register(router *gin.RouterGroup) {
	router.POST("/", h.create)
	router.GET("/", h.list)
	router.GET("/:id", h.get)
	router.POST("/:id/dispatch", h.openBidding)
}

func (h *BookingHandler) create(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	bookingDate, err := time.Parse("2006-01-02", req.BookingDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "booking_date must be YYYY-MM-DD"})
		return
	}

	created, err := h.bookings.CreateBooking(c.Request.Context(), booking.CreateBookingInput{
		CustomerName:        req.CustomerName,
		CustomerEmail:       req.CustomerEmail,
		CustomerPhone:       req.CustomerPhone,
		Postcode:            req.Postcode,
		AddressLine1:        req.AddressLine1,
		City:                req.City,
		BookingDate:         bookingDate,
		BookingTime:         req.BookingTime,
		VehicleSize:         domain.VehicleSize(req.VehicleSize),
		ServiceTier:         domain.ServiceTier(req.ServiceTier),
		ServiceLocation:     domain.ServiceLocation(req.ServiceLocation),
		SpecialInstructions: req.SpecialInstructions,
		PricePence:          req.PricePence,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toBookingResponse(created))
}

func (h *BookingHandler) get(c *gin.Context) {
	found, err := h.bookings.GetBooking(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(found))
}

func (h *BookingHandler) list(c *gin.Context) {
	filter := repository.BookingFilter{
		Status:    domain.BookingStatus(c.Query("status")),
		ValeterID: c.Query("valeter_id"),
	}
	listed, err := h.bookings.ListBookings(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]bookingResponse, 0, len(listed))
	for i := range listed {
		out = append(out, toBookingResponse(&listed[i]))
	}
	c.JSON(http.StatusOK, gin.H{"bookings": out, "count": len(out)})
}

func (h *BookingHandler) openBidding(c *gin.Context) {
	result, err := h.dispatch.OpenBidding(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"acceptance_deadline":  result.Deadline.Format(time.RFC3339),
		"notified_valeter_ids": result.NotifiedValeterIDs,
	})
}
