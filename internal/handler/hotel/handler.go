package hotel

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/hotel-frontdesk/backend/internal/model/hotel"
	hotelService "github.com/zhouzirui/hotel-frontdesk/backend/internal/service/hotel"
	"github.com/zhouzirui/hotel-frontdesk/backend/pkg/utils"
)

// Handler 酒店房态与预订的HTTP处理器
type Handler struct {
	hotelSvc *hotelService.Service
	logger   *slog.Logger
}

// New 创建酒店处理器
func New(hotelSvc *hotelService.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{hotelSvc: hotelSvc, logger: logger}
}

// RegisterRoutes 注册酒店相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/hotel", h.handleFacts)
	r.Get("/rooms", h.handleAvailableRooms)
	r.Get("/room-types", h.handleRoomTypes)
	r.Post("/guest", h.handleCreateGuest)
	r.Get("/guest/{guestID}/bookings", h.handleGuestBookings)
	r.Post("/booking", h.handleCreateBooking)
	r.Post("/booking/{bookingID}/checkin", h.handleCheckIn)
	r.Post("/booking/{bookingID}/checkout", h.handleCheckOut)
}

func (h *Handler) handleFacts(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.hotelSvc.Facts())
}

func (h *Handler) handleRoomTypes(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.hotelSvc.RoomTypes())
}

// handleAvailableRooms 按日期段查询空房，入住与退房日期都必填
func (h *Handler) handleAvailableRooms(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	checkIn, err := parseDate(q.Get("check_in_date"))
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "check_in_date must be YYYY-MM-DD")
		return
	}
	checkOut, err := parseDate(q.Get("check_out_date"))
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "check_out_date must be YYYY-MM-DD")
		return
	}

	query := hotel.RoomQuery{
		CheckIn:  checkIn,
		CheckOut: checkOut,
		Type:     hotel.RoomType(strings.ToLower(q.Get("room_type"))),
	}
	if raw := q.Get("max_occupancy"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			utils.RespondError(w, http.StatusBadRequest, "max_occupancy must be a positive integer")
			return
		}
		query.MinOccupancy = n
	}

	rooms, err := h.hotelSvc.AvailableRooms(r.Context(), query)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, rooms)
}

func (h *Handler) handleCreateGuest(w http.ResponseWriter, r *http.Request) {
	var payload hotelService.GuestInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	guest, created, err := h.hotelSvc.CreateGuest(r.Context(), payload)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	utils.RespondJSON(w, status, guest)
}

type bookingRequest struct {
	GuestID         int64  `json:"guest_id"`
	RoomID          int64  `json:"room_id"`
	CheckInDate     string `json:"check_in_date"`
	CheckOutDate    string `json:"check_out_date"`
	NumGuests       int    `json:"num_guests"`
	SpecialRequests string `json:"special_requests"`
}

func (h *Handler) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var payload bookingRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	checkIn, err := parseDate(payload.CheckInDate)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "check_in_date must be YYYY-MM-DD")
		return
	}
	checkOut, err := parseDate(payload.CheckOutDate)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "check_out_date must be YYYY-MM-DD")
		return
	}

	booking, err := h.hotelSvc.CreateBooking(r.Context(), hotelService.BookingInput{
		GuestID:         payload.GuestID,
		RoomID:          payload.RoomID,
		CheckIn:         checkIn,
		CheckOut:        checkOut,
		NumGuests:       payload.NumGuests,
		SpecialRequests: payload.SpecialRequests,
	})
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, booking)
}

func (h *Handler) handleGuestBookings(w http.ResponseWriter, r *http.Request) {
	guestID, ok := pathID(w, r, "guestID")
	if !ok {
		return
	}

	bookings, err := h.hotelSvc.GuestBookings(r.Context(), guestID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, bookings)
}

func (h *Handler) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	bookingID, ok := pathID(w, r, "bookingID")
	if !ok {
		return
	}

	booking, err := h.hotelSvc.CheckIn(r.Context(), bookingID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, booking)
}

func (h *Handler) handleCheckOut(w http.ResponseWriter, r *http.Request) {
	bookingID, ok := pathID(w, r, "bookingID")
	if !ok {
		return
	}

	booking, err := h.hotelSvc.CheckOut(r.Context(), bookingID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, booking)
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, hotelService.ErrInvalidDates),
		errors.Is(err, hotelService.ErrInvalidRoomType),
		errors.Is(err, hotelService.ErrInvalidGuest),
		errors.Is(err, hotelService.ErrTooManyGuests):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, hotelService.ErrNotFound):
		utils.RespondError(w, http.StatusNotFound, "not found")
	case errors.Is(err, hotelService.ErrRoomUnavailable),
		errors.Is(err, hotelService.ErrInvalidTransition):
		utils.RespondError(w, http.StatusConflict, rootMessage(err))
	default:
		h.logger.Error("[hotel] request failed", "err", err)
		utils.RespondError(w, http.StatusInternalServerError, "internal server error")
	}
}

// rootMessage 去掉包装前缀，只保留哨兵错误的文案
func rootMessage(err error) string {
	for _, sentinel := range []error{hotelService.ErrRoomUnavailable, hotelService.ErrInvalidTransition} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}

func parseDate(raw string) (time.Time, error) {
	return time.Parse(hotel.DateLayout, strings.TrimSpace(raw))
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		utils.RespondError(w, http.StatusBadRequest, name+" must be a positive integer")
		return 0, false
	}
	return id, true
}
