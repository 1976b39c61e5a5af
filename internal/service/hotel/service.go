package hotel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zhouzirui/hotel-frontdesk/backend/internal/model/hotel"
	"github.com/zhouzirui/hotel-frontdesk/backend/internal/storage/sqlite"
)

var (
	ErrInvalidDates      = errors.New("check-out must be after check-in and check-in cannot be in the past")
	ErrInvalidRoomType   = errors.New("unknown room type")
	ErrInvalidGuest      = errors.New("first name, last name and a valid email are required")
	ErrTooManyGuests     = errors.New("number of guests exceeds room occupancy")
	ErrRoomUnavailable   = errors.New("room is not available for the selected dates")
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("booking is not in a state that allows this action")
)

// Store 是预订业务依赖的持久化能力。
type Store interface {
	AvailableRooms(ctx context.Context, q hotel.RoomQuery) ([]hotel.Room, error)
	GetRoom(ctx context.Context, id int64) (hotel.Room, error)
	FindGuestByEmail(ctx context.Context, email string) (hotel.Guest, error)
	GetGuest(ctx context.Context, id int64) (hotel.Guest, error)
	CreateGuest(ctx context.Context, g hotel.Guest) (hotel.Guest, error)
	CreateBooking(ctx context.Context, b hotel.Booking) (hotel.Booking, error)
	GetBooking(ctx context.Context, id int64) (hotel.Booking, error)
	GuestBookings(ctx context.Context, guestID int64) ([]hotel.Booking, error)
	TransitionBooking(ctx context.Context, id int64, from, to hotel.BookingStatus) error
}

// Service 处理房态查询、客人登记与预订生命周期。
type Service struct {
	store  Store
	facts  hotel.FactSheet
	now    func() time.Time
	logger *slog.Logger
}

// NewService creates the booking service.
func NewService(store Store, facts hotel.FactSheet, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, facts: facts, now: time.Now, logger: logger}
}

// SetClock overrides the clock used for "today" checks.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Facts returns the public hotel fact sheet.
func (s *Service) Facts() hotel.FactSheet {
	return s.facts
}

// RoomTypes returns the room catalogue.
func (s *Service) RoomTypes() []hotel.RoomTypeInfo {
	return hotel.Catalogue()
}

// AvailableRooms 查询可订房间。日期都为空时只按房型和人数过滤。
func (s *Service) AvailableRooms(ctx context.Context, q hotel.RoomQuery) ([]hotel.Room, error) {
	if q.Type != "" && !q.Type.Valid() {
		return nil, ErrInvalidRoomType
	}
	if !q.CheckIn.IsZero() || !q.CheckOut.IsZero() {
		if err := s.validateStay(q.CheckIn, q.CheckOut); err != nil {
			return nil, err
		}
	}
	rooms, err := s.store.AvailableRooms(ctx, q)
	if err != nil {
		return nil, err
	}
	if rooms == nil {
		rooms = []hotel.Room{}
	}
	return rooms, nil
}

func (s *Service) validateStay(checkIn, checkOut time.Time) error {
	if checkIn.IsZero() || checkOut.IsZero() {
		return ErrInvalidDates
	}
	in, out := hotel.DateOnly(checkIn), hotel.DateOnly(checkOut)
	if !in.Before(out) {
		return ErrInvalidDates
	}
	if in.Before(hotel.DateOnly(s.now())) {
		return ErrInvalidDates
	}
	return nil
}

// GuestInput 是登记客人的请求。
type GuestInput struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Address     string `json:"address"`
	DateOfBirth string `json:"date_of_birth"`
}

// CreateGuest 登记客人，email 已存在时返回原有记录且 created 为 false。
func (s *Service) CreateGuest(ctx context.Context, in GuestInput) (guest hotel.Guest, created bool, err error) {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.TrimSpace(in.Email)
	if in.FirstName == "" || in.LastName == "" {
		return hotel.Guest{}, false, ErrInvalidGuest
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return hotel.Guest{}, false, ErrInvalidGuest
	}

	existing, err := s.store.FindGuestByEmail(ctx, in.Email)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, sqlite.ErrNotFound) {
		return hotel.Guest{}, false, err
	}

	guest, err = s.store.CreateGuest(ctx, hotel.Guest{
		FirstName:   in.FirstName,
		LastName:    in.LastName,
		Email:       in.Email,
		Phone:       strings.TrimSpace(in.Phone),
		Address:     strings.TrimSpace(in.Address),
		DateOfBirth: strings.TrimSpace(in.DateOfBirth),
	})
	if err != nil {
		return hotel.Guest{}, false, err
	}
	s.logger.Info("[hotel] guest registered", "guest_id", guest.ID)
	return guest, true, nil
}

// BookingInput 是创建预订的请求。
type BookingInput struct {
	GuestID         int64
	RoomID          int64
	CheckIn         time.Time
	CheckOut        time.Time
	NumGuests       int
	SpecialRequests string
}

// CreateBooking 校验日期与入住人数后按 房价 x 晚数 计价并确认预订。
func (s *Service) CreateBooking(ctx context.Context, in BookingInput) (hotel.Booking, error) {
	if err := s.validateStay(in.CheckIn, in.CheckOut); err != nil {
		return hotel.Booking{}, err
	}
	if in.NumGuests <= 0 {
		in.NumGuests = 1
	}

	if _, err := s.store.GetGuest(ctx, in.GuestID); err != nil {
		return hotel.Booking{}, mapNotFound(err)
	}
	room, err := s.store.GetRoom(ctx, in.RoomID)
	if err != nil {
		return hotel.Booking{}, mapNotFound(err)
	}
	if !room.Available {
		return hotel.Booking{}, ErrRoomUnavailable
	}
	if in.NumGuests > room.MaxOccupancy {
		return hotel.Booking{}, ErrTooManyGuests
	}

	nights := hotel.Nights(in.CheckIn, in.CheckOut)
	booking, err := s.store.CreateBooking(ctx, hotel.Booking{
		GuestID:         in.GuestID,
		RoomID:          room.ID,
		RoomNumber:      room.Number,
		CheckInDate:     in.CheckIn,
		CheckOutDate:    in.CheckOut,
		NumGuests:       in.NumGuests,
		TotalAmount:     room.BasePrice.Mul(decimal.NewFromInt(int64(nights))),
		Status:          hotel.StatusConfirmed,
		SpecialRequests: strings.TrimSpace(in.SpecialRequests),
	})
	if errors.Is(err, sqlite.ErrRoomBooked) {
		return hotel.Booking{}, ErrRoomUnavailable
	}
	if err != nil {
		return hotel.Booking{}, err
	}

	s.logger.Info("[hotel] booking confirmed",
		"booking_id", booking.ID,
		"room", booking.RoomNumber,
		"nights", nights,
		"total", booking.TotalAmount.StringFixed(2))
	return booking, nil
}

// GuestBookings lists a guest's bookings, newest first.
func (s *Service) GuestBookings(ctx context.Context, guestID int64) ([]hotel.Booking, error) {
	if _, err := s.store.GetGuest(ctx, guestID); err != nil {
		return nil, mapNotFound(err)
	}
	bookings, err := s.store.GuestBookings(ctx, guestID)
	if err != nil {
		return nil, err
	}
	if bookings == nil {
		bookings = []hotel.Booking{}
	}
	return bookings, nil
}

// CheckIn 仅允许已确认且入住日不晚于今天的预订办理入住。
func (s *Service) CheckIn(ctx context.Context, bookingID int64) (hotel.Booking, error) {
	b, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return hotel.Booking{}, mapNotFound(err)
	}
	if b.Status != hotel.StatusConfirmed {
		return hotel.Booking{}, fmt.Errorf("check in from %s: %w", b.Status, ErrInvalidTransition)
	}
	if hotel.DateOnly(s.now()).Before(hotel.DateOnly(b.CheckInDate)) {
		return hotel.Booking{}, fmt.Errorf("check in before %s: %w", b.CheckInDate.Format(hotel.DateLayout), ErrInvalidTransition)
	}
	return s.transition(ctx, bookingID, hotel.StatusConfirmed, hotel.StatusCheckedIn)
}

// CheckOut 仅允许已入住的预订退房。
func (s *Service) CheckOut(ctx context.Context, bookingID int64) (hotel.Booking, error) {
	b, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return hotel.Booking{}, mapNotFound(err)
	}
	if b.Status != hotel.StatusCheckedIn {
		return hotel.Booking{}, fmt.Errorf("check out from %s: %w", b.Status, ErrInvalidTransition)
	}
	return s.transition(ctx, bookingID, hotel.StatusCheckedIn, hotel.StatusCheckedOut)
}

func (s *Service) transition(ctx context.Context, id int64, from, to hotel.BookingStatus) (hotel.Booking, error) {
	if err := s.store.TransitionBooking(ctx, id, from, to); err != nil {
		// 并发下状态已被改掉
		if errors.Is(err, sqlite.ErrNotFound) {
			return hotel.Booking{}, ErrInvalidTransition
		}
		return hotel.Booking{}, err
	}
	s.logger.Info("[hotel] booking status changed", "booking_id", id, "from", from, "to", to)

	b, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return hotel.Booking{}, mapNotFound(err)
	}
	return b, nil
}

func mapNotFound(err error) error {
	if errors.Is(err, sqlite.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}
