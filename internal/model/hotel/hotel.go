package hotel

import (
	"time"

	"github.com/shopspring/decimal"
)

// RoomType 房型枚举。
type RoomType string

const (
	Standard     RoomType = "standard"
	Deluxe       RoomType = "deluxe"
	Suite        RoomType = "suite"
	Presidential RoomType = "presidential"
)

// Valid reports whether t is a known room type.
func (t RoomType) Valid() bool {
	switch t {
	case Standard, Deluxe, Suite, Presidential:
		return true
	}
	return false
}

// BookingStatus 预订状态。
type BookingStatus string

const (
	StatusPending    BookingStatus = "pending"
	StatusConfirmed  BookingStatus = "confirmed"
	StatusCheckedIn  BookingStatus = "checked_in"
	StatusCheckedOut BookingStatus = "checked_out"
	StatusCancelled  BookingStatus = "cancelled"
)

// RoomTypeInfo describes one entry of the room catalogue.
type RoomTypeInfo struct {
	Type         RoomType        `json:"type"`
	Name         string          `json:"name"`
	BasePrice    decimal.Decimal `json:"base_price"`
	MaxOccupancy int             `json:"max_occupancy"`
	Amenities    []string        `json:"amenities"`
}

// Room is a bookable room.
type Room struct {
	ID           int64           `json:"id"`
	Number       string          `json:"room_number"`
	Type         RoomType        `json:"room_type"`
	Floor        int             `json:"floor"`
	MaxOccupancy int             `json:"max_occupancy"`
	BasePrice    decimal.Decimal `json:"base_price"`
	Amenities    []string        `json:"amenities"`
	Available    bool            `json:"is_available"`
}

// Guest 客人档案，以 email 去重。
type Guest struct {
	ID          int64     `json:"id"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone,omitempty"`
	Address     string    `json:"address,omitempty"`
	DateOfBirth string    `json:"date_of_birth,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Booking 预订记录。日期只保留到天。
type Booking struct {
	ID              int64           `json:"id"`
	GuestID         int64           `json:"guest_id"`
	RoomID          int64           `json:"room_id"`
	RoomNumber      string          `json:"room_number,omitempty"`
	CheckInDate     time.Time       `json:"check_in_date"`
	CheckOutDate    time.Time       `json:"check_out_date"`
	NumGuests       int             `json:"num_guests"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	Status          BookingStatus   `json:"status"`
	SpecialRequests string          `json:"special_requests,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// RoomQuery 描述房间可用性查询条件，零值字段不参与过滤。
type RoomQuery struct {
	CheckIn      time.Time
	CheckOut     time.Time
	Type         RoomType
	MinOccupancy int
}

// Nights returns the number of nights the booking spans.
func (b Booking) Nights() int {
	return Nights(b.CheckInDate, b.CheckOutDate)
}

// Nights counts calendar nights between two dates.
func Nights(checkIn, checkOut time.Time) int {
	return int(DateOnly(checkOut).Sub(DateOnly(checkIn)).Hours() / 24)
}

// DateOnly truncates t to midnight UTC of its calendar day.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateLayout is the wire format for booking dates.
const DateLayout = "2006-01-02"

// Catalogue 返回房型目录，价格与入住人数与种子数据一致。
func Catalogue() []RoomTypeInfo {
	base := []string{"WiFi", "TV", "Air Conditioning", "Mini Fridge"}
	deluxe := append(append([]string(nil), base...), "Balcony", "Safe")
	suite := append(append([]string(nil), deluxe...), "Kitchenette", "Living Area")
	presidential := append(append([]string(nil), deluxe...), "Full Kitchen", "Living Area", "Dining Area", "Jacuzzi")

	return []RoomTypeInfo{
		{Type: Standard, Name: "Standard Room", BasePrice: decimal.NewFromInt(120), MaxOccupancy: 2, Amenities: base},
		{Type: Deluxe, Name: "Deluxe Room", BasePrice: decimal.NewFromInt(180), MaxOccupancy: 3, Amenities: deluxe},
		{Type: Suite, Name: "Suite", BasePrice: decimal.NewFromInt(350), MaxOccupancy: 4, Amenities: suite},
		{Type: Presidential, Name: "Presidential Suite", BasePrice: decimal.NewFromInt(750), MaxOccupancy: 6, Amenities: presidential},
	}
}
