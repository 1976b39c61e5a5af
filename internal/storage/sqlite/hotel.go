package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/zhouzirui/hotel-frontdesk/backend/internal/model/hotel"
)

// 与 [checkIn, checkOut) 重叠且仍占用房间的预订。
const overlapClause = `
SELECT 1 FROM bookings b
WHERE b.room_id = r.id
  AND b.status IN ('confirmed', 'checked_in')
  AND b.check_in_date < ?
  AND b.check_out_date > ?`

// AvailableRooms 列出在指定日期段内没有冲突预订的房间。
func (s *Store) AvailableRooms(ctx context.Context, q hotel.RoomQuery) ([]hotel.Room, error) {
	var (
		where []string
		args  []any
	)
	where = append(where, "r.is_available = 1")
	if q.Type != "" {
		where = append(where, "r.room_type = ?")
		args = append(args, string(q.Type))
	}
	if q.MinOccupancy > 0 {
		where = append(where, "r.max_occupancy >= ?")
		args = append(args, q.MinOccupancy)
	}
	if !q.CheckIn.IsZero() && !q.CheckOut.IsZero() {
		where = append(where, "NOT EXISTS ("+overlapClause+")")
		args = append(args, hotel.DateOnly(q.CheckOut), hotel.DateOnly(q.CheckIn))
	}

	query := `
SELECT r.id, r.room_number, r.room_type, r.floor, r.max_occupancy, r.base_price, r.amenities, r.is_available
FROM rooms r
WHERE ` + strings.Join(where, " AND ") + `
ORDER BY r.room_number`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer rows.Close()

	var rooms []hotel.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list rooms rows: %w", err)
	}
	return rooms, nil
}

// GetRoom 按 ID 查询房间。
func (s *Store) GetRoom(ctx context.Context, id int64) (hotel.Room, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, room_number, room_type, floor, max_occupancy, base_price, amenities, is_available
FROM rooms WHERE id = ?`, id)

	room, err := scanRoom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return hotel.Room{}, fmt.Errorf("room %d: %w", id, ErrNotFound)
	}
	return room, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRoom(row scanner) (hotel.Room, error) {
	var (
		room      hotel.Room
		roomType  string
		amenities string
	)
	if err := row.Scan(&room.ID, &room.Number, &roomType, &room.Floor, &room.MaxOccupancy, &room.BasePrice, &amenities, &room.Available); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return hotel.Room{}, err
		}
		return hotel.Room{}, fmt.Errorf("scan room: %w", err)
	}
	room.Type = hotel.RoomType(roomType)
	if err := json.Unmarshal([]byte(amenities), &room.Amenities); err != nil {
		return hotel.Room{}, fmt.Errorf("decode room amenities: %w", err)
	}
	return room, nil
}

// FindGuestByEmail 按 email 查找客人。
func (s *Store) FindGuestByEmail(ctx context.Context, email string) (hotel.Guest, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, first_name, last_name, email, phone, address, date_of_birth, created_at
FROM guests WHERE email = ? COLLATE NOCASE`, strings.TrimSpace(email))
	return scanGuest(row, email)
}

// GetGuest 按 ID 查找客人。
func (s *Store) GetGuest(ctx context.Context, id int64) (hotel.Guest, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, first_name, last_name, email, phone, address, date_of_birth, created_at
FROM guests WHERE id = ?`, id)
	return scanGuest(row, fmt.Sprintf("%d", id))
}

// GuestExists reports whether a guest row with id exists.
func (s *Store) GuestExists(ctx context.Context, id int64) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM guests WHERE id = ?`, id).Scan(&n); err != nil {
		return false, fmt.Errorf("count guest: %w", err)
	}
	return n > 0, nil
}

func scanGuest(row scanner, key string) (hotel.Guest, error) {
	var g hotel.Guest
	if err := row.Scan(&g.ID, &g.FirstName, &g.LastName, &g.Email, &g.Phone, &g.Address, &g.DateOfBirth, &g.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return hotel.Guest{}, fmt.Errorf("guest %s: %w", key, ErrNotFound)
		}
		return hotel.Guest{}, fmt.Errorf("scan guest: %w", err)
	}
	return g, nil
}

// CreateGuest 插入新客人并返回带 ID 的记录。
func (s *Store) CreateGuest(ctx context.Context, g hotel.Guest) (hotel.Guest, error) {
	g.CreatedAt = s.now()
	res, err := s.db.ExecContext(ctx, `
INSERT INTO guests (first_name, last_name, email, phone, address, date_of_birth, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		g.FirstName, g.LastName, g.Email, g.Phone, g.Address, g.DateOfBirth, g.CreatedAt)
	if err != nil {
		return hotel.Guest{}, fmt.Errorf("insert guest: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return hotel.Guest{}, fmt.Errorf("guest id: %w", err)
	}
	g.ID = id
	return g, nil
}

// CreateBooking 在同一事务内复查冲突后写入预订，冲突时返回 ErrRoomBooked。
func (s *Store) CreateBooking(ctx context.Context, b hotel.Booking) (hotel.Booking, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return hotel.Booking{}, fmt.Errorf("begin booking tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	checkIn := hotel.DateOnly(b.CheckInDate)
	checkOut := hotel.DateOnly(b.CheckOutDate)

	var conflict int
	err = tx.QueryRowContext(ctx, `
SELECT COUNT(*) FROM bookings
WHERE room_id = ?
  AND status IN ('confirmed', 'checked_in')
  AND check_in_date < ?
  AND check_out_date > ?`, b.RoomID, checkOut, checkIn).Scan(&conflict)
	if err != nil {
		return hotel.Booking{}, fmt.Errorf("check booking overlap: %w", err)
	}
	if conflict > 0 {
		return hotel.Booking{}, ErrRoomBooked
	}

	now := s.now()
	b.CheckInDate, b.CheckOutDate = checkIn, checkOut
	b.CreatedAt, b.UpdatedAt = now, now

	res, err := tx.ExecContext(ctx, `
INSERT INTO bookings (guest_id, room_id, check_in_date, check_out_date, num_guests, total_amount, status, special_requests, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.GuestID, b.RoomID, b.CheckInDate, b.CheckOutDate, b.NumGuests, b.TotalAmount, string(b.Status), b.SpecialRequests, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return hotel.Booking{}, fmt.Errorf("insert booking: %w", err)
	}
	if b.ID, err = res.LastInsertId(); err != nil {
		return hotel.Booking{}, fmt.Errorf("booking id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return hotel.Booking{}, fmt.Errorf("commit booking: %w", err)
	}
	return b, nil
}

const bookingColumns = `
SELECT b.id, b.guest_id, b.room_id, r.room_number, b.check_in_date, b.check_out_date, b.num_guests,
       b.total_amount, b.status, b.special_requests, b.created_at, b.updated_at
FROM bookings b
JOIN rooms r ON r.id = b.room_id`

// GetBooking 按 ID 查询预订。
func (s *Store) GetBooking(ctx context.Context, id int64) (hotel.Booking, error) {
	row := s.db.QueryRowContext(ctx, bookingColumns+` WHERE b.id = ?`, id)
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return hotel.Booking{}, fmt.Errorf("booking %d: %w", id, ErrNotFound)
	}
	return b, err
}

// GuestBookings 列出客人的全部预订，最新的在前。
func (s *Store) GuestBookings(ctx context.Context, guestID int64) ([]hotel.Booking, error) {
	rows, err := s.db.QueryContext(ctx, bookingColumns+` WHERE b.guest_id = ? ORDER BY b.created_at DESC, b.id DESC`, guestID)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	var bookings []hotel.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list bookings rows: %w", err)
	}
	return bookings, nil
}

func scanBooking(row scanner) (hotel.Booking, error) {
	var (
		b      hotel.Booking
		status string
		total  decimal.Decimal
	)
	err := row.Scan(&b.ID, &b.GuestID, &b.RoomID, &b.RoomNumber, &b.CheckInDate, &b.CheckOutDate, &b.NumGuests,
		&total, &status, &b.SpecialRequests, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return hotel.Booking{}, err
		}
		return hotel.Booking{}, fmt.Errorf("scan booking: %w", err)
	}
	b.TotalAmount = total
	b.Status = hotel.BookingStatus(status)
	return b, nil
}

// TransitionBooking 仅当当前状态为 from 时把预订改为 to，否则返回 ErrNotFound。
func (s *Store) TransitionBooking(ctx context.Context, id int64, from, to hotel.BookingStatus) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE bookings SET status = ?, updated_at = ?
WHERE id = ? AND status = ?`, string(to), s.now(), id, string(from))
	if err != nil {
		return fmt.Errorf("update booking status: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return fmt.Errorf("booking %d in status %s: %w", id, from, ErrNotFound)
	}
	return nil
}
