package hotel

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/hotel-frontdesk/backend/internal/model/hotel"
	"github.com/zhouzirui/hotel-frontdesk/backend/internal/storage/sqlite"
)

var today = time.Date(2026, 10, 19, 14, 30, 0, 0, time.UTC)

func newTestService(t *testing.T) *Service {
	t.Helper()
	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "hotel.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	svc := NewService(store, hotel.FactSheet{Name: "Grand Plaza Hotel"}, nil)
	svc.SetClock(func() time.Time { return today })
	return svc
}

func registerGuest(t *testing.T, svc *Service) hotel.Guest {
	t.Helper()
	g, created, err := svc.CreateGuest(context.Background(), GuestInput{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"})
	require.NoError(t, err)
	require.True(t, created)
	return g
}

func TestCreateGuestDeduplicatesByEmail(t *testing.T) {
	svc := newTestService(t)
	first := registerGuest(t, svc)

	again, created, err := svc.CreateGuest(context.Background(), GuestInput{FirstName: "Ada", LastName: "King", Email: " ADA@example.com "})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, "Lovelace", again.LastName)
}

func TestCreateGuestValidates(t *testing.T) {
	svc := newTestService(t)
	for name, in := range map[string]GuestInput{
		"no first name": {LastName: "L", Email: "a@example.com"},
		"no last name":  {FirstName: "A", Email: "a@example.com"},
		"bad email":     {FirstName: "A", LastName: "L", Email: "not-an-email"},
	} {
		t.Run(name, func(t *testing.T) {
			_, _, err := svc.CreateGuest(context.Background(), in)
			assert.ErrorIs(t, err, ErrInvalidGuest)
		})
	}
}

func TestAvailableRoomsValidatesDates(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.AvailableRooms(ctx, hotel.RoomQuery{CheckIn: today.AddDate(0, 0, 2), CheckOut: today.AddDate(0, 0, 2)})
	assert.ErrorIs(t, err, ErrInvalidDates)

	_, err = svc.AvailableRooms(ctx, hotel.RoomQuery{CheckIn: today.AddDate(0, 0, -1), CheckOut: today.AddDate(0, 0, 1)})
	assert.ErrorIs(t, err, ErrInvalidDates)

	_, err = svc.AvailableRooms(ctx, hotel.RoomQuery{CheckIn: today})
	assert.ErrorIs(t, err, ErrInvalidDates)

	_, err = svc.AvailableRooms(ctx, hotel.RoomQuery{Type: "penthouse"})
	assert.ErrorIs(t, err, ErrInvalidRoomType)

	rooms, err := svc.AvailableRooms(ctx, hotel.RoomQuery{CheckIn: today, CheckOut: today.AddDate(0, 0, 1), MinOccupancy: 4})
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.Equal(t, hotel.Suite, rooms[0].Type)
}

func TestCreateBookingPricesAndConfirms(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	guest := registerGuest(t, svc)

	in := hotel.DateOnly(today).AddDate(0, 0, 3)
	b, err := svc.CreateBooking(ctx, BookingInput{GuestID: guest.ID, RoomID: 3, CheckIn: in, CheckOut: in.AddDate(0, 0, 2), NumGuests: 2})
	require.NoError(t, err)

	assert.Equal(t, hotel.StatusConfirmed, b.Status)
	assert.Equal(t, "201", b.RoomNumber)
	assert.True(t, b.TotalAmount.Equal(decimal.NewFromInt(360)), b.TotalAmount.String())

	_, err = svc.CreateBooking(ctx, BookingInput{GuestID: guest.ID, RoomID: 3, CheckIn: in.AddDate(0, 0, 1), CheckOut: in.AddDate(0, 0, 4)})
	assert.ErrorIs(t, err, ErrRoomUnavailable)

	list, err := svc.GuestBookings(ctx, guest.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestCreateBookingRejects(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	guest := registerGuest(t, svc)
	in := hotel.DateOnly(today).AddDate(0, 0, 1)

	_, err := svc.CreateBooking(ctx, BookingInput{GuestID: guest.ID, RoomID: 1, CheckIn: in, CheckOut: in.AddDate(0, 0, 1), NumGuests: 3})
	assert.ErrorIs(t, err, ErrTooManyGuests)

	_, err = svc.CreateBooking(ctx, BookingInput{GuestID: 999, RoomID: 1, CheckIn: in, CheckOut: in.AddDate(0, 0, 1)})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.CreateBooking(ctx, BookingInput{GuestID: guest.ID, RoomID: 999, CheckIn: in, CheckOut: in.AddDate(0, 0, 1)})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.CreateBooking(ctx, BookingInput{GuestID: guest.ID, RoomID: 1, CheckIn: in, CheckOut: in})
	assert.ErrorIs(t, err, ErrInvalidDates)

	_, err = svc.GuestBookings(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCheckInCheckOutLifecycle(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	guest := registerGuest(t, svc)

	future, err := svc.CreateBooking(ctx, BookingInput{GuestID: guest.ID, RoomID: 1, CheckIn: today.AddDate(0, 0, 5), CheckOut: today.AddDate(0, 0, 6)})
	require.NoError(t, err)
	_, err = svc.CheckIn(ctx, future.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	b, err := svc.CreateBooking(ctx, BookingInput{GuestID: guest.ID, RoomID: 2, CheckIn: today, CheckOut: today.AddDate(0, 0, 2)})
	require.NoError(t, err)

	_, err = svc.CheckOut(ctx, b.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	checkedIn, err := svc.CheckIn(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, hotel.StatusCheckedIn, checkedIn.Status)

	_, err = svc.CheckIn(ctx, b.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	checkedOut, err := svc.CheckOut(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, hotel.StatusCheckedOut, checkedOut.Status)

	_, err = svc.CheckIn(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRoomTypesMatchCatalogue(t *testing.T) {
	svc := newTestService(t)
	types := svc.RoomTypes()
	require.Len(t, types, 4)
	assert.Equal(t, hotel.Presidential, types[3].Type)
	assert.True(t, types[3].BasePrice.Equal(decimal.NewFromInt(750)))
}
