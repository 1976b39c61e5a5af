package hotel

// FactSheet 是写入系统提示词的酒店资料。
type FactSheet struct {
	Name         string   `json:"name"`
	Address      string   `json:"address"`
	Phone        string   `json:"phone"`
	WiFiNetwork  string   `json:"wifi_network"`
	WiFiPassword string   `json:"-"`
	CheckInTime  string   `json:"check_in_time"`
	CheckOutTime string   `json:"check_out_time"`
	LateCheckOut string   `json:"late_check_out"`
	Amenities    []string `json:"amenities"`
}

// DefaultAmenities lists the amenity lines shown to guests.
func DefaultAmenities() []string {
	return []string{
		"24/7 front desk service",
		"Complimentary WiFi throughout the hotel",
		"Fitness center (open 5 AM - 11 PM)",
		"Swimming pool (open 6 AM - 10 PM)",
		`Restaurant "The Plaza Grill" (breakfast 6-10 AM, lunch 11 AM-3 PM, dinner 5-10 PM)`,
		"Room service (available 24/7)",
		"Business center",
		"Concierge services",
		"Valet parking ($25/night)",
		"Pet-friendly (additional $50/night pet fee)",
	}
}
