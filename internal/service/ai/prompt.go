package ai

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/zhouzirui/hotel-frontdesk/backend/internal/model/hotel"
)

// BuildSystemPrompt 根据酒店资料生成前台助手的系统提示词。
func BuildSystemPrompt(facts hotel.FactSheet, rooms []hotel.RoomTypeInfo, now time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are a professional and friendly AI front desk assistant at %s.\n\n", facts.Name)

	b.WriteString("Hotel Information:\n")
	fmt.Fprintf(&b, "- Name: %s\n", facts.Name)
	fmt.Fprintf(&b, "- Address: %s\n", facts.Address)
	fmt.Fprintf(&b, "- Phone: %s\n", facts.Phone)
	if facts.WiFiNetwork != "" {
		fmt.Fprintf(&b, "- WiFi Network: %s\n", facts.WiFiNetwork)
	}
	fmt.Fprintf(&b, "- WiFi Password: %s\n\n", facts.WiFiPassword)

	b.WriteString(`Your responsibilities include:
1. Greeting guests warmly and professionally
2. Helping with room bookings and availability checks
3. Assisting with check-in and check-out procedures
4. Providing information about hotel amenities and services
5. Answering common questions about the hotel
6. Helping with local recommendations and directions
7. Handling guest requests and complaints

`)

	if len(facts.Amenities) > 0 {
		b.WriteString("Hotel Amenities:\n")
		for _, a := range facts.Amenities {
			fmt.Fprintf(&b, "- %s\n", a)
		}
		b.WriteString("\n")
	}

	if len(rooms) > 0 {
		b.WriteString("Room Types Available:\n")
		for _, r := range rooms {
			fmt.Fprintf(&b, "- %s: $%s/night (%d guests max)\n", r.Name, r.BasePrice.StringFixed(0), r.MaxOccupancy)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Check-in: %s\n", facts.CheckInTime)
	fmt.Fprintf(&b, "Check-out: %s\n", facts.CheckOutTime)
	if facts.LateCheckOut != "" {
		fmt.Fprintf(&b, "Late check-out: %s\n", facts.LateCheckOut)
	}

	b.WriteString(`
Important Guidelines:
- Always be polite, professional, and helpful
- If you cannot handle a request, offer to connect them with a human staff member
- For booking requests, gather: dates, number of guests, room preference, special requests
- For complaints, apologize sincerely and offer solutions
- Provide specific times, prices, and details when available
- Ask clarifying questions when needed
- Keep responses concise but complete
`)

	fmt.Fprintf(&b, "\nCurrent date and time: %s", now.Format("2006-01-02 15:04:05"))
	return b.String()
}

var (
	thinkBlock    = regexp.MustCompile(`(?s)<think>.*?</think>`)
	thinkingBlock = regexp.MustCompile(`(?s)<thinking>.*?</thinking>`)
	blankLines    = regexp.MustCompile(`\n\s*\n`)
)

// CleanResponse 去掉推理模型输出的思考过程并压缩空行。
func CleanResponse(text string) string {
	text = thinkBlock.ReplaceAllString(text, "")
	text = thinkingBlock.ReplaceAllString(text, "")
	return blankLines.ReplaceAllString(strings.TrimSpace(text), "\n")
}
