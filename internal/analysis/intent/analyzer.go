package intent

import (
	"strings"
	"unicode"
)

// Label 表示前台对话中识别出的客人意图。
type Label string

const (
	Booking    Label = "booking"
	CheckIn    Label = "checkin"
	CheckOut   Label = "checkout"
	Amenities  Label = "amenities"
	Directions Label = "directions"
	Complaint  Label = "complaint"
	Info       Label = "info"
	Greeting   Label = "greeting"
	General    Label = "general"
	// Error tags replies that fell back to the apology message.
	Error Label = "error"
)

type bucket struct {
	label    Label
	keywords []string
}

// 按顺序匹配，先命中者优先。
var keywordBuckets = []bucket{
	{Booking, []string{"book", "booking", "reserve", "reservation", "room", "rooms", "availability", "available", "stay"}},
	{CheckIn, []string{"check in", "checkin", "checking in", "arrival", "arrived", "arriving"}},
	{CheckOut, []string{"check out", "checkout", "checking out", "departure", "leaving", "leave", "bill"}},
	{Amenities, []string{"pool", "gym", "fitness", "restaurant", "wifi", "wi fi", "parking", "room service", "amenity", "amenities", "spa"}},
	{Directions, []string{"where", "how to get", "location", "address", "directions"}},
	{Complaint, []string{"problem", "issue", "complain", "complaint", "not working", "broken", "dirty"}},
	{Info, []string{"hours", "time", "when", "what time", "schedule"}},
	{Greeting, []string{"hello", "hi", "hey", "good morning", "good afternoon", "good evening"}},
}

// Detect 返回消息的意图标签，没有关键词命中时为 General。
// 关键词按整词匹配，"this" 不会命中 "hi"。
func Detect(message string) Label {
	normalized := normalize(message)
	if strings.TrimSpace(normalized) == "" {
		return General
	}

	for _, b := range keywordBuckets {
		for _, word := range b.keywords {
			if strings.Contains(normalized, " "+word+" ") {
				return b.label
			}
		}
	}
	return General
}

// normalize lowercases the text, turns every non-alphanumeric rune into a
// space and pads both ends so keywords can be matched as whole words.
func normalize(text string) string {
	var sb strings.Builder
	sb.Grow(len(text) + 2)
	sb.WriteByte(' ')
	lastSpace := true
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'' {
			sb.WriteRune(r)
			lastSpace = false
			continue
		}
		if !lastSpace {
			sb.WriteByte(' ')
			lastSpace = true
		}
	}
	if !lastSpace {
		sb.WriteByte(' ')
	}
	return sb.String()
}
