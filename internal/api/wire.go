package api

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// flexString accepts a JSON string or number; the backend emits ids both ways.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// flexInt accepts a number, a numeric string or null. Anything else reads as
// absent rather than failing the whole record.
type flexInt struct {
	v  int
	ok bool
}

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*f = flexInt{}
		return nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		*f = flexInt{v: n, ok: true}
		return nil
	}
	if x, err := strconv.ParseFloat(s, 64); err == nil {
		*f = flexInt{v: int(x), ok: true}
		return nil
	}
	*f = flexInt{}
	return nil
}

func (f flexInt) ptr() *int {
	if !f.ok {
		return nil
	}
	v := f.v
	return &v
}

type wireMessage struct {
	IconName *string `json:"iconName"`
	Text     string  `json:"text"`
}

type wireStats struct {
	DaysSinceLastMeasure flexInt    `json:"daysSinceLastMeasure"`
	RemainingSessions    flexInt    `json:"remainingSessions"`
	TrainingsThisMonth   flexInt    `json:"trainingsThisMonth"`
	TrainingsTotal       flexInt    `json:"trainingsTotal"`
	CheckIn              flexString `json:"checkIn"`
}

// wireScan is check_scan's flat response and also one get_scan_list entry.
type wireScan struct {
	Status        string        `json:"status"`
	Message       string        `json:"message"`
	LastScanID    flexString    `json:"last_scan_id"`
	Name          string        `json:"name"`
	MemberStatus  string        `json:"member_status"`
	CustomMessage []wireMessage `json:"custom_message"`
	Stats         *wireStats    `json:"stats"`
}

type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (e envelope) failed() (string, bool) {
	if e.Status != "error" {
		return "", false
	}
	if e.Error != nil && e.Error.Message != "" {
		return e.Error.Message, true
	}
	return "unknown error", true
}

type wireAd struct {
	Type     string  `json:"type"`
	Src      string  `json:"src"`
	Duration flexInt `json:"duration"`
}

type wireWeather struct {
	Temp        json.Number `json:"temp"`
	Description string      `json:"description"`
	Icon        *string     `json:"icon"`
}
