package model

import "time"

// APIExchange records one HTTP round trip with the payments API.
// Header values are masked before an exchange is constructed.
type APIExchange struct {
	At             time.Time
	AccountID      string
	Method         string
	URL            string
	StatusCode     int // 0 when no response was received
	RequestHeaders map[string]string
	RequestBody    string
	ResponseBody   string
	Err            string
}

// Success reports whether the exchange got a 2xx response.
func (e APIExchange) Success() bool {
	return e.StatusCode >= 200 && e.StatusCode < 300
}
