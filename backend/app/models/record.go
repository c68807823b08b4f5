package models

import "time"

// TimeLayout is the minute-precision layout used for stored and rendered timestamps.
const TimeLayout = "2006-01-02 15:04"

type Record struct {
	ID            int64       `json:"id"`
	ReportName    string      `json:"report_name"`
	StartTime     time.Time   `json:"start_time"`
	EndTime       time.Time   `json:"end_time"`
	Errors        []ErrorCode `json:"errors"`
	Notes         string      `json:"notes"`
	Owner         string      `json:"username"`
	VehicleNumber string      `json:"vehicle_number,omitempty"`
}

// RecordFilter narrows a record listing. An empty Owner matches every record.
type RecordFilter struct {
	Owner string
}

func (f RecordFilter) Match(r Record) bool {
	return f.Owner == "" || UsernameKey(f.Owner) == UsernameKey(r.Owner)
}
