package project

import "time"

// Metadata describes one commit.
type Metadata struct {
	Label string `json:"label"`
	User  string `json:"user"`
	// Timestamp is microseconds since the Unix epoch.
	Timestamp int64  `json:"timestamp"`
	Comment   string `json:"comment"`
	// Config names the configuration the commit was packed with.
	Config string `json:"config"`
}

// Time returns the timestamp as a time.Time.
func (m Metadata) Time() time.Time {
	return time.UnixMicro(m.Timestamp)
}
