package dto

import "time"

type ApplyInput struct {
	Raw []byte
}

type ApplyOutput struct {
	Kind    string
	Applied bool
	Reason  string
}

type SyncNowOutput struct {
	Flushed   int
	Published bool
}

type PendingOutput struct {
	ID     string
	Kind   string
	Device string
	SentAt time.Time
}

type StatusOutput struct {
	Device          string
	StatsAuthority  bool
	PendingMessages int
	LastPublishedAt time.Time
}
