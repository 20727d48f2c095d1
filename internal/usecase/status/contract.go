package status

import "time"

// Gate exposes the readiness decisions the status report needs.
type Gate interface {
	IsReady() bool
	Loaded(name string) bool
	Uptime() time.Duration
}

// Index exposes the loaded index facts reported by /status.
type Index interface {
	Len() int
}
