package utils

import (
	"time"
)

// Request timeouts applied by HTTP handlers
const (
	// RequestTimeout bounds ordinary API calls
	RequestTimeout = 30 * time.Second

	// LongRequestTimeout bounds pool growth and inventory export
	LongRequestTimeout = 2 * time.Minute
)

// XLSXContentType is the MIME type of exported workbooks
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
