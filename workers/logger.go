package workers

import "listing_scrooper/models"

// LogFunc writes a worker log line to the extraction_logs table.
type LogFunc func(level models.LogLevel, layer, message string)

// NoOpLogger does nothing (default)
var NoOpLogger LogFunc = func(level models.LogLevel, layer, message string) {}
