package utils

// IsValidInterval whitelists the time-bucket names interpolated into
// ClickHouse toStartOf* functions by the stats queries.
func IsValidInterval(interval string) bool {
	switch interval {
	case "Minute", "Hour", "Day", "Week", "Month":
		return true
	default:
		return false
	}
}
