package catalog

import "time"

const timeLayout = time.RFC3339

func nowUTC() string {
	return time.Now().UTC().Format(timeLayout)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
