// Package models contains domain models for engram.
package models

import "time"

// TimeLayout is the ISO-8601 layout used for every stored string timestamp.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// Timestamp returns the string and epoch-millisecond forms of t.
func Timestamp(t time.Time) (string, int64) {
	u := t.UTC()
	return u.Format(TimeLayout), u.UnixMilli()
}

// EpochTimestamp returns the string form of an epoch-millisecond value.
func EpochTimestamp(epoch int64) string {
	return time.UnixMilli(epoch).UTC().Format(TimeLayout)
}
