// Package types provides shared type definitions for the application.
package types

import "time"

// FallbackText is returned when the service produces no text.
const FallbackText = "No transcription available"

// TimestampLayout formats the capture time shown next to a transcription.
const TimestampLayout = "3:04:05 PM"

// TranscriptionResult is the outcome of one successful transcription.
type TranscriptionResult struct {
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
	Language  string `json:"language,omitempty"` // Detected language of Text, if known
}

// KeyValidation is the result of checking an API key.
type KeyValidation struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// HistoryEntry is one archived transcription.
type HistoryEntry struct {
	ID        uint64    `json:"id"`
	Text      string    `json:"text"`
	Timestamp string    `json:"timestamp"`
	Duration  int64     `json:"duration"` // Recording length in seconds
	Language  string    `json:"language,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
