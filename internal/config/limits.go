package config

const (
	// MaxStoryTitleLength is the maximum length for story titles.
	// Limited to 255 to fit in PostgreSQL VARCHAR(255).
	MaxStoryTitleLength = 255

	// MaxChapterTitleLength is the maximum length for chapter and book
	// titles. Same bound as story titles for consistency.
	MaxChapterTitleLength = 255

	// MaxSessionNameLength is the maximum length for chat session names.
	// Limited to 255 to fit in PostgreSQL VARCHAR(255); the auto-titler
	// produces far shorter names.
	MaxSessionNameLength = 255

	// MaxEntryNameLength is the maximum length for sourcebook entry names.
	MaxEntryNameLength = 255

	// MaxUserMessageLength caps user chat messages. Generous bound to
	// keep a runaway paste from blowing out the provider context window.
	MaxUserMessageLength = 100_000
)
