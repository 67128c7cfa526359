package domain

// Metadata is an opaque key-value payload attached to a payment at creation
// and passed through unmodified to the callback. The core never interprets
// its contents.
type Metadata map[string]any
