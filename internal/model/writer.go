package model

// Writer defines a generic interface for persisting the feature rows of a window.
type Writer interface {
	// Write persists one window's feature rows. It is never called with an empty batch.
	Write(batch FeatureBatch) error

	// Name identifies the writer in logs.
	Name() string

	// Close flushes and releases the underlying resource.
	Close() error
}
