package loader

// LoaderBuilderOption is a functional option for configuring a Loader via NewLoader.
type LoaderBuilderOption func(*loader)

// WithSource is an option builder that sets the Source assets are read from.
//
// Parameters:
//   - src: the content source
//
// Returns:
//   - LoaderBuilderOption: a function that applies the source option to a loader
func WithSource(src Source) LoaderBuilderOption {
	return func(l *loader) {
		l.source = src
	}
}

// WithWorkers is an option builder that sets how many goroutines decode prefetched assets.
//
// Parameters:
//   - n: the worker count, values below 1 are ignored
//
// Returns:
//   - LoaderBuilderOption: a function that applies the worker option to a loader
func WithWorkers(n int) LoaderBuilderOption {
	return func(l *loader) {
		if n > 0 {
			l.workers = n
		}
	}
}

// WithQueueSize is an option builder that sets how many prefetches may wait for a worker
// before Prefetch blocks.
//
// Parameters:
//   - n: the queue size, values below 1 are ignored
//
// Returns:
//   - LoaderBuilderOption: a function that applies the queue size option to a loader
func WithQueueSize(n int) LoaderBuilderOption {
	return func(l *loader) {
		if n > 0 {
			l.queueSize = n
		}
	}
}
