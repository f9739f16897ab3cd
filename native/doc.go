// Package native is a development stand-in for the host application that
// answers bridge navigations.
//
// Native functions are plain Go functions registered by name:
//
//	registry := native.NewRegistry()
//	registry.Register("loadMediaAssetURL", func(ctx context.Context, args []any) (any, error) {
//	    return "https://example.com/home", nil
//	})
//	processor := native.NewProcessor(registry)
//
// For every js2ios:// URL the page navigates to, [Processor.Process] decodes
// the envelope, runs the function and invokes the page's success slot with
// {"result": <value>} or its error slot with {"message": <error>}.
//
// A [TimelineFeeder] implements registerForTimelineUpdates the way a sync
// controller does: once registered, it keeps calling the page's
// updateTimeline slot with the current programme position.
package native
