// Package bridge lets sandboxed code invoke native host operations when the
// only channel out of the sandbox is a navigation.
//
// A call is encoded as a js2ios:// URL whose body is a JSON envelope:
//
//	js2ios://{"functionname":"registerForTimelineUpdates","success":"registerForTimelineUpdates_successCallback0","error":"registerForTimelineUpdates_errorCallback0"}
//
// The host intercepts the navigation, does the work and later answers by
// invoking the named slot with a single JSON string. Slots live in a
// [callback.Registry] owned by the [Bridge].
//
// # Transports
//
// A [Transport] decides how envelopes reach the host. [NavigationTransport]
// attaches and detaches a throwaway element on a [Surface]; the mockhost
// package answers in-process. The choice is made once, when the Bridge is
// constructed:
//
//	b := bridge.NewNavigation(surface)
//	call, err := b.CallNativeFunction(ctx, "loadMediaAssetURL", nil,
//	    callback.Of(onLoaded), callback.Of(onFailed),
//	    bridge.WithTimeout(5*time.Second))
//
// Delivery is fire-and-forget. A [Call] reports whether the host answered,
// but a dropped navigation is only detectable through a timeout.
package bridge
