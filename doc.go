// Package navbridge lets a page running inside a web view call native
// functions by navigating to js2ios:// URLs, and lets the native side answer
// by invoking named callbacks on the page.
//
// # Overview
//
// A call travels as a JSON envelope in the navigation URL:
//
//	js2ios://{"functionname":"registerForTimelineUpdates","success":"registerForTimelineUpdates_successCallback0","error":"onErrorCallingNativeFunction"}
//
// The host answers by invoking one of the named slots with a JSON reply,
// {"result":...} on success or {"message":...} on failure.
//
// # Basic Usage
//
//	host := mockhost.New()
//	defer host.Close()
//
//	b := bridge.New(host)
//	page := timeline.NewPage(b, timeline.WithUpdateHandler(func(p timeline.Position) {
//	    fmt.Println(p.ContentTime)
//	}))
//	page.Install()
//
//	call, _ := page.RegisterForTimelineUpdates(ctx, timeline.WithPeriod(time.Second, true))
//	call.Wait(ctx)
//
// # Hosts
//
// The transport decides who answers:
//
//   - mockhost: in-process, for pages without a native side
//   - bridge.NavigationTransport over a real surface: the web view's host
//   - stream and hostview: a page compiled to WASI, sandboxed by wazero
//   - natsbridge: a native host in another process, reached over NATS
//
// The native side is built from a native.Registry of functions and a
// native.Processor that decodes navigations and replies.
package navbridge
