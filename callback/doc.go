// Package callback provides the slot table through which a host answers
// bridge calls.
//
// A host can only address a continuation by name, so every continuation
// handed to the bridge is installed under a string slot identifier. Slots are
// grouped by purpose (for example "registerForTimelineUpdates_successCallback")
// and numbered densely from zero within a purpose:
//
//	registry := callback.NewRegistry()
//	slot := registry.Resolve("loadSchedule_successCallback", callback.Of(func(reply string) {
//	    fmt.Println(reply)
//	}))
//	// slot == "loadSchedule_successCallback0"
//	registry.Invoke(slot, `{"result":"ok"}`)
//
// # Identity
//
// Registering a logically equal continuation again returns the slot already
// allocated for it, so per-call closures do not exhaust slots. Equality is
// decided by the [Callback] identity: an explicit [Keyed] token when given,
// otherwise the code pointer of the function. Closures created from the same
// function literal therefore share a slot. A [Named] callback binds directly
// to a caller-chosen slot and allocates nothing.
//
// Slots are never freed. Their number is bounded by the distinct
// continuations in use, not by call volume.
package callback
