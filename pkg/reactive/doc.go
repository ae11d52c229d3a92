// Package reactive provides the observable data model behind the islands
// runtime.
//
// State is held in two container types, Object and Array. Reading a
// property with a context that carries a Listener subscribes that listener
// to the exact property read; writing a property notifies only the
// listeners of that property. Nested reads track every hop, so replacing an
// ancestor value notifies every reader of a path below it.
//
//	state := reactive.NewObject()
//	state.Set("count", 1)
//
//	e := reactive.NewEffect(ctx, sched, func(ctx context.Context) reactive.Cleanup {
//	    fmt.Println(state.Get(ctx, "count"))
//	    return nil
//	})
//	e.Run()
//
//	state.Set("count", 2) // schedules e
//	sched.Flush()         // prints 2
//
// Values that are not map[string]any, []any, *Object or *Array pass
// through Wrap untouched: they are stored as opaque, non-reactive values.
//
// # Threading
//
// Containers, memos and effects are not safe for concurrent use. All reads
// and writes happen on the runtime thread, which is whichever goroutine
// calls Scheduler.Flush, Scheduler.Wait or Scheduler.Run. Other goroutines
// hand results back with Scheduler.Post or Scheduler.Go.
package reactive
