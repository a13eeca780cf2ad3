// Package playback is the player state machine.
//
// [Engine] owns a [PlayerState] and mutates it from a single goroutine: transport commands,
// queue navigation with shuffle and repeat, volume and rate all run there, as do the events
// coming back from the [backend.Backend]. Every load is tagged with a generation so that
// events from a superseded track are dropped. Each change is published as a copied snapshot
// to every [Subscription] in order.
package playback
