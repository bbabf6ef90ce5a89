// Package events provides realtime push fan-out of governance events to
// live subscribers.
//
// The hub is decoupled from webhook delivery: publishing never blocks on
// a slow subscriber. Each subscription owns a bounded channel; when the
// buffer is full the event is dropped for that subscriber and a drop
// counter is incremented.
package events
