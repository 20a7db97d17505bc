package playlist

// Event names a notification emitted by a Playlist
type Event string

// EventTracksUpdated fires after the track list has changed
const EventTracksUpdated Event = "tracksUpdated"

// SubscriptionID identifies a registered handler for Unsubscribe
type SubscriptionID uint64

type listener struct {
	id      SubscriptionID
	event   Event
	handler func()
}

// Subscribe registers handler for event. Handlers run synchronously, in
// registration order, on the goroutine that mutated the playlist.
func (p *Playlist) Subscribe(event Event, handler func()) SubscriptionID {
	p.nextListenerID++
	p.listeners = append(p.listeners, listener{
		id:      p.nextListenerID,
		event:   event,
		handler: handler,
	})
	return p.nextListenerID
}

// Unsubscribe removes a handler, reporting whether it was registered
func (p *Playlist) Unsubscribe(id SubscriptionID) bool {
	for i, l := range p.listeners {
		if l.id == id {
			p.listeners = append(p.listeners[:i:i], p.listeners[i+1:]...)
			return true
		}
	}
	return false
}

// emit calls a snapshot of the listeners so handlers may unsubscribe themselves
func (p *Playlist) emit(event Event) {
	snapshot := make([]listener, len(p.listeners))
	copy(snapshot, p.listeners)

	for _, l := range snapshot {
		if l.event == event {
			l.handler()
		}
	}
}
