package broker

// subscriberBuffer is how many payloads a subscriber may lag behind before it starts missing them.
const subscriberBuffer = 16

type publication[TID comparable, TPayload any] struct {
	ID      TID
	Payload TPayload
}

type subscription[TID comparable, TPayload any] struct {
	ID      TID
	Channel chan TPayload
}

// ChannelBroker fans payloads published under an ID out to every subscriber of that ID.
//
// This kind of broker is useful for streaming state changes through SSE. The producer is the avatar store of a
// browser session and the consumers are the SSE handlers of that session, one per open tab. A subscriber that does
// not keep up misses payloads instead of blocking the producer, so payloads should describe state, not deltas.
type ChannelBroker[TID comparable, TPayload any] struct {
	stopChannel        chan struct{}
	publishChannel     chan publication[TID, TPayload]
	subscribeChannel   chan subscription[TID, TPayload]
	unsubscribeChannel chan subscription[TID, TPayload]
	closeChannel       chan TID
}

// NewChannelBroker creates a new ChannelBroker. Use Start() to start the goroutine that handles it and Stop() to
// stop it.
func NewChannelBroker[TID comparable, TPayload any]() *ChannelBroker[TID, TPayload] {
	broker := ChannelBroker[TID, TPayload]{
		stopChannel:        make(chan struct{}),
		publishChannel:     make(chan publication[TID, TPayload]),
		subscribeChannel:   make(chan subscription[TID, TPayload]),
		unsubscribeChannel: make(chan subscription[TID, TPayload]),
		closeChannel:       make(chan TID),
	}
	return &broker
}

// Start listening for publish, subscribe, unsubscribe and close events. This function blocks until Stop() is called,
// so it should be called in a goroutine. Every subscriber channel is closed when it returns.
func (b *ChannelBroker[TID, TPayload]) Start() {
	subscriberLists := map[TID][]chan TPayload{}
	defer func() {
		for _, subscribers := range subscriberLists {
			for _, c := range subscribers {
				close(c)
			}
		}
	}()
	for {
		select {
		case <-b.stopChannel:
			return

		case sub := <-b.subscribeChannel:
			subscriberLists[sub.ID] = append(subscriberLists[sub.ID], sub.Channel)

		case sub := <-b.unsubscribeChannel:
			subscribers := subscriberLists[sub.ID]
			for i, c := range subscribers {
				if c == sub.Channel {
					close(c)
					subscribers = append(subscribers[:i], subscribers[i+1:]...)
					break
				}
			}
			if len(subscribers) == 0 {
				delete(subscriberLists, sub.ID)
			} else {
				subscriberLists[sub.ID] = subscribers
			}

		case pub := <-b.publishChannel:
			for _, c := range subscriberLists[pub.ID] {
				select {
				case c <- pub.Payload:
				default:
					// Slow subscriber, it will catch up with the next payload.
				}
			}

		case id := <-b.closeChannel:
			for _, c := range subscriberLists[id] {
				close(c)
			}
			delete(subscriberLists, id)
		}
	}
}

// Stop the goroutine that handles the broker.
func (b *ChannelBroker[TID, TPayload]) Stop() {
	close(b.stopChannel)
}

// Subscribe to the payloads published with ID. The returned channel is closed by unsubscribe, by Close(id) or when
// the broker stops. Call unsubscribe exactly once when done.
func (b *ChannelBroker[TID, TPayload]) Subscribe(id TID) (payloads <-chan TPayload, unsubscribe func()) {
	channel := make(chan TPayload, subscriberBuffer)
	sub := subscription[TID, TPayload]{ID: id, Channel: channel}
	select {
	case b.subscribeChannel <- sub:
	case <-b.stopChannel:
		close(channel)
		return channel, func() {}
	}
	return channel, func() {
		select {
		case b.unsubscribeChannel <- sub:
		case <-b.stopChannel:
		}
	}
}

// Publish payload to the current subscribers of ID. Without subscribers the payload is dropped.
func (b *ChannelBroker[TID, TPayload]) Publish(id TID, payload TPayload) {
	select {
	case b.publishChannel <- publication[TID, TPayload]{ID: id, Payload: payload}:
	case <-b.stopChannel:
	}
}

// Close closes the channels of every subscriber of ID, e.g. when the producer goes away.
func (b *ChannelBroker[TID, TPayload]) Close(id TID) {
	select {
	case b.closeChannel <- id:
	case <-b.stopChannel:
	}
}
