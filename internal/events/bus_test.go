package events

import "testing"

func TestBusDeliversToSubscribers(t *testing.T) {
	bus := NewBus()
	a := bus.Subscribe(EventReservationCreated)
	b := bus.Subscribe(EventReservationCreated)
	other := bus.Subscribe(EventBatchCreated)

	bus.Publish(EventReservationCreated, Payload{"reservation_id": "r1"})

	for _, sub := range []Subscriber{a, b} {
		select {
		case p := <-sub:
			if p["reservation_id"] != "r1" {
				t.Fatalf("payload = %v", p)
			}
		default:
			t.Fatal("subscriber did not receive the event")
		}
	}
	select {
	case p := <-other:
		t.Fatalf("unrelated subscriber got %v", p)
	default:
	}
}

func TestBusDropsWhenSubscriberIsFull(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventCapacityChanged)
	for i := 0; i < cap(sub)+5; i++ {
		bus.Publish(EventCapacityChanged, Payload{"i": i})
	}
	if len(sub) != cap(sub) {
		t.Fatalf("buffered %d, want %d", len(sub), cap(sub))
	}
}

func TestBusUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventWindowCreated)
	bus.Unsubscribe(EventWindowCreated, sub)
	if _, open := <-sub; open {
		t.Fatal("channel still open")
	}
	bus.Publish(EventWindowCreated, Payload{})
}

var _ Broker = (*Bus)(nil)
