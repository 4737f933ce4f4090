package sse

import (
	"context"
	"sync"

	"ms-reservation/internal/models"
)

const clientBuffer = 10

// TicketEventEmitter fans committed ticket events out to connected SSE
// clients. Clients either follow one PNR or the whole train.
type TicketEventEmitter struct {
	mu         sync.RWMutex
	pnrClients map[string][]chan models.TicketEvent
	allClients []chan models.TicketEvent
}

func NewTicketEventEmitter() *TicketEventEmitter {
	return &TicketEventEmitter{
		pnrClients: make(map[string][]chan models.TicketEvent),
	}
}

// SubscribeToPNR follows a single ticket. The channel is closed once ctx is done.
func (e *TicketEventEmitter) SubscribeToPNR(ctx context.Context, pnr string) <-chan models.TicketEvent {
	clientChan := make(chan models.TicketEvent, clientBuffer)

	e.mu.Lock()
	e.pnrClients[pnr] = append(e.pnrClients[pnr], clientChan)
	e.mu.Unlock()

	go func() {
		<-ctx.Done()
		e.mu.Lock()
		defer e.mu.Unlock()
		e.pnrClients[pnr] = remove(e.pnrClients[pnr], clientChan)
		if len(e.pnrClients[pnr]) == 0 {
			delete(e.pnrClients, pnr)
		}
	}()

	return clientChan
}

// SubscribeAll follows every ticket on the train.
func (e *TicketEventEmitter) SubscribeAll(ctx context.Context) <-chan models.TicketEvent {
	clientChan := make(chan models.TicketEvent, clientBuffer)

	e.mu.Lock()
	e.allClients = append(e.allClients, clientChan)
	e.mu.Unlock()

	go func() {
		<-ctx.Done()
		e.mu.Lock()
		defer e.mu.Unlock()
		e.allClients = remove(e.allClients, clientChan)
	}()

	return clientChan
}

// Publish never blocks: a client whose buffer is full misses the event.
func (e *TicketEventEmitter) Publish(_ context.Context, ev models.TicketEvent) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, clientChan := range e.pnrClients[ev.PNR] {
		select {
		case clientChan <- ev:
		default:
		}
	}
	for _, clientChan := range e.allClients {
		select {
		case clientChan <- ev:
		default:
		}
	}
	return nil
}

func (e *TicketEventEmitter) ClientCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	n := len(e.allClients)
	for _, clients := range e.pnrClients {
		n += len(clients)
	}
	return n
}

// remove drops ch and closes it. Callers hold the write lock, so no Publish
// can be sending on it.
func remove(clients []chan models.TicketEvent, ch chan models.TicketEvent) []chan models.TicketEvent {
	for i, c := range clients {
		if c == ch {
			close(ch)
			return append(clients[:i], clients[i+1:]...)
		}
	}
	return clients
}
