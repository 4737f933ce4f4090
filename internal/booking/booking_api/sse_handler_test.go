package booking_api

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ms-reservation/internal/booking"
	qr "ms-reservation/internal/booking/qr_generator"
	"ms-reservation/internal/logger"
	"ms-reservation/internal/models"
	"ms-reservation/internal/sse"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func streamServer(t *testing.T) (*MockBookingService, *sse.TicketEventEmitter, *httptest.Server) {
	t.Helper()
	svc := new(MockBookingService)
	emitter := sse.NewTicketEventEmitter()
	h := NewHandler(svc, qr.NewQRGenerator("s"), logger.Discard())
	h.Events = emitter

	srv := httptest.NewServer(h.Routes(Guards{}))
	t.Cleanup(srv.Close)
	return svc, emitter, srv
}

// readEvent returns the next "event:" name and its data line.
func readEvent(t *testing.T, sc *bufio.Scanner) (string, string) {
	t.Helper()
	var name, data string
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		case line == "" && name != "":
			return name, data
		}
	}
	t.Fatalf("stream ended: %v", sc.Err())
	return "", ""
}

func TestTicketEventStream(t *testing.T) {
	svc, emitter, srv := streamServer(t)
	ticket := confirmedTicket()
	ticket.Tier = models.TierRAC
	svc.On("GetByPNR", mock.Anything, ticket.PNR).Return(ticket, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/"+ticket.PNR+"/events", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream"))
	sc := bufio.NewScanner(resp.Body)

	name, data := readEvent(t, sc)
	assert.Equal(t, "connected", name)
	assert.Contains(t, data, `"tier":"RAC"`)

	require.NoError(t, emitter.Publish(ctx, models.TicketEvent{Type: models.TicketEventBooked, PNR: "SOMEONEELS"}))
	require.NoError(t, emitter.Publish(ctx, models.TicketEvent{
		Type: models.TicketEventPromoted, PNR: ticket.PNR, FromTier: models.TierRAC, Tier: models.TierConfirmed,
	}))

	name, data = readEvent(t, sc)
	assert.Equal(t, models.TicketEventPromoted, name)
	assert.Contains(t, data, `"from_tier":"RAC"`)
}

func TestTicketEventStreamUnknownPNR(t *testing.T) {
	svc, emitter, srv := streamServer(t)
	svc.On("GetByPNR", mock.Anything, "MISSING123").Return(nil, booking.ErrNotFound)

	resp, err := srv.Client().Get(srv.URL + "/MISSING123/events")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, 0, emitter.ClientCount())
}

func TestTrainEventStream(t *testing.T) {
	_, emitter, srv := streamServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	sc := bufio.NewScanner(resp.Body)
	name, _ := readEvent(t, sc)
	require.Equal(t, "connected", name)

	require.NoError(t, emitter.Publish(ctx, models.TicketEvent{Type: models.TicketEventCancelled, PNR: "ANY0000000"}))
	name, data := readEvent(t, sc)
	assert.Equal(t, models.TicketEventCancelled, name)
	assert.Contains(t, data, "ANY0000000")
}
