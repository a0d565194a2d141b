package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/ziadkadry99/privacypilot/internal/metrics"
	"github.com/ziadkadry99/privacypilot/internal/policy"
)

const queueSize = 64

// Dispatcher records every policy change and delivers it to webhook
// subscribers. Deliveries happen on one worker goroutine, in update order.
type Dispatcher struct {
	store   *Store
	client  *http.Client
	metrics *metrics.Metrics

	queue chan policy.ConsentState
	wg    sync.WaitGroup
	unsub func()
	done  chan struct{}
}

// NewDispatcher creates a Dispatcher backed by the given store. m may be nil.
func NewDispatcher(store *Store, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		store:   store,
		metrics: m,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Track subscribes to p and starts the delivery worker. The listener only
// enqueues, so a slow webhook never holds up the policy fan-out.
func (d *Dispatcher) Track(p *policy.Store) {
	d.queue = make(chan policy.ConsentState, queueSize)
	d.done = make(chan struct{})
	go d.run()

	d.unsub = p.Subscribe(func(s policy.ConsentState) {
		d.wg.Add(1)
		select {
		case d.queue <- s:
		default:
			d.wg.Done()
			log.Printf("notifications: queue full, dropping policy change")
			d.metrics.IncrementWriteFailure("webhook")
		}
	})
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for s := range d.queue {
		if _, err := d.Dispatch(context.Background(), s); err != nil {
			log.Printf("notifications: %v", err)
		}
		d.wg.Done()
	}
}

// Wait blocks until every queued change has been delivered.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Close unsubscribes, drains the queue and stops the worker.
func (d *Dispatcher) Close() {
	if d.unsub == nil {
		return
	}
	d.unsub()
	d.unsub = nil
	close(d.queue)
	<-d.done
}

// Dispatch persists a notification for state and sends it to every webhook.
func (d *Dispatcher) Dispatch(ctx context.Context, state policy.ConsentState) (*Notification, error) {
	n, err := d.store.Create(ctx, state)
	if err != nil {
		return nil, err
	}

	hooks, err := d.store.ListWebhooks(ctx)
	if err != nil {
		return n, fmt.Errorf("listing webhooks: %w", err)
	}
	if len(hooks) == 0 {
		return n, nil
	}

	payload, err := json.Marshal(Payload{
		ID:        n.ID,
		Type:      n.Type,
		Detail:    state,
		CreatedAt: n.CreatedAt,
	})
	if err != nil {
		return n, fmt.Errorf("encoding payload: %w", err)
	}

	for _, h := range hooks {
		if err := d.SendWebhook(ctx, h.URL, payload); err != nil {
			log.Printf("notifications: delivering to %s: %v", h.URL, err)
			d.metrics.IncrementWriteFailure("webhook")
			n.Failed++
			continue
		}
		n.Delivered++
	}

	if err := d.store.MarkDelivered(ctx, n.ID, n.Delivered, n.Failed); err != nil {
		return n, fmt.Errorf("recording delivery: %w", err)
	}
	return n, nil
}

// SendWebhook POSTs payload to the given URL.
func (d *Dispatcher) SendWebhook(ctx context.Context, url string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
