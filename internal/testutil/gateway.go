package testutil

import (
	"context"
	"sort"
	"sync"

	"github.com/roach88/coffeematch/internal/notify"
)

// Delivery is one notification seen by a Recorder.
type Delivery struct {
	ParticipantID string
	Payload       notify.Payload
}

// Recorder is a notify.Gateway that records deliveries in memory.
// Participants registered with FailFor get an error instead.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Recorder struct {
	mu        sync.Mutex
	delivered []Delivery
	failed    []Delivery
	fail      map[string]error
}

// NewRecorder creates an empty recording gateway.
func NewRecorder() *Recorder {
	return &Recorder{fail: make(map[string]error)}
}

// FailFor makes deliveries to id fail with err, or notify.ErrUnreachable
// when err is nil.
func (r *Recorder) FailFor(id string, err error) {
	if err == nil {
		err = notify.ErrUnreachable
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail[id] = err
}

// Heal makes deliveries to id succeed again.
func (r *Recorder) Heal(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.fail, id)
}

// Notify implements notify.Gateway.
func (r *Recorder) Notify(_ context.Context, participantID string, p notify.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d := Delivery{ParticipantID: participantID, Payload: p}
	if err, ok := r.fail[participantID]; ok {
		r.failed = append(r.failed, d)
		return err
	}
	r.delivered = append(r.delivered, d)
	return nil
}

// Delivered returns successful deliveries sorted by participant, then kind.
// Deliveries run concurrently, so arrival order carries no meaning.
func (r *Recorder) Delivered() []Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return sorted(r.delivered)
}

// Failed returns failed delivery attempts, sorted like Delivered.
func (r *Recorder) Failed() []Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return sorted(r.failed)
}

// To returns the payloads delivered to one participant.
func (r *Recorder) To(id string) []notify.Payload {
	var out []notify.Payload
	for _, d := range r.Delivered() {
		if d.ParticipantID == id {
			out = append(out, d.Payload)
		}
	}
	return out
}

// Count returns the number of delivered payloads of the given kind.
func (r *Recorder) Count(kind notify.Kind) int {
	n := 0
	for _, d := range r.Delivered() {
		if d.Payload.Kind() == kind {
			n++
		}
	}
	return n
}

// Reset forgets all recorded deliveries. Failure rules stay.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delivered = nil
	r.failed = nil
}

func sorted(in []Delivery) []Delivery {
	out := make([]Delivery, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ParticipantID != out[j].ParticipantID {
			return out[i].ParticipantID < out[j].ParticipantID
		}
		return out[i].Payload.Kind() < out[j].Payload.Kind()
	})
	return out
}
