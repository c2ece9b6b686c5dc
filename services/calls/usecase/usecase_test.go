package usecase_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/rishabh280305/SehatMitra-sub000/services/calls/entity"
	"github.com/rishabh280305/SehatMitra-sub000/services/calls/storage"
	"github.com/rishabh280305/SehatMitra-sub000/services/calls/usecase"
)

var (
	drRao = entity.Participant{UserID: "dr-rao", UserType: entity.UserTypeDoctor, DisplayName: "Dr. Rao"}
	sita  = entity.Participant{UserID: "sita", UserType: entity.UserTypePatient, DisplayName: "Sita Devi"}
	meena = entity.Participant{UserID: "meena", UserType: entity.UserTypeAshaWorker, DisplayName: "Meena"}
)

type fakeDirectory struct {
	users map[string]entity.Participant
}

func (d *fakeDirectory) Resolve(ctx context.Context, userID string) (*entity.Participant, error) {
	u, ok := d.users[userID]
	if !ok {
		return nil, fmt.Errorf("user %s not found", userID)
	}
	return &u, nil
}

type relayedFrame struct {
	From string
	To   string
	Env  *entity.Envelope
}

type fakeRelay struct {
	mu      sync.Mutex
	offline bool
	frames  []relayedFrame
}

func (r *fakeRelay) Relay(ctx context.Context, from, to string, msg any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.offline {
		return entity.ErrDeliveryUnavailable
	}
	env, _ := msg.(*entity.Envelope)
	r.frames = append(r.frames, relayedFrame{From: from, To: to, Env: env})
	return nil
}

func (r *fakeRelay) framesTo(userID string) []relayedFrame {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []relayedFrame
	for _, f := range r.frames {
		if f.To == userID {
			out = append(out, f)
		}
	}
	return out
}

type fixture struct {
	uc    usecase.Usecase
	relay *fakeRelay
}

func newFixture(ringTimeout time.Duration) *fixture {
	relay := &fakeRelay{}
	f := newFixtureWithRelay(ringTimeout, relay)
	f.relay = relay
	return f
}

func newFixtureWithRelay(ringTimeout time.Duration, relay usecase.Relay) *fixture {
	uc := usecase.New(usecase.Options{
		Sessions:  storage.NewMemorySessionStore(),
		Schedules: storage.NewMemoryScheduleStore(),
		Directory: &fakeDirectory{users: map[string]entity.Participant{
			drRao.UserID: drRao,
			sita.UserID:  sita,
			meena.UserID: meena,
		}},
		Relay:       relay,
		RingTimeout: ringTimeout,
		Log:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return &fixture{uc: uc}
}
