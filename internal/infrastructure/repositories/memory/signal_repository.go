package memory

import (
	"context"
	"sync"

	"watchparty/internal/core/domain"
	"watchparty/internal/core/ports"
)

// MemorySignalRepository keeps per-room signaling records in process.
// ClaimOffer is serialized by the repository mutex, giving the same
// create-if-absent atomicity the redis implementation gets from SETNX.
// Candidate watches replay the existing collection before streaming new
// appends, matching store subscription semantics.
type MemorySignalRepository struct {
	mu             sync.Mutex
	offers         map[domain.RoomID]*domain.SessionDescription
	answers        map[domain.RoomID]*domain.SessionDescription
	answerWatchers map[domain.RoomID][]chan *domain.SessionDescription
	candidates     map[domain.RoomID]map[domain.SignalRole][]*domain.ICECandidate
	candWatchers   map[domain.RoomID]map[domain.SignalRole][]chan *domain.ICECandidate
}

func NewMemorySignalRepository() ports.SignalRepository {
	return &MemorySignalRepository{
		offers:         make(map[domain.RoomID]*domain.SessionDescription),
		answers:        make(map[domain.RoomID]*domain.SessionDescription),
		answerWatchers: make(map[domain.RoomID][]chan *domain.SessionDescription),
		candidates:     make(map[domain.RoomID]map[domain.SignalRole][]*domain.ICECandidate),
		candWatchers:   make(map[domain.RoomID]map[domain.SignalRole][]chan *domain.ICECandidate),
	}
}

func (r *MemorySignalRepository) ClaimOffer(ctx context.Context, room domain.RoomID, offer *domain.SessionDescription) (bool, *domain.SessionDescription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.offers[room]; ok {
		copied := *existing
		return false, &copied, nil
	}
	stored := *offer
	r.offers[room] = &stored
	return true, nil, nil
}

func (r *MemorySignalRepository) GetOffer(ctx context.Context, room domain.RoomID) (*domain.SessionDescription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	offer, ok := r.offers[room]
	if !ok {
		return nil, domain.ErrOfferNotFound
	}
	copied := *offer
	return &copied, nil
}

func (r *MemorySignalRepository) PutAnswer(ctx context.Context, room domain.RoomID, answer *domain.SessionDescription) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *answer
	r.answers[room] = &stored
	for _, ch := range r.answerWatchers[room] {
		copied := stored
		select {
		case ch <- &copied:
		default:
		}
	}
	return nil
}

func (r *MemorySignalRepository) WatchAnswer(ctx context.Context, room domain.RoomID) (<-chan *domain.SessionDescription, error) {
	r.mu.Lock()

	ch := make(chan *domain.SessionDescription, 8)
	if answer, ok := r.answers[room]; ok {
		copied := *answer
		ch <- &copied
	}
	r.answerWatchers[room] = append(r.answerWatchers[room], ch)
	r.mu.Unlock()

	go func() {
		<-ctx.Done()
		r.mu.Lock()
		defer r.mu.Unlock()
		for i, w := range r.answerWatchers[room] {
			if w == ch {
				r.answerWatchers[room] = append(r.answerWatchers[room][:i], r.answerWatchers[room][i+1:]...)
				close(ch)
				return
			}
		}
	}()

	return ch, nil
}

func (r *MemorySignalRepository) AppendCandidate(ctx context.Context, room domain.RoomID, role domain.SignalRole, cand *domain.ICECandidate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.candidates[room] == nil {
		r.candidates[room] = make(map[domain.SignalRole][]*domain.ICECandidate)
	}
	stored := *cand
	r.candidates[room][role] = append(r.candidates[room][role], &stored)

	if watchers, ok := r.candWatchers[room]; ok {
		for _, ch := range watchers[role] {
			copied := stored
			select {
			case ch <- &copied:
			default:
			}
		}
	}
	return nil
}

func (r *MemorySignalRepository) WatchCandidates(ctx context.Context, room domain.RoomID, role domain.SignalRole) (<-chan *domain.ICECandidate, error) {
	r.mu.Lock()

	ch := make(chan *domain.ICECandidate, 64)
	if cands, ok := r.candidates[room]; ok {
		for _, cand := range cands[role] {
			copied := *cand
			ch <- &copied
		}
	}
	if r.candWatchers[room] == nil {
		r.candWatchers[room] = make(map[domain.SignalRole][]chan *domain.ICECandidate)
	}
	r.candWatchers[room][role] = append(r.candWatchers[room][role], ch)
	r.mu.Unlock()

	go func() {
		<-ctx.Done()
		r.mu.Lock()
		defer r.mu.Unlock()
		watchers := r.candWatchers[room]
		if watchers == nil {
			return
		}
		for i, w := range watchers[role] {
			if w == ch {
				watchers[role] = append(watchers[role][:i], watchers[role][i+1:]...)
				close(ch)
				return
			}
		}
	}()

	return ch, nil
}

func (r *MemorySignalRepository) Clear(ctx context.Context, room domain.RoomID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.offers, room)
	delete(r.answers, room)
	delete(r.candidates, room)
	for _, ch := range r.answerWatchers[room] {
		close(ch)
	}
	delete(r.answerWatchers, room)
	for _, chans := range r.candWatchers[room] {
		for _, ch := range chans {
			close(ch)
		}
	}
	delete(r.candWatchers, room)
	return nil
}
