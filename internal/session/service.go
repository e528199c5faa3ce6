package session

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"fitroom/internal/genimage"
	"fitroom/internal/imagestore"
	"fitroom/internal/resolver"
	"fitroom/internal/tryon"
	"fitroom/internal/wardrobe"
)

const DefaultTTL = 2 * time.Hour

type Config struct {
	// SessionTTL is how long an untouched session survives before Sweep
	// removes it. <=0 means DefaultTTL.
	SessionTTL time.Duration
	// Catalog seeds every new session's wardrobe. nil means the built-in
	// catalog.
	Catalog wardrobe.Catalog
	Logger  *log.Logger
}

type Service struct {
	mu       sync.Mutex
	sessions map[string]*session

	gateway  genimage.Gateway
	store    imagestore.Store
	resolver *resolver.Resolver
	catalog  wardrobe.Catalog
	ttl      time.Duration
	log      *log.Logger
}

func New(gw genimage.Gateway, store imagestore.Store, res *resolver.Resolver, cfg Config) *Service {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultTTL
	}
	if cfg.Catalog == nil {
		cfg.Catalog = wardrobe.DefaultCatalog()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &Service{
		sessions: make(map[string]*session),
		gateway:  gw,
		store:    store,
		resolver: res,
		catalog:  cfg.Catalog,
		ttl:      cfg.SessionTTL,
		log:      cfg.Logger,
	}
}

// Create registers a fresh session and returns its snapshot.
func (s *Service) Create(_ context.Context) *Snapshot {
	now := time.Now()
	st := &session{
		id:        uuid.NewString(),
		wardrobe:  wardrobe.New(s.catalog),
		activity:  ActivityIdle,
		changed:   make(chan struct{}),
		createdAt: now,
		updatedAt: now,
	}
	s.mu.Lock()
	s.sessions[st.id] = st
	snap := s.snapshotLocked(st)
	s.mu.Unlock()
	s.log.Printf("session %s: created", st.id)
	return snap
}

// Get returns the current snapshot.
func (s *Service) Get(id string) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.lookupLocked(id)
	if err != nil {
		return nil, err
	}
	return s.snapshotLocked(st), nil
}

// Delete removes the session and purges its stored images. Deleting a
// busy session is allowed; the in-flight result is dropped when it lands.
func (s *Service) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	st, err := s.lookupLocked(id)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	notifyLocked(st)
	delete(s.sessions, st.id)
	s.mu.Unlock()

	if err := s.store.Purge(ctx, st.id); err != nil {
		s.log.Printf("session %s: purge after delete: %v", st.id, err)
	}
	s.log.Printf("session %s: deleted", st.id)
	return nil
}

// Subscribe emits a snapshot immediately and then on every change until
// ctx is canceled or the session is deleted. Slow consumers lose
// intermediate snapshots, never the latest one.
func (s *Service) Subscribe(ctx context.Context, id string) (<-chan *Snapshot, error) {
	id = strings.TrimSpace(id)
	s.mu.Lock()
	if _, err := s.lookupLocked(id); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.mu.Unlock()

	out := make(chan *Snapshot, 8)
	go func() {
		defer close(out)
		for {
			s.mu.Lock()
			st, ok := s.sessions[id]
			if !ok {
				s.mu.Unlock()
				return
			}
			snap := s.snapshotLocked(st)
			ch := st.changed
			s.mu.Unlock()

			pushSnapshot(out, snap)

			select {
			case <-ctx.Done():
				return
			case <-ch:
			}
		}
	}()
	return out, nil
}

// Wardrobe lists the session's garments.
func (s *Service) Wardrobe(id string) ([]tryon.Garment, error) {
	s.mu.Lock()
	st, err := s.lookupLocked(id)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return st.wardrobe.Items(), nil
}

// Poses returns the fixed pose list.
func (s *Service) Poses() []string { return tryon.Poses() }

// Sweep removes sessions untouched for longer than the TTL and returns
// how many were dropped. Busy sessions are skipped.
func (s *Service) Sweep(ctx context.Context) int {
	cutoff := time.Now().Add(-s.ttl)

	s.mu.Lock()
	var expired []*session
	for id, st := range s.sessions {
		if st.busy || st.updatedAt.After(cutoff) {
			continue
		}
		notifyLocked(st)
		delete(s.sessions, id)
		expired = append(expired, st)
	}
	s.mu.Unlock()

	for _, st := range expired {
		if err := s.store.Purge(ctx, st.id); err != nil {
			s.log.Printf("session %s: purge after sweep: %v", st.id, err)
		}
	}
	if len(expired) > 0 {
		s.log.Printf("session sweep: removed %d expired session(s)", len(expired))
	}
	return len(expired)
}

// StartSweeper runs Sweep on the given interval until ctx is canceled.
func (s *Service) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Sweep(ctx)
			}
		}
	}()
}

// Len reports the number of live sessions.
func (s *Service) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Service) lookupLocked(id string) (*session, error) {
	st, ok := s.sessions[strings.TrimSpace(id)]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return st, nil
}

func pushSnapshot(out chan *Snapshot, snap *Snapshot) {
	if out == nil || snap == nil {
		return
	}
	select {
	case out <- snap:
		return
	default:
	}
	select {
	case <-out:
	default:
	}
	select {
	case out <- snap:
	default:
	}
}
