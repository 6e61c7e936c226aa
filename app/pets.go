// Package app is the example application: a small pet store exercising
// process-scope modules, request-scope services, bean factories, and the
// request data stack.
package app

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/weft-dev/weft/framework/ioc"
)

// PetStatus is a closed value set; inbound values outside it are rejected.
type PetStatus string

func (PetStatus) EnumValues() []string {
	return []string{"available", "pending", "sold"}
}

const (
	StatusAvailable PetStatus = "available"
	StatusPending   PetStatus = "pending"
	StatusSold      PetStatus = "sold"
)

// Pet is the wire shape of a stored pet. Tag is optional; everything else is
// required on input.
type Pet struct {
	ID     int       `json:"id"`
	Name   string    `json:"name" validate:"min=1"`
	Status PetStatus `json:"status"`
	Tag    *string   `json:"tag"`
}

// NewPet is the inbound shape: the store assigns the ID.
type NewPet struct {
	Name string  `json:"name" validate:"min=1"`
	Tag  *string `json:"tag"`
}

// ── Storage module ───────────────────────────────────────────────────────────

// PetRepo is the process-scope pet store. One instance serves all requests,
// so access is guarded.
type PetRepo struct {
	ioc.BaseModule

	mu     sync.Mutex
	nextID int
	pets   map[int]Pet
}

func (r *PetRepo) OnStartup(ctx context.Context, app *ioc.App) error {
	app.Logger().Info("pet repo ready")
	return nil
}

// init is lazy so the repo works before the lifecycle runs, e.g. in tests.
func (r *PetRepo) init() {
	if r.pets == nil {
		r.pets = make(map[int]Pet)
		r.nextID = 1
	}
}

func (r *PetRepo) OnShutdown(ctx context.Context, app *ioc.App) error {
	r.mu.Lock()
	n := len(r.pets)
	r.mu.Unlock()
	app.Logger().Info("pet repo closing", zap.Int("pets", n))
	return nil
}

func (r *PetRepo) insert(p NewPet) Pet {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.init()
	pet := Pet{ID: r.nextID, Name: p.Name, Status: StatusAvailable, Tag: p.Tag}
	r.pets[pet.ID] = pet
	r.nextID++
	return pet
}

func (r *PetRepo) get(id int) (Pet, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pets[id]
	return p, ok
}

func (r *PetRepo) list(status *PetStatus) []Pet {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Pet, 0, len(r.pets))
	for _, p := range r.pets {
		if status != nil && p.Status != *status {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *PetRepo) update(p Pet) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pets[p.ID]; !ok {
		return false
	}
	r.pets[p.ID] = p
	return true
}

func (r *PetRepo) remove(id int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pets[id]; !ok {
		return false
	}
	delete(r.pets, id)
	return true
}

// ── Request-scope service ────────────────────────────────────────────────────

// PetNotFoundError renders as a client error body.
type PetNotFoundError struct {
	ID int
}

func (e *PetNotFoundError) Error() string {
	return fmt.Sprintf("pet %d not found", e.ID)
}

func (e *PetNotFoundError) HTTPStatus() int { return http.StatusNotFound }

// PetService is built fresh per request on top of the shared repository.
type PetService struct {
	ioc.BaseService

	Repo *PetRepo
	Log  *zap.Logger
}

func (s *PetService) Create(p NewPet) Pet {
	pet := s.Repo.insert(p)
	s.Log.Info("pet created", zap.Int("id", pet.ID), zap.String("name", pet.Name))
	return pet
}

func (s *PetService) Get(id int) (Pet, error) {
	p, ok := s.Repo.get(id)
	if !ok {
		return Pet{}, &PetNotFoundError{ID: id}
	}
	return p, nil
}

func (s *PetService) List(status *PetStatus) []Pet {
	return s.Repo.list(status)
}

func (s *PetService) SetStatus(id int, status PetStatus) (Pet, error) {
	p, ok := s.Repo.get(id)
	if !ok {
		return Pet{}, &PetNotFoundError{ID: id}
	}
	p.Status = status
	s.Repo.update(p)
	return p, nil
}

func (s *PetService) Delete(id int) error {
	if !s.Repo.remove(id) {
		return &PetNotFoundError{ID: id}
	}
	return nil
}
