package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/danfelbm/astra-sub000/models"
)

// In-memory collaborators for exercising the import pipeline without MySQL.

type fakePersonRepo struct {
	mu      sync.Mutex
	nextID  int
	people  []*models.Person
	updates []map[string]interface{}

	failUpdate error
	failCreate error
}

func newFakePersonRepo(seed ...*models.Person) *fakePersonRepo {
	repo := &fakePersonRepo{nextID: 1}
	for _, p := range seed {
		if p.ID == 0 {
			p.ID = repo.nextID
		}
		if p.ID >= repo.nextID {
			repo.nextID = p.ID + 1
		}
		repo.people = append(repo.people, p)
	}
	return repo
}

func (r *fakePersonRepo) FindByID(_ context.Context, tenantID, id int) (*models.Person, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.people {
		if p.TenantID == tenantID && p.ID == id {
			return p, nil
		}
	}
	return nil, ErrPersonNotFound
}

func (r *fakePersonRepo) FindByEmail(_ context.Context, tenantID int, email string) (*models.Person, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	want := strings.ToLower(strings.TrimSpace(email))
	for _, p := range r.people {
		if p.TenantID == tenantID && strings.ToLower(strings.TrimSpace(p.Email)) == want && p.Email != "" {
			return p, nil
		}
	}
	return nil, nil
}

func (r *fakePersonRepo) FindByDocument(_ context.Context, tenantID int, document string) (*models.Person, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	want := strings.TrimSpace(document)
	for _, p := range r.people {
		if p.TenantID == tenantID && strings.TrimSpace(p.DocumentNumber) == want && p.DocumentNumber != "" {
			return p, nil
		}
	}
	return nil, nil
}

func (r *fakePersonRepo) Create(_ context.Context, person *models.Person) error {
	if r.failCreate != nil {
		return r.failCreate
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	person.ID = r.nextID
	r.nextID++
	r.people = append(r.people, person)
	return nil
}

func (r *fakePersonRepo) Update(_ context.Context, tenantID, id int, fields map[string]interface{}) error {
	if r.failUpdate != nil {
		return r.failUpdate
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, fields)
	for _, p := range r.people {
		if p.TenantID != tenantID || p.ID != id {
			continue
		}
		for column, value := range fields {
			switch column {
			case "name":
				p.Name = value.(string)
			case "email":
				p.Email = value.(string)
			case "document_number":
				p.DocumentNumber = value.(string)
			case "document_type":
				s := value.(string)
				p.DocumentType = &s
			case "phone":
				s := value.(string)
				p.Phone = &s
			case "territory_id":
				n := value.(int)
				p.TerritoryID = &n
			case "municipality_id":
				n := value.(int)
				p.MunicipalityID = &n
			}
		}
		return nil
	}
	// Matches MySQL: updating a missing row affects zero rows and is not an error.
	return nil
}

func (r *fakePersonRepo) byEmail(email string) *models.Person {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.people {
		if p.Email == email {
			return p
		}
	}
	return nil
}

func (r *fakePersonRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.people)
}

type fakeJobRepo struct {
	mu        sync.Mutex
	nextID    uint
	jobs      map[uint]*models.ImportJob
	conflicts map[string]*models.ImportConflict
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{
		nextID:    1,
		jobs:      make(map[uint]*models.ImportJob),
		conflicts: make(map[string]*models.ImportConflict),
	}
}

func (r *fakeJobRepo) Create(_ context.Context, job *models.ImportJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job.ID = r.nextID
	r.nextID++
	r.jobs[job.ID] = job
	return nil
}

func (r *fakeJobRepo) Get(_ context.Context, id uint) (*models.ImportJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	copied := *job
	return &copied, nil
}

func (r *fakeJobRepo) GetForTenant(_ context.Context, tenantID int, id uint) (*models.ImportJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok || job.TenantID != tenantID {
		return nil, ErrJobNotFound
	}
	copied := *job
	return &copied, nil
}

func (r *fakeJobRepo) List(_ context.Context, tenantID, limit, offset int) ([]models.ImportJob, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.ImportJob
	for _, job := range r.jobs {
		if job.TenantID == tenantID {
			out = append(out, *job)
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeJobRepo) UpdateFields(_ context.Context, id uint, fields map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	for key, value := range fields {
		switch key {
		case "status":
			job.Status = value.(string)
		case "started_at":
			t := value.(time.Time)
			job.StartedAt = &t
		case "completed_at":
			t := value.(time.Time)
			job.CompletedAt = &t
		case "last_heartbeat":
			t := value.(time.Time)
			job.LastHeartbeat = &t
		case "total_rows":
			job.TotalRows = value.(int64)
		case "total_is_estimate":
			job.TotalIsEstimate = value.(bool)
		case "processed_rows":
			job.ProcessedRows = value.(int64)
		case "successful_rows":
			job.SuccessfulRows = value.(int64)
		case "failed_rows":
			job.FailedRows = value.(int64)
		case "row_errors":
			job.RowErrors = value.(models.ImportRowErrors)
		case "error_message":
			msg := value.(string)
			job.ErrorMessage = &msg
		default:
			return fmt.Errorf("fake job repo: unexpected field %q", key)
		}
	}
	return nil
}

func (r *fakeJobRepo) ClaimPending(_ context.Context, id uint, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok || job.Status != models.ImportJobStatusPending {
		return ErrJobNotPending
	}
	job.Status = models.ImportJobStatusProcessing
	job.StartedAt = &now
	job.LastHeartbeat = &now
	return nil
}

func (r *fakeJobRepo) AddConflict(_ context.Context, conflict *models.ImportConflict) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conflicts[conflict.ID] = conflict
	return nil
}

func (r *fakeJobRepo) GetConflict(_ context.Context, jobID uint, conflictID string) (*models.ImportConflict, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conflict, ok := r.conflicts[conflictID]
	if !ok || conflict.ImportJobID != jobID {
		return nil, ErrConflictNotFound
	}
	copied := *conflict
	return &copied, nil
}

func (r *fakeJobRepo) ListConflicts(_ context.Context, jobID uint) ([]models.ImportConflict, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.ImportConflict
	for _, conflict := range r.conflicts {
		if conflict.ImportJobID == jobID {
			out = append(out, *conflict)
		}
	}
	return out, nil
}

func (r *fakeJobRepo) CountConflicts(_ context.Context, jobID uint) (int64, error) {
	list, _ := r.ListConflicts(nil, jobID)
	return int64(len(list)), nil
}

func (r *fakeJobRepo) ClaimConflict(_ context.Context, jobID uint, conflictID, resolution string, resolvedBy int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	conflict, ok := r.conflicts[conflictID]
	if !ok || conflict.ImportJobID != jobID {
		return ErrConflictNotFound
	}
	if conflict.Resolved {
		return ErrConflictAlreadyResolved
	}
	now := time.Now()
	conflict.Resolved = true
	conflict.Resolution = &resolution
	conflict.ResolvedAt = &now
	conflict.ResolvedBy = &resolvedBy
	return nil
}

func (r *fakeJobRepo) ReopenConflict(_ context.Context, jobID uint, conflictID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	conflict, ok := r.conflicts[conflictID]
	if !ok || conflict.ImportJobID != jobID {
		return ErrConflictNotFound
	}
	conflict.Resolved = false
	conflict.Resolution = nil
	conflict.ResolvedAt = nil
	conflict.ResolvedBy = nil
	return nil
}

func (r *fakeJobRepo) singleConflict() *models.ImportConflict {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, conflict := range r.conflicts {
		return conflict
	}
	return nil
}

type fakeGeoResolver struct {
	territories    map[string]int
	municipalities map[string]int
}

func newFakeGeoResolver() *fakeGeoResolver {
	return &fakeGeoResolver{
		territories:    map[string]int{"cundinamarca": 11, "antioquia": 5},
		municipalities: map[string]int{"bogota": 110, "medellin": 50},
	}
}

func (g *fakeGeoResolver) ResolveTerritory(_ context.Context, name string) (int, error) {
	if id, ok := g.territories[strings.ToLower(strings.TrimSpace(name))]; ok {
		return id, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownLocation, name)
}

func (g *fakeGeoResolver) ResolveMunicipality(_ context.Context, name string) (int, error) {
	if id, ok := g.municipalities[strings.ToLower(strings.TrimSpace(name))]; ok {
		return id, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownLocation, name)
}

type fakeLinker struct {
	mu    sync.Mutex
	links []int
	fail  error
}

func (l *fakeLinker) Link(_ context.Context, _ *models.ImportJob, personID int) error {
	if l.fail != nil {
		return l.fail
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.links = append(l.links, personID)
	return nil
}
