package memory

import (
	"context"
	"sort"

	"github.com/geocoder89/clinicfinder/internal/domain/clinic"
	"github.com/geocoder89/clinicfinder/internal/domain/manager"
	"github.com/geocoder89/clinicfinder/internal/domain/user"
)

type ManagersRepo struct {
	db *DB
}

// managerLocked must be called with mu held.
func (db *DB) managerLocked(id int64) (manager.Manager, error) {
	u, ok := db.users[id]
	if !ok || u.Role != user.RoleClinicManager {
		return manager.Manager{}, manager.ErrNotFound
	}

	m := manager.Manager{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Phone:     u.Phone,
		Status:    u.Status,
		Clinics:   []manager.ClinicRef{},
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
	for _, cid := range sortedKeys(db.assignments[id]) {
		c := db.clinics[cid]
		m.Clinics = append(m.Clinics, manager.ClinicRef{ID: c.ID, Name: c.Name, Status: string(c.Status)})
	}
	sort.SliceStable(m.Clinics, func(i, j int) bool { return m.Clinics[i].Name < m.Clinics[j].Name })
	return m, nil
}

// assignLocked must be called with mu held.
func (db *DB) assignLocked(id int64, clinicIDs []int64) error {
	for _, cid := range clinicIDs {
		if _, ok := db.clinics[cid]; !ok {
			return manager.ErrUnknownClinic
		}
	}
	set := make(map[int64]struct{}, len(clinicIDs))
	for _, cid := range clinicIDs {
		set[cid] = struct{}{}
	}
	db.assignments[id] = set
	return nil
}

func (r *ManagersRepo) Create(_ context.Context, u user.User, clinicIDs []int64) (manager.Manager, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if r.db.emailTaken(u.Email, 0) {
		return manager.Manager{}, user.ErrEmailTaken
	}
	for _, cid := range clinicIDs {
		if _, ok := r.db.clinics[cid]; !ok {
			return manager.Manager{}, manager.ErrUnknownClinic
		}
	}

	now := r.db.now().UTC()
	u.ID = r.db.nextID()
	u.Email = user.NormalizeEmail(u.Email)
	u.Role = user.RoleClinicManager
	u.Status = user.StatusActive
	u.CreatedAt = now
	u.UpdatedAt = now
	r.db.users[u.ID] = u

	if err := r.db.assignLocked(u.ID, clinicIDs); err != nil {
		return manager.Manager{}, err
	}
	return r.db.managerLocked(u.ID)
}

func (r *ManagersRepo) GetByID(_ context.Context, id int64) (manager.Manager, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return r.db.managerLocked(id)
}

func (r *ManagersRepo) List(_ context.Context) ([]manager.Manager, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	out := make([]manager.Manager, 0)
	for _, id := range sortedKeys(r.db.users) {
		if r.db.users[id].Role != user.RoleClinicManager {
			continue
		}
		m, err := r.db.managerLocked(id)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].LastName != out[j].LastName {
			return out[i].LastName < out[j].LastName
		}
		return out[i].FirstName < out[j].FirstName
	})
	return out, nil
}

func (r *ManagersRepo) Update(_ context.Context, id int64, ch manager.Changes) (manager.Manager, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, err := r.db.managerLocked(id); err != nil {
		return manager.Manager{}, err
	}
	u := r.db.users[id]
	if ch.Email != nil {
		if r.db.emailTaken(*ch.Email, id) {
			return manager.Manager{}, user.ErrEmailTaken
		}
		u.Email = user.NormalizeEmail(*ch.Email)
	}
	if ch.FirstName != nil {
		u.FirstName = *ch.FirstName
	}
	if ch.LastName != nil {
		u.LastName = *ch.LastName
	}
	if ch.Phone != nil {
		u.Phone = *ch.Phone
	}
	if ch.PasswordHash != nil {
		u.PasswordHash = *ch.PasswordHash
	}

	if ch.ClinicIDs != nil {
		for _, cid := range ch.ClinicIDs {
			if _, ok := r.db.clinics[cid]; !ok {
				return manager.Manager{}, manager.ErrUnknownClinic
			}
		}
	}

	u.UpdatedAt = r.db.now().UTC()
	r.db.users[id] = u
	if ch.ClinicIDs != nil {
		if err := r.db.assignLocked(id, ch.ClinicIDs); err != nil {
			return manager.Manager{}, err
		}
	}
	return r.db.managerLocked(id)
}

func (r *ManagersRepo) AssignClinics(_ context.Context, id int64, clinicIDs []int64) (manager.Manager, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, err := r.db.managerLocked(id); err != nil {
		return manager.Manager{}, err
	}
	if err := r.db.assignLocked(id, clinicIDs); err != nil {
		return manager.Manager{}, err
	}
	return r.db.managerLocked(id)
}

func (r *ManagersRepo) SetStatus(_ context.Context, id int64, status user.Status) (manager.Manager, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, err := r.db.managerLocked(id); err != nil {
		return manager.Manager{}, err
	}
	u := r.db.users[id]
	u.Status = status
	u.UpdatedAt = r.db.now().UTC()
	r.db.users[id] = u
	if status == user.StatusInactive {
		delete(r.db.assignments, id)
	}
	return r.db.managerLocked(id)
}

func (r *ManagersRepo) ClinicIDs(_ context.Context, managerID int64) ([]int64, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return sortedKeys(r.db.assignments[managerID]), nil
}

func (r *ManagersRepo) ManagedClinics(_ context.Context, managerID int64) ([]clinic.Clinic, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	out := make([]clinic.Clinic, 0)
	for cid := range r.db.assignments[managerID] {
		if c, ok := r.db.clinics[cid]; ok {
			out = append(out, c)
		}
	}
	sortClinics(out)
	return out, nil
}
