package memory

import (
	"context"
	"sort"

	"github.com/geocoder89/clinicfinder/internal/domain/user"
)

type UsersRepo struct {
	db *DB
}

// emailTaken must be called with mu held.
func (db *DB) emailTaken(email string, except int64) bool {
	email = user.NormalizeEmail(email)
	for id, u := range db.users {
		if id != except && user.NormalizeEmail(u.Email) == email {
			return true
		}
	}
	return false
}

func (r *UsersRepo) Create(_ context.Context, u user.User) (user.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if r.db.emailTaken(u.Email, 0) {
		return user.User{}, user.ErrEmailTaken
	}

	now := r.db.now().UTC()
	u.ID = r.db.nextID()
	u.Email = user.NormalizeEmail(u.Email)
	if u.Status == "" {
		u.Status = user.StatusActive
	}
	u.CreatedAt = now
	u.UpdatedAt = now
	r.db.users[u.ID] = u
	return u, nil
}

func (r *UsersRepo) GetByID(_ context.Context, id int64) (user.User, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	u, ok := r.db.users[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return u, nil
}

func (r *UsersRepo) GetByEmail(_ context.Context, email string) (user.User, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	email = user.NormalizeEmail(email)
	for _, u := range r.db.users {
		if user.NormalizeEmail(u.Email) == email {
			return u, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (r *UsersRepo) UpdateProfile(ctx context.Context, id int64, req user.UpdateProfileRequest) (user.User, error) {
	return r.AdminUpdate(ctx, id, user.AdminUpdateRequest{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
	})
}

func (r *UsersRepo) AdminUpdate(_ context.Context, id int64, req user.AdminUpdateRequest) (user.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	u, ok := r.db.users[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	if req.Email != nil {
		if r.db.emailTaken(*req.Email, id) {
			return user.User{}, user.ErrEmailTaken
		}
		u.Email = user.NormalizeEmail(*req.Email)
	}
	if req.FirstName != nil {
		u.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		u.LastName = *req.LastName
	}
	if req.Phone != nil {
		u.Phone = *req.Phone
	}
	u.UpdatedAt = r.db.now().UTC()
	r.db.users[id] = u
	return u, nil
}

func (r *UsersRepo) UpdatePassword(_ context.Context, id int64, hash string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	u, ok := r.db.users[id]
	if !ok {
		return user.ErrNotFound
	}
	u.PasswordHash = hash
	u.UpdatedAt = r.db.now().UTC()
	r.db.users[id] = u
	return nil
}

func (r *UsersRepo) List(_ context.Context, f user.ListFilter) ([]user.User, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	out := make([]user.User, 0)
	for _, u := range r.db.users {
		if f.Role != nil && u.Role != *f.Role {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return page(out, f.Limit, f.Offset, 50), nil
}
