package memory

import (
	"context"
	"slices"
	"strings"

	"github.com/ekodi-ai/gatekeeper/internal/core/domain"
	"github.com/ekodi-ai/gatekeeper/pkg/cmap"
)

// Directory is an in-memory user directory and daily quota store.
// Records are copied on the way in and out.
type Directory struct {
	users     *cmap.Map[string, domain.User]
	emails    *cmap.Map[string, string] // normalized email -> user id
	keys      *cmap.Map[string, domain.APIKey]
	keyHashes *cmap.Map[string, string] // key hash -> key id
	quotas    *cmap.Map[string, domain.QuotaCounter]
}

// NewDirectory creates an empty Directory.
func NewDirectory() *Directory {
	return &Directory{
		users:     cmap.New[string, domain.User](),
		emails:    cmap.New[string, string](),
		keys:      cmap.New[string, domain.APIKey](),
		keyHashes: cmap.New[string, string](),
		quotas:    cmap.New[string, domain.QuotaCounter](),
	}
}

// GetUser returns the user with id.
func (d *Directory) GetUser(_ context.Context, id string) (*domain.User, error) {
	u, ok := d.users.Get(id)
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &u, nil
}

// FindUserByEmail returns the user registered under email.
func (d *Directory) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	id, ok := d.emails.Get(domain.NormalizeEmail(email))
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return d.GetUser(ctx, id)
}

// CreateUser stores u. The email must be unused.
func (d *Directory) CreateUser(_ context.Context, u *domain.User) error {
	email := domain.NormalizeEmail(u.Email)
	conflict := false
	d.emails.Compute(email, func(cur string, ok bool) (string, bool) {
		if ok {
			conflict = true
			return cur, true
		}
		return u.ID, true
	})
	if conflict {
		return domain.ErrUserConflict
	}

	rec := *u
	rec.Email = email
	d.users.Set(u.ID, rec)
	return nil
}

// UpdateUser replaces a stored user record. The email cannot change.
func (d *Directory) UpdateUser(_ context.Context, u *domain.User) error {
	missing := false
	d.users.Compute(u.ID, func(cur domain.User, ok bool) (domain.User, bool) {
		if !ok {
			missing = true
			return cur, false
		}
		rec := *u
		rec.Email = cur.Email
		return rec, true
	})
	if missing {
		return domain.ErrUserNotFound
	}
	return nil
}

// CreateAPIKey stores k.
func (d *Directory) CreateAPIKey(_ context.Context, k *domain.APIKey) error {
	if _, ok := d.users.Get(k.UserID); !ok {
		return domain.ErrUserNotFound
	}
	d.keys.Set(k.ID, *k)
	d.keyHashes.Set(k.KeyHash, k.ID)
	return nil
}

// FindAPIKeyByHash returns the key whose hash is keyHash, active or not.
func (d *Directory) FindAPIKeyByHash(_ context.Context, keyHash string) (*domain.APIKey, error) {
	id, ok := d.keyHashes.Get(keyHash)
	if !ok {
		return nil, domain.ErrAPIKeyNotFound
	}
	k, ok := d.keys.Get(id)
	if !ok {
		return nil, domain.ErrAPIKeyNotFound
	}
	return &k, nil
}

// ListAPIKeys returns userID's keys, newest first.
func (d *Directory) ListAPIKeys(_ context.Context, userID string) ([]*domain.APIKey, error) {
	var out []*domain.APIKey
	d.keys.Range(func(_ string, k domain.APIKey) bool {
		if k.UserID == userID {
			out = append(out, &k)
		}
		return true
	})
	slices.SortFunc(out, func(a, b *domain.APIKey) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
	return out, nil
}

// DeactivateAPIKey marks one of userID's keys inactive.
func (d *Directory) DeactivateAPIKey(_ context.Context, userID, keyID string) (*domain.APIKey, error) {
	var out *domain.APIKey
	d.keys.Compute(keyID, func(k domain.APIKey, ok bool) (domain.APIKey, bool) {
		if !ok {
			return k, false
		}
		if k.UserID == userID {
			k.Active = false
			out = &k
		}
		return k, true
	})
	if out == nil {
		return nil, domain.ErrAPIKeyNotFound
	}
	cp := *out
	return &cp, nil
}

// IncrementAPIKeyUsage bumps the usage counter of keyID.
func (d *Directory) IncrementAPIKeyUsage(_ context.Context, keyID string) error {
	d.keys.Compute(keyID, func(k domain.APIKey, ok bool) (domain.APIKey, bool) {
		if ok {
			k.UsageCount++
		}
		return k, ok
	})
	return nil
}

// UpdateQuota applies fn to userID's counter atomically. The counter is
// persisted only if fn succeeds.
func (d *Directory) UpdateQuota(_ context.Context, userID string, fn func(*domain.QuotaCounter) error) (domain.QuotaCounter, error) {
	if _, ok := d.users.Get(userID); !ok {
		return domain.QuotaCounter{}, domain.ErrUserNotFound
	}

	var (
		out   domain.QuotaCounter
		fnErr error
	)
	d.quotas.Compute(userID, func(cur domain.QuotaCounter, ok bool) (domain.QuotaCounter, bool) {
		if !ok {
			cur = domain.QuotaCounter{UserID: userID}
		}
		next := cur
		fnErr = fn(&next)
		out = next
		if fnErr != nil {
			return cur, ok
		}
		return next, true
	})
	return out, fnErr
}
