package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ekodi-ai/gatekeeper/internal/core/domain"
)

const uniqueViolation = "23505"

const userColumns = `id, email, name, password_hash, role, tier, is_staff, is_active, created_at`

const keyColumns = `id, user_id, name, key_hash, key_prefix, active, usage_count, created_at`

// Directory reads and writes users and API keys.
type Directory struct {
	pool *pgxpool.Pool
}

// NewDirectory creates a Directory on pool.
func NewDirectory(pool *pgxpool.Pool) *Directory {
	return &Directory{pool: pool}
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	var role, tier string
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &role, &tier, &u.IsStaff, &u.IsActive, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	u.Role = domain.ParseRole(role)
	u.Tier = domain.Tier(tier)
	return &u, nil
}

func scanKey(row pgx.Row) (*domain.APIKey, error) {
	var k domain.APIKey
	err := row.Scan(&k.ID, &k.UserID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Active, &k.UsageCount, &k.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrAPIKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	return &k, nil
}

// GetUser loads a user by id.
func (d *Directory) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return scanUser(d.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// FindUserByEmail loads a user by normalized email.
func (d *Directory) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return scanUser(d.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`,
		domain.NormalizeEmail(email)))
}

// CreateUser inserts u.
func (d *Directory) CreateUser(ctx context.Context, u *domain.User) error {
	_, err := d.pool.Exec(ctx, `INSERT INTO users (`+userColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		u.ID, domain.NormalizeEmail(u.Email), u.Name, u.PasswordHash, string(u.Role), string(u.Tier),
		u.IsStaff, u.IsActive, u.CreatedAt)
	if isUniqueViolation(err) {
		return domain.ErrUserConflict
	}
	return err
}

// CreateAPIKey inserts k.
func (d *Directory) CreateAPIKey(ctx context.Context, k *domain.APIKey) error {
	_, err := d.pool.Exec(ctx, `INSERT INTO api_keys (`+keyColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		k.ID, k.UserID, k.Name, k.KeyHash, k.KeyPrefix, k.Active, k.UsageCount, k.CreatedAt)
	return err
}

// FindAPIKeyByHash loads a key by the hash of its raw value.
func (d *Directory) FindAPIKeyByHash(ctx context.Context, keyHash string) (*domain.APIKey, error) {
	return scanKey(d.pool.QueryRow(ctx, `SELECT `+keyColumns+` FROM api_keys WHERE key_hash = $1`, keyHash))
}

// ListAPIKeys returns a user's keys, newest first.
func (d *Directory) ListAPIKeys(ctx context.Context, userID string) ([]*domain.APIKey, error) {
	rows, err := d.pool.Query(ctx, `SELECT `+keyColumns+` FROM api_keys WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []*domain.APIKey
	for rows.Next() {
		k, err := scanKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// DeactivateAPIKey marks one of userID's keys inactive.
func (d *Directory) DeactivateAPIKey(ctx context.Context, userID, keyID string) (*domain.APIKey, error) {
	return scanKey(d.pool.QueryRow(ctx,
		`UPDATE api_keys SET active = FALSE WHERE id = $1 AND user_id = $2 RETURNING `+keyColumns,
		keyID, userID))
}

// IncrementAPIKeyUsage bumps a key's usage counter.
func (d *Directory) IncrementAPIKeyUsage(ctx context.Context, keyID string) error {
	_, err := d.pool.Exec(ctx, `UPDATE api_keys SET usage_count = usage_count + 1 WHERE id = $1`, keyID)
	return err
}

// UpdateQuota locks the user's counter row, applies fn and writes the result
// back only if fn succeeds.
func (d *Directory) UpdateQuota(ctx context.Context, userID string, fn func(*domain.QuotaCounter) error) (domain.QuotaCounter, error) {
	c := domain.QuotaCounter{UserID: userID}
	err := WithTx(ctx, d.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`SELECT prompt_count, prompt_reset_date FROM users WHERE id = $1 FOR UPDATE`, userID,
		).Scan(&c.Count, &c.ResetDate)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrUserNotFound
		}
		if err != nil {
			return err
		}

		if err := fn(&c); err != nil {
			return err
		}
		_, err = tx.Exec(ctx,
			`UPDATE users SET prompt_count = $2, prompt_reset_date = $3 WHERE id = $1`,
			userID, c.Count, c.ResetDate)
		return err
	})
	return c, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
