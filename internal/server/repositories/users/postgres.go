package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/dmitrijs2005/memberkeeper/internal/common"
	"github.com/dmitrijs2005/memberkeeper/internal/dbx"
	"github.com/dmitrijs2005/memberkeeper/internal/server/models"
)

const emailUniqueConstraint = "users_email_key"

const userColumns = `id, email, password_hash, role, name, birth_date, phone, institution,
		 avatar_url, avatar_external_id, created_at, updated_at`

type userRow struct {
	ID               string         `db:"id"`
	Email            string         `db:"email"`
	PasswordHash     string         `db:"password_hash"`
	Role             string         `db:"role"`
	Name             string         `db:"name"`
	BirthDate        sql.NullTime   `db:"birth_date"`
	Phone            string         `db:"phone"`
	Institution      string         `db:"institution"`
	AvatarURL        sql.NullString `db:"avatar_url"`
	AvatarExternalID sql.NullString `db:"avatar_external_id"`
	CreatedAt        time.Time      `db:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at"`
}

func (r *userRow) toModel() *models.User {
	u := &models.User{
		ID:           r.ID,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		Role:         models.Role(r.Role),
		Profile: models.ProfileFields{
			Name:        r.Name,
			Phone:       r.Phone,
			Institution: r.Institution,
		},
		Image:     imageFromColumns(r.AvatarURL, r.AvatarExternalID),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.BirthDate.Valid {
		bd := r.BirthDate.Time
		u.Profile.BirthDate = &bd
	}
	return u
}

func imageFromColumns(url, externalID sql.NullString) *models.ProfileImage {
	if !url.Valid || !externalID.Valid {
		return nil
	}
	return &models.ProfileImage{URL: url.String, ExternalID: externalID.String}
}

func imageColumns(img *models.ProfileImage) (sql.NullString, sql.NullString) {
	if img == nil {
		return sql.NullString{}, sql.NullString{}
	}
	return sql.NullString{String: img.URL, Valid: true}, sql.NullString{String: img.ExternalID, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

type PostgresRepository struct {
	db *sqlx.DB
}

// isUserID reports whether id can name a row; users.id is a UUID column and
// anything else would fail the cast instead of matching nothing.
func isUserID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	role := user.Role
	if role == "" {
		role = models.RoleUser
	}

	query :=
		`INSERT INTO users (email, password_hash, role, name, birth_date, phone, institution)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at, updated_at
		 `

	created := *user
	created.Role = role
	err := r.db.QueryRowxContext(ctx, query,
		user.Email, user.PasswordHash, string(role),
		user.Profile.Name, nullTime(user.Profile.BirthDate), user.Profile.Phone, user.Profile.Institution,
	).Scan(&created.ID, &created.CreatedAt, &created.UpdatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err, emailUniqueConstraint) {
			return nil, common.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return &created, nil
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, r.db, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if !isUserID(id) {
		return nil, common.ErrorNotFound
	}
	return r.getOne(ctx, r.db, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *PostgresRepository) getOne(ctx context.Context, db dbx.DBTX, query string, args ...any) (*models.User, error) {
	var row userRow
	if err := db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return row.toModel(), nil
}

func (r *PostgresRepository) UpdatePasswordHash(ctx context.Context, id, expectedOldHash, newHash string) error {
	if !isUserID(id) {
		return common.ErrorNotFound
	}
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var current string
		err := tx.GetContext(ctx, &current, `SELECT password_hash FROM users WHERE id = $1 FOR UPDATE`, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return common.ErrorNotFound
			}
			return fmt.Errorf("db error: %w", err)
		}

		if current != expectedOldHash {
			return ErrHashMismatch
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`,
			id, newHash); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		return nil
	})
}

func (r *PostgresRepository) UpdateProfile(ctx context.Context, id string, fields models.ProfileFields) (*models.User, error) {
	if !isUserID(id) {
		return nil, common.ErrorNotFound
	}
	query :=
		`UPDATE users SET name = $2, birth_date = $3, phone = $4, institution = $5, updated_at = now()
		 WHERE id = $1
		 RETURNING ` + userColumns

	return r.getOne(ctx, r.db, query,
		id, fields.Name, nullTime(fields.BirthDate), fields.Phone, fields.Institution)
}

func (r *PostgresRepository) UpdateRole(ctx context.Context, id string, role models.Role) error {
	if !role.IsValid() {
		return common.ErrInvalidRole
	}
	if !isUserID(id) {
		return common.ErrorNotFound
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET role = $2, updated_at = now() WHERE id = $1`, id, string(role))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) SwapProfileImage(ctx context.Context, id string, img *models.ProfileImage) (*models.ProfileImage, error) {
	if !isUserID(id) {
		return nil, common.ErrorNotFound
	}
	var previous *models.ProfileImage

	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var cur struct {
			URL        sql.NullString `db:"avatar_url"`
			ExternalID sql.NullString `db:"avatar_external_id"`
		}
		err := tx.GetContext(ctx, &cur,
			`SELECT avatar_url, avatar_external_id FROM users WHERE id = $1 FOR UPDATE`, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return common.ErrorNotFound
			}
			return fmt.Errorf("db error: %w", err)
		}
		previous = imageFromColumns(cur.URL, cur.ExternalID)

		url, externalID := imageColumns(img)
		if _, err := tx.ExecContext(ctx,
			`UPDATE users SET avatar_url = $2, avatar_external_id = $3, updated_at = now() WHERE id = $1`,
			id, url, externalID); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return previous, nil
}
