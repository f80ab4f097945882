package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"meetmax/internal/apperr"
)

const (
	uniqueViolation         = "23505"
	usersGoogleIDConstraint = "users_google_id_key"
)

const userColumns = `id, name, email, password_hash, google_id, email_verified, refresh_token_hash, birth, gender, image, created_at, updated_at`

// UserRepository is the Postgres Store.
type UserRepository struct {
	DB *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{DB: db}
}

func (r *UserRepository) CreateUser(ctx context.Context, u NewUser) (*User, error) {
	var gender *string
	if u.Gender != nil {
		g := string(*u.Gender)
		gender = &g
	}

	query := `
		INSERT INTO users
		(id, name, email, password_hash, google_id, email_verified, birth, gender, image)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING ` + userColumns

	row := r.DB.QueryRow(ctx, query, uuid.NewString(), u.Name, u.Email, u.PasswordHash, u.GoogleID, u.EmailVerified, u.Birth, gender, u.Image)
	user, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			if pgErr.ConstraintName == usersGoogleIDConstraint {
				return nil, apperr.Wrap(apperr.Conflict, "GOOGLE_ACCOUNT_LINKED", "this Google account is linked to another user", err)
			}
			return nil, apperr.Wrap(apperr.Conflict, "EMAIL_TAKEN", "a user with this email already exists", err)
		}
		return nil, err
	}
	return user, nil
}

func (r *UserRepository) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email=$1`, email)
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return user, err
}

func (r *UserRepository) FindUserByGoogleID(ctx context.Context, googleID string) (*User, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE google_id=$1`, googleID)
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return user, err
}

func (r *UserRepository) FindUserByID(ctx context.Context, id string) (*User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	row := r.DB.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id)
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return user, err
}

func (r *UserRepository) UpdateUser(ctx context.Context, id string, upd UserUpdate) error {
	sets := []string{}
	args := []interface{}{}
	idx := 1

	add := func(column string, value interface{}) {
		sets = append(sets, fmt.Sprintf(`%s=$%d`, column, idx))
		args = append(args, value)
		idx++
	}

	if upd.PasswordHash != nil {
		add("password_hash", *upd.PasswordHash)
	}
	if upd.GoogleID != nil {
		add("google_id", *upd.GoogleID)
	}
	if upd.EmailVerified != nil {
		add("email_verified", *upd.EmailVerified)
	}
	if upd.Image != nil {
		add("image", *upd.Image)
	}
	if upd.ClearRefreshToken {
		sets = append(sets, `refresh_token_hash=NULL`)
	} else if upd.RefreshTokenHash != nil {
		add("refresh_token_hash", *upd.RefreshTokenHash)
	}

	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, `updated_at=NOW()`)

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE users SET %s WHERE id=$%d`, strings.Join(sets, ", "), idx)
	_, err := r.DB.Exec(ctx, query, args...)
	return err
}

func (r *UserRepository) CreateCode(ctx context.Context, code VerificationCode) error {
	if code.ID == "" {
		code.ID = uuid.NewString()
	}
	_, err := r.DB.Exec(ctx, `
		INSERT INTO verification_codes (id, user_id, kind, value, expires_at)
		VALUES ($1,$2,$3,$4,$5)
	`, code.ID, code.UserID, string(code.Kind), code.Value, code.ExpiresAt)
	return err
}

// FindCodeByUser returns the newest code of the given kind.
func (r *UserRepository) FindCodeByUser(ctx context.Context, userID string, kind CodeKind) (*VerificationCode, error) {
	row := r.DB.QueryRow(ctx, `
		SELECT id, user_id, kind, value, expires_at, created_at
		FROM verification_codes
		WHERE user_id=$1 AND kind=$2
		ORDER BY created_at DESC
		LIMIT 1
	`, userID, string(kind))

	var (
		vc      VerificationCode
		rawKind string
	)
	if err := row.Scan(&vc.ID, &vc.UserID, &rawKind, &vc.Value, &vc.ExpiresAt, &vc.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	vc.Kind = CodeKind(rawKind)
	return &vc, nil
}

func (r *UserRepository) DeleteCodesByUserAndKind(ctx context.Context, userID string, kind CodeKind) error {
	_, err := r.DB.Exec(ctx, `DELETE FROM verification_codes WHERE user_id=$1 AND kind=$2`, userID, string(kind))
	return err
}

func scanUser(row pgx.Row) (*User, error) {
	var (
		u                User
		password         sql.NullString
		googleID         sql.NullString
		refreshTokenHash sql.NullString
		birth            sql.NullTime
		gender           sql.NullString
		image            sql.NullString
		createdAt        time.Time
		updatedAt        time.Time
	)

	if err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&password,
		&googleID,
		&u.EmailVerified,
		&refreshTokenHash,
		&birth,
		&gender,
		&image,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	if password.Valid {
		u.PasswordHash = &password.String
	}
	if googleID.Valid {
		u.GoogleID = &googleID.String
	}
	if refreshTokenHash.Valid {
		u.RefreshTokenHash = &refreshTokenHash.String
	}
	if birth.Valid {
		u.Birth = &birth.Time
	}
	if gender.Valid {
		g := Gender(gender.String)
		u.Gender = &g
	}
	if image.Valid {
		u.Image = &image.String
	}
	u.CreatedAt = createdAt
	u.UpdatedAt = updatedAt

	return &u, nil
}
