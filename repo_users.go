package invite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserStore is the record store the Manager depends on.
type UserStore interface {
	GetByID(ctx context.Context, id string, criteria ...repository.SelectCriteria) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByExternalIdentityID(ctx context.Context, externalID string) (*User, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *User, criteria ...repository.InsertCriteria) (*User, error)
	UpdateInvitationTx(ctx context.Context, tx bun.IDB, id uuid.UUID, externalID string) (*User, error)
	MarkConfirmedTx(ctx context.Context, tx bun.IDB, id uuid.UUID, confirmedAt time.Time) (*User, error)
}

// Users is the bun backed user repository.
type Users interface {
	repository.Repository[*User]
	UserStore

	Create(ctx context.Context, record *User, criteria ...repository.InsertCriteria) (*User, error)
	UpdateInvitation(ctx context.Context, id uuid.UUID, externalID string) (*User, error)
	MarkConfirmed(ctx context.Context, id uuid.UUID, confirmedAt time.Time) (*User, error)
}

type users struct {
	repository.Repository[*User]
	db  *bun.DB
	now func() time.Time
}

var (
	_ Users                        = (*users)(nil)
	_ UserStore                    = (*users)(nil)
	_ repository.Repository[*User] = (*users)(nil)
)

type UsersOption func(*users)

// WithUsersClock overrides the clock used for updated_at timestamps.
func WithUsersClock(clock func() time.Time) UsersOption {
	return func(u *users) {
		if clock != nil {
			u.now = clock
		}
	}
}

func NewUsersRepository(db *bun.DB, opts ...UsersOption) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	repoUsers := &users{
		Repository: repo,
		db:         db,
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repoUsers)
		}
	}

	return repoUsers
}

func (a *users) GetByEmail(ctx context.Context, email string) (*User, error) {
	return a.getBy(ctx, a.db, "email", NormalizeEmail(email))
}

func (a *users) GetByExternalIdentityID(ctx context.Context, externalID string) (*User, error) {
	return a.getBy(ctx, a.db, "external_identity_id", strings.TrimSpace(externalID))
}

func (a *users) getBy(ctx context.Context, tx bun.IDB, column, value string) (*User, error) {
	if value == "" {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				column: value,
			})
	}

	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.? = ?", bun.Ident(column), value).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					column: value,
				})
		}
		return nil, err
	}
	return record, nil
}

func (a *users) Create(ctx context.Context, record *User, criteria ...repository.InsertCriteria) (*User, error) {
	return a.CreateTx(ctx, a.db, record, criteria...)
}

func (a *users) CreateTx(ctx context.Context, tx bun.IDB, record *User, criteria ...repository.InsertCriteria) (*User, error) {
	prepareUserDefaults(record, a.now())
	return a.Repository.CreateTx(ctx, tx, record, criteria...)
}

func (a *users) UpdateInvitation(ctx context.Context, id uuid.UUID, externalID string) (*User, error) {
	return a.UpdateInvitationTx(ctx, a.db, id, externalID)
}

// UpdateInvitationTx stores a freshly issued external identity on a user
// that is still unconfirmed. A user confirmed in the meantime is left as is
// and ErrAlreadyConfirmed is returned.
func (a *users) UpdateInvitationTx(ctx context.Context, tx bun.IDB, id uuid.UUID, externalID string) (*User, error) {
	now := a.now()
	res, err := tx.NewUpdate().
		Model((*User)(nil)).
		Set("external_identity_id = ?", externalID).
		Set("updated_at = ?", now).
		Where("?TableAlias.id = ?", id).
		Where("?TableAlias.is_confirmed = ?", false).
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	if err := expectAffected(res, id); err != nil {
		current, lookupErr := a.getBy(ctx, tx, "id", id.String())
		if lookupErr == nil && current != nil && current.IsConfirmed {
			return nil, newError(ErrAlreadyConfirmed, nil, map[string]any{
				"user_id": id.String(),
			})
		}
		return nil, err
	}

	return a.getBy(ctx, tx, "id", id.String())
}

func (a *users) MarkConfirmed(ctx context.Context, id uuid.UUID, confirmedAt time.Time) (*User, error) {
	return a.MarkConfirmedTx(ctx, a.db, id, confirmedAt)
}

// MarkConfirmedTx flips is_confirmed and keeps the first confirmed_at ever recorded.
func (a *users) MarkConfirmedTx(ctx context.Context, tx bun.IDB, id uuid.UUID, confirmedAt time.Time) (*User, error) {
	res, err := tx.NewUpdate().
		Model((*User)(nil)).
		Set("is_confirmed = ?", true).
		Set("confirmed_at = COALESCE(confirmed_at, ?)", confirmedAt).
		Set("updated_at = ?", a.now()).
		Where("?TableAlias.id = ?", id).
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	if err := expectAffected(res, id); err != nil {
		return nil, err
	}

	return a.getBy(ctx, tx, "id", id.String())
}

func expectAffected(res sql.Result, id uuid.UUID) error {
	if res == nil {
		return nil
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil
	}
	if affected == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": id.String(),
			})
	}
	return nil
}

func prepareUserDefaults(record *User, now time.Time) {
	if record == nil {
		return
	}

	record.Email = NormalizeEmail(record.Email)

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	if record.CreatedAt == nil {
		record.CreatedAt = &now
	}

	if record.UpdatedAt == nil {
		record.UpdatedAt = &now
	}
}

func isRecordNotFound(err error) bool {
	if err == nil {
		return false
	}
	return repository.IsRecordNotFound(err) || errors.Is(err, sql.ErrNoRows)
}

// isUniqueViolation matches the unique constraint errors of the sqlite and
// postgres drivers bun ships with.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "sqlstate 23505") ||
		strings.Contains(msg, "constraint failed: users.email")
}
