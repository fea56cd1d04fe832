package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const UsersTable = "users"

// User represents a row in the users table.
type User struct {
	UserID      uuid.UUID `db:"id" json:"userId"`
	TenantID    uuid.UUID `db:"tenant_id" json:"tenantId"`
	Email       string    `db:"email" json:"email"`
	FullName    string    `db:"full_name" json:"fullName"`
	Role        string    `db:"role" json:"role"`
	Permissions []string  `db:"permissions" json:"permissions"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

var (
	// ErrUserNotFound indicates a missing user record, including rows hidden by row-level security.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserConflict indicates a uniqueness violation (e.g., duplicated email).
	ErrUserConflict = errors.New("user conflict")
	// ErrUserForbidden is returned when row-level security rejects a write, which
	// happens whenever the session role is not tenant_admin.
	ErrUserForbidden = errors.New("user write not permitted for role")
)

// UserStore exposes persistence helpers for the users table. Every call runs in
// a tenant session derived from the identity on ctx.
type UserStore struct {
	db  *TenantDB
	now func() time.Time
}

// NewUserStore returns a store bound to db.
func NewUserStore(db *TenantDB) (*UserStore, error) {
	if db == nil {
		return nil, errors.New("tenant db is required")
	}
	return &UserStore{db: db, now: time.Now}, nil
}

// ListUsersParams captures filters and pagination for ListUsers.
type ListUsersParams struct {
	Page     int
	PageSize int
	Sort     *string
	Email    *string
}

// ListUsersResult includes the rows and the total count for pagination metadata.
type ListUsersResult struct {
	Users      []User
	TotalItems int
}

// CreateUserParams captures the fields required to insert a new user record.
type CreateUserParams struct {
	UserID      uuid.UUID
	Email       string
	FullName    string
	Role        string
	Permissions []string
}

// CreateUser inserts a user into the caller's tenant. The row is written with a
// plain Exec so the statement also works on the buffered HTTP backend.
func (s *UserStore) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	if params.UserID == uuid.Nil {
		return User{}, errors.New("user id is required")
	}
	permissions := params.Permissions
	if permissions == nil {
		permissions = []string{}
	}

	return InIdentitySession(ctx, s.db, func(tx Tx) (User, error) {
		tenantID, err := currentTenant(ctx)
		if err != nil {
			return User{}, err
		}
		user := User{
			UserID:      params.UserID,
			TenantID:    tenantID,
			Email:       strings.TrimSpace(params.Email),
			FullName:    strings.TrimSpace(params.FullName),
			Role:        params.Role,
			Permissions: permissions,
			CreatedAt:   s.now().UTC(),
		}

		_, err = tx.Exec(ctx, fmt.Sprintf(`
        INSERT INTO %s (id, tenant_id, email, full_name, role, permissions, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `, UsersTable),
			user.UserID, user.TenantID, user.Email, user.FullName, user.Role, user.Permissions, user.CreatedAt,
		)
		if err != nil {
			return User{}, mapUserWriteError(err)
		}
		return user, nil
	})
}

// ListUsers returns the visible users matching the filters with pagination applied.
func (s *UserStore) ListUsers(ctx context.Context, params ListUsersParams) (ListUsersResult, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize <= 0 {
		params.PageSize = 20
	}
	if params.PageSize > 100 {
		params.PageSize = 100
	}

	whereParts := []string{"1=1"}
	var args []any

	if params.Email != nil && strings.TrimSpace(*params.Email) != "" {
		email := strings.TrimSpace(*params.Email)
		args = append(args, "%"+strings.ToLower(email)+"%")
		whereParts = append(whereParts, fmt.Sprintf("LOWER(email) LIKE $%d", len(args)))
	}

	whereSQL := strings.Join(whereParts, " AND ")

	orderSQL, err := buildUserOrderBy(params.Sort)
	if err != nil {
		return ListUsersResult{}, err
	}

	return InIdentitySession(ctx, s.db, func(tx Tx) (ListUsersResult, error) {
		countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", UsersTable, whereSQL)
		var total int
		if err := tx.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
			return ListUsersResult{}, fmt.Errorf("count users: %w", err)
		}

		result := ListUsersResult{Users: []User{}, TotalItems: total}
		if total == 0 {
			return result, nil
		}

		limit := params.PageSize
		offset := (params.Page - 1) * params.PageSize

		dataArgs := append([]any{}, args...)
		dataArgs = append(dataArgs, limit, offset)

		query := fmt.Sprintf(`
        SELECT id, tenant_id, email, full_name, role, permissions, created_at
        FROM %s
        WHERE %s
        %s
        LIMIT $%d OFFSET $%d
    `, UsersTable, whereSQL, orderSQL, len(dataArgs)-1, len(dataArgs))

		rows, err := tx.Query(ctx, query, dataArgs...)
		if err != nil {
			return ListUsersResult{}, fmt.Errorf("list users: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			user, scanErr := scanUser(rows)
			if scanErr != nil {
				return ListUsersResult{}, fmt.Errorf("scan user: %w", scanErr)
			}
			result.Users = append(result.Users, user)
		}
		if err := rows.Err(); err != nil {
			return ListUsersResult{}, fmt.Errorf("iterate users: %w", err)
		}
		return result, nil
	})
}

func buildUserOrderBy(sort *string) (string, error) {
	const defaultOrder = "ORDER BY created_at DESC, email ASC"
	if sort == nil || strings.TrimSpace(*sort) == "" {
		return defaultOrder, nil
	}

	fields := strings.Split(strings.TrimSpace(*sort), ",")
	orderClauses := make([]string, 0, len(fields))
	mapping := map[string]string{
		"email":     "email",
		"fullName":  "full_name",
		"role":      "role",
		"createdAt": "created_at",
	}

	for _, raw := range fields {
		f := strings.TrimSpace(raw)
		if f == "" {
			continue
		}

		direction := "ASC"
		if strings.HasPrefix(f, "-") {
			direction = "DESC"
			f = strings.TrimPrefix(f, "-")
		}

		column, ok := mapping[f]
		if !ok {
			return "", fmt.Errorf("unsupported sort field %q", f)
		}

		orderClauses = append(orderClauses, fmt.Sprintf("%s %s", column, direction))
	}

	if len(orderClauses) == 0 {
		return defaultOrder, nil
	}

	return "ORDER BY " + strings.Join(orderClauses, ", "), nil
}

// GetUser returns a single user by identifier. Users of other tenants are
// invisible and reported as ErrUserNotFound.
func (s *UserStore) GetUser(ctx context.Context, id uuid.UUID) (User, error) {
	return InIdentitySession(ctx, s.db, func(tx Tx) (User, error) {
		return getUser(ctx, tx, id)
	})
}

// UpdateUserParams represents admin-editable fields.
type UpdateUserParams struct {
	FullName    *string
	Role        *string
	Permissions []string
}

// UpdateUser applies the provided fields. The current row is read first so the
// HTTP backend never reads after its buffered write.
func (s *UserStore) UpdateUser(ctx context.Context, id uuid.UUID, params UpdateUserParams) (User, error) {
	return InIdentitySession(ctx, s.db, func(tx Tx) (User, error) {
		user, err := getUser(ctx, tx, id)
		if err != nil {
			return User{}, err
		}

		setParts := []string{}
		var args []any

		if params.FullName != nil {
			user.FullName = strings.TrimSpace(*params.FullName)
			args = append(args, user.FullName)
			setParts = append(setParts, fmt.Sprintf("full_name = $%d", len(args)))
		}
		if params.Role != nil {
			user.Role = *params.Role
			args = append(args, user.Role)
			setParts = append(setParts, fmt.Sprintf("role = $%d", len(args)))
		}
		if params.Permissions != nil {
			user.Permissions = params.Permissions
			args = append(args, user.Permissions)
			setParts = append(setParts, fmt.Sprintf("permissions = $%d", len(args)))
		}

		if len(setParts) == 0 {
			return User{}, errors.New("no fields to update")
		}

		args = append(args, id)
		query := fmt.Sprintf(`UPDATE %s SET %s WHERE id = $%d`, UsersTable, strings.Join(setParts, ", "), len(args))
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return User{}, mapUserWriteError(err)
		}
		return user, nil
	})
}

// DeleteUser removes a user by identifier.
func (s *UserStore) DeleteUser(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return ErrUserNotFound
	}

	return s.db.WithIdentity(ctx, func(tx Tx) error {
		if _, err := getUser(ctx, tx, id); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, UsersTable), id); err != nil {
			return mapUserWriteError(err)
		}
		return nil
	})
}

func getUser(ctx context.Context, tx Tx, id uuid.UUID) (User, error) {
	row := tx.QueryRow(ctx, fmt.Sprintf(`
        SELECT id, tenant_id, email, full_name, role, permissions, created_at
        FROM %s WHERE id = $1
    `, UsersTable), id)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, err
	}
	return user, nil
}

func currentTenant(ctx context.Context) (uuid.UUID, error) {
	id, err := identityTenant(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	tenantID, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("tenant id %q is not a uuid: %w", id, err)
	}
	return tenantID, nil
}

func mapUserWriteError(err error) error {
	switch {
	case IsUniqueViolation(err):
		return fmt.Errorf("%w: %v", ErrUserConflict, err)
	case IsRowSecurityViolation(err):
		return fmt.Errorf("%w: %v", ErrUserForbidden, err)
	default:
		return err
	}
}

func scanUser(row Row) (User, error) {
	var user User

	if err := row.Scan(&user.UserID, &user.TenantID, &user.Email, &user.FullName, &user.Role, &user.Permissions, &user.CreatedAt); err != nil {
		return User{}, err
	}
	if user.Permissions == nil {
		user.Permissions = []string{}
	}

	return user, nil
}
