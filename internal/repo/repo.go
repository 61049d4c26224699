package repo

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"github.com/lib/pq"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user already exists")
)

// unique_violation
const pqUniqueViolation = "23505"

type Repository interface {
	CreateUser(ctx context.Context, login, email, password string) (int, error)
	GetByLogin(ctx context.Context, login string) (int, string, error)
}

type PostgresUserRepository struct {
	db *sql.DB
}

func NewPostgresUserDB(db *sql.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

func (r *PostgresUserRepository) CreateUser(ctx context.Context, login, email, password string) (int, error) {
	var id int
	query := "INSERT INTO users (login, email, password) VALUES ($1, $2, $3) RETURNING id"
	err := r.db.QueryRowContext(ctx, query, login, email, password).Scan(&id)
	if isUniqueViolation(err) {
		return 0, ErrUserExists
	}
	return id, err
}

// GetByLogin returns the user id and password hash, or ErrUserNotFound.
func (r *PostgresUserRepository) GetByLogin(ctx context.Context, login string) (int, string, error) {
	var id int
	var hash string

	query := "SELECT id, password FROM users WHERE login=$1"

	err := r.db.QueryRowContext(ctx, query, login).Scan(&id, &hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, "", ErrUserNotFound
		}
		return 0, "", err
	}
	return id, hash, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}

type memoryUser struct {
	id       int
	email    string
	password string
}

// MemoryUserRepository serves development setups without a database. Users are
// lost on restart.
type MemoryUserRepository struct {
	mu     sync.Mutex
	users  map[string]memoryUser
	nextID int
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[string]memoryUser)}
}

func (r *MemoryUserRepository) CreateUser(_ context.Context, login, email, password string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[login]; ok {
		return 0, ErrUserExists
	}
	r.nextID++
	r.users[login] = memoryUser{id: r.nextID, email: email, password: password}
	return r.nextID, nil
}

func (r *MemoryUserRepository) GetByLogin(_ context.Context, login string) (int, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[login]
	if !ok {
		return 0, "", ErrUserNotFound
	}
	return u.id, u.password, nil
}
