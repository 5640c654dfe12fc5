package postgres_storage

import (
	"database/sql"

	_ "github.com/lib/pq"

	"media_relay_bot/internal/pkg/account"
)

type PostgresStorage struct {
	db *sql.DB
}

func NewPostgresStorage(db *sql.DB) *PostgresStorage {
	return &PostgresStorage{db: db}
}

func (p *PostgresStorage) GetUser(id int64) (*account.User, error) {
	row := p.db.QueryRow(`
		SELECT user_id, COALESCE(session_token, ''), created_at
		FROM users
		WHERE user_id=$1
	`, id)

	u := &account.User{}
	err := row.Scan(&u.ID, &u.SessionToken, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (p *PostgresStorage) CreateUser(id int64) (*account.User, error) {
	_, err := p.db.Exec(`
		INSERT INTO users (user_id, created_at)
		VALUES ($1, NOW())
		ON CONFLICT (user_id) DO NOTHING
	`, id)
	if err != nil {
		return nil, err
	}
	return p.GetUser(id)
}

func (p *PostgresStorage) SaveSessionToken(id int64, token string) error {
	_, err := p.db.Exec(`
		INSERT INTO users (user_id, session_token, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET session_token=$2
	`, id, token)
	return err
}

func (p *PostgresStorage) ClearSessionToken(id int64) error {
	_, err := p.db.Exec(`UPDATE users SET session_token=NULL WHERE user_id=$1`, id)
	return err
}
