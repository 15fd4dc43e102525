package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	jww "github.com/spf13/jwalterweatherman"
)

// Connect opens the database connection. Migrations are applied separately.
func Connect(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

// Migrate applies the schema. Every statement is idempotent.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for i, m := range migrations {
		if _, err := db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	jww.INFO.Printf("database migrations applied count=%d", len(migrations))
	return nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
            id INT PRIMARY KEY,
            username TEXT NOT NULL UNIQUE,
            avatar_url TEXT NOT NULL DEFAULT '',
            bio TEXT NOT NULL DEFAULT '',
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
	`CREATE TABLE IF NOT EXISTS communities (
            id SERIAL PRIMARY KEY,
            name TEXT NOT NULL UNIQUE,
            description TEXT NOT NULL DEFAULT '',
            icon_url TEXT NOT NULL DEFAULT '',
            owner_id INT NOT NULL REFERENCES users(id),
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
	`CREATE TABLE IF NOT EXISTS community_members (
            community_id INT NOT NULL REFERENCES communities(id) ON DELETE CASCADE,
            user_id INT NOT NULL REFERENCES users(id),
            joined_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            PRIMARY KEY(community_id, user_id)
        );`,
	`CREATE TABLE IF NOT EXISTS channels (
            id SERIAL PRIMARY KEY,
            community_id INT NOT NULL REFERENCES communities(id) ON DELETE CASCADE,
            name TEXT NOT NULL,
            icon_url TEXT NOT NULL DEFAULT '',
            position INT NOT NULL DEFAULT 0,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
	`CREATE TABLE IF NOT EXISTS roles (
            id SERIAL PRIMARY KEY,
            community_id INT NOT NULL REFERENCES communities(id) ON DELETE CASCADE,
            name TEXT NOT NULL,
            color_hex TEXT NOT NULL DEFAULT '',
            permissions TEXT[] NOT NULL DEFAULT '{}',
            is_owner BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            UNIQUE(community_id, name)
        );`,
	`CREATE UNIQUE INDEX IF NOT EXISTS roles_one_owner ON roles(community_id) WHERE is_owner;`,
	`CREATE TABLE IF NOT EXISTS role_assignments (
            role_id INT NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
            user_id INT NOT NULL REFERENCES users(id),
            community_id INT NOT NULL REFERENCES communities(id) ON DELETE CASCADE,
            PRIMARY KEY(role_id, user_id)
        );`,
	`CREATE INDEX IF NOT EXISTS role_assignments_member ON role_assignments(community_id, user_id);`,
	`CREATE TABLE IF NOT EXISTS direct_chats (
            id SERIAL PRIMARY KEY,
            chat_type TEXT NOT NULL,
            name TEXT NOT NULL DEFAULT '',
            creator_id INT NOT NULL REFERENCES users(id),
            user_low INT,
            user_high INT,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            last_activity_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            UNIQUE(user_low, user_high)
        );`,
	`CREATE TABLE IF NOT EXISTS direct_chat_participants (
            chat_id INT NOT NULL REFERENCES direct_chats(id) ON DELETE CASCADE,
            user_id INT NOT NULL REFERENCES users(id),
            joined_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            PRIMARY KEY(chat_id, user_id)
        );`,
	`CREATE TABLE IF NOT EXISTS messages (
            id SERIAL PRIMARY KEY,
            sender_id INT NOT NULL REFERENCES users(id),
            channel_id INT REFERENCES channels(id) ON DELETE CASCADE,
            direct_chat_id INT REFERENCES direct_chats(id) ON DELETE CASCADE,
            parent_id INT REFERENCES messages(id) ON DELETE SET NULL,
            content TEXT NOT NULL DEFAULT '',
            message_type TEXT NOT NULL DEFAULT 'TEXT',
            edited BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            CHECK ((channel_id IS NULL) <> (direct_chat_id IS NULL))
        );`,
	`CREATE INDEX IF NOT EXISTS messages_channel_created ON messages(channel_id, created_at DESC);`,
	`CREATE INDEX IF NOT EXISTS messages_chat_created ON messages(direct_chat_id, created_at DESC);`,
	`CREATE TABLE IF NOT EXISTS attachments (
            id SERIAL PRIMARY KEY,
            message_id INT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
            file_name TEXT NOT NULL,
            file_url TEXT NOT NULL,
            mime_type TEXT NOT NULL,
            file_size BIGINT NOT NULL DEFAULT 0,
            attachment_type TEXT NOT NULL,
            uploaded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
	`CREATE TABLE IF NOT EXISTS reactions (
            message_id INT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
            user_id INT NOT NULL REFERENCES users(id),
            emoji TEXT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            PRIMARY KEY(message_id, user_id, emoji)
        );`,
	`CREATE TABLE IF NOT EXISTS invites (
            id SERIAL PRIMARY KEY,
            code TEXT NOT NULL UNIQUE,
            community_id INT NOT NULL REFERENCES communities(id) ON DELETE CASCADE,
            created_by INT NOT NULL REFERENCES users(id),
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            expires_at TIMESTAMPTZ NOT NULL
        );`,
	`CREATE TABLE IF NOT EXISTS friend_requests (
            id UUID PRIMARY KEY,
            sender_id INT NOT NULL REFERENCES users(id),
            receiver_id INT NOT NULL REFERENCES users(id),
            status TEXT NOT NULL DEFAULT 'PENDING',
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            UNIQUE(sender_id, receiver_id)
        );`,
	`CREATE TABLE IF NOT EXISTS friendships (
            user1_id INT NOT NULL REFERENCES users(id),
            user2_id INT NOT NULL REFERENCES users(id),
            since TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            PRIMARY KEY(user1_id, user2_id),
            CHECK (user1_id < user2_id)
        );`,
}
