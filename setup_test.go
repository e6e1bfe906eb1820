package identity_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	identity "github.com/bookswap/go-identity"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	_ "github.com/mattn/go-sqlite3"
)

const (
	sqliteCreateAdmins = `CREATE TABLE admins (
    id TEXT NOT NULL PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP
);`

	sqliteCreateBookOwners = `CREATE TABLE book_owners (
    id TEXT NOT NULL PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    encrypted_ssn TEXT NOT NULL,
    encrypted_email TEXT NOT NULL,
    encrypted_phone TEXT NOT NULL,
    approval_status TEXT NOT NULL DEFAULT 'Pending',
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP
);`

	sqliteCreateReaders = `CREATE TABLE readers (
    id TEXT NOT NULL PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    encrypted_email TEXT NOT NULL,
    encrypted_phone TEXT NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP
);`

	sqliteCreateRefreshTokens = `CREATE TABLE refresh_tokens (
    id TEXT NOT NULL PRIMARY KEY,
    token TEXT NOT NULL UNIQUE,
    expires_at TIMESTAMP NOT NULL,
    user_type TEXT NOT NULL,
    principal_name TEXT NOT NULL,
    admin_id TEXT,
    book_owner_id TEXT,
    reader_id TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (admin_id) REFERENCES admins (id) ON DELETE CASCADE,
    FOREIGN KEY (book_owner_id) REFERENCES book_owners (id) ON DELETE CASCADE,
    FOREIGN KEY (reader_id) REFERENCES readers (id) ON DELETE CASCADE
);`

	sqliteCreateBookPosts = `CREATE TABLE book_posts (
    id TEXT NOT NULL PRIMARY KEY,
    owner_id TEXT NOT NULL,
    title TEXT NOT NULL,
    genre TEXT,
    isbn TEXT,
    description TEXT,
    language TEXT,
    price NUMERIC,
    start_date TIMESTAMP NOT NULL,
    end_date TIMESTAMP NOT NULL,
    post_status TEXT NOT NULL DEFAULT 'Pending',
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP,
    FOREIGN KEY (owner_id) REFERENCES book_owners (id) ON DELETE CASCADE
);`

	sqliteCreateBookRequests = `CREATE TABLE book_requests (
    id TEXT NOT NULL PRIMARY KEY,
    post_id TEXT NOT NULL,
    reader_id TEXT NOT NULL,
    request_status TEXT NOT NULL DEFAULT 'Pending',
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP,
    FOREIGN KEY (post_id) REFERENCES book_posts (id) ON DELETE CASCADE,
    FOREIGN KEY (reader_id) REFERENCES readers (id) ON DELETE CASCADE
);`
)

func setupRepoManager(t *testing.T) identity.RepositoryManager {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	bunDB := bun.NewDB(db, sqlitedialect.New())

	_, err = bunDB.Exec("PRAGMA foreign_keys = ON;")
	require.NoError(t, err)

	for _, ddl := range []string{
		sqliteCreateAdmins,
		sqliteCreateBookOwners,
		sqliteCreateReaders,
		sqliteCreateRefreshTokens,
		sqliteCreateBookPosts,
		sqliteCreateBookRequests,
	} {
		_, err = bunDB.Exec(ddl)
		require.NoError(t, err)
	}

	t.Cleanup(func() {
		bunDB.Close()
	})

	return identity.NewRepositoryManager(bunDB)
}

func testTokenService(t *testing.T) identity.TokenService {
	t.Helper()
	return identity.NewTokenService([]byte("test-signing-key"), "bookswap-test", nil, nil)
}

func seedAdmin(t *testing.T, repo identity.RepositoryManager, name string) *identity.Admin {
	t.Helper()

	hash, err := identity.HashPassword("admin-password-1")
	require.NoError(t, err)

	admin, err := repo.Admins().Register(context.Background(), &identity.Admin{
		Name:         name,
		PasswordHash: hash,
	})
	require.NoError(t, err)
	return admin
}

func seedOwner(t *testing.T, repo identity.RepositoryManager, name string, status identity.ApprovalStatus) *identity.BookOwner {
	t.Helper()

	hash, err := identity.HashPassword("owner-password-1")
	require.NoError(t, err)

	owner, err := repo.Owners().Register(context.Background(), &identity.BookOwner{
		Name:           name,
		PasswordHash:   hash,
		EncryptedSSN:   "enc-ssn",
		EncryptedEmail: "enc-email",
		EncryptedPhone: "enc-phone",
		Status:         status,
	})
	require.NoError(t, err)
	return owner
}

func seedReader(t *testing.T, repo identity.RepositoryManager, name string) *identity.Reader {
	t.Helper()

	hash, err := identity.HashPassword("reader-password-1")
	require.NoError(t, err)

	reader, err := repo.Readers().Register(context.Background(), &identity.Reader{
		Name:           name,
		PasswordHash:   hash,
		EncryptedEmail: "enc-email",
		EncryptedPhone: "enc-phone",
	})
	require.NoError(t, err)
	return reader
}

func seedPost(t *testing.T, repo identity.RepositoryManager, owner *identity.BookOwner, status identity.PostStatus) *identity.BookPost {
	t.Helper()

	now := time.Now()
	post, err := repo.Posts().Publish(context.Background(), &identity.BookPost{
		OwnerID:   owner.ID,
		Title:     "The Dispossessed",
		Genre:     "sci-fi",
		Language:  "en",
		StartDate: now.Add(-time.Hour),
		EndDate:   now.Add(30 * 24 * time.Hour),
	})
	require.NoError(t, err)

	if status != identity.PostPending {
		rows, err := repo.Posts().UpdateStatusIf(context.Background(), post.ID, identity.PostPending, status)
		require.NoError(t, err)
		require.EqualValues(t, 1, rows)
		post.Status = status
	}

	return post
}

// claimsFor mints and re-validates a token so tests exercise real claims.
func claimsFor(t *testing.T, tokens identity.TokenService, name string, role identity.Role, principalID string) identity.AuthClaims {
	t.Helper()

	token, err := tokens.Generate(name, role, principalID)
	require.NoError(t, err)

	claims, err := tokens.Validate(token)
	require.NoError(t, err)
	return claims
}
