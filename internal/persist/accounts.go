package persist

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrBadCredentials covers both unknown username and wrong password,
	// deliberately indistinguishable to the client.
	ErrBadCredentials = errors.New("persist: invalid username or password")
	// ErrNameTaken is returned when registering an existing username.
	ErrNameTaken = errors.New("persist: username already taken")
)

// Account is the credential record of one user.
type Account struct {
	ID        int32
	Username  string
	CreatedAt time.Time
	LastLogin time.Time
	Banned    bool
}

// AccountRepo manages account records.
//
// Key scheme:
//
//	accounts:counter            next account id
//	account:{id}                hash: username, password_hash, created_at, last_login, banned
//	account:username:{name}     reverse index → id
type AccountRepo struct {
	kv KV
}

// NewAccountRepo wires the repo to a store.
func NewAccountRepo(kv KV) *AccountRepo {
	return &AccountRepo{kv: kv}
}

// Create registers a new account with a bcrypt password hash.
func (r *AccountRepo) Create(ctx context.Context, username, password string) (*Account, error) {
	if _, err := r.kv.Get(ctx, nameKey(username)); err == nil {
		return nil, ErrNameTaken
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	id64, err := r.kv.Incr(ctx, "accounts:counter")
	if err != nil {
		return nil, err
	}
	id := int32(id64)
	now := time.Now().UTC()

	if err := r.kv.HSet(ctx, accountKey(id), map[string]string{
		"username":      username,
		"password_hash": string(hash),
		"created_at":    now.Format(time.RFC3339),
		"last_login":    "",
		"banned":        "0",
	}); err != nil {
		return nil, err
	}
	if err := r.kv.Set(ctx, nameKey(username), strconv.Itoa(int(id))); err != nil {
		return nil, err
	}
	return &Account{ID: id, Username: username, CreatedAt: now}, nil
}

// Authenticate checks credentials and returns the account on success.
func (r *AccountRepo) Authenticate(ctx context.Context, username, password string) (*Account, error) {
	idStr, err := r.kv.Get(ctx, nameKey(username))
	if errors.Is(err, ErrNotFound) {
		// Burn a comparison so unknown names cost the same as bad passwords.
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, ErrBadCredentials
	} else if err != nil {
		return nil, err
	}
	id64, err := strconv.ParseInt(idStr, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("corrupt account index for %q: %w", username, err)
	}
	id := int32(id64)

	fields, err := r.kv.HGetAll(ctx, accountKey(id))
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, ErrBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(fields["password_hash"]), []byte(password)); err != nil {
		return nil, ErrBadCredentials
	}

	acc := &Account{ID: id, Username: fields["username"], Banned: fields["banned"] == "1"}
	if t, err := time.Parse(time.RFC3339, fields["created_at"]); err == nil {
		acc.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339, fields["last_login"]); err == nil {
		acc.LastLogin = t
	}
	return acc, nil
}

// TouchLogin records a successful login time.
func (r *AccountRepo) TouchLogin(ctx context.Context, id int32) error {
	return r.kv.HSet(ctx, accountKey(id), map[string]string{
		"last_login": time.Now().UTC().Format(time.RFC3339),
	})
}

var dummyHash = []byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")

func accountKey(id int32) string     { return fmt.Sprintf("account:%d", id) }
func nameKey(username string) string { return "account:username:" + username }
