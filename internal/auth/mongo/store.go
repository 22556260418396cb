// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GeekCraft Contributors

// Package mongo provides a MongoDB auth.Backend.
//
// Collections:
//   - users:    {_id: id, username, password_hash, created_at}, unique index on username
//   - sessions: {_id: token, user_id, username, created_at, expires_at}, TTL index on expires_at
//   - counters: {_id: "user_id", seq}, advanced with an atomic find-and-increment
//
// One client is created by Open and shared by every call.
package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/samber/oops"
	"go.mongodb.org/mongo-driver/v2/bson"
	mongodrv "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"go.mongodb.org/mongo-driver/v2/x/mongo/driver/connstring"

	"github.com/geekcraft/geekcraft/internal/auth"
)

// DefaultDatabase is used when the connection URL names no database.
const DefaultDatabase = "geekcraft"

// Collection and counter names.
const (
	UsersCollection    = "users"
	SessionsCollection = "sessions"
	CountersCollection = "counters"
	userIDCounter      = "user_id"
)

const disconnectTimeout = 10 * time.Second

type userDoc struct {
	ID           int64     `bson:"_id"`
	Username     string    `bson:"username"`
	PasswordHash string    `bson:"password_hash"`
	CreatedAt    time.Time `bson:"created_at"`
}

type sessionDoc struct {
	Token     string    `bson:"_id"`
	UserID    int64     `bson:"user_id"`
	Username  string    `bson:"username"`
	CreatedAt time.Time `bson:"created_at"`
	ExpiresAt time.Time `bson:"expires_at"`
}

type counterDoc struct {
	ID  string `bson:"_id"`
	Seq int64  `bson:"seq"`
}

// Store implements auth.Backend on MongoDB.
type Store struct {
	client   *mongodrv.Client
	db       *mongodrv.Database
	users    *mongodrv.Collection
	sessions *mongodrv.Collection
	counters *mongodrv.Collection
	now      func() time.Time
}

// Compile-time interface check.
var _ auth.Backend = (*Store)(nil)

// DatabaseName returns the database named in uri's path, or DefaultDatabase.
func DatabaseName(uri string) (string, error) {
	cs, err := connstring.ParseAndValidate(uri)
	if err != nil {
		return "", oops.With("operation", "parse url").Wrap(err)
	}
	if cs.Database == "" {
		return DefaultDatabase, nil
	}
	return cs.Database, nil
}

// Open connects to uri, pings the primary and ensures indexes.
func Open(ctx context.Context, uri string) (*Store, error) {
	name, err := DatabaseName(uri)
	if err != nil {
		return nil, err
	}

	client, err := mongodrv.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, oops.With("operation", "connect").Wrap(err)
	}

	s := New(client, name)
	if err := s.Ping(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	if err := s.EnsureIndexes(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// New wraps a connected client. Call EnsureIndexes before use on a fresh database.
func New(client *mongodrv.Client, database string) *Store {
	db := client.Database(database)
	return &Store{
		client:   client,
		db:       db,
		users:    db.Collection(UsersCollection),
		sessions: db.Collection(SessionsCollection),
		counters: db.Collection(CountersCollection),
		now:      time.Now,
	}
}

// EnsureIndexes creates the username unique index and the session TTL index.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateOne(ctx, mongodrv.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("users_username_unique"),
	})
	if err != nil {
		return oops.With("operation", "create users index").Wrap(err)
	}

	_, err = s.sessions.Indexes().CreateMany(ctx, []mongodrv.IndexModel{
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0).SetName("sessions_expires_at_ttl"),
		},
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetName("sessions_user_id"),
		},
	})
	if err != nil {
		return oops.With("operation", "create sessions indexes").Wrap(err)
	}
	return nil
}

// CreateUser checks the username, takes the next id from the counter and
// inserts. The unique index rejects a concurrent duplicate that passed the
// check; that id is skipped.
func (s *Store) CreateUser(ctx context.Context, username, passwordHash string) (*auth.User, error) {
	err := s.users.FindOne(ctx, bson.M{"username": username}).Err()
	switch {
	case err == nil:
		return nil, conflict(username)
	case !errors.Is(err, mongodrv.ErrNoDocuments):
		return nil, oops.With("operation", "check username").With("username", username).Wrap(err)
	}

	id, err := s.nextUserID(ctx)
	if err != nil {
		return nil, err
	}

	doc := userDoc{
		ID:           id,
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    s.now().UTC().Truncate(time.Millisecond),
	}
	if _, err := s.users.InsertOne(ctx, doc); err != nil {
		if mongodrv.IsDuplicateKeyError(err) {
			return nil, conflict(username)
		}
		return nil, oops.With("operation", "insert user").With("username", username).Wrap(err)
	}

	return &auth.User{
		ID:           doc.ID,
		Username:     doc.Username,
		PasswordHash: doc.PasswordHash,
		CreatedAt:    doc.CreatedAt,
	}, nil
}

func (s *Store) nextUserID(ctx context.Context) (int64, error) {
	var c counterDoc
	err := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": userIDCounter},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&c)
	if err != nil {
		return 0, oops.With("operation", "increment user id").Wrap(err)
	}
	return c.Seq, nil
}

// GetUserByUsername returns the user or nil.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*auth.User, error) {
	var doc userDoc
	err := s.users.FindOne(ctx, bson.M{"username": username}).Decode(&doc)
	if errors.Is(err, mongodrv.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, oops.With("operation", "find user").With("username", username).Wrap(err)
	}
	return &auth.User{
		ID:           doc.ID,
		Username:     doc.Username,
		PasswordHash: doc.PasswordHash,
		CreatedAt:    doc.CreatedAt,
	}, nil
}

// CreateSession upserts the session keyed by token.
func (s *Store) CreateSession(ctx context.Context, token string, userID int64, expiresAt time.Time) error {
	var owner userDoc
	err := s.users.FindOne(ctx, bson.M{"_id": userID}).Decode(&owner)
	if errors.Is(err, mongodrv.ErrNoDocuments) {
		return oops.Code(auth.CodeNotFound).With("user_id", userID).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return oops.With("operation", "find session owner").With("user_id", userID).Wrap(err)
	}

	doc := sessionDoc{
		Token:     token,
		UserID:    owner.ID,
		Username:  owner.Username,
		CreatedAt: s.now().UTC(),
		ExpiresAt: expiresAt.UTC(),
	}
	_, err = s.sessions.ReplaceOne(ctx, bson.M{"_id": token}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return oops.With("operation", "upsert session").With("user_id", userID).Wrap(err)
	}
	return nil
}

// GetSession returns the live session or nil. TTL eviction runs about once a
// minute, so the expiry is checked here too.
func (s *Store) GetSession(ctx context.Context, token string) (*auth.Session, error) {
	var doc sessionDoc
	err := s.sessions.FindOne(ctx, bson.M{"_id": token}).Decode(&doc)
	if errors.Is(err, mongodrv.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, oops.With("operation", "find session").Wrap(err)
	}

	sess := &auth.Session{
		Token:     doc.Token,
		UserID:    doc.UserID,
		Username:  doc.Username,
		CreatedAt: doc.CreatedAt,
		ExpiresAt: doc.ExpiresAt,
	}
	if !sess.IsLiveAt(s.now()) {
		//nolint:errcheck // best effort; the TTL index removes it otherwise
		_, _ = s.sessions.DeleteOne(ctx, bson.M{"_id": token})
		return nil, nil
	}
	return sess, nil
}

// DeleteSession removes a session if present.
func (s *Store) DeleteSession(ctx context.Context, token string) error {
	if _, err := s.sessions.DeleteOne(ctx, bson.M{"_id": token}); err != nil {
		return oops.With("operation", "delete session").Wrap(err)
	}
	return nil
}

// DeleteExpiredSessions removes expired sessions the TTL monitor has not
// reached yet.
func (s *Store) DeleteExpiredSessions(ctx context.Context) error {
	_, err := s.sessions.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lte": s.now().UTC()}})
	if err != nil {
		return oops.With("operation", "delete expired sessions").Wrap(err)
	}
	return nil
}

// Ping checks the primary is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return oops.With("operation", "ping").Wrap(err)
	}
	return nil
}

// Close disconnects the shared client.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
	defer cancel()
	if err := s.client.Disconnect(ctx); err != nil {
		return oops.With("operation", "disconnect").Wrap(err)
	}
	return nil
}

// Database returns the database the store writes to.
func (s *Store) Database() *mongodrv.Database {
	return s.db
}

func conflict(username string) error {
	return oops.Code(auth.CodeConflict).With("username", username).Wrap(auth.ErrConflict)
}
