package session

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Manager orchestrates cookie based sessions backed by Redis.
type Manager struct {
	client     *redis.Client
	cookieName string
	ttl        time.Duration
	secure     bool
	secret     []byte
}

// Session holds per-request session data.
type Session struct {
	ID        string
	userID    string
	isNew     bool
	dirty     bool
	destroyed bool
}

type payload struct {
	UserID string `json:"user_id"`
}

// NewManager constructs a Manager.
func NewManager(client *redis.Client, cookieName string, secret string, ttl time.Duration, secure bool) *Manager {
	return &Manager{client: client, cookieName: cookieName, ttl: ttl, secure: secure, secret: []byte(secret)}
}

// Load restores the session referenced by the request cookie, or creates a
// fresh one when no cookie or no stored state exists.
func (m *Manager) Load(ctx context.Context, r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(m.cookieName)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return m.newSession(), nil
		}
		return nil, err
	}

	// A cookie that fails signature verification is treated the same as no
	// cookie at all, so a tampered value can never address another session.
	id, ok := m.verify(cookie.Value)
	if !ok {
		return m.newSession(), nil
	}

	data, err := m.client.Get(ctx, redisKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			sess := m.newSession()
			sess.ID = id
			return sess, nil
		}
		return nil, err
	}

	var stored payload
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, err
	}
	return &Session{ID: id, userID: stored.UserID}, nil
}

// Commit persists the session and writes cookie headers as needed. It must
// run before the response headers are flushed.
func (m *Manager) Commit(ctx context.Context, w http.ResponseWriter, sess *Session) error {
	if sess == nil {
		return nil
	}

	if sess.destroyed {
		if err := m.client.Del(ctx, redisKey(sess.ID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		http.SetCookie(w, &http.Cookie{
			Name:     m.cookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   m.secure,
			SameSite: http.SameSiteStrictMode,
		})
		return nil
	}

	if sess.isNew && sess.ID == "" {
		sess.ID = m.generateSessionID()
	}

	if sess.dirty || sess.isNew {
		data, err := json.Marshal(payload{UserID: sess.userID})
		if err != nil {
			return err
		}
		if err := m.client.Set(ctx, redisKey(sess.ID), data, m.ttl).Err(); err != nil {
			return err
		}
		sess.dirty = false
	}

	if sess.ID != "" {
		http.SetCookie(w, &http.Cookie{
			Name:     m.cookieName,
			Value:    m.sign(sess.ID),
			Path:     "/",
			HttpOnly: true,
			Secure:   m.secure,
			SameSite: http.SameSiteStrictMode,
			Expires:  time.Now().Add(m.ttl),
		})
	}
	return nil
}

// Destroy marks the session for deletion on commit.
func (m *Manager) Destroy(sess *Session) {
	if sess == nil {
		return
	}
	sess.destroyed = true
}

// TTL exposes the configured session lifetime.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// SetUser associates the session with a user ID.
func (s *Session) SetUser(id string) {
	s.userID = id
	s.dirty = true
}

// User returns the current user ID, empty for anonymous sessions.
func (s *Session) User() string {
	return s.userID
}

func (m *Manager) newSession() *Session {
	return &Session{ID: m.generateSessionID(), isNew: true, dirty: true}
}

func redisKey(id string) string {
	return "session:" + id
}

func (m *Manager) generateSessionID() string {
	if id, err := uuid.NewRandom(); err == nil {
		return id.String()
	}
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return base64.RawURLEncoding.EncodeToString([]byte(time.Now().Format(time.RFC3339Nano)))
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

// sign produces the cookie value "<id>.<mac>" so the browser-held session
// reference cannot be forged without the server secret.
func (m *Manager) sign(id string) string {
	return id + "." + m.mac(id)
}

// verify splits a cookie value and checks its signature, returning the bare
// session ID on success.
func (m *Manager) verify(value string) (string, bool) {
	id, sig, ok := strings.Cut(value, ".")
	if !ok || id == "" {
		return "", false
	}
	if !hmac.Equal([]byte(sig), []byte(m.mac(id))) {
		return "", false
	}
	return id, true
}

func (m *Manager) mac(id string) string {
	h := hmac.New(sha256.New, m.secret)
	h.Write([]byte(id))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

type contextKey struct{}

// ContextWith stores the session in context.
func ContextWith(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, sess)
}

// FromContext extracts the session from context.
func FromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(contextKey{}).(*Session)
	return sess
}
