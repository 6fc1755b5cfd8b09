// Package directory owns user accounts: registration, lookup, notification preferences and
// linking of Telegram chats.
package directory

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"mychat/backend/internal/auth"
	"mychat/backend/internal/errs"
	"mychat/backend/internal/models"
	"mychat/backend/internal/storage"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// Profile carries the optional fields of a new account.
type Profile struct {
	FirstName *string
	LastName  *string
	Telegram  *string
}

// Service resolves users. Reads by id go through a short-lived cache because the hot path
// (routing and history) looks up the same few users over and over. Every invalidation bumps
// the user's generation, and a fill started under an older generation is discarded.
type Service struct {
	store storage.Storage
	cache *cache.Cache
	log   *zap.Logger

	genMu sync.Mutex
	gens  map[uint]uint64
}

// NewService creates the directory. A zero ttl disables caching.
func NewService(store storage.Storage, ttl time.Duration, log *zap.Logger) *Service {
	s := &Service{store: store, log: log, gens: make(map[uint]uint64)}
	if ttl > 0 {
		s.cache = cache.New(ttl, 2*ttl)
	}
	return s
}

// Register creates an account. The storage's unique index decides username collisions, so
// two concurrent registrations of one name yield exactly one success.
func (s *Service) Register(ctx context.Context, username, passwordHash string, profile Profile) (uint, error) {
	user := &models.User{
		Username:  username,
		Password:  passwordHash,
		FirstName: profile.FirstName,
		LastName:  profile.LastName,
		Telegram:  profile.Telegram,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return 0, fmt.Errorf("register %s: %w", username, err)
	}
	s.log.Info("User registered", zap.Uint("user_id", user.ID), zap.String("username", username))
	return user.ID, nil
}

// FindByUsername returns nil when no user has the name.
func (s *Service) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.store.GetUserByUsername(ctx, username)
}

// FindByID returns nil when no user has the id.
func (s *Service) FindByID(ctx context.Context, id uint) (*models.User, error) {
	key := cacheKey(id)
	if s.cache != nil {
		if cached, ok := s.cache.Get(key); ok {
			user := cached.(models.User)
			return &user, nil
		}
	}
	gen := s.generation(id)
	user, err := s.store.GetUserByID(ctx, id)
	if err != nil || user == nil {
		return user, err
	}
	s.fill(*user, gen)
	return user, nil
}

// LoadByID reads the user from storage, bypassing the cache. Decisions that act on the
// notification preference use it so an opt-out takes effect at once on every instance.
func (s *Service) LoadByID(ctx context.Context, id uint) (*models.User, error) {
	return s.store.GetUserByID(ctx, id)
}

// FindByIDs resolves several users at once, keyed by id. Unknown ids are absent from the map.
func (s *Service) FindByIDs(ctx context.Context, ids []uint) (map[uint]models.User, error) {
	result := make(map[uint]models.User, len(ids))
	var missing []uint
	for _, id := range ids {
		if s.cache != nil {
			if cached, ok := s.cache.Get(cacheKey(id)); ok {
				result[id] = cached.(models.User)
				continue
			}
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return result, nil
	}
	gens := make(map[uint]uint64, len(missing))
	for _, id := range missing {
		gens[id] = s.generation(id)
	}
	users, err := s.store.GetUsersByIDs(ctx, missing)
	if err != nil {
		return nil, err
	}
	for _, user := range users {
		result[user.ID] = user
		s.fill(user, gens[user.ID])
	}
	return result, nil
}

// SetNotificationPreference stores the user's Telegram handle and whether notifications are
// on. Repeating the call with the same values changes nothing.
func (s *Service) SetNotificationPreference(ctx context.Context, username string, handle *string, enabled bool) error {
	id, err := s.store.UpdateUserNotice(ctx, username, handle, enabled)
	if err != nil {
		return fmt.Errorf("set notice for %s: %w", username, err)
	}
	s.invalidate(id)
	return nil
}

// LinkExternalAddress binds a Telegram chat to every user registered with handle.
// linked is false when no user matches; that is not an error.
func (s *Service) LinkExternalAddress(ctx context.Context, handle string, address int64) (bool, error) {
	ids, err := s.store.UpdateTelegramChatID(ctx, handle, address)
	if err != nil {
		return false, err
	}
	for _, id := range ids {
		s.invalidate(id)
	}
	if len(ids) == 0 {
		s.log.Debug("No user for telegram handle", zap.String("handle", handle))
		return false, nil
	}
	s.log.Info("Telegram chat linked", zap.String("handle", handle), zap.Int("users", len(ids)))
	return true, nil
}

// Authenticate checks the credentials. Unknown users and wrong passwords are
// indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil || !auth.VerifyPassword(user.Password, password) {
		return nil, errs.ErrInvalidCredentials
	}
	return user, nil
}

// ListUsers returns every account ordered by id.
func (s *Service) ListUsers(ctx context.Context) ([]models.User, error) {
	return s.store.ListUsers(ctx)
}

func (s *Service) generation(id uint) uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.gens[id]
}

// fill caches user unless it was invalidated after the read that produced it started.
func (s *Service) fill(user models.User, gen uint64) {
	if s.cache == nil {
		return
	}
	s.genMu.Lock()
	defer s.genMu.Unlock()
	if s.gens[user.ID] == gen {
		s.cache.SetDefault(cacheKey(user.ID), user)
	}
}

func (s *Service) invalidate(id uint) {
	if s.cache == nil {
		return
	}
	s.genMu.Lock()
	defer s.genMu.Unlock()
	s.gens[id]++
	s.cache.Delete(cacheKey(id))
}

func cacheKey(id uint) string {
	return "user:" + strconv.FormatUint(uint64(id), 10)
}
