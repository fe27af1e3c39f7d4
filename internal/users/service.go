package users

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/fintrack-app/fintrack/internal/rbac"
	"github.com/fintrack-app/fintrack/internal/shared"
)

const (
	statsCacheKey = "fintrack:users:stats"
	statsCacheTTL = time.Minute
)

// Service enforces user administration rules on top of the repository. Every
// privileged operation re-checks the acting identity against the hierarchy;
// nothing trusts role claims baked into requests.
type Service struct {
	repo      Repository
	hierarchy rbac.Hierarchy
	cache     *redis.Client
	logger    *slog.Logger
}

// NewService constructs a Service. The cache client is optional; a nil
// client disables stats caching.
func NewService(repo Repository, hierarchy rbac.Hierarchy, cache *redis.Client, logger *slog.Logger) *Service {
	return &Service{repo: repo, hierarchy: hierarchy, cache: cache, logger: logger}
}

// List returns a page of users with pagination metadata.
func (s *Service) List(ctx context.Context, page, perPage int, search string) ([]User, shared.Pagination, error) {
	items, total, err := s.repo.List(ctx, page, perPage, strings.TrimSpace(search))
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(page, perPage, total), nil
}

// Get fetches a single user record.
func (s *Service) Get(ctx context.Context, id string) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

// ChangeRole assigns a new role to the target user. The actor must strictly
// out-rank both the target's current role and the requested role. The current
// role is re-verified by the repository against the locked row, so a
// concurrent promotion of the target cannot slip past the rank check.
func (s *Service) ChangeRole(ctx context.Context, actor rbac.Identity, targetID string, rawRole string) (*User, error) {
	role, err := s.hierarchy.Parse(rawRole)
	if err != nil {
		return nil, err
	}
	target, err := s.repo.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	manages, err := s.hierarchy.CanManage(actor.Role, target.Role)
	if err != nil {
		return nil, err
	}
	if !manages {
		return nil, ErrCannotManageTarget
	}
	assignable, err := s.hierarchy.CanManage(actor.Role, role)
	if err != nil {
		return nil, err
	}
	if !assignable {
		return nil, ErrCannotAssignRole
	}
	err = s.repo.UpdateRole(ctx, targetID, role, func(current rbac.Role) error {
		manages, err := s.hierarchy.CanManage(actor.Role, current)
		if err != nil {
			return err
		}
		if !manages {
			return ErrCannotManageTarget
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidateStats(ctx)
	return s.repo.GetByID(ctx, targetID)
}

// Deactivate disables the target account. Self-deactivation is rejected
// before any hierarchy check runs.
func (s *Service) Deactivate(ctx context.Context, actor rbac.Identity, targetID string) error {
	if actor.SubjectID == targetID {
		return ErrSelfDeactivation
	}
	if err := s.authorizeManage(ctx, actor, targetID); err != nil {
		return err
	}
	if err := s.repo.SetActive(ctx, targetID, false); err != nil {
		return err
	}
	s.invalidateStats(ctx)
	return nil
}

// Reactivate re-enables the target account.
func (s *Service) Reactivate(ctx context.Context, actor rbac.Identity, targetID string) error {
	if err := s.authorizeManage(ctx, actor, targetID); err != nil {
		return err
	}
	if err := s.repo.SetActive(ctx, targetID, true); err != nil {
		return err
	}
	s.invalidateStats(ctx)
	return nil
}

// Profile returns the record behind a profile route.
func (s *Service) Profile(ctx context.Context, userID string) (*User, error) {
	return s.repo.GetByID(ctx, userID)
}

// UpdateProfile renames the account.
func (s *Service) UpdateProfile(ctx context.Context, userID, name string) (*User, error) {
	return s.repo.UpdateProfile(ctx, userID, strings.TrimSpace(name))
}

// Stats returns aggregate account counts, cached for a short window.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	if cached, ok := s.cachedStats(ctx); ok {
		return cached, nil
	}

	var stats Stats
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		total, active, err := s.repo.CountByStatus(gctx)
		if err != nil {
			return err
		}
		stats.Total = total
		stats.Active = active
		stats.Inactive = total - active
		return nil
	})
	g.Go(func() error {
		byRole, err := s.repo.CountByRole(gctx)
		if err != nil {
			return err
		}
		stats.ByRole = byRole
		return nil
	})
	if err := g.Wait(); err != nil {
		return Stats{}, err
	}

	s.storeStats(ctx, stats)
	return stats, nil
}

func (s *Service) authorizeManage(ctx context.Context, actor rbac.Identity, targetID string) error {
	target, err := s.repo.GetByID(ctx, targetID)
	if err != nil {
		return err
	}
	manages, err := s.hierarchy.CanManage(actor.Role, target.Role)
	if err != nil {
		return err
	}
	if !manages {
		return ErrCannotManageTarget
	}
	return nil
}

func (s *Service) cachedStats(ctx context.Context) (Stats, bool) {
	if s.cache == nil {
		return Stats{}, false
	}
	raw, err := s.cache.Get(ctx, statsCacheKey).Bytes()
	if err != nil {
		return Stats{}, false
	}
	var stats Stats
	if err := json.Unmarshal(raw, &stats); err != nil {
		return Stats{}, false
	}
	return stats, true
}

func (s *Service) storeStats(ctx context.Context, stats Stats) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(stats)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, statsCacheKey, raw, statsCacheTTL).Err(); err != nil && s.logger != nil {
		s.logger.Debug("stats cache write failed", slog.Any("error", err))
	}
}

func (s *Service) invalidateStats(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, statsCacheKey).Err(); err != nil && s.logger != nil {
		s.logger.Debug("stats cache invalidate failed", slog.Any("error", err))
	}
}
