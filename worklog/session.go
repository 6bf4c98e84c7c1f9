package worklog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/worklog-cli/worklog/config"
	"github.com/worklog-cli/worklog/transport"
)

// Session ties a config, a transport and a logger together and caches the
// two lookups almost every operation needs: the current user and the
// default workspace. Both are fetched at most once per session.
type Session struct {
	cfg *config.Config
	tr  transport.Transport
	log zerolog.Logger

	mu               sync.Mutex
	currentUser      *Entity
	defaultWorkspace *Entity
}

// NewSession builds a session. The transport is usually transport.New
// configured from cfg; tests substitute fakes.
func NewSession(cfg *config.Config, tr transport.Transport, log zerolog.Logger) *Session {
	return &Session{cfg: cfg, tr: tr, log: log}
}

func (s *Session) Config() *config.Config         { return s.cfg }
func (s *Session) Transport() transport.Transport { return s.tr }
func (s *Session) Logger() *zerolog.Logger        { return &s.log }

// Timezone is the configured display timezone.
func (s *Session) Timezone() *time.Location {
	if s.cfg == nil {
		return time.UTC
	}
	return s.cfg.Timezone()
}

// CurrentUser fetches and caches the authenticated user.
func (s *Session) CurrentUser(ctx context.Context) (*Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentUserLocked(ctx)
}

func (s *Session) currentUserLocked(ctx context.Context) (*Entity, error) {
	if s.currentUser != nil {
		return s.currentUser, nil
	}
	user, err := fetchMe(ctx, s)
	if err != nil {
		return nil, err
	}
	s.currentUser = user
	return user, nil
}

// DefaultWorkspace resolves the workspace used when an operation names
// none: the configured default_workspace_id when set, otherwise the current
// user's default workspace. The result is cached.
func (s *Session) DefaultWorkspace(ctx context.Context) (*Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.defaultWorkspace != nil {
		return s.defaultWorkspace, nil
	}

	if s.cfg != nil {
		if _, set := s.cfg.Lookup(config.KeyDefaultWorkspaceID); set {
			id := s.cfg.Int64(config.KeyDefaultWorkspaceID)
			// resolved through the registry: naming the schema variable
			// here would cycle package initialization
			schema, ok := Lookup("workspace")
			if !ok {
				return nil, fmt.Errorf("workspace schema is not registered")
			}
			ws, err := schema.Objects().Get(ctx, s, id)
			if err != nil {
				return nil, err
			}
			if ws == nil {
				return nil, fmt.Errorf("configured default workspace %d does not exist", id)
			}
			s.defaultWorkspace = ws
			return ws, nil
		}
	}

	user, err := s.currentUserLocked(ctx)
	if err != nil {
		return nil, err
	}
	ws, err := user.Get(ctx, "default_workspace")
	if err != nil {
		return nil, err
	}
	entity, ok := ws.(*Entity)
	if !ok || entity == nil {
		return nil, fmt.Errorf("current user has no default workspace")
	}
	s.defaultWorkspace = entity
	return entity, nil
}
