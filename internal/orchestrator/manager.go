package orchestrator

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/GriffinCanCode/dialogue-overlay/internal/audio"
	"github.com/GriffinCanCode/dialogue-overlay/internal/config"
	"github.com/GriffinCanCode/dialogue-overlay/internal/dialogue"
	apperrors "github.com/GriffinCanCode/dialogue-overlay/internal/errors"
	"github.com/GriffinCanCode/dialogue-overlay/internal/orchestrator/cue"
	"github.com/GriffinCanCode/dialogue-overlay/internal/orchestrator/history"
	"github.com/GriffinCanCode/dialogue-overlay/internal/orchestrator/pipeline"
	"github.com/GriffinCanCode/dialogue-overlay/internal/overlay"
	"github.com/GriffinCanCode/dialogue-overlay/internal/provider"
	"github.com/GriffinCanCode/dialogue-overlay/internal/resilience"
	"github.com/GriffinCanCode/dialogue-overlay/internal/screen"
	"github.com/GriffinCanCode/dialogue-overlay/internal/syncx"
	"github.com/GriffinCanCode/dialogue-overlay/internal/trace"
)

// Shared holds the collaborators sessions are built from. Script and the
// provider clients are shared; NewText and NewRenderer, when set, give each
// session its own instance instead.
type Shared struct {
	Script     *dialogue.Script
	Text       provider.TextProvider
	Translator provider.Translator
	Renderer   *overlay.Renderer
	// NewText builds a session's text provider. Providers implementing
	// provider.Closer are closed with the session.
	NewText func() (provider.TextProvider, error)
	// NewRenderer builds a session's renderer.
	NewRenderer func() *overlay.Renderer
	// Player and Clips enable voice cues when both are set.
	Player audio.Player
	Clips  *audio.Library
	// NewScreen builds the capturer for screen sessions; defaults to screen.New.
	NewScreen func(titleBar int) screen.Capturer
}

// Manager creates, finds and closes sessions.
type Manager struct {
	cfg    *config.Config
	shared Shared

	base   context.Context
	cancel context.CancelFunc

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a manager. Sessions outlive the requests that create
// them and stop on Close.
func NewManager(cfg *config.Config, shared Shared) *Manager {
	if shared.NewScreen == nil {
		shared.NewScreen = screen.New
	}
	if shared.Renderer == nil && shared.NewRenderer == nil {
		face, _ := overlay.NewTypeface("")
		shared.Renderer = overlay.NewRenderer(face, overlay.Options{})
	}
	base, cancel := context.WithCancel(context.Background())
	return &Manager{
		cfg:      cfg,
		shared:   shared,
		base:     base,
		cancel:   cancel,
		sessions: make(map[string]*Session),
	}
}

// Create starts a new session.
func (m *Manager) Create(opts SessionOptions) (*Session, error) {
	mode := m.cfg.OverlayMode()
	if opts.Mode != "" {
		parsed, err := overlay.ParseMode(opts.Mode)
		if err != nil {
			return nil, err
		}
		mode = parsed
	}
	source := opts.Source
	if source == "" {
		source = m.cfg.Capture.Source
	}
	if source != SourcePush && source != SourceScreen {
		return nil, apperrors.Newf(apperrors.CodeInvalidArgument, "unknown source %q", source)
	}
	lang := opts.Language
	if lang == "" {
		lang = m.cfg.Language
	}
	translate := m.cfg.Pipeline.Translate
	if opts.Translate != nil {
		translate = *opts.Translate
	}
	target := opts.TargetLanguage
	if target == "" {
		target = m.cfg.Pipeline.TargetLanguage
	}

	id := uuid.NewString()
	namespace := opts.Namespace
	if namespace == "" {
		namespace = id
	}
	if err := validateNamespace(namespace); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if limit := m.cfg.Server.MaxSessions; limit > 0 && len(m.sessions) >= limit {
		return nil, apperrors.Newf(apperrors.CodeUnavailable, "session limit of %d reached", limit)
	}
	for _, s := range m.sessions {
		if s.Namespace == namespace {
			return nil, apperrors.Newf(apperrors.CodeInvalidArgument, "cache namespace %q is in use by session %s", namespace, s.ID)
		}
	}

	s := &Session{
		ID:        id,
		Namespace: namespace,
		Source:    source,
		Language:  lang,
		Created:   time.Now(),
		slot:      &screen.Slot{},
		renderer:  m.renderer(),
		mode:      syncx.NewGuard(mode),
		history:   history.NewStore(m.historySize(), HistoryEventBuffer),
		script:    m.shared.Script,
	}
	if source == SourcePush {
		s.push = screen.NewPushSource()
		s.src = s.push
	} else {
		s.src = m.shared.NewScreen(m.cfg.Capture.TitleBar)
	}

	text := m.shared.Text
	if m.shared.NewText != nil {
		t, err := m.shared.NewText()
		if err != nil {
			s.src.Close()
			return nil, apperrors.Wrap(err, apperrors.CodeUnavailable, "session text provider")
		}
		text, s.ownText = t, t
	}

	c, err := openCaches(m.cfg, namespace)
	if err != nil {
		s.closeText()
		s.src.Close()
		return nil, err
	}
	s.caches = c

	ctx := trace.WithSession(trace.WithContext(m.base, trace.New()), id)
	listeners := []pipeline.Listener{s}
	if m.cfg.Cue.Enabled && m.shared.Player != nil && m.shared.Clips != nil {
		listeners = append(listeners, cue.New(ctx, cue.NewTrigger(m.cfg.Cue.Cooldown, true), m.shared.Clips, m.shared.Player))
	}

	s.pipe = pipeline.New(pipeline.Config{
		Language:        lang,
		Translate:       translate,
		TargetLanguage:  target,
		Threshold:       m.cfg.Pipeline.HashThreshold,
		HashSize:        m.cfg.Pipeline.HashSize,
		ExcludeKeywords: m.cfg.Pipeline.ExcludeKeywords,
		Interval:        m.cfg.Pipeline.Interval,
	}, pipeline.Deps{
		Slot:         s.slot,
		Text:         text,
		Translator:   m.shared.Translator,
		Script:       m.shared.Script,
		Matcher:      dialogue.NewMatcher(m.cfg.Pipeline.Noise),
		Recognitions: c.recognitions,
		Translations: c.translations,
		TextGuard:    m.guard(ctx, "recognition"),
		TransGuard:   m.guard(ctx, "translation"),
		Listeners:    listeners,
		RenderMode:   s.mode.Get,
	})

	s.start(ctx, screen.NewLoop(s.src, s.slot, m.cfg.Capture.Interval))
	m.sessions[id] = s
	return s, nil
}

func (m *Manager) renderer() *overlay.Renderer {
	if m.shared.NewRenderer != nil {
		return m.shared.NewRenderer()
	}
	return m.shared.Renderer
}

func (m *Manager) guard(ctx context.Context, name string) *resilience.Guard {
	return newGuard(ctx, m.cfg, name)
}

func newGuard(ctx context.Context, cfg *config.Config, name string) *resilience.Guard {
	g := resilience.NewGuard(name, cfg.Resilience.Breaker, cfg.Resilience.Retry)
	log := trace.Logger(ctx)
	g.Breaker.OnChange(func(from, to resilience.State) {
		log.Warn("provider circuit changed", "provider", name, "from", from, "to", to)
	})
	return g
}

func (m *Manager) historySize() int {
	if n := m.cfg.Server.HistorySize; n > 0 {
		return n
	}
	return DefaultHistorySize
}

// Get returns the session with id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, apperrors.Newf(apperrors.CodeNotFound, "session %s not found", id)
	}
	return s, nil
}

// Delete closes and forgets the session with id.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return apperrors.Newf(apperrors.CodeNotFound, "session %s not found", id)
	}
	s.Close()
	trace.Logger(trace.WithSession(m.base, id)).Info("session closed")
	return nil
}

// List returns live sessions, oldest first.
func (m *Manager) List() []*Session {
	m.mu.RLock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Created.Before(out[j].Created) })
	return out
}

// Close stops every session.
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	m.cancel()
	for _, s := range sessions {
		s.Close()
	}
}
