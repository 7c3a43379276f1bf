package ocr

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Engine is a layout-analysis backend. Analyze gets one encoded image
// (PNG/JPEG/TIFF) and returns words and tables in that image's pixel frame.
type Engine interface {
	Name() string
	Analyze(ctx context.Context, image []byte) (Analysis, error)
}

var (
	// ErrTransient: таймаут, 429, 5xx. Повтор имеет смысл, но не на нашем уровне.
	ErrTransient = errors.New("ocr: transient failure")
	// ErrInvalidCredentials: 401/403 или протухший ключ.
	ErrInvalidCredentials = errors.New("ocr: invalid credentials")
	ErrUnknownEngine      = errors.New("ocr: unknown engine")
)

// Retryable reports whether err belongs to a category a caller may retry.
func Retryable(err error) bool {
	return errors.Is(err, ErrTransient) || errors.Is(err, ErrInvalidCredentials)
}

// StatusError classifies an HTTP status from a remote engine.
func StatusError(engine string, status int, body string) error {
	body = strings.TrimSpace(body)
	if len(body) > 300 {
		body = body[:300]
	}
	switch {
	case status == 401 || status == 403:
		return fmt.Errorf("%s %d: %s: %w", engine, status, body, ErrInvalidCredentials)
	case status == 408 || status == 429 || status >= 500:
		return fmt.Errorf("%s %d: %s: %w", engine, status, body, ErrTransient)
	default:
		return fmt.Errorf("%s %d: %s", engine, status, body)
	}
}

// Engines: реестр доступных движков по имени.
type Engines struct {
	def string
	m   map[string]Engine
}

func NewEngines(def string, engs ...Engine) *Engines {
	e := &Engines{def: def, m: make(map[string]Engine, len(engs))}
	for _, eng := range engs {
		if eng != nil {
			e.m[eng.Name()] = eng
		}
	}
	return e
}

// GetEngine returns the named engine; empty name means the default one.
func (e *Engines) GetEngine(name string) (Engine, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = e.def
	}
	if eng, ok := e.m[name]; ok {
		return eng, nil
	}
	return nil, fmt.Errorf("%w %q; use one of %s", ErrUnknownEngine, name, strings.Join(e.Names(), ", "))
}

func (e *Engines) Default() string { return e.def }

func (e *Engines) Names() []string {
	out := make([]string, 0, len(e.m))
	for n := range e.m {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Manager keeps a per-chat engine choice on top of the registry.
type Manager struct {
	engs *Engines
	m    sync.Map // chatID -> engine name
}

func NewManager(engs *Engines) *Manager {
	return &Manager{engs: engs}
}

func (m *Manager) Get(chatID int64) Engine {
	if v, ok := m.m.Load(chatID); ok {
		if eng, err := m.engs.GetEngine(v.(string)); err == nil {
			return eng
		}
	}
	eng, _ := m.engs.GetEngine("")
	return eng
}

func (m *Manager) Set(chatID int64, name string) error {
	eng, err := m.engs.GetEngine(name)
	if err != nil {
		return err
	}
	m.m.Store(chatID, eng.Name())
	return nil
}

func (m *Manager) Engines() *Engines { return m.engs }
