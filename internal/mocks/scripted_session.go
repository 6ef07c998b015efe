package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/xkilldash9x/bulksend/api/schemas"
)

// Page maps XPath expressions to the elements present on a conversation view.
type Page map[string]*ScriptedElement

// ScriptedElement is an element of a ScriptedSession page. Errors in
// ClickErrs are returned by successive clicks before clicks start succeeding.
type ScriptedElement struct {
	Name      string
	QueryErr  error
	ClickErrs []error
	KeysErr   error
	FilesErr  error

	Clicks int
	Keys   []string
	Files  []string
}

// ScriptedSession is an in-memory schemas.Session. Each opened number gets
// the page registered for it in Pages, or Default. Queries for XPaths that
// are not on the page return schemas.ErrNotFound immediately.
type ScriptedSession struct {
	mu sync.Mutex

	Pages      map[string]Page
	Default    Page
	OpenErr    map[string]error
	OpenPanic  map[string]string
	DismissErr error
	CloseErr   error

	current Page
	open    bool
	events  []string
	queries []schemas.ElementQuery
}

var _ schemas.Session = (*ScriptedSession)(nil)

// NewScriptedSession creates a session whose views all show def.
func NewScriptedSession(def Page) *ScriptedSession {
	return &ScriptedSession{
		Pages:     map[string]Page{},
		Default:   def,
		OpenErr:   map[string]error{},
		OpenPanic: map[string]string{},
	}
}

func (s *ScriptedSession) record(event string) {
	s.events = append(s.events, event)
}

// Events returns the recorded interaction log.
func (s *ScriptedSession) Events() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.events...)
}

// Queries returns every element query in order.
func (s *ScriptedSession) Queries() []schemas.ElementQuery {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]schemas.ElementQuery(nil), s.queries...)
}

// Count returns how many recorded events equal event.
func (s *ScriptedSession) Count(event string) int {
	n := 0
	for _, e := range s.Events() {
		if e == event {
			n++
		}
	}
	return n
}

// IsOpen reports whether a conversation view is currently open.
func (s *ScriptedSession) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

func (s *ScriptedSession) OpenConversation(ctx context.Context, number, prefill string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("open:" + number)
	if msg, ok := s.OpenPanic[number]; ok {
		panic(msg)
	}
	if err := s.OpenErr[number]; err != nil {
		return err
	}
	if page, ok := s.Pages[number]; ok {
		s.current = page
	} else {
		s.current = s.Default
	}
	s.open = true
	return nil
}

func (s *ScriptedSession) Query(ctx context.Context, q schemas.ElementQuery) (schemas.ElementHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, q)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	el, ok := s.current[q.XPath]
	if !s.open || !ok {
		return nil, schemas.ErrNotFound
	}
	if el.QueryErr != nil {
		return nil, el.QueryErr
	}
	s.record("found:" + el.Name)
	return &scriptedHandle{s: s, el: el}, nil
}

func (s *ScriptedSession) DismissInterstitial(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("dismiss")
	return s.DismissErr
}

func (s *ScriptedSession) CloseConversation(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("close")
	s.open = false
	s.current = nil
	return s.CloseErr
}

type scriptedHandle struct {
	s  *ScriptedSession
	el *ScriptedElement
}

func (h *scriptedHandle) Click(ctx context.Context) error {
	h.s.mu.Lock()
	defer h.s.mu.Unlock()
	h.s.record("click:" + h.el.Name)
	if len(h.el.ClickErrs) > 0 {
		err := h.el.ClickErrs[0]
		h.el.ClickErrs = h.el.ClickErrs[1:]
		return err
	}
	h.el.Clicks++
	return nil
}

func (h *scriptedHandle) SendKeys(ctx context.Context, text string) error {
	h.s.mu.Lock()
	defer h.s.mu.Unlock()
	h.s.record(fmt.Sprintf("keys:%s:%q", h.el.Name, text))
	if h.el.KeysErr != nil {
		return h.el.KeysErr
	}
	h.el.Keys = append(h.el.Keys, text)
	return nil
}

func (h *scriptedHandle) SetFiles(ctx context.Context, paths ...string) error {
	h.s.mu.Lock()
	defer h.s.mu.Unlock()
	h.s.record("files:" + h.el.Name)
	if h.el.FilesErr != nil {
		return h.el.FilesErr
	}
	h.el.Files = append(h.el.Files, paths...)
	return nil
}

func (h *scriptedHandle) Describe() string { return h.el.Name }
