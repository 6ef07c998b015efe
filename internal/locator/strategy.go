// Package locator resolves page controls through ordered fallback ladders.
package locator

import (
	"context"
	"fmt"

	"github.com/xkilldash9x/bulksend/api/schemas"
	"github.com/xkilldash9x/bulksend/internal/config"
)

// Mode selects how a strategy decides an element was found.
type Mode string

const (
	// ModeActionable requires the element to be visible and enabled.
	ModeActionable Mode = "actionable"
	// ModePresent only requires the element to exist, for hidden inputs and indicators.
	ModePresent Mode = "present"
	// ModeKeyboard focuses an editable element and commits with Enter instead of clicking.
	ModeKeyboard Mode = "keyboard"
)

// Strategy is one rung of a ladder. Find must not change page state when it fails.
type Strategy struct {
	Description string
	Find        func(ctx context.Context, s schemas.Session) (schemas.ElementHandle, error)
}

// Ladder is an ordered list of strategies, most preferred first.
type Ladder []Strategy

// Descriptions lists the strategy descriptions in order.
func (l Ladder) Descriptions() []string {
	out := make([]string, len(l))
	for i, s := range l {
		out[i] = s.Description
	}
	return out
}

// XPath finds a visible, enabled element.
func XPath(description, xpath string) Strategy {
	return query(description, xpath, true)
}

// Present finds an element that exists in the document, visible or not.
func Present(description, xpath string) Strategy {
	return query(description, xpath, false)
}

// KeyboardCommit finds an editable element and returns a handle whose Click
// presses Enter inside it.
func KeyboardCommit(description, xpath string) Strategy {
	inner := query(description, xpath, true)
	return Strategy{
		Description: description,
		Find: func(ctx context.Context, s schemas.Session) (schemas.ElementHandle, error) {
			h, err := inner.Find(ctx, s)
			if err != nil || h == nil {
				return h, err
			}
			return keyboardHandle{ElementHandle: h}, nil
		},
	}
}

func query(description, xpath string, actionable bool) Strategy {
	q := schemas.ElementQuery{Description: description, XPath: xpath, Actionable: actionable}
	return Strategy{
		Description: description,
		Find: func(ctx context.Context, s schemas.Session) (schemas.ElementHandle, error) {
			return s.Query(ctx, q)
		},
	}
}

type keyboardHandle struct {
	schemas.ElementHandle
}

const enterKey = "\r"

func (k keyboardHandle) Click(ctx context.Context) error {
	return k.ElementHandle.SendKeys(ctx, enterKey)
}

func (k keyboardHandle) Describe() string {
	return k.ElementHandle.Describe() + " (enter)"
}

// FromSpec converts a configured locator into a Strategy.
func FromSpec(spec config.LocatorSpec) (Strategy, error) {
	desc := spec.Description
	if desc == "" {
		desc = spec.XPath
	}
	switch Mode(spec.Mode) {
	case "", ModeActionable:
		return XPath(desc, spec.XPath), nil
	case ModePresent:
		return Present(desc, spec.XPath), nil
	case ModeKeyboard:
		return KeyboardCommit(desc, spec.XPath), nil
	default:
		return Strategy{}, fmt.Errorf("locator %q: unknown mode %q", desc, spec.Mode)
	}
}

// BuildLadder converts specs in order. An empty list yields fallback.
func BuildLadder(specs []config.LocatorSpec, fallback Ladder) (Ladder, error) {
	if len(specs) == 0 {
		return fallback, nil
	}
	ladder := make(Ladder, 0, len(specs))
	for _, spec := range specs {
		s, err := FromSpec(spec)
		if err != nil {
			return nil, err
		}
		ladder = append(ladder, s)
	}
	return ladder, nil
}
