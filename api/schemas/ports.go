package schemas

import "context"

// -- Session Interfaces --

// ElementQuery describes a single bounded lookup against the current
// conversation view. XPath is evaluated against the document; when
// Actionable is set the element must also be visible and enabled.
type ElementQuery struct {
	Description string
	XPath       string
	Actionable  bool
}

// ElementHandle is a located element.
type ElementHandle interface {
	Click(ctx context.Context) error
	SendKeys(ctx context.Context, text string) error
	// SetFiles attaches local files to a file input element.
	SetFiles(ctx context.Context, paths ...string) error
	Describe() string
}

// Session is the browser side of the delivery engine. Only one conversation
// view may be open at a time.
type Session interface {
	// OpenConversation opens a dedicated view for number, optionally with
	// prefilled message text, and waits until it is ready for interaction.
	OpenConversation(ctx context.Context, number, prefill string) error
	// Query waits until the element described by q is available or ctx
	// expires. An expired wait is reported as ErrNotFound or ctx's error.
	Query(ctx context.Context, q ElementQuery) (ElementHandle, error)
	// DismissInterstitial accepts whatever dialog is covering the page.
	DismissInterstitial(ctx context.Context) error
	// CloseConversation closes the current view and returns focus to the
	// default one. It is safe to call when no view is open.
	CloseConversation(ctx context.Context) error
}

// -- Collaborator Interfaces --

// ContactSource loads the batch input.
type ContactSource interface {
	Contacts(ctx context.Context) ([]Contact, error)
}

// Composer builds the message intent for a contact.
type Composer interface {
	Compose(c Contact) (MessageIntent, error)
}

// ResultSink persists a finished batch.
type ResultSink interface {
	Persist(ctx context.Context, result *BatchResult) error
}
