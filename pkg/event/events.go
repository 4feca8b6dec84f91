package event

// ============================================================================
// Event Names (constants)
// ============================================================================

const (
	CardCreated         = "card.created"
	CardUpdated         = "card.updated"
	CardArchived        = "card.archived"
	CardsRefreshed      = "cards.refreshed"
	CaptureStateChanged = "capture.stateChanged"
	BackendChanged      = "backend.changed"
	SpeechStarted       = "speech.started"
	SpeechFinished      = "speech.finished"
)

// ============================================================================
// Card Events
// ============================================================================

// CardCreatedEvent is emitted when a card is persisted to the remote store.
type CardCreatedEvent struct {
	CardID   string `json:"card_id"`
	FollowUp bool   `json:"follow_up"` // true for cards derived from insights
}

func (e CardCreatedEvent) EventName() string { return CardCreated }

// CardUpdatedEvent is emitted when a card changes (status, chat activity).
type CardUpdatedEvent struct {
	CardID string `json:"card_id"`
}

func (e CardUpdatedEvent) EventName() string { return CardUpdated }

// CardArchivedEvent is emitted when a card is soft-deleted.
type CardArchivedEvent struct {
	CardID string `json:"card_id"`
}

func (e CardArchivedEvent) EventName() string { return CardArchived }

// CardsRefreshedEvent is emitted after the local cache is rebuilt from the
// remote store. The UI refetches the ranked list on this signal.
type CardsRefreshedEvent struct {
	Count int `json:"count"`
}

func (e CardsRefreshedEvent) EventName() string { return CardsRefreshed }

// ============================================================================
// Capture Events
// ============================================================================

// CaptureStateChangedEvent is emitted on every capture pipeline transition.
type CaptureStateChangedEvent struct {
	SessionID string `json:"session_id"`
	State     string `json:"state"`
	Message   string `json:"message,omitempty"` // error message, if any
}

func (e CaptureStateChangedEvent) EventName() string { return CaptureStateChanged }

// ============================================================================
// Backend Events
// ============================================================================

// BackendChangedEvent is emitted when the realtime feed reports a change in
// the workspace. Notification only; listeners refetch.
type BackendChangedEvent struct {
	Table string `json:"table,omitempty"`
}

func (e BackendChangedEvent) EventName() string { return BackendChanged }

// ============================================================================
// Speech Events
// ============================================================================

// SpeechStartedEvent is emitted when confirmation playback begins.
type SpeechStartedEvent struct {
	SessionID string `json:"session_id,omitempty"`
}

func (e SpeechStartedEvent) EventName() string { return SpeechStarted }

// SpeechFinishedEvent is emitted when playback (or its fallback) completes.
type SpeechFinishedEvent struct {
	SessionID string `json:"session_id,omitempty"`
}

func (e SpeechFinishedEvent) EventName() string { return SpeechFinished }
