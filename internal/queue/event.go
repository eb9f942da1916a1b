// Package queue defines message payloads exchanged over the message broker.
package queue

// Event types carried on the account.activity queue.
const (
    EventAccountRegistered      = "account.registered"
    EventMembershipUpgraded     = "membership.upgraded"
    EventPasswordResetRequested = "password.reset_requested"
)

// ActivityEvent is published whenever an account changes state: a new
// registration, a membership upgrade or a password-reset request. It carries
// enough information for downstream consumers to log, notify, or feed
// analytics without querying the primary database. Fields that do not apply
// to a given event type are left empty and omitted from the JSON. The
// payload never includes credentials or token material.
type ActivityEvent struct {
    Type       string `json:"type"`
    AccountID  uint64 `json:"account_id,omitempty"`
    Username   string `json:"username,omitempty"`
    Email      string `json:"email,omitempty"`
    Tier       string `json:"tier,omitempty"`
    ExpiresAt  string `json:"expires_at,omitempty"`
    OccurredAt string `json:"occurred_at"`
}
