// Package logging builds the slog loggers used across demoarchive.
//
// Console output renders a compact "component: [demo · prompt · frame N]"
// subject ahead of the message, while JSON output (selected explicitly or by
// "auto" when stderr is not a terminal) keeps every attribute. Helpers such as
// WarnWithContext enforce the event_type, error_hint, and impact fields on
// warnings so degraded-but-successful runs remain searchable.
package logging
