// Package alert evaluates new facts against the active alert rules.
//
// There are two entry points:
//
//	EvaluateInspection  an inspection was committed
//	EvaluateProximity   the user's position is known
//
// Every firing event appends one Message to the log and, when the matching
// channel toggle is on in Settings, one pending outbox item. Both records
// are written in a single transaction. An inspection that matches several
// rules produces one batched notification, never one per rule.
//
// Evaluation runs synchronously after the triggering write has committed,
// so the caller can re-read the store as soon as it returns. A rule that
// cannot be evaluated (unknown metric, unusable threshold) is reported in
// Result.RuleErrors and skipped; it never prevents other rules from firing.
package alert
