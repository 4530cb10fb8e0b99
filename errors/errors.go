package mhb

import "github.com/pkg/errors"

var (
	// common
	ErrTimeout = errors.New("operation timed out")

	// community / policy
	ErrNoSuchCommunity    = errors.New("no such community")
	ErrPolicyNotFound     = errors.New("policy document not found")
	ErrPolicyForbidden    = errors.New("policy document access forbidden")
	ErrPolicyEmpty        = errors.New("policy document is empty")
	ErrPolicyParse        = errors.New("policy document failed to parse")
	ErrPolicyZeroInterval = errors.New("posting interval of zero is not allowed")
	ErrPolicyZeroBan      = errors.New("ban_duration_days can no longer be zero; use ~ to disable or 999 for permanent bans")

	// author
	ErrNoSuchAuthor = errors.New("no such author")

	// command console
	ErrNotAuthorized = errors.New("requester is not a moderator of this community")
	ErrUnknownCmd    = errors.New("unknown command")
	ErrMissingArg    = errors.New("missing command argument")

	// sweep
	ErrSweepRunning = errors.New("another sweep holds the lease")
)
