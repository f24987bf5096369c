// Copyright (c) 2012-2014 Jeremy Latt
// Copyright (c) 2014-2015 Edmund Huber
// Copyright (c) 2016-2017 Daniel Oaks <daniel@danieloaks.net>
// Copyright (c) 2024 The Flex Authors
// released under the MIT license

package irc

import "errors"

// Lookup errors
var (
	ErrNoSuchChannel     = errors.New("No such channel")
	ErrNoSuchNick        = errors.New("No such nick")
	ErrNotOnChannel      = errors.New("You're not on that channel")
	ErrUserNotInChannel  = errors.New("They aren't on that channel")
	ErrNoSuchMask        = errors.New("No such mask in that list")
	ErrNoSuchInvite      = errors.New("No such pending invite")
	ErrUnknownMode       = errors.New("Unknown mode")
	ErrNeedMoreParams    = errors.New("Not enough parameters")
	ErrInvalidLimit      = errors.New("Invalid channel limit")
	ErrListFull          = errors.New("Channel list is full")
	ErrModeNotChanged    = errors.New("Mode is already in that state")
	ErrUserOnChannel     = errors.New("is already on channel")
	ErrIgnored           = errors.New("That user is ignoring you")
	ErrAlreadyMember     = &Rejection{Reason: HasAlreadyMember}
	ErrChanOpPrivsNeeded = &Rejection{Reason: ChanOpPrivsNeeded}
)

// Registry errors
var (
	errChannelNameInUse     = errors.New("Channel name in use")
	errClientIDInUse        = errors.New("Client id in use")
	errConfusableIdentifier = errors.New("This identifier is confusable with one already in use")
	errInvalidChannelName   = errors.New("Invalid channel name")
	errNicknameInUse        = errors.New("Nickname in use")
	errInsufficientPrivs    = errors.New("Insufficient privileges")
)

// String Errors
var (
	errCouldNotStabilize = errors.New("Could not stabilize string while casefolding")
	errStringIsEmpty     = errors.New("String is empty")
	errInvalidCharacter  = errors.New("Invalid character")
)

// Config Errors
var (
	ErrDatastorePathMissing  = errors.New("Datastore path missing")
	ErrLimitsAreInsane       = errors.New("Limits aren't setup properly, check them and make them sane")
	ErrLoggerExcludeEmpty    = errors.New("Encountered logging type '-' with no type to exclude")
	ErrLoggerFilenameMissing = errors.New("Logging configuration specifies 'file' method but 'filename' is empty")
	ErrLoggerHasNoTypes      = errors.New("Logger has no types to log")
	ErrServerNameMissing     = errors.New("Server name missing")
	ErrServerNameNotHostname = errors.New("Server name must match the format of a hostname")
	ErrUnknownBackend        = errors.New("Unknown datastore backend, must be one of: none, buntdb, mysql")
	ErrUnknownCasemapping    = errors.New("Unknown casemapping, only precis is supported")
)

// RejectReason is a policy reason for refusing a join or a mode change.
// Collaborators map it to a protocol reply.
type RejectReason uint

const (
	BadChannelKey RejectReason = iota + 1
	BannedFromChannel
	InviteOnlyChannel
	ChannelIsFull
	OperOnly
	ChanOpPrivsNeeded
	HasAlreadyMember
)

var rejectReasonNames = map[RejectReason]string{
	BadChannelKey:     "BadChannelKey",
	BannedFromChannel: "BannedFromChannel",
	InviteOnlyChannel: "InviteOnlyChannel",
	ChannelIsFull:     "ChannelIsFull",
	OperOnly:          "OperOnly",
	ChanOpPrivsNeeded: "ChanOpPrivsNeeded",
	HasAlreadyMember:  "HasAlreadyMember",
}

func (reason RejectReason) String() string {
	if name, ok := rejectReasonNames[reason]; ok {
		return name
	}
	return "Unknown"
}

// Rejection is returned when a request is refused for a policy reason.
// It is ordinary data: callers inspect Reason with errors.As.
type Rejection struct {
	Reason RejectReason
}

func (r *Rejection) Error() string {
	switch r.Reason {
	case BadChannelKey:
		return "Cannot join channel (+k)"
	case BannedFromChannel:
		return "Cannot join channel (+b)"
	case InviteOnlyChannel:
		return "Cannot join channel (+i)"
	case ChannelIsFull:
		return "Cannot join channel (+l)"
	case OperOnly:
		return "Cannot join channel (+O)"
	case ChanOpPrivsNeeded:
		return "You're not a channel operator"
	case HasAlreadyMember:
		return "Already a member of that channel"
	default:
		return "Rejected"
	}
}

// Is matches any Rejection carrying the same reason.
func (r *Rejection) Is(target error) bool {
	other, ok := target.(*Rejection)
	return ok && other.Reason == r.Reason
}

func reject(reason RejectReason) error {
	return &Rejection{Reason: reason}
}

// RejectionReason extracts the reason from err, if it is a Rejection.
func RejectionReason(err error) (reason RejectReason, ok bool) {
	var rejection *Rejection
	if errors.As(err, &rejection) {
		return rejection.Reason, true
	}
	return 0, false
}
