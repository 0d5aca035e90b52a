package poai

import "errors"

var (
	ErrBadProposalSignature = errors.New("poai: invalid proposal signature")
	ErrBadVoteSignature     = errors.New("poai: invalid vote signature")
	ErrWrongHeight          = errors.New("poai: message height does not match round")
	ErrWrongRound           = errors.New("poai: message round does not match round")
	ErrLateProposal         = errors.New("poai: proposal after propose window")
	ErrDuplicateProposer    = errors.New("poai: proposer already submitted this round")
	ErrUnknownProposer      = errors.New("poai: proposer key not registered")
	ErrBadStructure         = errors.New("poai: block fails structural checks")
	ErrSelectionInvalid     = errors.New("poai: transaction selection not compliant")
	ErrScoreMismatch        = errors.New("poai: declared efficiency score mismatch")
	ErrNotCommittee         = errors.New("poai: voter not in committee")
	ErrDuplicateVote        = errors.New("poai: duplicate vote")
	ErrEquivocation         = errors.New("poai: conflicting vote from same validator")
	ErrWrongPhase           = errors.New("poai: message not valid in current phase")
	ErrNoProposals          = errors.New("poai: no valid proposals this round")
)

// ReasonCode labels a discarded message for logging and metrics. Discards
// are item-terminal: the message is dropped, the round continues.
type ReasonCode uint8

const (
	ReasonNone ReasonCode = iota
	ReasonBadSignature
	ReasonWrongHeight
	ReasonWrongRound
	ReasonLate
	ReasonDuplicateProposer
	ReasonUnknownProposer
	ReasonBadStructure
	ReasonSelectionInvalid
	ReasonScoreMismatch
	ReasonNotCommittee
	ReasonDuplicateVote
	ReasonEquivocation
	ReasonWrongPhase
)

func (r ReasonCode) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonBadSignature:
		return "bad_signature"
	case ReasonWrongHeight:
		return "wrong_height"
	case ReasonWrongRound:
		return "wrong_round"
	case ReasonLate:
		return "late"
	case ReasonDuplicateProposer:
		return "duplicate_proposer"
	case ReasonUnknownProposer:
		return "unknown_proposer"
	case ReasonBadStructure:
		return "bad_structure"
	case ReasonSelectionInvalid:
		return "selection_invalid"
	case ReasonScoreMismatch:
		return "score_mismatch"
	case ReasonNotCommittee:
		return "not_committee"
	case ReasonDuplicateVote:
		return "duplicate_vote"
	case ReasonEquivocation:
		return "equivocation"
	case ReasonWrongPhase:
		return "wrong_phase"
	}
	return "unknown"
}

// Reason maps a validation error to its metrics label.
func Reason(err error) ReasonCode {
	switch {
	case err == nil:
		return ReasonNone
	case errors.Is(err, ErrBadProposalSignature), errors.Is(err, ErrBadVoteSignature):
		return ReasonBadSignature
	case errors.Is(err, ErrWrongHeight):
		return ReasonWrongHeight
	case errors.Is(err, ErrWrongRound):
		return ReasonWrongRound
	case errors.Is(err, ErrLateProposal):
		return ReasonLate
	case errors.Is(err, ErrDuplicateProposer):
		return ReasonDuplicateProposer
	case errors.Is(err, ErrUnknownProposer):
		return ReasonUnknownProposer
	case errors.Is(err, ErrSelectionInvalid):
		return ReasonSelectionInvalid
	case errors.Is(err, ErrScoreMismatch):
		return ReasonScoreMismatch
	case errors.Is(err, ErrNotCommittee):
		return ReasonNotCommittee
	case errors.Is(err, ErrDuplicateVote):
		return ReasonDuplicateVote
	case errors.Is(err, ErrEquivocation):
		return ReasonEquivocation
	case errors.Is(err, ErrWrongPhase):
		return ReasonWrongPhase
	}
	return ReasonBadStructure
}
