package domain

// Ballot is a single vote submitted to an election
type Ballot struct {
	Candidate  string
	Mode       VotingMode
	VoterToken string
}

// OpenBallot creates an anonymous ballot that skips duplicate detection
func OpenBallot(candidate string) Ballot {
	return Ballot{
		Candidate: candidate,
		Mode:      VotingModeOpen,
	}
}

// TokenBallot creates a ballot bound to a voter token
func TokenBallot(candidate, voterToken string) Ballot {
	return Ballot{
		Candidate:  candidate,
		Mode:       VotingModeTokenGated,
		VoterToken: voterToken,
	}
}

// NewBallot creates a ballot for the given mode
func NewBallot(mode VotingMode, candidate, voterToken string) Ballot {
	if mode == VotingModeOpen {
		return OpenBallot(candidate)
	}
	return TokenBallot(candidate, voterToken)
}
