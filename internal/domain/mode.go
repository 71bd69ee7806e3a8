package domain

import "fmt"

// VotingMode selects how duplicate ballots are detected
type VotingMode int

const (
	// VotingModeOpen accepts anonymous ballots without duplicate detection.
	VotingModeOpen VotingMode = iota
	// VotingModeTokenGated requires a voter token and accepts one ballot per token.
	VotingModeTokenGated
)

// String returns the config spelling of the mode
func (m VotingMode) String() string {
	switch m {
	case VotingModeOpen:
		return "open"
	case VotingModeTokenGated:
		return "token"
	default:
		return fmt.Sprintf("VotingMode(%d)", int(m))
	}
}

// ParseVotingMode parses "open" or "token"
func ParseVotingMode(s string) (VotingMode, error) {
	switch s {
	case "open":
		return VotingModeOpen, nil
	case "token", "":
		return VotingModeTokenGated, nil
	default:
		return 0, fmt.Errorf("unknown voting mode %q", s)
	}
}
