package domain_test

import (
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"clubvote/internal/domain"
)

var _ = Describe("Election", func() {

	var election *domain.Election

	newElection := func(title string, candidates ...string) *domain.Election {
		e, err := domain.NewElection("E1", title, candidates)
		Expect(err).NotTo(HaveOccurred())
		return e
	}

	BeforeEach(func() {
		election = newElection("Best Snack", "Mochi", "Dango")
	})

	Describe("#NewElection", func() {
		It("starts open with zeroed tallies", func() {
			Expect(election.State()).To(Equal(domain.StateOpen))
			Expect(election.VoteCount()).To(BeZero())
			Expect(election.Candidates()).To(Equal([]string{"Mochi", "Dango"}))

			election.Close()
			votes, ok := election.FinalVotes()
			Expect(ok).To(BeTrue())
			Expect(votes).To(Equal(map[string]int{"Mochi": 0, "Dango": 0}))
		})

		DescribeTable("rejects invalid input",
			func(title string, candidates []string) {
				e, err := domain.NewElection("E1", title, candidates)
				Expect(e).To(BeNil())
				Expect(err).To(MatchError(domain.ErrValidation))
			},
			Entry("no candidates", "Empty", []string{}),
			Entry("nil candidates", "Empty", nil),
			Entry("blank title", "  ", []string{"A"}),
			Entry("blank candidate", "Title", []string{"A", ""}),
			Entry("duplicate candidates", "Title", []string{"A", "B", "A"}),
		)

		It("copies the candidate list", func() {
			candidates := []string{"A", "B"}
			e, err := domain.NewElection("E2", "Copy", candidates)
			Expect(err).NotTo(HaveOccurred())
			candidates[0] = "Z"
			Expect(e.Candidates()).To(Equal([]string{"A", "B"}))

			returned := e.Candidates()
			returned[1] = "Y"
			Expect(e.Candidates()).To(Equal([]string{"A", "B"}))
		})
	})

	Describe("#Vote", func() {
		It("counts ballots from distinct tokens", func() {
			for i := 0; i < 5; i++ {
				Expect(election.Vote(domain.TokenBallot("Mochi", fmt.Sprintf("token%d", i)))).To(Succeed())
			}
			for i := 5; i < 8; i++ {
				Expect(election.Vote(domain.TokenBallot("Dango", fmt.Sprintf("token%d", i)))).To(Succeed())
			}

			Expect(election.VoteCount()).To(Equal(8))
			election.Close()
			votes, _ := election.FinalVotes()
			Expect(votes).To(Equal(map[string]int{"Mochi": 5, "Dango": 3}))
		})

		It("rejects a second ballot from the same token without mutating", func() {
			Expect(election.Vote(domain.TokenBallot("Mochi", "tokenA"))).To(Succeed())

			err := election.Vote(domain.TokenBallot("Dango", "tokenA"))
			Expect(err).To(MatchError(domain.ErrDuplicateVote))
			Expect(election.VoteCount()).To(Equal(1))

			election.Close()
			votes, _ := election.FinalVotes()
			Expect(votes).To(Equal(map[string]int{"Mochi": 1, "Dango": 0}))
		})

		It("rejects unknown candidates", func() {
			e := newElection("Letters", "A", "B")
			err := e.Vote(domain.TokenBallot("NotACandidate", "tokenX"))
			Expect(err).To(MatchError(domain.ErrUnknownCandidate))
			Expect(e.VoteCount()).To(BeZero())
			Expect(e.HasVoted("tokenX")).To(BeFalse())
		})

		It("rejects ballots once closed", func() {
			Expect(election.Vote(domain.TokenBallot("Mochi", "tokenA"))).To(Succeed())
			election.Close()

			Expect(election.Vote(domain.TokenBallot("Mochi", "tokenC"))).To(MatchError(domain.ErrAlreadyClosed))
			Expect(election.Vote(domain.OpenBallot("Dango"))).To(MatchError(domain.ErrAlreadyClosed))
			Expect(election.VoteCount()).To(Equal(1))
			Expect(election.HasVoted("tokenC")).To(BeFalse())
		})

		It("checks closed before candidate validity", func() {
			election.Close()
			Expect(election.Vote(domain.TokenBallot("Nope", "t"))).To(MatchError(domain.ErrAlreadyClosed))
		})

		It("requires a token for token-gated ballots", func() {
			Expect(election.Vote(domain.TokenBallot("Mochi", ""))).To(MatchError(domain.ErrMissingVoterToken))
			Expect(election.VoteCount()).To(BeZero())
		})

		It("accepts repeated anonymous ballots in open mode", func() {
			for i := 0; i < 3; i++ {
				Expect(election.Vote(domain.OpenBallot("Dango"))).To(Succeed())
			}
			Expect(election.VoteCount()).To(Equal(3))
		})

		It("does not record tokens for open-mode ballots", func() {
			b := domain.NewBallot(domain.VotingModeOpen, "Mochi", "tokenA")
			Expect(election.Vote(b)).To(Succeed())
			Expect(election.HasVoted("tokenA")).To(BeFalse())
			Expect(election.Vote(domain.TokenBallot("Mochi", "tokenA"))).To(Succeed())
			Expect(election.HasVoted("tokenA")).To(BeTrue())
		})
	})

	Describe("#Close", func() {
		It("is idempotent", func() {
			Expect(election.Vote(domain.TokenBallot("Mochi", "a"))).To(Succeed())

			Expect(election.Close()).To(BeTrue())
			closedAt := election.ClosedAt
			first, _ := election.FinalVotes()

			Expect(election.Close()).To(BeFalse())
			second, _ := election.FinalVotes()

			Expect(election.IsClosed()).To(BeTrue())
			Expect(election.ClosedAt).To(Equal(closedAt))
			Expect(second).To(Equal(first))
		})
	})

	Describe("#FinalVotes", func() {
		It("is unavailable before closing", func() {
			Expect(election.Vote(domain.TokenBallot("Mochi", "a"))).To(Succeed())
			votes, ok := election.FinalVotes()
			Expect(ok).To(BeFalse())
			Expect(votes).To(BeNil())
		})

		It("returns a copy", func() {
			election.Close()
			votes, _ := election.FinalVotes()
			votes["Mochi"] = 99
			again, _ := election.FinalVotes()
			Expect(again["Mochi"]).To(BeZero())
		})
	})

	Describe("#Summary", func() {
		It("carries listing metadata only", func() {
			Expect(election.Summary()).To(Equal(domain.Summary{
				ID:         "E1",
				Title:      "Best Snack",
				Candidates: []string{"Mochi", "Dango"},
				Closed:     false,
			}))
		})
	})

	It("plays out the snack scenario", func() {
		Expect(election.Vote(domain.TokenBallot("Mochi", "tokenA"))).To(Succeed())
		Expect(election.VoteCount()).To(Equal(1))

		Expect(election.Vote(domain.TokenBallot("Mochi", "tokenA"))).To(MatchError(domain.ErrDuplicateVote))
		Expect(election.VoteCount()).To(Equal(1))

		Expect(election.Vote(domain.TokenBallot("Dango", "tokenB"))).To(Succeed())
		Expect(election.VoteCount()).To(Equal(2))

		election.Close()
		votes, ok := election.FinalVotes()
		Expect(ok).To(BeTrue())
		Expect(votes).To(Equal(map[string]int{"Mochi": 1, "Dango": 1}))

		Expect(election.Vote(domain.TokenBallot("Mochi", "tokenC"))).To(MatchError(domain.ErrAlreadyClosed))
	})
})

var _ = Describe("State", func() {
	It("only allows OPEN to CLOSED", func() {
		Expect(domain.StateOpen.CanTransitionTo(domain.StateClosed)).To(BeTrue())
		Expect(domain.StateClosed.CanTransitionTo(domain.StateOpen)).To(BeFalse())
		Expect(domain.StateClosed.CanTransitionTo(domain.StateClosed)).To(BeFalse())
		Expect(domain.StateOpen.CanTransitionTo(domain.StateOpen)).To(BeFalse())
	})
})

var _ = Describe("VotingMode", func() {
	DescribeTable("parses config values",
		func(in string, want domain.VotingMode) {
			mode, err := domain.ParseVotingMode(in)
			Expect(err).NotTo(HaveOccurred())
			Expect(mode).To(Equal(want))
			Expect(mode.String()).To(Or(Equal(in), Equal("token")))
		},
		Entry("open", "open", domain.VotingModeOpen),
		Entry("token", "token", domain.VotingModeTokenGated),
		Entry("default", "", domain.VotingModeTokenGated),
	)

	It("rejects unknown modes", func() {
		_, err := domain.ParseVotingMode("ranked")
		Expect(err).To(HaveOccurred())
	})
})
