package models

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	id "trustgrid/pkg/domain"
	dErrors "trustgrid/pkg/domain-errors"
)

type RequestSuite struct {
	suite.Suite
	now      time.Time
	identity id.IdentityID
	evidence EvidenceHash
}

func TestRequestSuite(t *testing.T) {
	suite.Run(t, new(RequestSuite))
}

func (s *RequestSuite) SetupTest() {
	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.identity = id.IdentityIDFor("owner-1")
	evidence, err := ParseEvidenceHash(strings.Repeat("ab", 32))
	s.Require().NoError(err)
	s.evidence = evidence
}

// config returns a config with the given quorum and active population.
func (s *RequestSuite) config(required, active uint32) *Config {
	cfg, err := NewConfig("oracle-admin", 1_000, required, time.Hour, 50, s.now)
	s.Require().NoError(err)
	cfg.ActiveOracleCount = active
	return cfg
}

func (s *RequestSuite) request(required, active uint32) *Request {
	request, err := NewRequest(s.identity, id.VerificationEmail, s.evidence, s.config(required, active), s.now)
	s.Require().NoError(err)
	return request
}

func (s *RequestSuite) TestNewRequest() {
	s.Run("freezes the config onto the request", func() {
		cfg := s.config(3, 5)
		cfg.Version = 7
		request, err := NewRequest(s.identity, id.VerificationEmail, s.evidence, cfg, s.now)
		s.Require().NoError(err)
		s.Equal(uint32(3), request.RequiredConfirmations)
		s.Equal(uint32(5), request.EligibleOracles)
		s.Equal(time.Hour, request.Timeout)
		s.Equal(uint64(50), request.Fee)
		s.Equal(uint64(7), request.ConfigVersion)
		s.Equal(RequestStatusPending, request.Status)
	})

	s.Run("same identity and type address the same request", func() {
		a := s.request(2, 3)
		b := s.request(2, 3)
		s.Equal(a.ID, b.ID)

		other, err := NewRequest(s.identity, id.VerificationPhone, s.evidence, s.config(2, 3), s.now)
		s.Require().NoError(err)
		s.NotEqual(a.ID, other.ID)
	})

	s.Run("rejected when quorum is unreachable from the start", func() {
		_, err := NewRequest(s.identity, id.VerificationEmail, s.evidence, s.config(3, 2), s.now)
		s.True(dErrors.HasCode(err, dErrors.CodeFailedPrecondition))
	})
}

func (s *RequestSuite) TestVoting() {
	s.Run("confirmation threshold closes the request", func() {
		request := s.request(2, 3)
		status, err := request.ApplyVote("oracle-1", VoteConfirm, s.now)
		s.Require().NoError(err)
		s.Equal(RequestStatusPending, status)

		status, err = request.ApplyVote("oracle-2", VoteConfirm, s.now)
		s.Require().NoError(err)
		s.Equal(RequestStatusConfirmed, status)
		s.Require().NotNil(request.Result)
		s.Equal(uint32(2), request.Result.Confirmations)
	})

	s.Run("rejection requires impossibility, not a majority", func() {
		// 3 eligible, 2 required: one reject leaves 2 possible confirms,
		// so the request stays open.
		request := s.request(2, 3)
		status, err := request.ApplyVote("oracle-1", VoteReject, s.now)
		s.Require().NoError(err)
		s.Equal(RequestStatusPending, status)

		// A second reject leaves only 1 possible confirm: impossible.
		status, err = request.ApplyVote("oracle-2", VoteReject, s.now)
		s.Require().NoError(err)
		s.Equal(RequestStatusRejected, status)
		s.Equal(uint32(2), request.Result.Rejections)
	})

	s.Run("duplicate vote rejected", func() {
		request := s.request(2, 3)
		_, err := request.ApplyVote("oracle-1", VoteConfirm, s.now)
		s.Require().NoError(err)
		_, err = request.ApplyVote("oracle-1", VoteReject, s.now)
		s.True(dErrors.HasReason(err, dErrors.ReasonAlreadyVoted))
		s.Equal(uint32(1), request.Confirmations)
		s.Zero(request.Rejections)
	})

	s.Run("no votes on a closed request", func() {
		request := s.request(1, 2)
		_, err := request.ApplyVote("oracle-1", VoteConfirm, s.now)
		s.Require().NoError(err)
		_, err = request.ApplyVote("oracle-2", VoteConfirm, s.now)
		s.True(dErrors.HasReason(err, dErrors.ReasonRequestNotPending))
	})

	s.Run("thresholds stay frozen as the population changes", func() {
		// 2 eligible frozen at creation; later churn does not widen the
		// reject window.
		request := s.request(2, 2)
		status, err := request.ApplyVote("oracle-1", VoteReject, s.now)
		s.Require().NoError(err)
		s.Equal(RequestStatusRejected, status)
	})
}

func (s *RequestSuite) TestExpiry() {
	s.Run("pending request past its timeout expires", func() {
		request := s.request(2, 3)
		s.False(request.IsExpired(s.now.Add(time.Hour)))
		s.True(request.IsExpired(s.now.Add(time.Hour + time.Second)))

		s.Require().NoError(request.ApplyExpiry(s.now.Add(2 * time.Hour)))
		s.Equal(RequestStatusExpired, request.Status)
		s.Equal(RequestStatusExpired, request.Result.Outcome)
	})

	s.Run("expiry before the timeout rejected", func() {
		request := s.request(2, 3)
		err := request.ApplyExpiry(s.now.Add(time.Minute))
		s.True(dErrors.HasCode(err, dErrors.CodeFailedPrecondition))
	})

	s.Run("expiry of a closed request rejected", func() {
		request := s.request(1, 1)
		_, err := request.ApplyVote("oracle-1", VoteConfirm, s.now)
		s.Require().NoError(err)
		err = request.ApplyExpiry(s.now.Add(2 * time.Hour))
		s.True(dErrors.HasReason(err, dErrors.ReasonRequestNotPending))
	})
}

func (s *RequestSuite) TestEvidenceHash() {
	s.Run("round trips through hex", func() {
		raw := strings.Repeat("0f", 32)
		h, err := ParseEvidenceHash(raw)
		s.Require().NoError(err)
		s.Equal(raw, h.String())
	})

	s.Run("wrong length rejected", func() {
		_, err := ParseEvidenceHash("abcd")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("non-hex rejected", func() {
		_, err := ParseEvidenceHash(strings.Repeat("zz", 32))
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}
