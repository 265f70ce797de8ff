package phonetic

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type EncoderSuite struct {
	suite.Suite
	enc *Encoder
}

func TestEncoderSuite(t *testing.T) {
	suite.Run(t, new(EncoderSuite))
}

func (s *EncoderSuite) SetupTest() {
	s.enc = New(Metaphone{})
}

func (s *EncoderSuite) TestSameSoundingNamesShareCodes() {
	cases := [][2]string{
		{"Smith", "Smyth"},
		{"Jon", "John"},
		{"Catherine", "Katherine"},
		{"Philip", "Filip"},
		{"Harriett", "Hariet"},
	}
	for _, c := range cases {
		a := s.enc.EncodeName(c[0])
		b := s.enc.EncodeName(c[1])
		s.Require().True(a.Enabled)
		s.NotEmpty(a.Last)
		s.Equal(a.Last, b.Last, "%q and %q should encode identically", c[0], c[1])
	}
}

func (s *EncoderSuite) TestDistinctNamesDiffer() {
	a := s.enc.EncodeName("Smith")
	b := s.enc.EncodeName("Jones")
	s.NotEqual(a.Last, b.Last)
}

func (s *EncoderSuite) TestFirstAndLastTokens() {
	codes := s.enc.EncodeName("Mary Jane Watson")
	s.Equal(Metaphone{}.Encode("mary"), codes.First)
	s.Equal(Metaphone{}.Encode("watson"), codes.Last)
}

func (s *EncoderSuite) TestMononymUsesSameCodeForBothPositions() {
	codes := s.enc.EncodeName("Rex")
	s.True(codes.Enabled)
	s.NotEmpty(codes.First)
	s.Equal(codes.First, codes.Last)
}

func (s *EncoderSuite) TestHyphenatedSurnameSplits() {
	codes := s.enc.EncodeName("Anna Smith-Jones")
	s.Equal(Metaphone{}.Encode("jones"), codes.Last)
}

func (s *EncoderSuite) TestEmptyAndNonLetterNames() {
	s.Equal(NameCodes{Enabled: true}, s.enc.EncodeName(""))
	s.Equal(NameCodes{Enabled: true}, s.enc.EncodeName("12345"))
}

func (s *EncoderSuite) TestEncodingIsDeterministic() {
	first := s.enc.EncodeName("Friedrich Schiller")
	for i := 0; i < 3; i++ {
		s.Equal(first, s.enc.EncodeName("Friedrich Schiller"))
	}
}

func (s *EncoderSuite) TestDisabledEncoderDegrades() {
	enc := NewDisabled()
	s.False(enc.Enabled())
	codes := enc.EncodeName("Smith")
	s.Equal(NameCodes{}, codes)
	s.False(codes.Enabled)
}
