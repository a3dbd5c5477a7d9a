package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

const (
	chromeWindows  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.6099.109 Safari/537.36"
	chromeWindows2 = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.6099.224 Safari/537.36"
	chromeNext     = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"
	safariIPhone   = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"
	firefoxLinux   = "Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0"
)

type FingerprintSuite struct {
	suite.Suite
}

func TestFingerprintSuite(t *testing.T) {
	suite.Run(t, new(FingerprintSuite))
}

func (s *FingerprintSuite) TestParse() {
	s.Run("empty user agent is unknown", func() {
		t := Parse("", "")
		s.Equal("unknown", t.Browser)
		s.Equal("unknown", t.OS)
		s.Equal("unknown", t.Language)
		s.Equal("unknown|unknown|unknown|unknown|desktop|unknown", t.Composite())
	})

	s.Run("chrome keeps only the major version", func() {
		t := Parse(chromeWindows, "en-US,en;q=0.9")
		s.Equal("Chrome", t.Browser)
		s.Equal("120", t.MajorVersion)
		s.Equal("en-us", t.Language)
		s.False(t.Mobile)
	})

	s.Run("iphone is mobile", func() {
		t := Parse(safariIPhone, "de-DE;q=0.8")
		s.True(t.Mobile)
		s.Equal("iPhone", t.Platform)
		s.Equal("de-de", t.Language)
	})

	s.Run("firefox on linux", func() {
		t := Parse(firefoxLinux, "*")
		s.Equal("Firefox", t.Browser)
		s.Contains(t.OS, "Linux")
		s.Equal("unknown", t.Language)
	})

	s.Run("crawler is flagged", func() {
		t := Parse("Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)", "")
		s.True(t.Bot)
	})
}

func (s *FingerprintSuite) TestStability() {
	s.Run("deterministic", func() {
		s.Equal(Compute(chromeWindows, "en"), Compute(chromeWindows, "en"))
	})

	s.Run("minor version changes keep the fingerprint", func() {
		s.Equal(Compute(chromeWindows, "en"), Compute(chromeWindows2, "en"))
	})

	s.Run("major version changes move the fingerprint", func() {
		s.NotEqual(Compute(chromeWindows, "en"), Compute(chromeNext, "en"))
	})

	s.Run("language changes move the fingerprint", func() {
		s.NotEqual(Compute(chromeWindows, "en"), Compute(chromeWindows, "fr"))
	})

	s.Run("language quality values are ignored", func() {
		s.Equal(Compute(firefoxLinux, "en-GB,en;q=0.5"), Compute(firefoxLinux, "EN-gb;q=1"))
	})
}
