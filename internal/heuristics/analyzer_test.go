package heuristics

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mikey/phishing-detector/internal/core"
)

func newDefaultAnalyzer() *Analyzer {
	return NewAnalyzer(
		[]string{"paypa1", "netfl1x", "g00gle", "faceb00k"},
		[]string{"xyz", "top", "ru", "cn"},
		3,
		[]string{"google.com", "microsoft.com", "github.com", "apple.com", "linkedin.com"},
		nil,
	)
}

func fromHeader(value string) []core.Header {
	return []core.Header{
		{Name: "Subject", Value: "hello"},
		{Name: "From", Value: value},
	}
}

func TestAnalyzeFlags(t *testing.T) {
	tests := []struct {
		name       string
		from       string
		wantDomain string
		wantFlags  []string
	}{
		{
			name:       "typosquat domain",
			from:       "PayPal Support <support@mail.paypa1.com>",
			wantDomain: "mail.paypa1.com",
			wantFlags:  []string{FlagTyposquatting},
		},
		{
			name:       "suspicious tld and subdomain depth accumulate",
			from:       "alerts@foo.bar.baz.qux.xyz",
			wantDomain: "foo.bar.baz.qux.xyz",
			wantFlags:  []string{FlagSuspiciousTLD, FlagSubdomains},
		},
		{
			name:       "whitelisted domain with no suspicion flags",
			from:       "GitHub <noreply@github.com>",
			wantDomain: "github.com",
			wantFlags:  []string{FlagWhitelisted},
		},
		{
			name:       "clean unknown domain",
			from:       "alice@example.com",
			wantDomain: "example.com",
			wantFlags:  []string{FlagNone},
		},
		{
			name:       "no at sign",
			from:       "undisclosed-recipients",
			wantDomain: "unknown",
			wantFlags:  []string{FlagNone},
		},
		{
			name:       "domain is lowercased",
			from:       "bob@EXAMPLE.XYZ",
			wantDomain: "example.xyz",
			wantFlags:  []string{FlagSuspiciousTLD},
		},
	}

	analyzer := newDefaultAnalyzer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := analyzer.Analyze(fromHeader(tt.from))
			assert.Equal(t, tt.wantDomain, result.Domain)
			assert.Equal(t, tt.wantFlags, result.Flags)
		})
	}
}

func TestAnalyzeMissingFromHeader(t *testing.T) {
	analyzer := newDefaultAnalyzer()
	result := analyzer.Analyze([]core.Header{{Name: "Subject", Value: "no sender"}})

	assert.Equal(t, "", result.Sender)
	assert.Equal(t, "unknown", result.Domain)
	assert.Equal(t, []string{FlagNone}, result.Flags)
}

func TestAnalyzeFromHeaderCaseInsensitive(t *testing.T) {
	analyzer := newDefaultAnalyzer()
	result := analyzer.Analyze([]core.Header{{Name: "from", Value: "carol@github.com"}})

	assert.Equal(t, "carol@github.com", result.Sender)
	assert.Equal(t, []string{FlagWhitelisted}, result.Flags)
}

func TestAnalyzeExtractsAngleBracketAddress(t *testing.T) {
	analyzer := newDefaultAnalyzer()
	result := analyzer.Analyze(fromHeader("Dave Smith <dave@linkedin.com>"))

	assert.Equal(t, "dave@linkedin.com", result.Sender)
	assert.Equal(t, "linkedin.com", result.Domain)
}

func TestAnalyzeIsPure(t *testing.T) {
	analyzer := newDefaultAnalyzer()
	headers := fromHeader("eve@login.secure.account.verify.paypa1.ru")

	first := analyzer.Analyze(headers)
	second := analyzer.Analyze(headers)

	assert.Equal(t, first, second)
	assert.Equal(t, []string{FlagTyposquatting, FlagSuspiciousTLD, FlagSubdomains}, first.Flags)
	assert.NotEmpty(t, first.Flags)
}
