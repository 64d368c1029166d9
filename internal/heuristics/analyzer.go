package heuristics

import (
	"regexp"
	"strings"

	"github.com/mikey/phishing-detector/internal/core"
	"go.uber.org/zap"
)

// Flag values appended by the analyzer rules.
const (
	FlagTyposquatting = "Possible typosquatting"
	FlagSuspiciousTLD = "Suspicious TLD"
	FlagSubdomains    = "Too many subdomains"
	FlagWhitelisted   = "Whitelisted domain"
	FlagNone          = "None"
)

var addrPattern = regexp.MustCompile(`<(.+?)>`)

// Analyzer flags suspicious sender/domain patterns in message headers.
// Analysis is pure pattern matching with no external calls or state.
type Analyzer struct {
	typosquatPatterns  []string
	suspiciousTLDs     []string
	maxSubdomainDots   int
	whitelistedDomains []string
	logger             *zap.Logger
}

// NewAnalyzer creates a new sender analyzer. Domains and TLDs are normalized
// to lowercase once at construction.
func NewAnalyzer(
	typosquatPatterns []string,
	suspiciousTLDs []string,
	maxSubdomainDots int,
	whitelistedDomains []string,
	logger *zap.Logger,
) *Analyzer {
	return &Analyzer{
		typosquatPatterns:  lowerAll(typosquatPatterns),
		suspiciousTLDs:     lowerAll(suspiciousTLDs),
		maxSubdomainDots:   maxSubdomainDots,
		whitelistedDomains: lowerAll(whitelistedDomains),
		logger:             logger,
	}
}

func lowerAll(values []string) []string {
	normalized := make([]string, len(values))
	for i, v := range values {
		normalized[i] = strings.ToLower(strings.TrimSpace(v))
	}
	return normalized
}

// Analyze extracts the From address and evaluates the rules in fixed order.
// A message can accumulate multiple flags; the whitelist flag is not
// exclusive with the suspicion flags. When nothing fires, Flags holds the
// single sentinel "None".
func (a *Analyzer) Analyze(headers []core.Header) *core.SenderAnalysis {
	sender := ""
	for _, h := range headers {
		if strings.EqualFold(h.Name, "From") {
			sender = h.Value
			break
		}
	}

	email := sender
	if m := addrPattern.FindStringSubmatch(sender); m != nil {
		email = m[1]
	}

	domain := "unknown"
	if at := strings.LastIndex(email, "@"); at >= 0 {
		domain = strings.ToLower(email[at+1:])
	}

	var flags []string

	for _, pattern := range a.typosquatPatterns {
		if strings.Contains(domain, pattern) {
			flags = append(flags, FlagTyposquatting)
			break
		}
	}

	labels := strings.Split(domain, ".")
	tld := labels[len(labels)-1]
	for _, suspicious := range a.suspiciousTLDs {
		if tld == suspicious {
			flags = append(flags, FlagSuspiciousTLD)
			break
		}
	}

	if strings.Count(domain, ".") > a.maxSubdomainDots {
		flags = append(flags, FlagSubdomains)
	}

	for _, whitelisted := range a.whitelistedDomains {
		if domain == whitelisted {
			flags = append(flags, FlagWhitelisted)
			break
		}
	}

	if len(flags) == 0 {
		flags = []string{FlagNone}
	}

	if a.logger != nil && len(flags) > 0 && flags[0] != FlagNone {
		a.logger.Debug("Sender flagged",
			zap.String("domain", domain),
			zap.Strings("flags", flags))
	}

	return &core.SenderAnalysis{
		Sender: email,
		Domain: domain,
		Flags:  flags,
	}
}
