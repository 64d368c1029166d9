package smtpfilter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net"
	"net/mail"
	"os"
	"strings"
	"time"

	"github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"github.com/mikey/phishing-detector/internal/core"
)

// PostfixFilter implements a Postfix content filter that tags or rejects
// phishing messages before re-injecting them into the mail stream.
type PostfixFilter struct {
	service          *core.DetectorService
	logger           *zap.Logger
	listenAddr       string
	server           *smtp.Server
	blockPhishing    bool
	statusHeader     string
	confidenceHeader string
	flagsHeader      string
	postfixAddr      string
	postfixPort      int
	postfixEnabled   bool
	subjectPrefix    string
	modifySubject    bool
}

// NewPostfixFilter creates a new Postfix content filter
func NewPostfixFilter(
	service *core.DetectorService,
	logger *zap.Logger,
	listenAddr string,
	blockPhishing bool,
	statusHeader string,
	confidenceHeader string,
	flagsHeader string,
	postfixAddr string,
	postfixPort int,
	postfixEnabled bool,
	subjectPrefix string,
	modifySubject bool,
) *PostfixFilter {
	if subjectPrefix == "" && modifySubject {
		subjectPrefix = "[**PHISHING**] "
	}

	return &PostfixFilter{
		service:          service,
		logger:           logger,
		listenAddr:       listenAddr,
		blockPhishing:    blockPhishing,
		statusHeader:     statusHeader,
		confidenceHeader: confidenceHeader,
		flagsHeader:      flagsHeader,
		postfixAddr:      postfixAddr,
		postfixPort:      postfixPort,
		postfixEnabled:   postfixEnabled,
		subjectPrefix:    subjectPrefix,
		modifySubject:    modifySubject,
	}
}

// Start starts the SMTP content filter
func (f *PostfixFilter) Start() error {
	f.server = smtp.NewServer(&smtpBackend{filter: f})

	f.server.Addr = f.listenAddr
	f.server.Domain = "localhost"
	f.server.ReadTimeout = 30 * time.Second
	f.server.WriteTimeout = 30 * time.Second
	f.server.MaxMessageBytes = 30 * 1024 * 1024 // 30MB
	f.server.MaxRecipients = 50
	f.server.AllowInsecureAuth = true

	f.logger.Info("Postfix filter starting", zap.String("address", f.listenAddr))

	go func() {
		if err := f.server.ListenAndServe(); err != nil {
			if err != smtp.ErrServerClosed {
				f.logger.Error("SMTP server error", zap.Error(err))
			}
		}
	}()

	return nil
}

// Stop stops the SMTP content filter
func (f *PostfixFilter) Stop() error {
	if f.server != nil {
		return f.server.Close()
	}
	return nil
}

// sendToPostfix re-injects the processed email into Postfix on the
// configured pickup port
func (f *PostfixFilter) sendToPostfix(sender string, recipients []string, emailData []byte) error {
	postfixAddr := fmt.Sprintf("%s:%d", f.postfixAddr, f.postfixPort)

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	conn, err := net.DialTimeout("tcp", postfixAddr, 10*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect to Postfix: %w", err)
	}

	if err := conn.SetDeadline(time.Now().Add(30 * time.Second)); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set connection deadline: %w", err)
	}

	c := smtp.NewClient(conn)
	defer c.Close()

	if err := c.Hello(hostname); err != nil {
		return fmt.Errorf("EHLO failed: %w", err)
	}

	if err := c.Mail(sender, nil); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}

	recipientOK := false
	for _, recipient := range recipients {
		if err := c.Rcpt(recipient, nil); err != nil {
			f.logger.Warn("RCPT TO failed for recipient",
				zap.String("recipient", recipient),
				zap.Error(err))
		} else {
			recipientOK = true
		}
	}

	if !recipientOK {
		return fmt.Errorf("all recipients were rejected")
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}

	if _, err := wc.Write(emailData); err != nil {
		wc.Close()
		return fmt.Errorf("failed to send email data: %w", err)
	}

	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	if err := c.Quit(); err != nil {
		f.logger.Warn("QUIT command failed", zap.Error(err))
	}

	return nil
}

// smtpBackend implements the go-smtp Backend interface
type smtpBackend struct {
	filter *PostfixFilter
}

func (b *smtpBackend) NewSession(c *smtp.Conn) (smtp.Session, error) {
	return &smtpSession{
		filter:     b.filter,
		recipients: make([]string, 0),
	}, nil
}

// smtpSession implements the go-smtp Session interface
type smtpSession struct {
	filter     *PostfixFilter
	sender     string
	recipients []string
}

func (s *smtpSession) Reset() {
	s.sender = ""
	s.recipients = make([]string, 0)
}

func (s *smtpSession) AuthPlain(_ []byte) error {
	return smtp.ErrAuthUnsupported
}

func (s *smtpSession) Mail(from string, _ *smtp.MailOptions) error {
	s.sender = from
	return nil
}

func (s *smtpSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.recipients = append(s.recipients, to)
	return nil
}

// Data reads the full message, classifies it, and either rejects it or
// re-injects it with detection headers added.
func (s *smtpSession) Data(r io.Reader) error {
	rawData, err := io.ReadAll(r)
	if err != nil {
		s.filter.logger.Error("Failed to read message data", zap.Error(err))
		return err
	}

	msg, err := mail.ReadMessage(bytes.NewReader(rawData))
	if err != nil {
		s.filter.logger.Error("Failed to parse email message", zap.Error(err))
		return err
	}

	textContent, err := extractTextFromMessage(msg)
	if err != nil {
		s.filter.logger.Error("Failed to extract text content", zap.Error(err))
		return err
	}

	email := &core.Email{
		Headers: make(map[string][]string),
		Body:    textContent,
		From:    s.sender,
		To:      s.recipients,
	}

	for key, values := range msg.Header {
		email.Headers[key] = values
		if strings.EqualFold(key, "Subject") && len(values) > 0 {
			email.Subject = values[0]
		}
	}

	senderDomain := "unknown"
	if parts := strings.Split(email.From, "@"); len(parts) == 2 {
		senderDomain = parts[1]
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result, senderInfo, analysisErr := s.filter.service.AnalyzeEmail(ctx, email)
	if analysisErr != nil {
		s.filter.logger.Error("Failed to analyze email",
			zap.Error(analysisErr),
			zap.String("sender", email.From),
			zap.String("sender_domain", senderDomain))

		// Fail open: deliver the mail unclassified rather than bounce it
		result = &core.ClassificationResult{
			Label:      core.LabelLegitimate,
			Confidence: 0.0,
			ModelUsed:  "error",
			AnalyzedAt: time.Now(),
		}
		senderInfo = &core.SenderAnalysis{
			Sender: email.From,
			Domain: senderDomain,
			Flags:  []string{"None"},
		}
	}

	isPhishing := result.Label == core.LabelPhishing

	if isPhishing && s.filter.blockPhishing && analysisErr == nil {
		s.filter.logger.Info("Rejecting phishing email",
			zap.String("from", email.From),
			zap.String("sender_domain", senderDomain),
			zap.Float64("confidence", result.Confidence),
			zap.Strings("sender_flags", senderInfo.Flags),
			zap.String("model", result.ModelUsed))
		return fmt.Errorf("550 Rejected as phishing (confidence: %.2f)", result.Confidence)
	}

	var modifiedEmail bytes.Buffer

	fmt.Fprintf(&modifiedEmail, "%s: %s\r\n", s.filter.statusHeader, result.Label)
	fmt.Fprintf(&modifiedEmail, "%s: %.2f\r\n", s.filter.confidenceHeader, result.Confidence)
	fmt.Fprintf(&modifiedEmail, "%s: %s\r\n", s.filter.flagsHeader, strings.Join(senderInfo.Flags, ", "))

	if analysisErr != nil {
		fmt.Fprintf(&modifiedEmail, "X-Phishing-Analysis-Error: %s\r\n", analysisErr.Error())
	}

	rewriteSubject := isPhishing && s.filter.modifySubject && s.filter.subjectPrefix != ""
	if rewriteSubject {
		decodedSubject := decodeEncodedHeader(msg.Header.Get("Subject"))
		if !strings.HasPrefix(decodedSubject, s.filter.subjectPrefix) {
			fmt.Fprintf(&modifiedEmail, "Subject: %s\r\n", s.filter.subjectPrefix+decodedSubject)
		} else {
			rewriteSubject = false
		}
	}

	for key, values := range msg.Header {
		if rewriteSubject && strings.EqualFold(key, "Subject") {
			continue
		}
		for _, value := range values {
			fmt.Fprintf(&modifiedEmail, "%s: %s\r\n", key, value)
		}
	}

	fmt.Fprintf(&modifiedEmail, "\r\n")

	// Splice the original body back in verbatim so MIME parts and
	// attachments survive untouched
	if idx := bytes.Index(rawData, []byte("\r\n\r\n")); idx != -1 {
		modifiedEmail.Write(rawData[idx+4:])
	} else if idx := bytes.Index(rawData, []byte("\n\n")); idx != -1 {
		modifiedEmail.Write(rawData[idx+2:])
	} else {
		bodyBytes, err := io.ReadAll(msg.Body)
		if err != nil {
			s.filter.logger.Error("Failed to read message body", zap.Error(err))
			return err
		}
		modifiedEmail.Write(bodyBytes)
	}

	if s.filter.postfixEnabled {
		if err := s.filter.sendToPostfix(s.sender, s.recipients, modifiedEmail.Bytes()); err != nil {
			s.filter.logger.Error("Failed to send email back to Postfix",
				zap.Error(err),
				zap.String("sender", email.From))
			return err
		}
	} else {
		s.filter.logger.Warn("Postfix forwarding disabled, this is likely a misconfiguration")
	}

	s.filter.logger.Info("Processed email",
		zap.String("from", email.From),
		zap.String("sender_domain", senderDomain),
		zap.String("prediction", result.Label),
		zap.Float64("confidence", result.Confidence),
		zap.String("model", result.ModelUsed))

	return nil
}

func (s *smtpSession) Logout() error {
	return nil
}

// decodeEncodedHeader decodes RFC 2047 encoded-words in a header value,
// falling back to the raw value on malformed input
func decodeEncodedHeader(value string) string {
	dec := new(mime.WordDecoder)
	decoded, err := dec.DecodeHeader(value)
	if err != nil {
		return value
	}
	return decoded
}
