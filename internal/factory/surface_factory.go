package factory

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/mikey/phishing-detector/internal/adapters/httpserver"
	"github.com/mikey/phishing-detector/internal/adapters/smtpfilter"
	"github.com/mikey/phishing-detector/internal/config"
	"github.com/mikey/phishing-detector/internal/core"
	"github.com/mikey/phishing-detector/internal/ports"
)

// SurfaceFactory creates serving surfaces based on configuration
type SurfaceFactory struct {
	cfg     *config.Config
	logger  *zap.Logger
	service *core.DetectorService
}

// NewSurfaceFactory creates a new surface factory
func NewSurfaceFactory(cfg *config.Config, logger *zap.Logger, service *core.DetectorService) *SurfaceFactory {
	return &SurfaceFactory{
		cfg:     cfg,
		logger:  logger,
		service: service,
	}
}

// CreateSurface creates the configured serving surface
func (f *SurfaceFactory) CreateSurface() (ports.Surface, error) {
	surfaceType := f.cfg.GetString("server.surface")

	switch surfaceType {
	case "http":
		return httpserver.NewServer(
			f.service,
			f.logger,
			f.cfg.GetString("server.listen_address"),
			f.cfg.GetInt("server.snippet_length"),
		), nil
	case "smtp":
		return smtpfilter.NewPostfixFilter(
			f.service,
			f.logger,
			f.cfg.GetString("smtp.listen_address"),
			f.cfg.GetBool("smtp.block_phishing"),
			f.cfg.GetString("smtp.headers.status"),
			f.cfg.GetString("smtp.headers.confidence"),
			f.cfg.GetString("smtp.headers.sender_flags"),
			f.cfg.GetString("smtp.postfix.address"),
			f.cfg.GetInt("smtp.postfix.port"),
			f.cfg.GetBool("smtp.postfix.enabled"),
			f.cfg.GetString("smtp.subject_prefix"),
			f.cfg.GetBool("smtp.modify_subject"),
		), nil
	default:
		return nil, fmt.Errorf("unsupported surface type: %s", surfaceType)
	}
}
