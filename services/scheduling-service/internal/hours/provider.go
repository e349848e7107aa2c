package hours

import (
	"context"
	"time"

	"github.com/joseantoniobg/financial-platform-scheduling/services/scheduling-service/internal/engine"
	"github.com/joseantoniobg/financial-platform-scheduling/services/scheduling-service/internal/storage"
)

// Config is the effective booking window for one consultant.
type Config struct {
	Workday      engine.WorkingHours
	SlotDuration time.Duration
}

// Provider resolves working hours per consultant. Implementations fall back
// to service-wide defaults when no consultant-specific row exists.
type Provider interface {
	ForConsultant(ctx context.Context, consultantID string) (Config, error)
}

type staticProvider struct {
	cfg Config
}

func NewStaticProvider(cfg Config) Provider {
	return &staticProvider{cfg: cfg}
}

func (p *staticProvider) ForConsultant(_ context.Context, _ string) (Config, error) {
	return p.cfg, nil
}

type repositoryProvider struct {
	repo     *storage.HoursRepository
	fallback Config
}

// NewRepositoryProvider resolves hours from the consultant_hours table kept in
// sync by the CRM consumer, defaulting to fallback for unknown consultants.
func NewRepositoryProvider(repo *storage.HoursRepository, fallback Config) Provider {
	return &repositoryProvider{repo: repo, fallback: fallback}
}

func (p *repositoryProvider) ForConsultant(ctx context.Context, consultantID string) (Config, error) {
	h, ok, err := p.repo.Get(ctx, consultantID)
	if err != nil {
		return Config{}, err
	}
	if !ok {
		return p.fallback, nil
	}

	cfg := Config{
		Workday: engine.WorkingHours{
			Start: time.Duration(h.WorkdayStart) * time.Minute,
			End:   time.Duration(h.WorkdayEnd) * time.Minute,
		},
		SlotDuration: time.Duration(h.SlotMinutes) * time.Minute,
	}
	if cfg.SlotDuration <= 0 {
		cfg.SlotDuration = p.fallback.SlotDuration
	}
	return cfg, nil
}
