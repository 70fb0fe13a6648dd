package voxel

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Audit logs every change to the scene.
type Audit struct {
	logger *slog.Logger
}

// NewAudit creates the audit hook.
func NewAudit(logger *slog.Logger) *Audit {
	return &Audit{logger: logger}
}

// OnAdd logs a new manifest.
func (a *Audit) OnAdd(_ context.Context, m *Manifest) error {
	a.logger.Info("manifest added",
		slog.String("manifest", m.Key),
		slog.Int("shapes", len(m.ShapeKeys)),
	)
	return nil
}

// OnUpdate logs a changed manifest.
func (a *Audit) OnUpdate(_ context.Context, m *Manifest) error {
	a.logger.Info("manifest updated",
		slog.String("manifest", m.Key),
		slog.Int("shapes", len(m.ShapeKeys)),
	)
	return nil
}

// OnUpsert logs a stored shape.
func (a *Audit) OnUpsert(_ context.Context, s *Shape) error {
	a.logger.Info("shape stored",
		slog.String("shape", s.Key.String()),
		slog.String("name", s.Name),
	)
	return nil
}

// OnDelete logs a removed shape.
func (a *Audit) OnDelete(_ context.Context, key uuid.UUID, s *Shape) error {
	a.logger.Info("shape removed",
		slog.String("shape", key.String()),
		slog.String("name", s.Name),
	)
	return nil
}
