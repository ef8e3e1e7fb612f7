package service

import (
	tierdomain "github.com/smallbiznis/sadaqah/internal/tier/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log    *zap.Logger
	Source tierdomain.TableSource `optional:"true"`
}

type Service struct {
	log    *zap.Logger
	source tierdomain.TableSource
}

func New(p Params) tierdomain.Service {
	source := p.Source
	if source == nil {
		source = staticSource(tierdomain.DefaultTables())
	}
	return &Service{
		log:    p.Log.Named("tier.service"),
		source: source,
	}
}

// NewStatic builds a classifier over fixed tables.
func NewStatic(tables map[tierdomain.Kind]tierdomain.Table) tierdomain.Service {
	return &Service{
		log:    zap.NewNop(),
		source: staticSource(tables),
	}
}

func (s *Service) Table(kind tierdomain.Kind) (tierdomain.Table, error) {
	table, ok := s.source.Tables()[kind]
	if !ok {
		return tierdomain.Table{}, tierdomain.ErrUnknownKind
	}
	return table, nil
}

func (s *Service) Classify(kind tierdomain.Kind, points int64) (tierdomain.Tier, error) {
	table, err := s.Table(kind)
	if err != nil {
		return tierdomain.Tier{}, err
	}
	tier, err := table.Classify(points)
	if err != nil {
		s.logConfigError(err, kind, points)
		return tierdomain.Tier{}, err
	}
	return tier, nil
}

func (s *Service) Next(kind tierdomain.Kind, points int64) (tierdomain.Tier, bool, error) {
	table, err := s.Table(kind)
	if err != nil {
		return tierdomain.Tier{}, false, err
	}
	tier, ok, err := table.Next(points)
	if err != nil {
		s.logConfigError(err, kind, points)
	}
	return tier, ok, err
}

func (s *Service) Progress(kind tierdomain.Kind, points int64) (float64, error) {
	table, err := s.Table(kind)
	if err != nil {
		return 0, err
	}
	progress, err := table.Progress(points)
	if err != nil {
		s.logConfigError(err, kind, points)
	}
	return progress, err
}

func (s *Service) Standing(kind tierdomain.Kind, points int64) (tierdomain.Standing, error) {
	table, err := s.Table(kind)
	if err != nil {
		return tierdomain.Standing{}, err
	}
	standing, err := table.Standing(points)
	if err != nil {
		s.logConfigError(err, kind, points)
	}
	return standing, err
}

func (s *Service) logConfigError(err error, kind tierdomain.Kind, points int64) {
	if !tierdomain.IsConfigurationError(err) {
		return
	}
	s.log.Error("tier table has no match",
		zap.String("kind", string(kind)),
		zap.Int64("points", points),
		zap.Error(err),
	)
}

type staticSource map[tierdomain.Kind]tierdomain.Table

func (s staticSource) Tables() map[tierdomain.Kind]tierdomain.Table {
	return s
}
