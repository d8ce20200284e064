package replay

import (
	"github.com/sirupsen/logrus"

	"stockverse/internal/dataset"
	"stockverse/internal/logger"
)

// Service owns the loaded dataset and both replay streams. One instance is
// built at startup and shared by all handlers, so every client sees the same
// stream position.
type Service struct {
	data       *dataset.Dataset
	window     *WindowServer
	sequential *SequentialServer
	log        *logrus.Entry
}

func NewService(data *dataset.Dataset, log logrus.FieldLogger) *Service {
	return &Service{
		data:       data,
		window:     NewWindowServer(data),
		sequential: NewSequentialServer(data),
		log:        logger.Component(log, "replay"),
	}
}

func (s *Service) Len() int {
	return s.data.Len()
}

func (s *Service) Window(limit int) []dataset.Record {
	out := s.window.Window(limit)
	s.log.WithFields(logrus.Fields{"limit": limit, "count": len(out)}).Debug("window served")
	return out
}

func (s *Service) Next() Point {
	p := s.sequential.Next()
	s.log.WithField("time", deref(p.Time)).Debug("next point")
	return p
}

func (s *Service) Current() Point {
	return s.sequential.Current()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
