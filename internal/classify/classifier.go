package classify

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan-nascimento51/glpi-dashboard-sub003/internal/domain"
)

// Classifier resolves technician service levels through an ordered
// strategy cascade: first strategy to answer wins. Results are memoized
// per batch call only; group and profile membership can change between
// aggregation cycles, so there is no cross-cycle cache.
type Classifier struct {
	strategies  []Strategy
	concurrency int
	log         *logrus.Entry
}

// NewClassifier creates a classifier running the given cascade.
// concurrency bounds the parallel lookups in ClassifyBatch.
func NewClassifier(strategies []Strategy, concurrency int, log *logrus.Logger) *Classifier {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Classifier{
		strategies:  strategies,
		concurrency: concurrency,
		log:         log.WithField("component", "classifier"),
	}
}

// Classify resolves one technician's level. Deterministic for fixed
// group/profile/name data. Returns *ClassificationError when no
// strategy answers.
func (c *Classifier) Classify(ctx context.Context, tech domain.Technician) (domain.ServiceLevel, error) {
	for _, s := range c.strategies {
		level, ok, err := s.Classify(ctx, tech)
		if err != nil {
			return "", err
		}
		if ok {
			c.log.WithFields(logrus.Fields{
				"technician": tech.ID,
				"strategy":   s.Name(),
				"level":      level,
			}).Debug("Technician classified")
			return level, nil
		}
	}
	return "", &ClassificationError{TechnicianID: tech.ID, Reason: "unclassified"}
}

// ClassifyBatch classifies a batch of technicians with bounded
// concurrency. Unclassified technicians land in the second map instead
// of the first; deciding their fate (exclude, or a configured default)
// is the caller's explicit, logged decision. Lookup failures degrade to
// unclassified for the affected technician only.
func (c *Classifier) ClassifyBatch(ctx context.Context, techs []domain.Technician) (map[int]domain.ServiceLevel, map[int]error) {
	levels := make(map[int]domain.ServiceLevel, len(techs))
	failed := make(map[int]error)

	var mu sync.Mutex
	seen := make(map[int]bool, len(techs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for _, tech := range techs {
		if seen[tech.ID] {
			continue
		}
		seen[tech.ID] = true

		tech := tech
		g.Go(func() error {
			level, err := c.Classify(gctx, tech)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed[tech.ID] = err
				return nil
			}
			levels[tech.ID] = level
			return nil
		})
	}

	// workers never return errors, so this only waits for the barrier
	_ = g.Wait()

	if len(failed) > 0 {
		c.log.WithFields(logrus.Fields{
			"classified":   len(levels),
			"unclassified": len(failed),
		}).Warn("Batch classification left technicians without a level")
	}
	return levels, failed
}
