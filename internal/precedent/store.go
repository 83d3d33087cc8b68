package precedent

import (
	"context"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ethicore/arbiter/internal/errors"
	"github.com/ethicore/arbiter/internal/types"
)

const (
	// MatchThreshold is the minimum similarity for a case to count as a
	// match.
	MatchThreshold = 0.3

	// topMatches is how many matches are retained on the analysis
	// report; weight and confidence are computed over all matches.
	topMatches = 5

	// confidenceSaturation is the match count at which precedent
	// confidence reaches 1.
	confidenceSaturation = 10

	// positiveValence / strongValence split outcomes into favorable and
	// strongly favorable.
	positiveValence = 0.5
	strongValence   = 0.7

	// NeutralWeight and NeutralConfidence form the prior when no
	// precedent is available.
	NeutralWeight     = 0.5
	NeutralConfidence = 0.1
)

// Store serializes writes through a single writer goroutine and serves
// similarity analysis from backend snapshots. Readers never contend
// with the writer.
type Store struct {
	backend  Backend
	related  RelatedActions
	maxCases int
	logger   *logrus.Logger

	addCh  chan types.PrecedentCase
	done   chan struct{}
	mu     sync.RWMutex
	closed bool
}

// NewStore creates a store over a backend and starts its writer.
// maxCases <= 0 disables retention eviction. Close the store to stop
// the writer.
func NewStore(logger *logrus.Logger, backend Backend, related RelatedActions, maxCases int) *Store {
	if logger == nil {
		logger = logrus.New()
	}
	s := &Store{
		backend:  backend,
		related:  related,
		maxCases: maxCases,
		logger:   logger,
		addCh:    make(chan types.PrecedentCase, 64),
		done:     make(chan struct{}),
	}
	go s.writeLoop()
	return s
}

// AddCase hands a case to the writer goroutine. It blocks only when
// the write buffer is full, and respects the caller's context. The
// read lock is held across the send so Close cannot pull the channel
// out from under a blocked sender.
func (s *Store) AddCase(ctx context.Context, c types.PrecedentCase) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errors.StorageError(nil, "precedent store closed").WithComponent("precedent")
	}

	select {
	case s.addCh <- c:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), errors.TypeStorage, errors.SeverityDegraded, "precedent", "add case cancelled")
	}
}

// Close stops the writer goroutine. Pending buffered cases are drained
// first. AddCase after Close returns an error. Close waits for
// in-flight senders before closing the channel.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.addCh)
	s.mu.Unlock()

	<-s.done
}

// Len returns the stored case count.
func (s *Store) Len(ctx context.Context) (int, error) {
	n, err := s.backend.Len(ctx)
	if err != nil {
		return 0, errors.PrecedentUnavailable(err)
	}
	return n, nil
}

func (s *Store) writeLoop() {
	defer close(s.done)
	ctx := context.Background()
	for c := range s.addCh {
		if err := s.backend.AddCase(ctx, c); err != nil {
			s.logger.WithError(err).Warn("precedent case write failed")
			continue
		}
		if s.maxCases > 0 {
			if n, err := s.backend.Len(ctx); err == nil && n > s.maxCases {
				if err := s.backend.Evict(ctx, s.maxCases); err != nil {
					s.logger.WithError(err).Warn("precedent eviction failed")
				}
			}
		}
	}
}

// Analyze scores the proposal against every stored case and reduces
// the matches to a precedent weight, confidence, and recommended
// action. A backend failure degrades to the neutral prior and returns
// the error for observability; it never blocks a decision.
func (s *Store) Analyze(ctx context.Context, proposal types.ActionProposal, evalCtx map[string]interface{}) (types.PrecedentAnalysis, error) {
	cases, err := s.backend.Query(ctx)
	if err != nil {
		return neutralAnalysis(), errors.PrecedentUnavailable(err)
	}

	type scored struct {
		c   types.PrecedentCase
		sim float64
	}
	var matches []scored
	for _, c := range cases {
		if sim := similarity(proposal, evalCtx, c, s.related); sim > MatchThreshold {
			matches = append(matches, scored{c: c, sim: sim})
		}
	}

	if len(matches) == 0 {
		return neutralAnalysis(), nil
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].sim > matches[j].sim
	})

	var simSum float64
	favorable := 0
	actionCounts := make(map[string]int)
	for _, m := range matches {
		simSum += m.sim
		if m.c.Outcome.Valence > positiveValence {
			favorable++
		}
		if m.c.Outcome.Valence > strongValence && m.c.Outcome.ResolutionAction != "" {
			actionCounts[m.c.Outcome.ResolutionAction]++
		}
	}

	meanSim := simSum / float64(len(matches))
	weight := float64(favorable) / float64(len(matches)) * meanSim
	confidence := float64(len(matches)) / confidenceSaturation
	if confidence > 1 {
		confidence = 1
	}

	top := matches
	if len(top) > topMatches {
		top = top[:topMatches]
	}
	report := make([]types.PrecedentCase, len(top))
	for i, m := range top {
		report[i] = m.c
	}

	return types.PrecedentAnalysis{
		Weight:            types.Clamp01(weight),
		Confidence:        confidence,
		Matches:           report,
		RecommendedAction: mostFrequent(actionCounts),
	}, nil
}

func neutralAnalysis() types.PrecedentAnalysis {
	return types.PrecedentAnalysis{
		Weight:     NeutralWeight,
		Confidence: NeutralConfidence,
	}
}

// mostFrequent breaks count ties lexicographically so the
// recommendation is deterministic.
func mostFrequent(counts map[string]int) string {
	best, bestCount := "", 0
	for action, n := range counts {
		if n > bestCount || (n == bestCount && action < best) {
			best, bestCount = action, n
		}
	}
	return best
}
