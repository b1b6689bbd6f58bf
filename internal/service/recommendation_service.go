package service

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/degree-audit-api/internal/models"
	"github.com/noah-isme/degree-audit-api/pkg/config"
	appErrors "github.com/noah-isme/degree-audit-api/pkg/errors"
)

// ScoreInput is the immutable material one scoring pass reads.
type ScoreInput struct {
	Graph        *models.CatalogGraph
	Eligibility  []models.CourseEligibility
	Programs     []models.ProgramResult
	Student      StudentState
	Pinned       map[string]bool
	PinnedLoad   float64
	TargetSeason models.TermSeason
	Preferences  models.Preferences
}

// RecommendationService ranks eligible courses by how much they advance
// the student. The score formula is configuration, not constants:
//
//	score = w1*norm(unlock) + w2*norm(gap_relief)
//	      + w3*availability − w4*conflict
//
// Ties break on raw direct unlock count, then catalog level, then
// subject/number lexical order, which is unique and makes the ranking a
// strict total order.
type RecommendationService struct {
	cfg    config.ScorerConfig
	logger *zap.Logger
}

// NewRecommendationService validates the scoring weights up front;
// missing weights are a configuration error before any audit runs.
func NewRecommendationService(cfg config.ScorerConfig, logger *zap.Logger) (*RecommendationService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrConfiguration.Code, appErrors.ErrConfiguration.Status, "invalid scorer configuration")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecommendationService{cfg: cfg, logger: logger}, nil
}

type gapInfo struct {
	credits float64
	blocks  []string
}

type candidate struct {
	course       models.Course
	direct       int
	downstream   int
	unlockRaw    float64
	gap          gapInfo
	available    bool
	conflict     bool
	score        float64
	rationale    []string
	gapReliefRaw float64
}

// Recommend produces the ranked recommendation list for one audit run.
func (s *RecommendationService) Recommend(in ScoreInput) []models.Recommendation {
	gaps := collectGaps(in.Programs)
	maxCredits := in.Preferences.MaxCredits
	if maxCredits <= 0 {
		maxCredits = s.cfg.DefaultMaxCredits
	}

	candidates := make([]candidate, 0, len(in.Eligibility))
	for _, elig := range in.Eligibility {
		if !elig.Eligible() {
			continue
		}
		if _, done := in.Student.CompletionFor(elig.CourseID); done {
			continue
		}
		if in.Pinned[elig.CourseID] {
			continue
		}
		course, ok := in.Graph.Courses[elig.CourseID]
		if !ok {
			continue
		}
		unlocks := in.Graph.Unlocks(elig.CourseID)
		c := candidate{
			course:     course,
			direct:     unlocks.Direct,
			downstream: unlocks.Downstream,
			// Direct unlocks plus the full downstream set feed the
			// score; tie-breaks use the raw direct count alone.
			unlockRaw: float64(unlocks.Direct + unlocks.Downstream),
			gap:       gaps[elig.CourseID],
			available: course.OfferedIn(in.TargetSeason),
			conflict:  maxCredits > 0 && in.PinnedLoad+course.Credits > maxCredits,
		}
		c.gapReliefRaw = float64(len(c.gap.blocks)) + c.gap.credits
		candidates = append(candidates, c)
	}

	maxUnlock, maxGap := 0.0, 0.0
	for _, c := range candidates {
		if c.unlockRaw > maxUnlock {
			maxUnlock = c.unlockRaw
		}
		if c.gapReliefRaw > maxGap {
			maxGap = c.gapReliefRaw
		}
	}

	for i := range candidates {
		c := &candidates[i]
		c.score = s.cfg.UnlockWeight*normalize(c.unlockRaw, maxUnlock) +
			s.cfg.GapReliefWeight*normalize(c.gapReliefRaw, maxGap)
		if c.available {
			c.score += s.cfg.AvailabilityWeight
		}
		if c.conflict {
			c.score -= s.cfg.ConflictWeight
		}
		c.rationale = s.rationale(c, in.TargetSeason)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.direct != b.direct {
			return a.direct > b.direct
		}
		if a.course.Level() != b.course.Level() {
			return a.course.Level() < b.course.Level()
		}
		if a.course.Subject != b.course.Subject {
			return a.course.Subject < b.course.Subject
		}
		return a.course.CatalogNumber < b.course.CatalogNumber
	})

	limit := s.cfg.MaxRecommendations
	if limit <= 0 || limit > len(candidates) {
		limit = len(candidates)
	}

	recommendations := make([]models.Recommendation, 0, limit)
	for rank, c := range candidates[:limit] {
		recommendations = append(recommendations, models.Recommendation{
			CourseID:    c.course.ID,
			Code:        c.course.Code(),
			Rank:        rank + 1,
			Score:       c.score,
			UnlockCount: c.direct,
			GapRelief:   c.gapReliefRaw,
			Rationale:   c.rationale,
		})
	}
	return recommendations
}

// rationale names the blocks and unlock chains the course addresses;
// explainability is part of the output contract, not telemetry.
func (s *RecommendationService) rationale(c *candidate, season models.TermSeason) []string {
	var lines []string
	for _, blockTitle := range c.gap.blocks {
		lines = append(lines, fmt.Sprintf("counts toward unmet requirement %q", blockTitle))
	}
	if c.direct > 0 {
		lines = append(lines, fmt.Sprintf("directly unlocks %d course(s), %d downstream", c.direct, c.downstream))
	}
	if season != "" && c.available {
		lines = append(lines, fmt.Sprintf("offered in %s", season))
	}
	if c.conflict {
		lines = append(lines, "would exceed the preferred credit load")
	}
	if len(lines) == 0 {
		lines = append(lines, "eligible elective")
	}
	return lines
}

// collectGaps flattens unmet block matches across all program results
// into a per-course relief index.
func collectGaps(programs []models.ProgramResult) map[string]gapInfo {
	gaps := make(map[string]gapInfo)
	var walk func(results []models.BlockResult)
	walk = func(results []models.BlockResult) {
		for _, block := range results {
			if !block.Status.Met() {
				for _, match := range block.UnmetMatches {
					info := gaps[match.CourseID]
					if !containsString(info.blocks, match.BlockTitle) {
						info.blocks = append(info.blocks, match.BlockTitle)
						info.credits += match.Credits
					}
					gaps[match.CourseID] = info
				}
			}
			walk(block.Children)
		}
	}
	for _, program := range programs {
		walk(program.Blocks)
	}
	return gaps
}

func normalize(value, max float64) float64 {
	if max <= 0 {
		return 0
	}
	return value / max
}

func containsString(list []string, target string) bool {
	for _, s := range list {
		if strings.EqualFold(s, target) {
			return true
		}
	}
	return false
}
