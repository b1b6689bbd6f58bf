package service

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/noah-isme/degree-audit-api/internal/models"
	appErrors "github.com/noah-isme/degree-audit-api/pkg/errors"
)

// RequirementService evaluates a program's requirement-block tree
// bottom-up. It is pure and idempotent over its input snapshots.
type RequirementService struct {
	logger *zap.Logger
}

// NewRequirementService constructs the evaluator.
func NewRequirementService(logger *zap.Logger) *RequirementService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RequirementService{logger: logger}
}

// EvaluateProgram walks every root block of the program. Root blocks
// combine by AND for the overall program status.
func (s *RequirementService) EvaluateProgram(g *models.CatalogGraph, program models.Program, st StudentState) (models.ProgramResult, error) {
	result := models.ProgramResult{
		ProgramID: program.ID,
		Code:      program.Code,
		Name:      program.Name,
	}

	allMet := true
	anyProgress := false
	for _, block := range program.Blocks {
		blockResult, err := s.evaluateBlock(g, block, st)
		if err != nil {
			return models.ProgramResult{}, err
		}
		result.Blocks = append(result.Blocks, blockResult)
		if !blockResult.Status.Met() {
			allMet = false
		}
		if blockResult.Status != models.BlockUnsatisfied {
			anyProgress = true
		}
	}

	switch {
	case len(result.Blocks) == 0:
		return models.ProgramResult{}, appErrors.Clone(appErrors.ErrDataIntegrity,
			fmt.Sprintf("program %s has no requirement blocks", program.Code))
	case allMet:
		result.Status = models.BlockSatisfied
	case anyProgress:
		result.Status = models.BlockPartiallySatisfied
	default:
		result.Status = models.BlockUnsatisfied
	}
	return result, nil
}

// evaluateBlock computes one node post-order: children first, then the
// node's own rule. A block-level waiver is terminal and skips the rule
// entirely.
func (s *RequirementService) evaluateBlock(g *models.CatalogGraph, block *models.RequirementBlock, st StudentState) (models.BlockResult, error) {
	result := models.BlockResult{BlockID: block.ID, Title: block.Title}

	if st.BlockWaived(block.ID) {
		result.Status = models.BlockSatisfiedByWaiver
		return result, nil
	}

	if block.Leaf() {
		return s.evaluateLeaf(g, block, st)
	}
	return s.evaluateGate(g, block, st)
}

func (s *RequirementService) evaluateLeaf(g *models.CatalogGraph, block *models.RequirementBlock, st StudentState) (models.BlockResult, error) {
	result := models.BlockResult{BlockID: block.ID, Title: block.Title}

	rule := block.Rule
	// min_count on a leaf counts courses from the match set.
	if rule.Kind == models.RuleMinCount {
		if rule.MinCount <= 0 {
			return result, appErrors.Clone(appErrors.ErrConfiguration,
				fmt.Sprintf("block %s declares min_count without a positive count", block.ID))
		}
		n := rule.MinCount
		rule = models.BlockRule{Kind: models.RuleThreshold, RequiredCourses: &n, RequiredCredits: rule.RequiredCredits}
	}
	if rule.Kind != models.RuleThreshold {
		return result, appErrors.Clone(appErrors.ErrDataIntegrity,
			fmt.Sprintf("leaf block %s declares rule %q but has no children", block.ID, rule.Kind))
	}
	if rule.RequiredCredits == nil && rule.RequiredCourses == nil {
		return result, appErrors.Clone(appErrors.ErrConfiguration,
			fmt.Sprintf("block %s declares a threshold rule without thresholds", block.ID))
	}

	type matched struct {
		courseID string
		code     string
		credits  float64
	}
	var resolved []matched
	seen := make(map[string]bool)
	for _, match := range block.Matches {
		course, ok := resolveMatch(g, match)
		if !ok {
			// Matches against retired or never-published courses are
			// common in older catalog years; they simply never count.
			continue
		}
		if seen[course.ID] {
			continue
		}
		seen[course.ID] = true

		applied := false
		credits := 0.0
		if completion, ok := st.CompletionFor(course.ID); ok {
			if match.MinGradePts == nil || completion.GradePoints >= *match.MinGradePts {
				applied = true
				credits = completion.Credits
			}
		}
		if !applied && st.CourseWaived(course.ID) {
			applied = true
			credits = course.Credits
		}
		if applied {
			result.CoursesApplied++
			result.CreditsApplied += credits
		} else {
			resolved = append(resolved, matched{courseID: course.ID, code: course.Code(), credits: course.Credits})
		}
	}

	met := true
	if rule.RequiredCredits != nil {
		result.CreditsRequired = *rule.RequiredCredits
		result.CreditsNeeded = maxFloat(0, result.CreditsRequired-result.CreditsApplied)
		if result.CreditsNeeded > 0 {
			met = false
		}
	}
	if rule.RequiredCourses != nil {
		result.CoursesRequired = *rule.RequiredCourses
		result.CoursesNeeded = maxInt(0, result.CoursesRequired-result.CoursesApplied)
		if result.CoursesNeeded > 0 {
			met = false
		}
	}

	switch {
	case met:
		result.Status = models.BlockSatisfied
	case result.CoursesApplied > 0 || result.CreditsApplied > 0:
		result.Status = models.BlockPartiallySatisfied
	default:
		result.Status = models.BlockUnsatisfied
	}

	if !met {
		sort.Slice(resolved, func(i, j int) bool { return resolved[i].code < resolved[j].code })
		for _, m := range resolved {
			result.UnmetMatches = append(result.UnmetMatches, models.UnmetMatch{
				BlockID:    block.ID,
				BlockTitle: block.Title,
				CourseID:   m.courseID,
				Code:       m.code,
				Credits:    m.credits,
			})
		}
	}
	return result, nil
}

func (s *RequirementService) evaluateGate(g *models.CatalogGraph, block *models.RequirementBlock, st StudentState) (models.BlockResult, error) {
	result := models.BlockResult{BlockID: block.ID, Title: block.Title}

	children := append([]*models.RequirementBlock(nil), block.Children...)
	sort.SliceStable(children, func(i, j int) bool { return children[i].Position < children[j].Position })

	satisfied := 0
	anyProgress := false
	var neededCredits []float64
	var neededCourses []int
	for _, child := range children {
		childResult, err := s.evaluateBlock(g, child, st)
		if err != nil {
			return models.BlockResult{}, err
		}
		result.Children = append(result.Children, childResult)
		result.CreditsRequired += childResult.CreditsRequired
		result.CreditsApplied += childResult.CreditsApplied
		result.CoursesRequired += childResult.CoursesRequired
		result.CoursesApplied += childResult.CoursesApplied
		if childResult.Status.Met() {
			satisfied++
		} else {
			neededCredits = append(neededCredits, childResult.CreditsNeeded)
			neededCourses = append(neededCourses, childResult.CoursesNeeded)
			result.UnmetMatches = append(result.UnmetMatches, childResult.UnmetMatches...)
		}
		if childResult.Status != models.BlockUnsatisfied {
			anyProgress = true
		}
	}

	required, err := gateRequirement(block, len(children))
	if err != nil {
		return models.BlockResult{}, err
	}

	met := satisfied >= required
	// Remaining gap is the cheapest way to close the gate: the smallest
	// (required - satisfied) child gaps.
	if !met {
		missing := required - satisfied
		sort.Float64s(neededCredits)
		sort.Ints(neededCourses)
		for i := 0; i < missing && i < len(neededCredits); i++ {
			result.CreditsNeeded += neededCredits[i]
		}
		for i := 0; i < missing && i < len(neededCourses); i++ {
			result.CoursesNeeded += neededCourses[i]
		}
	}

	switch {
	case met:
		result.Status = models.BlockSatisfied
		result.UnmetMatches = nil
	case anyProgress:
		result.Status = models.BlockPartiallySatisfied
	default:
		result.Status = models.BlockUnsatisfied
	}
	return result, nil
}

// gateRequirement maps the closed rule variants onto a satisfied-children
// quota. Malformed rule data is surfaced, never defaulted.
func gateRequirement(block *models.RequirementBlock, childCount int) (int, error) {
	switch block.Rule.Kind {
	case models.RuleAllOf:
		return childCount, nil
	case models.RuleAnyOf:
		return 1, nil
	case models.RuleMinCount:
		if block.Rule.MinCount <= 0 {
			return 0, appErrors.Clone(appErrors.ErrConfiguration,
				fmt.Sprintf("block %s declares min_count without a positive count", block.ID))
		}
		if block.Rule.MinCount > childCount {
			return 0, appErrors.Clone(appErrors.ErrDataIntegrity,
				fmt.Sprintf("block %s requires %d of %d children", block.ID, block.Rule.MinCount, childCount))
		}
		return block.Rule.MinCount, nil
	case models.RuleThreshold:
		return 0, appErrors.Clone(appErrors.ErrDataIntegrity,
			fmt.Sprintf("block %s declares a threshold rule but has children", block.ID))
	default:
		return 0, appErrors.Clone(appErrors.ErrConfiguration,
			fmt.Sprintf("block %s declares unknown rule kind %q", block.ID, block.Rule.Kind))
	}
}

func resolveMatch(g *models.CatalogGraph, match models.BlockCourseMatch) (models.Course, bool) {
	if match.CourseID != nil && *match.CourseID != "" {
		course, ok := g.Courses[*match.CourseID]
		return course, ok
	}
	return g.ResolveCode(match.Subject, match.CatalogNumber)
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
