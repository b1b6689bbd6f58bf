package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/degree-audit-api/internal/models"
)

// CatalogRepository handles persistence of courses and their requisite
// groups.
type CatalogRepository struct {
	db *sqlx.DB
}

// NewCatalogRepository constructs the repository.
func NewCatalogRepository(db *sqlx.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

const courseColumns = `id, subject, catalog_number, title, credits, offered_fall, offered_spring, offered_summer, requisite_text, created_at, updated_at`

// ListCourses returns the full published catalog. The graph builder
// loads everything; filtering happens in memory on the snapshot.
func (r *CatalogRepository) ListCourses(ctx context.Context) ([]models.Course, error) {
	query := fmt.Sprintf(`SELECT %s FROM courses ORDER BY subject, catalog_number`, courseColumns)
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return courses, nil
}

// List returns a filtered, paginated slice of the catalog for the read
// endpoints.
func (r *CatalogRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	var conditions []string
	var args []interface{}

	if filter.Subject != "" {
		conditions = append(conditions, fmt.Sprintf("subject = $%d", len(args)+1))
		args = append(args, strings.ToUpper(filter.Subject))
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(title ILIKE $%d OR catalog_number ILIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s FROM courses%s ORDER BY subject, catalog_number LIMIT %d OFFSET %d`,
		courseColumns, clause, size, offset)

	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	countQuery := "SELECT COUNT(*) FROM courses" + clause
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}
	return courses, total, nil
}

// FindByID returns a course by its ID.
func (r *CatalogRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	query := fmt.Sprintf(`SELECT %s FROM courses WHERE id = $1`, courseColumns)
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// Create persists a new catalog course.
func (r *CatalogRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if course.CreatedAt.IsZero() {
		course.CreatedAt = now
	}
	course.UpdatedAt = now
	course.Subject = strings.ToUpper(strings.TrimSpace(course.Subject))

	const query = `INSERT INTO courses (id, subject, catalog_number, title, credits, offered_fall, offered_spring, offered_summer, requisite_text, created_at, updated_at)
        VALUES (:id, :subject, :catalog_number, :title, :credits, :offered_fall, :offered_spring, :offered_summer, :requisite_text, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// ListRequisiteGroups returns every requisite group with its members
// attached, in declared order.
func (r *CatalogRepository) ListRequisiteGroups(ctx context.Context) ([]models.RequisiteGroup, error) {
	const groupQuery = `SELECT id, course_id, kind, logic, min_count, position FROM requisite_groups ORDER BY course_id, position`
	var groups []models.RequisiteGroup
	if err := r.db.SelectContext(ctx, &groups, groupQuery); err != nil {
		return nil, fmt.Errorf("list requisite groups: %w", err)
	}
	if len(groups) == 0 {
		return groups, nil
	}

	const memberQuery = `SELECT id, group_id, course_id, subject, catalog_number, concurrent_ok, min_grade_points, position
        FROM requisite_group_members ORDER BY group_id, position`
	var members []models.RequisiteGroupMember
	if err := r.db.SelectContext(ctx, &members, memberQuery); err != nil {
		return nil, fmt.Errorf("list requisite group members: %w", err)
	}

	byGroup := make(map[string][]models.RequisiteGroupMember, len(groups))
	for _, m := range members {
		byGroup[m.GroupID] = append(byGroup[m.GroupID], m)
	}
	for i := range groups {
		groups[i].Members = byGroup[groups[i].ID]
	}
	return groups, nil
}

// ListGroupsByCourse returns the requisite groups declared on one course.
func (r *CatalogRepository) ListGroupsByCourse(ctx context.Context, courseID string) ([]models.RequisiteGroup, error) {
	const groupQuery = `SELECT id, course_id, kind, logic, min_count, position FROM requisite_groups WHERE course_id = $1 ORDER BY position`
	var groups []models.RequisiteGroup
	if err := r.db.SelectContext(ctx, &groups, groupQuery, courseID); err != nil {
		return nil, fmt.Errorf("list course requisite groups: %w", err)
	}
	for i := range groups {
		const memberQuery = `SELECT id, group_id, course_id, subject, catalog_number, concurrent_ok, min_grade_points, position
            FROM requisite_group_members WHERE group_id = $1 ORDER BY position`
		if err := r.db.SelectContext(ctx, &groups[i].Members, memberQuery, groups[i].ID); err != nil {
			return nil, fmt.Errorf("list group members: %w", err)
		}
	}
	return groups, nil
}
