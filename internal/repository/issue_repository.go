package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spot-sort/issue-service/internal/domain"
)

type issueRepository struct {
	pool *pgxpool.Pool
}

// NewIssueRepository instantiates a Postgres-backed repository.
func NewIssueRepository(pool *pgxpool.Pool) IssueRepository {
	return &issueRepository{pool: pool}
}

const issueColumns = `id, ticket_id, reporter_id, issue_type, title, description, lat, lng, zone, status,
               issue_image_ref, resolution_image_ref, assignee_id, created_at, updated_at, closed_at`

func (r *issueRepository) Create(ctx context.Context, issue *domain.Issue) error {
	const query = `
        INSERT INTO issues (ticket_id, reporter_id, issue_type, title, description, lat, lng, zone, status, issue_image_ref)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, query,
		issue.TicketID,
		issue.ReporterID,
		issue.Type,
		issue.Title,
		issue.Description,
		issue.Location.Lat,
		issue.Location.Lng,
		issue.Zone,
		issue.Status,
		issue.IssueImageRef,
	).Scan(&issue.ID, &issue.CreatedAt, &issue.UpdatedAt)
	return translatePgError(err)
}

func (r *issueRepository) Update(ctx context.Context, issue *domain.Issue, expected domain.IssueStatus) error {
	const query = `
        UPDATE issues SET zone=$1, status=$2, resolution_image_ref=$3, assignee_id=$4, closed_at=$5, updated_at=NOW()
        WHERE ticket_id=$6 AND status=$7
        RETURNING updated_at`
	err := r.pool.QueryRow(ctx, query,
		issue.Zone,
		issue.Status,
		issue.ResolutionImageRef,
		issue.AssigneeID,
		issue.ClosedAt,
		issue.TicketID,
		expected,
	).Scan(&issue.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := r.GetByTicketID(ctx, issue.TicketID); getErr != nil {
			return getErr
		}
		return ErrStaleStatus
	}
	return translatePgError(err)
}

func (r *issueRepository) GetByTicketID(ctx context.Context, ticketID string) (*domain.Issue, error) {
	query := `SELECT ` + issueColumns + ` FROM issues WHERE ticket_id=$1`
	var issue domain.Issue
	if err := scanIssue(r.pool.QueryRow(ctx, query, ticketID), &issue); err != nil {
		return nil, translatePgError(err)
	}
	return &issue, nil
}

func (r *issueRepository) List(ctx context.Context, filter IssueFilter) ([]domain.Issue, error) {
	query, args := issueListQuery(filter)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Issue
	for rows.Next() {
		var issue domain.Issue
		if err := scanIssue(rows, &issue); err != nil {
			return nil, err
		}
		result = append(result, issue)
	}
	return result, rows.Err()
}

// issueListQuery renders filter as a paged SELECT. Rows sharing a
// creation time are ordered by ticket id so pages do not overlap.
func issueListQuery(filter IssueFilter) (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.ReporterID != nil {
		args = append(args, *filter.ReporterID)
		clauses = append(clauses, fmt.Sprintf("reporter_id=$%d", len(args)))
	}
	if filter.Zone != nil {
		args = append(args, *filter.Zone)
		clauses = append(clauses, fmt.Sprintf("zone=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.ExcludeStatuses) > 0 {
		placeholders := make([]string, len(filter.ExcludeStatuses))
		for i, status := range filter.ExcludeStatuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status NOT IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Types) > 0 {
		placeholders := make([]string, len(filter.Types))
		for i, typ := range filter.Types {
			args = append(args, typ)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("issue_type IN (%s)", strings.Join(placeholders, ",")))
	}

	limit, offset := normalizedLimit(filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM issues WHERE %s ORDER BY created_at ASC, ticket_id ASC LIMIT %d OFFSET %d`,
		issueColumns, strings.Join(clauses, " AND "), limit, offset)
	return query, args
}

func scanIssue(row pgx.Row, issue *domain.Issue) error {
	return row.Scan(
		&issue.ID,
		&issue.TicketID,
		&issue.ReporterID,
		&issue.Type,
		&issue.Title,
		&issue.Description,
		&issue.Location.Lat,
		&issue.Location.Lng,
		&issue.Zone,
		&issue.Status,
		&issue.IssueImageRef,
		&issue.ResolutionImageRef,
		&issue.AssigneeID,
		&issue.CreatedAt,
		&issue.UpdatedAt,
		&issue.ClosedAt,
	)
}
