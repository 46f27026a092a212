package repository

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/spot-sort/issue-service/internal/domain"
)

func TestIssueListQueryOrdersByTicketWithinTimestamp(t *testing.T) {
	query, args := issueListQuery(IssueFilter{})
	assert.Contains(t, query, "ORDER BY created_at ASC, ticket_id ASC LIMIT 50 OFFSET 0")
	assert.Empty(t, args)
}

func TestIssueListQueryBindsFilters(t *testing.T) {
	zone := "North"
	reporter := "user-1"
	query, args := issueListQuery(IssueFilter{
		ReporterID:      &reporter,
		Zone:            &zone,
		Statuses:        []domain.IssueStatus{domain.IssueStatusPending, domain.IssueStatusInProgress},
		ExcludeStatuses: []domain.IssueStatus{domain.IssueStatusClosed},
		Types:           []domain.IssueType{domain.IssueTypeWaste},
		Limit:           10,
		Offset:          20,
	})

	where := query[strings.Index(query, "WHERE"):]
	assert.Equal(t,
		"WHERE 1=1 AND reporter_id=$1 AND zone=$2 AND status IN ($3,$4) AND status NOT IN ($5) AND issue_type IN ($6) "+
			"ORDER BY created_at ASC, ticket_id ASC LIMIT 10 OFFSET 20",
		where)
	assert.Equal(t, []any{
		reporter, zone,
		domain.IssueStatusPending, domain.IssueStatusInProgress,
		domain.IssueStatusClosed,
		domain.IssueTypeWaste,
	}, args)
}

func TestMongoIssueListSortMatchesSQL(t *testing.T) {
	assert.Equal(t, bson.D{{Key: "createdAt", Value: 1}, {Key: "ticketId", Value: 1}}, issueListSort)
}
