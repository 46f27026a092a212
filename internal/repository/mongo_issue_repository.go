package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/spot-sort/issue-service/internal/domain"
)

type issueDocument struct {
	ID                 primitive.ObjectID  `bson:"_id,omitempty"`
	TicketID           string              `bson:"ticketId"`
	Reporter           *primitive.ObjectID `bson:"reporter,omitempty"`
	IssueType          string              `bson:"issueType"`
	Title              string              `bson:"title"`
	Description        string              `bson:"description"`
	Status             string              `bson:"status"`
	Lat                float64             `bson:"lat"`
	Lng                float64             `bson:"lng"`
	IssueImageURL      string              `bson:"issueImageUrl"`
	ResolutionImageURL *string             `bson:"resolutionImageUrl,omitempty"`
	AssignedTo         *primitive.ObjectID `bson:"assignedTo,omitempty"`
	Zone               string              `bson:"zone"`
	CreatedAt          time.Time           `bson:"createdAt"`
	UpdatedAt          time.Time           `bson:"updatedAt"`
	ClosedAt           *time.Time          `bson:"closedAt,omitempty"`
}

type mongoIssueRepository struct {
	coll *mongo.Collection
	now  func() time.Time
}

// NewMongoIssueRepository returns a MongoDB-backed implementation.
func NewMongoIssueRepository(db *mongo.Database) IssueRepository {
	return &mongoIssueRepository{coll: db.Collection(IssuesCollection), now: time.Now}
}

func (r *mongoIssueRepository) Create(ctx context.Context, issue *domain.Issue) error {
	now := r.now().UTC()
	doc := issueDocument{
		ID:            primitive.NewObjectID(),
		TicketID:      issue.TicketID,
		Reporter:      objectIDPtr(issue.ReporterID),
		IssueType:     string(issue.Type),
		Title:         issue.Title,
		Description:   issue.Description,
		Status:        string(issue.Status),
		Lat:           issue.Location.Lat,
		Lng:           issue.Location.Lng,
		IssueImageURL: issue.IssueImageRef,
		Zone:          issue.Zone,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return translateMongoError(err)
	}
	issue.ID = doc.ID.Hex()
	issue.CreatedAt = now
	issue.UpdatedAt = now
	return nil
}

func (r *mongoIssueRepository) Update(ctx context.Context, issue *domain.Issue, expected domain.IssueStatus) error {
	now := r.now().UTC()
	set := bson.M{
		"zone":               issue.Zone,
		"status":             string(issue.Status),
		"resolutionImageUrl": issue.ResolutionImageRef,
		"assignedTo":         objectIDPtr(issue.AssigneeID),
		"closedAt":           issue.ClosedAt,
		"updatedAt":          now,
	}
	filter := bson.M{"ticketId": issue.TicketID, "status": string(expected)}
	res, err := r.coll.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return translateMongoError(err)
	}
	if res.MatchedCount == 0 {
		if _, getErr := r.GetByTicketID(ctx, issue.TicketID); getErr != nil {
			return getErr
		}
		return ErrStaleStatus
	}
	issue.UpdatedAt = now
	return nil
}

func (r *mongoIssueRepository) GetByTicketID(ctx context.Context, ticketID string) (*domain.Issue, error) {
	var doc issueDocument
	if err := r.coll.FindOne(ctx, bson.M{"ticketId": ticketID}).Decode(&doc); err != nil {
		return nil, translateMongoError(err)
	}
	return doc.toDomain(), nil
}

// issueListSort matches the SQL listing order.
var issueListSort = bson.D{{Key: "createdAt", Value: 1}, {Key: "ticketId", Value: 1}}

func (r *mongoIssueRepository) List(ctx context.Context, filter IssueFilter) ([]domain.Issue, error) {
	query := bson.M{}
	if filter.ReporterID != nil {
		oid := objectIDPtr(filter.ReporterID)
		if oid == nil {
			return []domain.Issue{}, nil
		}
		query["reporter"] = *oid
	}
	if filter.Zone != nil {
		query["zone"] = *filter.Zone
	}
	status := bson.M{}
	if len(filter.Statuses) > 0 {
		status["$in"] = statusStrings(filter.Statuses)
	}
	if len(filter.ExcludeStatuses) > 0 {
		status["$nin"] = statusStrings(filter.ExcludeStatuses)
	}
	if len(status) > 0 {
		query["status"] = status
	}
	if len(filter.Types) > 0 {
		types := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			types[i] = string(t)
		}
		query["issueType"] = bson.M{"$in": types}
	}

	limit, offset := normalizedLimit(filter.Limit, filter.Offset)
	opts := options.Find().
		SetSort(issueListSort).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := r.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []issueDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	result := make([]domain.Issue, 0, len(docs))
	for _, doc := range docs {
		result = append(result, *doc.toDomain())
	}
	return result, nil
}

func (d issueDocument) toDomain() *domain.Issue {
	return &domain.Issue{
		ID:                 d.ID.Hex(),
		TicketID:           d.TicketID,
		ReporterID:         hexPtr(d.Reporter),
		Type:               domain.IssueType(d.IssueType),
		Title:              d.Title,
		Description:        d.Description,
		Location:           domain.Location{Lat: d.Lat, Lng: d.Lng},
		Zone:               d.Zone,
		Status:             domain.IssueStatus(d.Status),
		IssueImageRef:      d.IssueImageURL,
		ResolutionImageRef: d.ResolutionImageURL,
		AssigneeID:         hexPtr(d.AssignedTo),
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
		ClosedAt:           d.ClosedAt,
	}
}

func statusStrings(statuses []domain.IssueStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func objectIDPtr(id *string) *primitive.ObjectID {
	if id == nil {
		return nil
	}
	oid, err := primitive.ObjectIDFromHex(*id)
	if err != nil {
		return nil
	}
	return &oid
}

func hexPtr(oid *primitive.ObjectID) *string {
	if oid == nil {
		return nil
	}
	s := oid.Hex()
	return &s
}
