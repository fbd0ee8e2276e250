// Package mongo provides a MongoDB-backed store driver.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	caption "github.com/Jamesmini007/AX2-Caption"
	"github.com/Jamesmini007/AX2-Caption/artifact"
	"github.com/Jamesmini007/AX2-Caption/credit"
	"github.com/Jamesmini007/AX2-Caption/id"
	"github.com/Jamesmini007/AX2-Caption/job"
	"github.com/Jamesmini007/AX2-Caption/storage"
	captionstore "github.com/Jamesmini007/AX2-Caption/store"
	"github.com/Jamesmini007/AX2-Caption/trial"
)

// Collection names.
const (
	colBalances     = "caption_balances"
	colReservations = "caption_reservations"
	colEntries      = "caption_entries"
	colTrials       = "caption_trials"
	colExtensions   = "caption_extensions"
	colJobs         = "caption_jobs"
	colArtifacts    = "caption_artifacts"
)

// Store implements the unified store interface backed by MongoDB.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

var _ captionstore.Store = (*Store)(nil)

// New connects to MongoDB and returns a store bound to the named database.
func New(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return &Store{client: client, db: client.Database(database)}, nil
}

// NewWithDatabase wraps an existing database handle. Close becomes a no-op
// for the underlying client; the caller owns its lifecycle.
func NewWithDatabase(db *mongo.Database) *Store {
	return &Store{db: db}
}

// Database exposes the underlying handle for advanced use.
func (s *Store) Database() *mongo.Database { return s.db }

func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// ─────────────────────────────────────────────────────────────────────────────
// Balances
// ─────────────────────────────────────────────────────────────────────────────

func (s *Store) GetBalance(ctx context.Context, accountID string) (*credit.Balance, error) {
	var m balanceModel
	err := s.db.Collection(colBalances).FindOne(ctx, bson.M{"_id": accountID}).Decode(&m)
	if isNoDocuments(err) {
		return nil, caption.ErrBalanceNotFound
	}
	if err != nil {
		return nil, err
	}
	return fromBalanceModel(&m), nil
}

func (s *Store) SaveBalance(ctx context.Context, b *credit.Balance) error {
	m := toBalanceModel(b)
	_, err := s.db.Collection(colBalances).ReplaceOne(ctx,
		bson.M{"_id": b.AccountID}, m, options.Replace().SetUpsert(true))
	return err
}

// ─────────────────────────────────────────────────────────────────────────────
// Reservations
// ─────────────────────────────────────────────────────────────────────────────

func (s *Store) CreateReservation(ctx context.Context, r *credit.Reservation) error {
	_, err := s.db.Collection(colReservations).InsertOne(ctx, toReservationModel(r))
	if mongo.IsDuplicateKeyError(err) {
		return caption.ErrAlreadyExists
	}
	return err
}

func (s *Store) GetReservation(ctx context.Context, resID id.ReservationID, jobID id.JobID) (*credit.Reservation, error) {
	filter := bson.M{"_id": resID.String()}
	if !jobID.IsNil() {
		filter["job_id"] = jobID.String()
	}

	var m reservationModel
	err := s.db.Collection(colReservations).FindOne(ctx, filter).Decode(&m)
	if isNoDocuments(err) {
		return nil, caption.ErrReservationNotFound
	}
	if err != nil {
		return nil, err
	}
	return fromReservationModel(&m), nil
}

func (s *Store) UpdateReservation(ctx context.Context, r *credit.Reservation) error {
	res, err := s.db.Collection(colReservations).ReplaceOne(ctx,
		bson.M{"_id": r.ID.String()}, toReservationModel(r))
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return caption.ErrReservationNotFound
	}
	return nil
}

func (s *Store) ListReservations(ctx context.Context, accountID string, status credit.ReservationStatus) ([]*credit.Reservation, error) {
	filter := bson.M{"account_id": accountID}
	if status != "" {
		filter["status"] = string(status)
	}

	cur, err := s.db.Collection(colReservations).Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "reserved_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []*credit.Reservation
	for cur.Next(ctx) {
		var m reservationModel
		if err := cur.Decode(&m); err != nil {
			return nil, err
		}
		out = append(out, fromReservationModel(&m))
	}
	return out, cur.Err()
}

// ─────────────────────────────────────────────────────────────────────────────
// History
// ─────────────────────────────────────────────────────────────────────────────

func (s *Store) AppendEntry(ctx context.Context, e *credit.Entry) error {
	_, err := s.db.Collection(colEntries).InsertOne(ctx, toEntryModel(e))
	return err
}

func (s *Store) ListEntries(ctx context.Context, accountID string, opts credit.ListOpts) ([]*credit.Entry, error) {
	filter := bson.M{"account_id": accountID}
	if opts.Type != "" {
		filter["type"] = string(opts.Type)
	}

	findOpts := options.Find().SetSort(bson.D{{Key: "date", Value: -1}})
	if opts.Offset > 0 {
		findOpts.SetSkip(int64(opts.Offset))
	}
	if opts.Limit > 0 {
		findOpts.SetLimit(int64(opts.Limit))
	}

	cur, err := s.db.Collection(colEntries).Find(ctx, filter, findOpts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []*credit.Entry
	for cur.Next(ctx) {
		var m entryModel
		if err := cur.Decode(&m); err != nil {
			return nil, err
		}
		out = append(out, fromEntryModel(&m))
	}
	return out, cur.Err()
}

// ─────────────────────────────────────────────────────────────────────────────
// Trials
// ─────────────────────────────────────────────────────────────────────────────

func (s *Store) GetTrialFlag(ctx context.Context, accountID string) (*trial.Flag, error) {
	var m trialModel
	err := s.db.Collection(colTrials).FindOne(ctx, bson.M{"_id": accountID}).Decode(&m)
	if isNoDocuments(err) {
		return nil, caption.ErrTrialFlagNotFound
	}
	if err != nil {
		return nil, err
	}
	return fromTrialModel(&m), nil
}

func (s *Store) SaveTrialFlag(ctx context.Context, f *trial.Flag) error {
	_, err := s.db.Collection(colTrials).ReplaceOne(ctx,
		bson.M{"_id": f.AccountID}, toTrialModel(f), options.Replace().SetUpsert(true))
	return err
}

// ─────────────────────────────────────────────────────────────────────────────
// Storage extensions
// ─────────────────────────────────────────────────────────────────────────────

func (s *Store) GetExtension(ctx context.Context, accountID string) (*storage.Extension, error) {
	var m extensionModel
	err := s.db.Collection(colExtensions).FindOne(ctx, bson.M{"_id": accountID}).Decode(&m)
	if isNoDocuments(err) {
		return nil, caption.ErrExtensionNotFound
	}
	if err != nil {
		return nil, err
	}
	return fromExtensionModel(&m), nil
}

func (s *Store) SaveExtension(ctx context.Context, e *storage.Extension) error {
	_, err := s.db.Collection(colExtensions).ReplaceOne(ctx,
		bson.M{"_id": e.AccountID}, toExtensionModel(e), options.Replace().SetUpsert(true))
	return err
}

func (s *Store) DeleteExtension(ctx context.Context, accountID string) error {
	res, err := s.db.Collection(colExtensions).DeleteOne(ctx, bson.M{"_id": accountID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return caption.ErrExtensionNotFound
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Jobs
// ─────────────────────────────────────────────────────────────────────────────

func (s *Store) CreateJob(ctx context.Context, j *job.Job) error {
	_, err := s.db.Collection(colJobs).InsertOne(ctx, toJobModel(j))
	if mongo.IsDuplicateKeyError(err) {
		return caption.ErrAlreadyExists
	}
	return err
}

func (s *Store) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	var m jobModel
	err := s.db.Collection(colJobs).FindOne(ctx, bson.M{"_id": jobID.String()}).Decode(&m)
	if isNoDocuments(err) {
		return nil, caption.ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	return fromJobModel(&m), nil
}

func (s *Store) UpdateJob(ctx context.Context, j *job.Job) error {
	res, err := s.db.Collection(colJobs).ReplaceOne(ctx,
		bson.M{"_id": j.ID.String()}, toJobModel(j))
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return caption.ErrJobNotFound
	}
	return nil
}

func (s *Store) ListJobs(ctx context.Context, accountID string, opts job.ListOpts) ([]*job.Job, error) {
	filter := bson.M{"account_id": accountID}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}

	findOpts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if opts.Offset > 0 {
		findOpts.SetSkip(int64(opts.Offset))
	}
	if opts.Limit > 0 {
		findOpts.SetLimit(int64(opts.Limit))
	}

	cur, err := s.db.Collection(colJobs).Find(ctx, filter, findOpts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []*job.Job
	for cur.Next(ctx) {
		var m jobModel
		if err := cur.Decode(&m); err != nil {
			return nil, err
		}
		out = append(out, fromJobModel(&m))
	}
	return out, cur.Err()
}

// ─────────────────────────────────────────────────────────────────────────────
// Artifacts
// ─────────────────────────────────────────────────────────────────────────────

func (s *Store) CreateArtifact(ctx context.Context, a *artifact.Artifact) error {
	_, err := s.db.Collection(colArtifacts).InsertOne(ctx, toArtifactModel(a))
	if mongo.IsDuplicateKeyError(err) {
		return caption.ErrAlreadyExists
	}
	return err
}

func (s *Store) GetArtifact(ctx context.Context, artID id.ArtifactID) (*artifact.Artifact, error) {
	var m artifactModel
	err := s.db.Collection(colArtifacts).FindOne(ctx, bson.M{"_id": artID.String()}).Decode(&m)
	if isNoDocuments(err) {
		return nil, caption.ErrArtifactNotFound
	}
	if err != nil {
		return nil, err
	}
	return fromArtifactModel(&m), nil
}

func (s *Store) DeleteArtifact(ctx context.Context, artID id.ArtifactID) error {
	res, err := s.db.Collection(colArtifacts).DeleteOne(ctx, bson.M{"_id": artID.String()})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return caption.ErrArtifactNotFound
	}
	return nil
}

func (s *Store) ListArtifacts(ctx context.Context, accountID string, opts artifact.ListOpts) ([]*artifact.Artifact, error) {
	findOpts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if opts.Offset > 0 {
		findOpts.SetSkip(int64(opts.Offset))
	}
	if opts.Limit > 0 {
		findOpts.SetLimit(int64(opts.Limit))
	}

	cur, err := s.db.Collection(colArtifacts).Find(ctx, bson.M{"account_id": accountID}, findOpts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	return decodeArtifacts(ctx, cur)
}

func (s *Store) ListExpiredArtifacts(ctx context.Context, before time.Time) ([]*artifact.Artifact, error) {
	// A $lt date comparison never matches null or missing expires_at, so
	// artifacts without an expiry are retained indefinitely.
	cur, err := s.db.Collection(colArtifacts).Find(ctx,
		bson.M{"expires_at": bson.M{"$lt": before}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	return decodeArtifacts(ctx, cur)
}

func decodeArtifacts(ctx context.Context, cur *mongo.Cursor) ([]*artifact.Artifact, error) {
	var out []*artifact.Artifact
	for cur.Next(ctx) {
		var m artifactModel
		if err := cur.Decode(&m); err != nil {
			return nil, err
		}
		out = append(out, fromArtifactModel(&m))
	}
	return out, cur.Err()
}

func (s *Store) SumArtifactBytes(ctx context.Context, accountID string) (int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"account_id": accountID}}},
		{{Key: "$group", Value: bson.M{"_id": nil, "total": bson.M{"$sum": "$size_bytes"}}}},
	}

	cur, err := s.db.Collection(colArtifacts).Aggregate(ctx, pipeline)
	if err != nil {
		return 0, err
	}
	defer cur.Close(ctx)

	if !cur.Next(ctx) {
		return 0, cur.Err()
	}
	var result struct {
		Total int64 `bson:"total"`
	}
	if err := cur.Decode(&result); err != nil {
		return 0, err
	}
	return result.Total, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Core
// ─────────────────────────────────────────────────────────────────────────────

// migrationIndexes maps collection names to the indexes they need.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colReservations: {
			{Keys: bson.D{{Key: "account_id", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "job_id", Value: 1}}},
		},
		colEntries: {
			{Keys: bson.D{{Key: "account_id", Value: 1}, {Key: "date", Value: -1}}},
		},
		colJobs: {
			{Keys: bson.D{{Key: "account_id", Value: 1}, {Key: "status", Value: 1}}},
		},
		colArtifacts: {
			{Keys: bson.D{{Key: "account_id", Value: 1}}},
			{Keys: bson.D{{Key: "expires_at", Value: 1}}},
		},
	}
}

func (s *Store) Migrate(ctx context.Context) error {
	for col, indexes := range migrationIndexes() {
		if _, err := s.db.Collection(col).Indexes().CreateMany(ctx, indexes); err != nil {
			return fmt.Errorf("%w: %s: %v", caption.ErrMigrationFailed, col, err)
		}
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	if s.client == nil {
		return s.db.Client().Ping(ctx, nil)
	}
	return s.client.Ping(ctx, nil)
}

func (s *Store) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(context.Background())
}
