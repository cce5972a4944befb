package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"github.com/SilentStoat/StoatBot/internal/domain"
)

// MongoRepo implements Repo on a MongoDB database: one document per profile
// in "profiles", one per scope in "digests".
type MongoRepo struct {
	client   *mongo.Client
	profiles *mongo.Collection
	digests  *mongo.Collection
}

type profileDoc struct {
	ScopeID          int64     `bson:"scope_id"`
	UserID           int64     `bson:"user_id"`
	DisplayName      string    `bson:"display_name"`
	DSTObserved      *bool     `bson:"dst_observed,omitempty"`
	UTCOffsetMinutes *int      `bson:"utc_offset_minutes,omitempty"`
	ResolvedZone     *string   `bson:"resolved_zone,omitempty"`
	Locale           string    `bson:"locale"`
	Color            string    `bson:"color"`
	CreatedAt        time.Time `bson:"created_at"`
	UpdatedAt        time.Time `bson:"updated_at"`
}

func (d profileDoc) toDomain() domain.Profile {
	return domain.Profile{
		ScopeID:          d.ScopeID,
		UserID:           d.UserID,
		DisplayName:      d.DisplayName,
		DSTObserved:      d.DSTObserved,
		UTCOffsetMinutes: d.UTCOffsetMinutes,
		ResolvedZone:     d.ResolvedZone,
		Locale:           d.Locale,
		Color:            d.Color,
		CreatedAt:        d.CreatedAt.UTC(),
		UpdatedAt:        d.UpdatedAt.UTC(),
	}
}

type digestDoc struct {
	ScopeID    int64      `bson:"scope_id"`
	AtMinutes  int        `bson:"at_minutes"`
	Enabled    bool       `bson:"enabled"`
	NextAt     *time.Time `bson:"next_at,omitempty"`
	LastSentAt *time.Time `bson:"last_sent_at,omitempty"`
}

// OpenMongo connects to uri, waits for the primary to answer (retrying with
// backoff), and ensures indexes on dbName.
func OpenMongo(ctx context.Context, uri, dbName string, log *zap.Logger) (*MongoRepo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	err = retry.Do(
		func() error {
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return client.Ping(pingCtx, readpref.Primary())
		},
		retry.Context(ctx),
		retry.Attempts(5),
		retry.Delay(time.Second),
		retry.MaxDelay(30*time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.OnRetry(func(n uint, err error) {
			log.Warn("mongo ping failed, retrying", zap.Uint("attempt", n+1), zap.Error(err))
		}),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	db := client.Database(dbName)
	r := &MongoRepo{
		client:   client,
		profiles: db.Collection("profiles"),
		digests:  db.Collection("digests"),
	}
	if err := r.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo indexes: %w", err)
	}
	return r, nil
}

// EnsureIndexes creates the key and due-date indexes.
func (r *MongoRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.profiles.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "scope_id", Value: 1}, {Key: "user_id", Value: 1}},
			Options: options.Index().SetName("uniq_profile_key").SetUnique(true),
		},
	})
	if err != nil {
		return err
	}
	_, err = r.digests.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "scope_id", Value: 1}},
			Options: options.Index().SetName("uniq_digest_scope").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "enabled", Value: 1}, {Key: "next_at", Value: 1}},
			Options: options.Index().SetName("idx_digest_due"),
		},
	})
	return err
}

// Ping checks the primary is reachable.
func (r *MongoRepo) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client.
func (r *MongoRepo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.client.Disconnect(ctx)
}

func profileFilter(key domain.ProfileKey) bson.M {
	return bson.M{"scope_id": key.ScopeID, "user_id": key.UserID}
}

// Get returns a profile by key or ErrNotFound.
func (r *MongoRepo) Get(ctx context.Context, key domain.ProfileKey) (*domain.Profile, error) {
	var doc profileDoc
	err := r.profiles.FindOne(ctx, profileFilter(key)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p := doc.toDomain()
	return &p, nil
}

// Upsert translates the patch into $set/$unset and creates the document on
// first write.
func (r *MongoRepo) Upsert(ctx context.Context, key domain.ProfileKey, patch domain.ProfilePatch) error {
	now := time.Now().UTC()
	set := bson.M{"updated_at": now}
	unset := bson.M{}

	if patch.DisplayName != nil && *patch.DisplayName != "" {
		set["display_name"] = *patch.DisplayName
	}
	if patch.DSTObserved != nil {
		set["dst_observed"] = *patch.DSTObserved
	}
	if patch.UTCOffsetMinutes != nil {
		set["utc_offset_minutes"] = *patch.UTCOffsetMinutes
	}
	switch {
	case patch.ResolvedZone != nil:
		set["resolved_zone"] = *patch.ResolvedZone
	case patch.ClearZone:
		unset["resolved_zone"] = ""
	}
	if patch.Locale != nil {
		set["locale"] = *patch.Locale
	}
	if patch.Color != nil {
		set["color"] = *patch.Color
	}

	onInsert := bson.M{"created_at": now}
	for _, field := range []string{"display_name", "locale", "color"} {
		if _, ok := set[field]; !ok {
			onInsert[field] = ""
		}
	}

	update := bson.M{"$set": set, "$setOnInsert": onInsert}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	_, err := r.profiles.UpdateOne(ctx, profileFilter(key), update, options.Update().SetUpsert(true))
	return err
}

// ListScope returns every profile in the scope ordered by user id.
func (r *MongoRepo) ListScope(ctx context.Context, scopeID int64) ([]domain.Profile, error) {
	cur, err := r.profiles.Find(ctx,
		bson.M{"scope_id": scopeID},
		options.Find().SetSort(bson.D{{Key: "user_id", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var res []domain.Profile
	for cur.Next(ctx) {
		var doc profileDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		res = append(res, doc.toDomain())
	}
	return res, cur.Err()
}

// SetDigest enables (or reschedules) the scope's daily roster post.
func (r *MongoRepo) SetDigest(ctx context.Context, scopeID int64, atMinutes int, next time.Time) error {
	_, err := r.digests.UpdateOne(ctx,
		bson.M{"scope_id": scopeID},
		bson.M{"$set": bson.M{
			"at_minutes": atMinutes,
			"enabled":    true,
			"next_at":    next.UTC(),
		}},
		options.Update().SetUpsert(true),
	)
	return err
}

// DisableDigest turns the scope's roster post off.
func (r *MongoRepo) DisableDigest(ctx context.Context, scopeID int64) error {
	_, err := r.digests.UpdateOne(ctx,
		bson.M{"scope_id": scopeID},
		bson.M{"$set": bson.M{"enabled": false}, "$unset": bson.M{"next_at": ""}},
	)
	return err
}

// ListDueDigests returns up to `limit` enabled digests whose next_at is <= now,
// ordered by next_at ascending.
func (r *MongoRepo) ListDueDigests(ctx context.Context, now time.Time, limit int) ([]domain.Digest, error) {
	cur, err := r.digests.Find(ctx,
		bson.M{"enabled": true, "next_at": bson.M{"$lte": now.UTC()}},
		options.Find().SetSort(bson.D{{Key: "next_at", Value: 1}}).SetLimit(int64(limit)),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var res []domain.Digest
	for cur.Next(ctx) {
		var doc digestDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		d := domain.Digest{ScopeID: doc.ScopeID, AtMinutes: doc.AtMinutes, LastSentAt: doc.LastSentAt}
		if doc.NextAt != nil {
			d.NextAt = doc.NextAt.UTC()
		}
		res = append(res, d)
	}
	return res, cur.Err()
}

// MarkDigestSent records a delivery and the following slot.
func (r *MongoRepo) MarkDigestSent(ctx context.Context, scopeID int64, next, sent time.Time) error {
	_, err := r.digests.UpdateOne(ctx,
		bson.M{"scope_id": scopeID},
		bson.M{"$set": bson.M{"next_at": next.UTC(), "last_sent_at": sent.UTC()}},
	)
	return err
}
