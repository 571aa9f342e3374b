package subscription

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	plansCollection         = "plans"
	subscriptionsCollection = "subscriptions"
)

type mongoPlanDoc struct {
	ID            string `bson:"_id"`
	Name          string `bson:"name"`
	Description   string `bson:"description"`
	GatewayPlanID string `bson:"gateway_plan_id"`
	PriceAmount   int64  `bson:"price_amount"`
	PriceCurrency string `bson:"price_currency"`
	DisplayOrder  int    `bson:"display_order"`
}

func (d mongoPlanDoc) toPlan() (*Plan, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, err
	}
	return &Plan{
		ID:            id,
		Name:          d.Name,
		Description:   d.Description,
		GatewayPlanID: d.GatewayPlanID,
		Price:         Money{Amount: d.PriceAmount, Currency: d.PriceCurrency},
		DisplayOrder:  d.DisplayOrder,
	}, nil
}

// MongoPlanStore reads the plan catalog from the plans collection.
type MongoPlanStore struct {
	coll *mongo.Collection
}

// NewMongoPlanStore creates a PlanStore backed by MongoDB.
func NewMongoPlanStore(db *mongo.Database) *MongoPlanStore {
	if db == nil {
		panic("subscription: mongo database is required")
	}
	return &MongoPlanStore{coll: db.Collection(plansCollection)}
}

func (s *MongoPlanStore) Get(ctx context.Context, id uuid.UUID) (*Plan, error) {
	var doc mongoPlanDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	return doc.toPlan()
}

func (s *MongoPlanStore) List(ctx context.Context) ([]Plan, error) {
	sort := bson.D{{Key: "display_order", Value: 1}, {Key: "price_amount", Value: 1}}
	cursor, err := s.coll.Find(ctx, bson.M{}, options.Find().SetSort(sort))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var plans []Plan
	for cursor.Next(ctx) {
		var doc mongoPlanDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		plan, err := doc.toPlan()
		if err != nil {
			return nil, err
		}
		plans = append(plans, *plan)
	}
	return plans, cursor.Err()
}

// MongoSubscriptionStore persists subscriptions in MongoDB. The ownership
// field name comes from Config.OwnerColumn, mirroring the SQL store; a
// unique index on that field must exist to enforce one subscription per
// owner. Card tokens are transient and never stored.
type MongoSubscriptionStore struct {
	coll       *mongo.Collection
	ownerField string
}

// NewMongoSubscriptionStore creates a SubscriptionStore backed by MongoDB.
func NewMongoSubscriptionStore(db *mongo.Database, cfg Config) *MongoSubscriptionStore {
	if db == nil {
		panic("subscription: mongo database is required")
	}
	return &MongoSubscriptionStore{
		coll:       db.Collection(subscriptionsCollection),
		ownerField: cfg.OwnerColumn(),
	}
}

// EnsureIndexes creates the unique ownership index. Call once at startup.
func (s *MongoSubscriptionStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: s.ownerField, Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (s *MongoSubscriptionStore) decode(raw bson.M) (*Subscription, error) {
	sub := &Subscription{}

	id, err := uuid.Parse(asString(raw["_id"]))
	if err != nil {
		return nil, err
	}
	sub.ID = id

	ownerID, err := uuid.Parse(asString(raw[s.ownerField]))
	if err != nil {
		return nil, err
	}
	sub.OwnerID = ownerID

	if planRaw := asString(raw["plan_id"]); planRaw != "" {
		planID, err := uuid.Parse(planRaw)
		if err != nil {
			return nil, err
		}
		sub.PlanID = &planID
	}

	sub.GatewayCustomerID = asString(raw["gateway_customer_id"])
	sub.CurrentPrice = asInt64(raw["current_price"])
	sub.CardType = asString(raw["card_type"])
	sub.LastFour = asString(raw["last_four"])
	sub.CouponCode = asString(raw["coupon_code"])
	if t, ok := raw["created_at"].(bson.DateTime); ok {
		sub.CreatedAt = t.Time().UTC()
	}
	if t, ok := raw["updated_at"].(bson.DateTime); ok {
		sub.UpdatedAt = t.Time().UTC()
	}
	return sub, nil
}

func (s *MongoSubscriptionStore) findOne(ctx context.Context, filter bson.M) (*Subscription, error) {
	var raw bson.M
	err := s.coll.FindOne(ctx, filter).Decode(&raw)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	return s.decode(raw)
}

func (s *MongoSubscriptionStore) Get(ctx context.Context, id uuid.UUID) (*Subscription, error) {
	return s.findOne(ctx, bson.M{"_id": id.String()})
}

func (s *MongoSubscriptionStore) GetByOwner(ctx context.Context, ownerID uuid.UUID) (*Subscription, error) {
	return s.findOne(ctx, bson.M{s.ownerField: ownerID.String()})
}

func (s *MongoSubscriptionStore) GetOwned(ctx context.Context, id, ownerID uuid.UUID) (*Subscription, error) {
	return s.findOne(ctx, bson.M{"_id": id.String(), s.ownerField: ownerID.String()})
}

func (s *MongoSubscriptionStore) Save(ctx context.Context, sub *Subscription) error {
	var planID any
	if sub.PlanID != nil {
		planID = sub.PlanID.String()
	}

	fields := bson.M{
		"plan_id":             planID,
		"gateway_customer_id": sub.GatewayCustomerID,
		"current_price":       sub.CurrentPrice,
		"card_type":           sub.CardType,
		"last_four":           sub.LastFour,
		"coupon_code":         sub.CouponCode,
		"updated_at":          bson.NewDateTimeFromTime(sub.UpdatedAt),
	}

	// Updates are scoped by both ID and owner, so the owner reference can
	// never be rewritten.
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": sub.ID.String(), s.ownerField: sub.OwnerID.String()},
		bson.M{"$set": fields})
	if err != nil {
		return err
	}
	if res.MatchedCount == 1 {
		return nil
	}

	count, err := s.coll.CountDocuments(ctx, bson.M{"_id": sub.ID.String()})
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrImmutableOwner
	}

	fields["_id"] = sub.ID.String()
	fields[s.ownerField] = sub.OwnerID.String()
	fields["created_at"] = bson.NewDateTimeFromTime(sub.CreatedAt)
	if _, err := s.coll.InsertOne(ctx, fields); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrSubscriptionExists
		}
		return err
	}
	return nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int32:
		return int64(n)
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}
