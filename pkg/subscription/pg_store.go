package subscription

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/subkit/subkit/pkg/pg"
)

// PGPlanStore reads the plan catalog from the plans table.
type PGPlanStore struct {
	pool *pgxpool.Pool
}

// NewPGPlanStore creates a PlanStore backed by PostgreSQL.
func NewPGPlanStore(pool *pgxpool.Pool) *PGPlanStore {
	if pool == nil {
		panic("subscription: pgx pool is required")
	}
	return &PGPlanStore{pool: pool}
}

const planColumns = "id, name, description, gateway_plan_id, price_amount, price_currency, display_order"

func (s *PGPlanStore) Get(ctx context.Context, id uuid.UUID) (*Plan, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+planColumns+" FROM plans WHERE id = $1", id)
	plan, err := scanPlan(row)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	return plan, nil
}

func (s *PGPlanStore) List(ctx context.Context) ([]Plan, error) {
	rows, err := s.pool.Query(ctx, "SELECT "+planColumns+" FROM plans ORDER BY display_order, price_amount")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []Plan
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, *plan)
	}
	return plans, rows.Err()
}

type pgRow interface {
	Scan(dest ...any) error
}

func scanPlan(row pgRow) (*Plan, error) {
	var p Plan
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.GatewayPlanID,
		&p.Price.Amount, &p.Price.Currency, &p.DisplayOrder)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// PGSubscriptionStore persists subscriptions in PostgreSQL. The ownership
// column name comes from Config.OwnerColumn (validated as a safe
// identifier there) so the same schema serves user-owned and team-owned
// deployments. A unique index on the ownership column enforces the
// one-subscription-per-owner invariant under concurrency.
//
// The card token is transient checkout state and is never written to the
// database; only the card type and last-four survive.
type PGSubscriptionStore struct {
	pool     *pgxpool.Pool
	ownerCol string
}

// NewPGSubscriptionStore creates a SubscriptionStore backed by PostgreSQL.
func NewPGSubscriptionStore(pool *pgxpool.Pool, cfg Config) *PGSubscriptionStore {
	if pool == nil {
		panic("subscription: pgx pool is required")
	}
	return &PGSubscriptionStore{pool: pool, ownerCol: cfg.OwnerColumn()}
}

func (s *PGSubscriptionStore) subColumns() string {
	return fmt.Sprintf("id, %s, plan_id, gateway_customer_id, current_price, card_type, last_four, coupon_code, created_at, updated_at", s.ownerCol)
}

func scanSubscription(row pgRow) (*Subscription, error) {
	var sub Subscription
	err := row.Scan(&sub.ID, &sub.OwnerID, &sub.PlanID, &sub.GatewayCustomerID,
		&sub.CurrentPrice, &sub.CardType, &sub.LastFour, &sub.CouponCode,
		&sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (s *PGSubscriptionStore) Get(ctx context.Context, id uuid.UUID) (*Subscription, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+s.subColumns()+" FROM subscriptions WHERE id = $1", id)
	sub, err := scanSubscription(row)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	return sub, nil
}

func (s *PGSubscriptionStore) GetByOwner(ctx context.Context, ownerID uuid.UUID) (*Subscription, error) {
	query := fmt.Sprintf("SELECT %s FROM subscriptions WHERE %s = $1", s.subColumns(), s.ownerCol)
	sub, err := scanSubscription(s.pool.QueryRow(ctx, query, ownerID))
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	return sub, nil
}

func (s *PGSubscriptionStore) GetOwned(ctx context.Context, id, ownerID uuid.UUID) (*Subscription, error) {
	query := fmt.Sprintf("SELECT %s FROM subscriptions WHERE id = $1 AND %s = $2", s.subColumns(), s.ownerCol)
	sub, err := scanSubscription(s.pool.QueryRow(ctx, query, id, ownerID))
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	return sub, nil
}

func (s *PGSubscriptionStore) Save(ctx context.Context, sub *Subscription) error {
	// Update never touches the ownership column, which keeps the owner
	// reference immutable at the SQL level.
	update := fmt.Sprintf(`UPDATE subscriptions
		SET plan_id = $3, gateway_customer_id = $4, current_price = $5,
		    card_type = $6, last_four = $7, coupon_code = $8, updated_at = $9
		WHERE id = $1 AND %s = $2`, s.ownerCol)

	tag, err := s.pool.Exec(ctx, update, sub.ID, sub.OwnerID, sub.PlanID,
		sub.GatewayCustomerID, sub.CurrentPrice, sub.CardType, sub.LastFour,
		sub.CouponCode, sub.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := s.pool.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM subscriptions WHERE id = $1)", sub.ID).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return ErrImmutableOwner
	}

	insert := fmt.Sprintf(`INSERT INTO subscriptions
		(id, %s, plan_id, gateway_customer_id, current_price, card_type, last_four, coupon_code, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`, s.ownerCol)

	_, err = s.pool.Exec(ctx, insert, sub.ID, sub.OwnerID, sub.PlanID,
		sub.GatewayCustomerID, sub.CurrentPrice, sub.CardType, sub.LastFour,
		sub.CouponCode, sub.CreatedAt, sub.UpdatedAt)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return ErrSubscriptionExists
		}
		return err
	}
	return nil
}
