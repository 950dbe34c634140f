// Package mongo provides a Mirror implementation backed by MongoDB via
// Grove ORM, one document per profile.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	driver "go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/reconcile/mirror"
	"github.com/xraph/reconcile/types"
)

// compile-time interface check
var _ mirror.Mirror = (*Mirror)(nil)

type balanceModel struct {
	grove.BaseModel `grove:"table:reconcile_balance_mirror"`

	ID        string    `grove:"id,pk"      bson:"_id"`
	Amount    int64     `grove:"amount"     bson:"amount"`
	Currency  string    `grove:"currency"   bson:"currency"`
	UpdatedAt time.Time `grove:"updated_at" bson:"updated_at"`
}

// Mirror implements mirror.Mirror using MongoDB via Grove ORM.
type Mirror struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB mirror backed by Grove ORM.
func New(db *grove.DB) *Mirror {
	return &Mirror{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (m *Mirror) DB() *grove.DB { return m.db }

func (m *Mirror) UpsertBalance(ctx context.Context, profileID string, balance types.Money) error {
	row := &balanceModel{
		ID:        profileID,
		Amount:    balance.Amount,
		Currency:  balance.Currency,
		UpdatedAt: time.Now().UTC(),
	}
	_, err := m.mdb.NewUpdate(row).
		Filter(bson.M{"_id": profileID}).
		SetUpdate(bson.M{"$set": bson.M{
			"_id":        row.ID,
			"amount":     row.Amount,
			"currency":   row.Currency,
			"updated_at": row.UpdatedAt,
		}}).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("reconcile/mongo: upsert balance: %w", err)
	}
	return nil
}

func (m *Mirror) ReadBalance(ctx context.Context, profileID string) (types.Money, error) {
	var row balanceModel
	err := m.mdb.NewFind(&row).
		Filter(bson.M{"_id": profileID}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return types.Money{}, mirror.ErrAbsent
		}
		return types.Money{}, fmt.Errorf("reconcile/mongo: read balance: %w", err)
	}
	return types.Money{Amount: row.Amount, Currency: row.Currency}, nil
}

// isNoDocuments checks for the driver's missing-document sentinel.
func isNoDocuments(err error) bool {
	return errors.Is(err, driver.ErrNoDocuments)
}
