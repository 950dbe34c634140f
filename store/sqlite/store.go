// Package sqlite provides the durable Store implementation backed by
// SQLite via Grove ORM.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/reconcile"
	"github.com/xraph/reconcile/id"
	"github.com/xraph/reconcile/notification"
	"github.com/xraph/reconcile/profile"
	"github.com/xraph/reconcile/request"
	"github.com/xraph/reconcile/source"
	reconcilestore "github.com/xraph/reconcile/store"
)

// compile-time interface check
var _ reconcilestore.Store = (*Store)(nil)

// Store implements store.Store using SQLite via Grove ORM.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// New creates a new SQLite store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("reconcile/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("reconcile/sqlite: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Profile Store ====================

func (s *Store) CreateProfile(ctx context.Context, p *profile.Profile) error {
	m := toProfileModel(p)
	_, err := s.sdb.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetProfile(ctx context.Context, profileID string) (*profile.Profile, error) {
	m := new(profileModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", profileID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, reconcile.ErrProfileNotFound
		}
		return nil, err
	}
	return fromProfileModel(m), nil
}

func (s *Store) UpdateProfile(ctx context.Context, p *profile.Profile) error {
	m := toProfileModel(p)
	m.UpdatedAt = now()
	res, err := s.sdb.NewUpdate(m).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return reconcile.ErrProfileNotFound
	}
	return nil
}

func (s *Store) ListProfiles(ctx context.Context, opts profile.ListOpts) ([]*profile.Profile, error) {
	var models []profileModel
	q := s.sdb.NewSelect(&models)

	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*profile.Profile, len(models))
	for i := range models {
		result[i] = fromProfileModel(&models[i])
	}
	return result, nil
}

// ==================== Order Store ====================

func (s *Store) CreateOrder(ctx context.Context, o *request.Order) error {
	m := toOrderModel(o)
	_, err := s.sdb.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetOrder(ctx context.Context, orderID id.OrderID) (*request.Order, error) {
	m := new(orderModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", orderID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, reconcile.ErrOrderNotFound
		}
		return nil, err
	}
	return fromOrderModel(m)
}

func (s *Store) UpdateOrder(ctx context.Context, o *request.Order) error {
	m := toOrderModel(o)
	m.UpdatedAt = now()
	res, err := s.sdb.NewUpdate(m).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return reconcile.ErrOrderNotFound
	}
	return nil
}

func (s *Store) FindOrderByHandle(ctx context.Context, handle string) (*request.Order, error) {
	if handle == "" {
		return nil, reconcile.ErrOrderNotFound
	}
	m := new(orderModel)
	err := s.sdb.NewSelect(m).
		Where("handle = ?", handle).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, reconcile.ErrOrderNotFound
		}
		return nil, err
	}
	return fromOrderModel(m)
}

func (s *Store) ListOrders(ctx context.Context, profileID string, opts request.ListOpts) ([]*request.Order, error) {
	var models []orderModel
	q := s.sdb.NewSelect(&models).Where("profile_id = ?", profileID)

	if opts.Unresolved {
		q = q.Where("resolved = ?", false)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*request.Order, len(models))
	for i := range models {
		o, err := fromOrderModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = o
	}
	return result, nil
}

// ==================== Charge Store ====================

func (s *Store) CreateCharge(ctx context.Context, c *request.Charge) error {
	m := toChargeModel(c)
	_, err := s.sdb.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetCharge(ctx context.Context, chargeID id.ChargeID) (*request.Charge, error) {
	m := new(chargeModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", chargeID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, reconcile.ErrChargeNotFound
		}
		return nil, err
	}
	return fromChargeModel(m)
}

func (s *Store) UpdateCharge(ctx context.Context, c *request.Charge) error {
	m := toChargeModel(c)
	m.UpdatedAt = now()
	res, err := s.sdb.NewUpdate(m).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return reconcile.ErrChargeNotFound
	}
	return nil
}

func (s *Store) FindChargeByHandle(ctx context.Context, handle string) (*request.Charge, error) {
	if handle == "" {
		return nil, reconcile.ErrChargeNotFound
	}
	m := new(chargeModel)
	err := s.sdb.NewSelect(m).
		Where("handle = ?", handle).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, reconcile.ErrChargeNotFound
		}
		return nil, err
	}
	return fromChargeModel(m)
}

func (s *Store) ListCharges(ctx context.Context, profileID string, opts request.ListOpts) ([]*request.Charge, error) {
	var models []chargeModel
	q := s.sdb.NewSelect(&models).Where("profile_id = ?", profileID)

	if opts.Unresolved {
		q = q.Where("resolved = ?", false)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*request.Charge, len(models))
	for i := range models {
		c, err := fromChargeModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = c
	}
	return result, nil
}

// ==================== Notification Store ====================

func (s *Store) AppendNotification(ctx context.Context, n *notification.Notification) error {
	m := toNotificationModel(n)
	_, err := s.sdb.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) ListNotifications(ctx context.Context, profileID string, opts notification.ListOpts) ([]*notification.Notification, error) {
	var models []notificationModel
	q := s.sdb.NewSelect(&models).Where("profile_id = ?", profileID)

	if opts.UnreadOnly {
		q = q.Where("read = ?", false)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*notification.Notification, len(models))
	for i := range models {
		n, err := fromNotificationModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = n
	}
	return result, nil
}

func (s *Store) MarkNotificationRead(ctx context.Context, notificationID id.NotificationID) error {
	res, err := s.sdb.NewUpdate((*notificationModel)(nil)).
		Set("read = ?", true).
		Where("id = ?", notificationID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return reconcile.ErrNotificationNotFound
	}
	return nil
}

// ==================== Cursor Store ====================

func (s *Store) GetCursor(ctx context.Context, channel string) (source.Cursor, error) {
	m := new(cursorModel)
	err := s.sdb.NewSelect(m).
		Where("channel = ?", channel).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return 0, nil
		}
		return 0, err
	}
	return source.Cursor(m.Position), nil
}

func (s *Store) SetCursor(ctx context.Context, channel string, cur source.Cursor) error {
	m := &cursorModel{
		Channel:   channel,
		Position:  int64(cur),
		UpdatedAt: now(),
	}
	// Cursors never move backwards, even across racing writers.
	_, err := s.sdb.NewInsert(m).
		OnConflict("(channel) DO UPDATE").
		Set("position = MAX(position, EXCLUDED.position)").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
