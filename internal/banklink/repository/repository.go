package repository

import (
	"context"
	"errors"

	"github.com/banklabs/banklink/internal/banklink/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type paymentRepo struct {
	db   *gorm.DB
	node *snowflake.Node
}

func Provide(db *gorm.DB, node *snowflake.Node) domain.PaymentRepository {
	return &paymentRepo{db: db, node: node}
}

func (r *paymentRepo) Create(ctx context.Context, p *domain.Payment) error {
	if p.ID == 0 {
		p.ID = r.node.Generate()
	}
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *paymentRepo) FindByID(ctx context.Context, id snowflake.ID) (*domain.Payment, error) {
	var p domain.Payment
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *paymentRepo) Update(ctx context.Context, p *domain.Payment) error {
	return r.db.WithContext(ctx).Save(p).Error
}

// Finalize writes the full record guarded by the current state, so two
// concurrent decisions on the same payment cannot both win.
func (r *paymentRepo) Finalize(ctx context.Context, p *domain.Payment, state domain.PaymentState) (bool, error) {
	p.State = state
	res := r.db.WithContext(ctx).
		Model(&domain.Payment{}).
		Where("id = ? AND state = ?", p.ID, domain.StateInProcess).
		Select("*").
		Omit("id", "created_at").
		Updates(p)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
