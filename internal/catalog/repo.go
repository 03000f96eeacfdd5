package catalog

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// listOrder 列表的稳定顺序：按创建先后，id 兜底去重。
const listOrder = "created_at asc, id asc"

// SegmentRepo segments 表仓储
type SegmentRepo struct {
	db *gorm.DB
}

func NewSegmentRepo(db *gorm.DB) *SegmentRepo {
	return &SegmentRepo{db: db}
}

func (r *SegmentRepo) withCtx(ctx context.Context) *gorm.DB {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.WithContext(ctx)
}

func (r *SegmentRepo) Create(ctx context.Context, s *Segment) error {
	db := r.withCtx(ctx)
	if db == nil {
		return fmt.Errorf("repo db is nil")
	}
	return db.Create(s).Error
}

func (r *SegmentRepo) List(ctx context.Context) ([]Segment, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var out []Segment
	if err := db.Order(listOrder).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *SegmentRepo) FindByID(ctx context.Context, id string) (*Segment, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var s Segment
	if err := db.Where("id = ?", id).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SegmentRepo) Save(ctx context.Context, s *Segment) error {
	db := r.withCtx(ctx)
	if db == nil {
		return fmt.Errorf("repo db is nil")
	}
	return db.Save(s).Error
}

func (r *SegmentRepo) Exists(ctx context.Context, id string) (bool, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return false, fmt.Errorf("repo db is nil")
	}
	var count int64
	if err := db.Model(&Segment{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// DeleteCascade 在单个事务里删除 segment 及引用它的全部 vehicle。
// 先删子后删父，保证并发读不会看到指向已删父行的 vehicle。
func (r *SegmentRepo) DeleteCascade(ctx context.Context, id string) error {
	db := r.withCtx(ctx)
	if db == nil {
		return fmt.Errorf("repo db is nil")
	}
	return db.Transaction(func(tx *gorm.DB) error {
		var s Segment
		if err := tx.Where("id = ?", id).First(&s).Error; err != nil {
			return err
		}
		if err := tx.Where("segment_id = ?", id).Delete(&Vehicle{}).Error; err != nil {
			return err
		}
		return tx.Delete(&s).Error
	})
}

// BrandRepo brands 表仓储
type BrandRepo struct {
	db *gorm.DB
}

func NewBrandRepo(db *gorm.DB) *BrandRepo {
	return &BrandRepo{db: db}
}

func (r *BrandRepo) withCtx(ctx context.Context) *gorm.DB {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.WithContext(ctx)
}

func (r *BrandRepo) Create(ctx context.Context, b *Brand) error {
	db := r.withCtx(ctx)
	if db == nil {
		return fmt.Errorf("repo db is nil")
	}
	return db.Create(b).Error
}

func (r *BrandRepo) List(ctx context.Context) ([]Brand, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var out []Brand
	if err := db.Order(listOrder).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *BrandRepo) FindByID(ctx context.Context, id string) (*Brand, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var b Brand
	if err := db.Where("id = ?", id).First(&b).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *BrandRepo) Save(ctx context.Context, b *Brand) error {
	db := r.withCtx(ctx)
	if db == nil {
		return fmt.Errorf("repo db is nil")
	}
	return db.Save(b).Error
}

func (r *BrandRepo) Exists(ctx context.Context, id string) (bool, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return false, fmt.Errorf("repo db is nil")
	}
	var count int64
	if err := db.Model(&Brand{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// DeleteCascade 同 SegmentRepo.DeleteCascade，针对 brand 外键。
func (r *BrandRepo) DeleteCascade(ctx context.Context, id string) error {
	db := r.withCtx(ctx)
	if db == nil {
		return fmt.Errorf("repo db is nil")
	}
	return db.Transaction(func(tx *gorm.DB) error {
		var b Brand
		if err := tx.Where("id = ?", id).First(&b).Error; err != nil {
			return err
		}
		if err := tx.Where("brand_id = ?", id).Delete(&Vehicle{}).Error; err != nil {
			return err
		}
		return tx.Delete(&b).Error
	})
}

// VehicleRepo vehicles 表仓储
type VehicleRepo struct {
	db *gorm.DB
}

func NewVehicleRepo(db *gorm.DB) *VehicleRepo {
	return &VehicleRepo{db: db}
}

func (r *VehicleRepo) withCtx(ctx context.Context) *gorm.DB {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.WithContext(ctx)
}

func (r *VehicleRepo) Create(ctx context.Context, v *Vehicle) error {
	db := r.withCtx(ctx)
	if db == nil {
		return fmt.Errorf("repo db is nil")
	}
	return db.Omit("Segment", "Brand").Create(v).Error
}

func (r *VehicleRepo) List(ctx context.Context) ([]Vehicle, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var out []Vehicle
	if err := db.Preload("Segment").Preload("Brand").Order(listOrder).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *VehicleRepo) FindByID(ctx context.Context, id string) (*Vehicle, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var v Vehicle
	if err := db.Preload("Segment").Preload("Brand").Where("id = ?", id).First(&v).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *VehicleRepo) Save(ctx context.Context, v *Vehicle) error {
	db := r.withCtx(ctx)
	if db == nil {
		return fmt.Errorf("repo db is nil")
	}
	return db.Omit("Segment", "Brand").Save(v).Error
}

func (r *VehicleRepo) Delete(ctx context.Context, id string) error {
	db := r.withCtx(ctx)
	if db == nil {
		return fmt.Errorf("repo db is nil")
	}
	return db.Transaction(func(tx *gorm.DB) error {
		var v Vehicle
		if err := tx.Where("id = ?", id).First(&v).Error; err != nil {
			return err
		}
		return tx.Delete(&v).Error
	})
}
