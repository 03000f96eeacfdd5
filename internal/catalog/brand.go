package catalog

import (
	"strings"
	"time"

	"github.com/VehicleVault/VehicleVault/internal/common/server"
)

// Brand 是 brands 表的 GORM 模型（品牌，如 Toyota / Tesla）。
// 删除 Brand 会级联删除引用它的全部 Vehicle。
type Brand struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	BrandName string    `gorm:"size:100;not null" json:"brand_name"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"-"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"-"`
}

type brandPayload struct {
	BrandName *string `json:"brand_name"`
}

// validateBrand 校验 brand 字段集（规则与 segment 相同）。
func validateBrand(p brandPayload, required bool) (name *string, fe server.FieldErrors) {
	fe = server.FieldErrors{}

	if p.BrandName == nil {
		if required {
			fe.Add("brand_name", "This field is required.")
		}
		return nil, fe
	}

	v := strings.TrimSpace(*p.BrandName)
	if v == "" {
		fe.Add("brand_name", "This field may not be blank.")
		return nil, fe
	}
	if len(v) > maxNameLength {
		fe.Add("brand_name", "Ensure this field has no more than 100 characters.")
		return nil, fe
	}
	return &v, fe
}
