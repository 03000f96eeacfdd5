package catalog

import (
	"strings"
	"time"

	"github.com/VehicleVault/VehicleVault/internal/common/server"
)

const maxNameLength = 100

// Segment 是 segments 表的 GORM 模型（车型级别，如 SUV / Sedan）。
// 删除 Segment 会级联删除引用它的全部 Vehicle。
type Segment struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	SegmentName string    `gorm:"size:100;not null" json:"segment_name"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"-"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"-"`
}

type segmentPayload struct {
	SegmentName *string `json:"segment_name"`
}

// validateSegment 校验 segment 字段集。
// required 为 true 时（create / PUT）缺字段按错误处理；PATCH 下缺字段表示保持原值。
func validateSegment(p segmentPayload, required bool) (name *string, fe server.FieldErrors) {
	fe = server.FieldErrors{}

	if p.SegmentName == nil {
		if required {
			fe.Add("segment_name", "This field is required.")
		}
		return nil, fe
	}

	v := strings.TrimSpace(*p.SegmentName)
	if v == "" {
		fe.Add("segment_name", "This field may not be blank.")
		return nil, fe
	}
	if len(v) > maxNameLength {
		fe.Add("segment_name", "Ensure this field has no more than 100 characters.")
		return nil, fe
	}
	return &v, fe
}
