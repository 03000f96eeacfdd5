package catalog

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/VehicleVault/VehicleVault/internal/common/server"
)

// 价格约束：总计最多 6 位数字，其中小数 2 位（即整数部分最多 4 位）。
const (
	priceMaxIntegerDigits = 4
	priceDecimalPlaces    = 2
)

// Vehicle 是 vehicles 表的 GORM 模型。
// owner 在创建时取自鉴权上下文，之后不可变；segment/brand 必须指向既有行。
type Vehicle struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	VehicleName string    `gorm:"size:100;not null" json:"vehicle_name"`
	ReleaseYear int       `gorm:"not null" json:"release_year"`
	Price       string    `gorm:"type:decimal(6,2);not null" json:"price"`
	SegmentID   string    `gorm:"index;size:36;not null" json:"segment"`
	BrandID     string    `gorm:"index;size:36;not null" json:"brand"`
	OwnerID     string    `gorm:"index;size:36;not null" json:"-"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"-"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"-"`

	Segment Segment `gorm:"foreignKey:SegmentID" json:"-"`
	Brand   Brand   `gorm:"foreignKey:BrandID" json:"-"`
}

// priceField 同时接受 JSON 数字与字符串两种写法的价格。
type priceField string

func (p *priceField) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if strings.HasPrefix(s, `"`) {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*p = priceField(strings.TrimSpace(v))
		return nil
	}
	*p = priceField(s)
	return nil
}

type vehiclePayload struct {
	VehicleName *string     `json:"vehicle_name"`
	ReleaseYear *int        `json:"release_year"`
	Price       *priceField `json:"price"`
	Segment     *string     `json:"segment"`
	Brand       *string     `json:"brand"`

	// owner 只读：客户端给了也不采纳
	Owner *string `json:"owner"`
}

// vehicleFields 校验通过后的规范化字段集（nil 表示未提供，仅 PATCH 下合法）。
type vehicleFields struct {
	VehicleName *string
	ReleaseYear *int
	Price       *string
	SegmentID   *string
	BrandID     *string
}

// validateVehicle 校验 vehicle 字段集（全有或全无，汇总每个字段的错误）。
// segment/brand 的存在性由调用方结合仓储检查后并入同一错误集。
func validateVehicle(p vehiclePayload, required bool) (vehicleFields, server.FieldErrors) {
	var out vehicleFields
	fe := server.FieldErrors{}

	if p.VehicleName == nil {
		if required {
			fe.Add("vehicle_name", "This field is required.")
		}
	} else {
		v := strings.TrimSpace(*p.VehicleName)
		switch {
		case v == "":
			fe.Add("vehicle_name", "This field may not be blank.")
		case len(v) > maxNameLength:
			fe.Add("vehicle_name", "Ensure this field has no more than 100 characters.")
		default:
			out.VehicleName = &v
		}
	}

	if p.ReleaseYear == nil {
		if required {
			fe.Add("release_year", "This field is required.")
		}
	} else {
		y := *p.ReleaseYear
		out.ReleaseYear = &y
	}

	if p.Price == nil {
		if required {
			fe.Add("price", "This field is required.")
		}
	} else {
		normalized, msg := normalizePrice(string(*p.Price))
		if msg != "" {
			fe.Add("price", msg)
		} else {
			out.Price = &normalized
		}
	}

	if p.Segment == nil {
		if required {
			fe.Add("segment", "This field is required.")
		}
	} else {
		v := strings.TrimSpace(*p.Segment)
		if v == "" {
			fe.Add("segment", "This field may not be null.")
		} else {
			out.SegmentID = &v
		}
	}

	if p.Brand == nil {
		if required {
			fe.Add("brand", "This field is required.")
		}
	} else {
		v := strings.TrimSpace(*p.Brand)
		if v == "" {
			fe.Add("brand", "This field may not be null.")
		} else {
			out.BrandID = &v
		}
	}

	return out, fe
}

// normalizePrice 把价格归一为 "整数部分.两位小数" 的十进制字符串。
// 返回的第二个值非空时为字段错误信息。
func normalizePrice(raw string) (string, string) {
	if raw == "" {
		return "", "A valid number is required."
	}

	intPart, fracPart, hasFrac := strings.Cut(raw, ".")
	if intPart == "" || !isDigits(intPart) {
		return "", "A valid number is required."
	}
	if hasFrac && (fracPart == "" || !isDigits(fracPart)) {
		return "", "A valid number is required."
	}

	if len(fracPart) > priceDecimalPlaces {
		return "", "Ensure that there are no more than 2 decimal places."
	}

	// 去掉前导零后计数（至少保留一位）
	trimmed := strings.TrimLeft(intPart, "0")
	if trimmed == "" {
		trimmed = "0"
	}
	if len(trimmed) > priceMaxIntegerDigits {
		return "", "Ensure that there are no more than 4 digits before the decimal point."
	}

	for len(fracPart) < priceDecimalPlaces {
		fracPart += "0"
	}
	return trimmed + "." + fracPart, ""
}

func isDigits(s string) bool {
	for _, ch := range s {
		if ch < '0' || ch > '9' {
			return false
		}
	}
	return len(s) > 0
}

// vehicleResponse 读表示：外键 id 之外附带冗余的 segment_name / brand_name。
type vehicleResponse struct {
	ID          string `json:"id"`
	VehicleName string `json:"vehicle_name"`
	ReleaseYear int    `json:"release_year"`
	Price       string `json:"price"`
	SegmentID   string `json:"segment"`
	BrandID     string `json:"brand"`
	SegmentName string `json:"segment_name"`
	BrandName   string `json:"brand_name"`
}

func toVehicleResponse(v *Vehicle) vehicleResponse {
	return vehicleResponse{
		ID:          v.ID,
		VehicleName: v.VehicleName,
		ReleaseYear: v.ReleaseYear,
		Price:       v.Price,
		SegmentID:   v.SegmentID,
		BrandID:     v.BrandID,
		SegmentName: v.Segment.SegmentName,
		BrandName:   v.Brand.BrandName,
	}
}
