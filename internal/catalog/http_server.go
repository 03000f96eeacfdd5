package catalog

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/VehicleVault/VehicleVault/internal/common/logger"
	"github.com/VehicleVault/VehicleVault/internal/common/server"
	"github.com/go-chi/chi"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// HTTPServer segment / brand / vehicle 三类资源的 CRUD 端点。
// 所有端点都要求已鉴权（由外层鉴权中间件保证）。
type HTTPServer struct {
	log      logger.Logger
	segments *SegmentRepo
	brands   *BrandRepo
	vehicles *VehicleRepo
}

func NewHTTPServer(db *gorm.DB, log logger.Logger) *HTTPServer {
	return &HTTPServer{
		log:      log,
		segments: NewSegmentRepo(db),
		brands:   NewBrandRepo(db),
		vehicles: NewVehicleRepo(db),
	}
}

// Register 注册目录资源端点到路由表（启动时构建一次）。
func (s *HTTPServer) Register(r chi.Router) {
	r.Get("/segments/", s.handleListSegments)
	r.Post("/segments/", s.handleCreateSegment)
	r.Get("/segments/{id}/", s.handleRetrieveSegment)
	r.Put("/segments/{id}/", s.handleUpdateSegment)
	r.Patch("/segments/{id}/", s.handlePartialUpdateSegment)
	r.Delete("/segments/{id}/", s.handleDeleteSegment)

	r.Get("/brands/", s.handleListBrands)
	r.Post("/brands/", s.handleCreateBrand)
	r.Get("/brands/{id}/", s.handleRetrieveBrand)
	r.Put("/brands/{id}/", s.handleUpdateBrand)
	r.Patch("/brands/{id}/", s.handlePartialUpdateBrand)
	r.Delete("/brands/{id}/", s.handleDeleteBrand)

	r.Get("/vehicles/", s.handleListVehicles)
	r.Post("/vehicles/", s.handleCreateVehicle)
	r.Get("/vehicles/{id}/", s.handleRetrieveVehicle)
	r.Put("/vehicles/{id}/", s.handleUpdateVehicle)
	r.Patch("/vehicles/{id}/", s.handlePartialUpdateVehicle)
	r.Delete("/vehicles/{id}/", s.handleDeleteVehicle)
}

// ---- segments ----

func (s *HTTPServer) handleListSegments(w http.ResponseWriter, r *http.Request) {
	out, err := s.segments.List(r.Context())
	if err != nil {
		s.log.Errorf("list segments failed: %v", err)
		server.InternalError(w)
		return
	}
	if out == nil {
		out = []Segment{}
	}
	server.WriteJSON(w, http.StatusOK, out)
}

func (s *HTTPServer) handleCreateSegment(w http.ResponseWriter, r *http.Request) {
	var payload segmentPayload
	if err := server.DecodeJSON(r, &payload); err != nil {
		server.ParseError(w)
		return
	}
	name, fe := validateSegment(payload, true)
	if !fe.Empty() {
		server.BadRequest(w, fe)
		return
	}

	seg := &Segment{ID: uuid.NewString(), SegmentName: *name}
	if err := s.segments.Create(r.Context(), seg); err != nil {
		s.log.Errorf("create segment failed: %v", err)
		server.InternalError(w)
		return
	}
	server.WriteJSON(w, http.StatusCreated, seg)
}

func (s *HTTPServer) handleRetrieveSegment(w http.ResponseWriter, r *http.Request) {
	seg, err := s.segments.FindByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			server.NotFound(w)
			return
		}
		s.log.Errorf("find segment failed: %v", err)
		server.InternalError(w)
		return
	}
	server.WriteJSON(w, http.StatusOK, seg)
}

func (s *HTTPServer) handleUpdateSegment(w http.ResponseWriter, r *http.Request) {
	s.updateSegment(w, r, true)
}

func (s *HTTPServer) handlePartialUpdateSegment(w http.ResponseWriter, r *http.Request) {
	s.updateSegment(w, r, false)
}

// updateSegment PUT 走全量替换（缺必填字段即失败），PATCH 只改提供的字段。
func (s *HTTPServer) updateSegment(w http.ResponseWriter, r *http.Request, required bool) {
	seg, err := s.segments.FindByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			server.NotFound(w)
			return
		}
		s.log.Errorf("find segment failed: %v", err)
		server.InternalError(w)
		return
	}

	var payload segmentPayload
	if err := server.DecodeJSON(r, &payload); err != nil {
		server.ParseError(w)
		return
	}
	name, fe := validateSegment(payload, required)
	if !fe.Empty() {
		server.BadRequest(w, fe)
		return
	}
	if name != nil {
		seg.SegmentName = *name
	}

	if err := s.segments.Save(r.Context(), seg); err != nil {
		s.log.Errorf("save segment failed: %v", err)
		server.InternalError(w)
		return
	}
	server.WriteJSON(w, http.StatusOK, seg)
}

func (s *HTTPServer) handleDeleteSegment(w http.ResponseWriter, r *http.Request) {
	if err := s.segments.DeleteCascade(r.Context(), chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			server.NotFound(w)
			return
		}
		s.log.Errorf("delete segment failed: %v", err)
		server.InternalError(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- brands ----

func (s *HTTPServer) handleListBrands(w http.ResponseWriter, r *http.Request) {
	out, err := s.brands.List(r.Context())
	if err != nil {
		s.log.Errorf("list brands failed: %v", err)
		server.InternalError(w)
		return
	}
	if out == nil {
		out = []Brand{}
	}
	server.WriteJSON(w, http.StatusOK, out)
}

func (s *HTTPServer) handleCreateBrand(w http.ResponseWriter, r *http.Request) {
	var payload brandPayload
	if err := server.DecodeJSON(r, &payload); err != nil {
		server.ParseError(w)
		return
	}
	name, fe := validateBrand(payload, true)
	if !fe.Empty() {
		server.BadRequest(w, fe)
		return
	}

	b := &Brand{ID: uuid.NewString(), BrandName: *name}
	if err := s.brands.Create(r.Context(), b); err != nil {
		s.log.Errorf("create brand failed: %v", err)
		server.InternalError(w)
		return
	}
	server.WriteJSON(w, http.StatusCreated, b)
}

func (s *HTTPServer) handleRetrieveBrand(w http.ResponseWriter, r *http.Request) {
	b, err := s.brands.FindByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			server.NotFound(w)
			return
		}
		s.log.Errorf("find brand failed: %v", err)
		server.InternalError(w)
		return
	}
	server.WriteJSON(w, http.StatusOK, b)
}

func (s *HTTPServer) handleUpdateBrand(w http.ResponseWriter, r *http.Request) {
	s.updateBrand(w, r, true)
}

func (s *HTTPServer) handlePartialUpdateBrand(w http.ResponseWriter, r *http.Request) {
	s.updateBrand(w, r, false)
}

func (s *HTTPServer) updateBrand(w http.ResponseWriter, r *http.Request, required bool) {
	b, err := s.brands.FindByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			server.NotFound(w)
			return
		}
		s.log.Errorf("find brand failed: %v", err)
		server.InternalError(w)
		return
	}

	var payload brandPayload
	if err := server.DecodeJSON(r, &payload); err != nil {
		server.ParseError(w)
		return
	}
	name, fe := validateBrand(payload, required)
	if !fe.Empty() {
		server.BadRequest(w, fe)
		return
	}
	if name != nil {
		b.BrandName = *name
	}

	if err := s.brands.Save(r.Context(), b); err != nil {
		s.log.Errorf("save brand failed: %v", err)
		server.InternalError(w)
		return
	}
	server.WriteJSON(w, http.StatusOK, b)
}

func (s *HTTPServer) handleDeleteBrand(w http.ResponseWriter, r *http.Request) {
	if err := s.brands.DeleteCascade(r.Context(), chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			server.NotFound(w)
			return
		}
		s.log.Errorf("delete brand failed: %v", err)
		server.InternalError(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- vehicles ----

func (s *HTTPServer) handleListVehicles(w http.ResponseWriter, r *http.Request) {
	vs, err := s.vehicles.List(r.Context())
	if err != nil {
		s.log.Errorf("list vehicles failed: %v", err)
		server.InternalError(w)
		return
	}
	out := make([]vehicleResponse, 0, len(vs))
	for i := range vs {
		out = append(out, toVehicleResponse(&vs[i]))
	}
	server.WriteJSON(w, http.StatusOK, out)
}

// checkVehicleRefs 将不可解析的外键并入字段错误集（属于校验失败，不是服务端错误）。
func (s *HTTPServer) checkVehicleRefs(r *http.Request, f vehicleFields, fe server.FieldErrors) error {
	if f.SegmentID != nil {
		ok, err := s.segments.Exists(r.Context(), *f.SegmentID)
		if err != nil {
			return err
		}
		if !ok {
			fe.Add("segment", fmt.Sprintf("Invalid pk %q - object does not exist.", *f.SegmentID))
		}
	}
	if f.BrandID != nil {
		ok, err := s.brands.Exists(r.Context(), *f.BrandID)
		if err != nil {
			return err
		}
		if !ok {
			fe.Add("brand", fmt.Sprintf("Invalid pk %q - object does not exist.", *f.BrandID))
		}
	}
	return nil
}

func (s *HTTPServer) handleCreateVehicle(w http.ResponseWriter, r *http.Request) {
	ai, ok := server.AuthFromContext(r.Context())
	if !ok || strings.TrimSpace(ai.UserID) == "" {
		server.Unauthenticated(w, "Authentication credentials were not provided.")
		return
	}

	var payload vehiclePayload
	if err := server.DecodeJSON(r, &payload); err != nil {
		server.ParseError(w)
		return
	}
	fields, fe := validateVehicle(payload, true)
	if !fe.Empty() {
		server.BadRequest(w, fe)
		return
	}
	if err := s.checkVehicleRefs(r, fields, fe); err != nil {
		s.log.Errorf("check vehicle refs failed: %v", err)
		server.InternalError(w)
		return
	}
	if !fe.Empty() {
		server.BadRequest(w, fe)
		return
	}

	// owner 永远取自鉴权上下文，负载里的 owner 字段不参与
	v := &Vehicle{
		ID:          uuid.NewString(),
		VehicleName: *fields.VehicleName,
		ReleaseYear: *fields.ReleaseYear,
		Price:       *fields.Price,
		SegmentID:   *fields.SegmentID,
		BrandID:     *fields.BrandID,
		OwnerID:     ai.UserID,
	}
	if err := s.vehicles.Create(r.Context(), v); err != nil {
		s.log.Errorf("create vehicle failed: %v", err)
		server.InternalError(w)
		return
	}

	// 回读以带出冗余的 segment_name / brand_name
	created, err := s.vehicles.FindByID(r.Context(), v.ID)
	if err != nil {
		s.log.Errorf("reload vehicle failed: %v", err)
		server.InternalError(w)
		return
	}
	server.WriteJSON(w, http.StatusCreated, toVehicleResponse(created))
}

func (s *HTTPServer) handleRetrieveVehicle(w http.ResponseWriter, r *http.Request) {
	v, err := s.vehicles.FindByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			server.NotFound(w)
			return
		}
		s.log.Errorf("find vehicle failed: %v", err)
		server.InternalError(w)
		return
	}
	server.WriteJSON(w, http.StatusOK, toVehicleResponse(v))
}

func (s *HTTPServer) handleUpdateVehicle(w http.ResponseWriter, r *http.Request) {
	s.updateVehicle(w, r, true)
}

func (s *HTTPServer) handlePartialUpdateVehicle(w http.ResponseWriter, r *http.Request) {
	s.updateVehicle(w, r, false)
}

// updateVehicle PUT 全量替换 / PATCH 部分更新；owner 不可变。
func (s *HTTPServer) updateVehicle(w http.ResponseWriter, r *http.Request, required bool) {
	v, err := s.vehicles.FindByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			server.NotFound(w)
			return
		}
		s.log.Errorf("find vehicle failed: %v", err)
		server.InternalError(w)
		return
	}

	var payload vehiclePayload
	if err := server.DecodeJSON(r, &payload); err != nil {
		server.ParseError(w)
		return
	}
	fields, fe := validateVehicle(payload, required)
	if !fe.Empty() {
		server.BadRequest(w, fe)
		return
	}
	if err := s.checkVehicleRefs(r, fields, fe); err != nil {
		s.log.Errorf("check vehicle refs failed: %v", err)
		server.InternalError(w)
		return
	}
	if !fe.Empty() {
		server.BadRequest(w, fe)
		return
	}

	if fields.VehicleName != nil {
		v.VehicleName = *fields.VehicleName
	}
	if fields.ReleaseYear != nil {
		v.ReleaseYear = *fields.ReleaseYear
	}
	if fields.Price != nil {
		v.Price = *fields.Price
	}
	if fields.SegmentID != nil {
		v.SegmentID = *fields.SegmentID
	}
	if fields.BrandID != nil {
		v.BrandID = *fields.BrandID
	}

	if err := s.vehicles.Save(r.Context(), v); err != nil {
		s.log.Errorf("save vehicle failed: %v", err)
		server.InternalError(w)
		return
	}

	updated, err := s.vehicles.FindByID(r.Context(), v.ID)
	if err != nil {
		s.log.Errorf("reload vehicle failed: %v", err)
		server.InternalError(w)
		return
	}
	server.WriteJSON(w, http.StatusOK, toVehicleResponse(updated))
}

func (s *HTTPServer) handleDeleteVehicle(w http.ResponseWriter, r *http.Request) {
	if err := s.vehicles.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			server.NotFound(w)
			return
		}
		s.log.Errorf("delete vehicle failed: %v", err)
		server.InternalError(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
