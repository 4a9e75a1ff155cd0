package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/annel0/cavegen/internal/layout"
	"github.com/annel0/cavegen/internal/storage"
	"github.com/annel0/cavegen/internal/sublevel"
	"github.com/gin-gonic/gin"
)

// SublevelSummary краткое описание подуровня для списка
type SublevelSummary struct {
	Name          string   `json:"name"`
	MaxUnits      int      `json:"max_units"`
	Units         int      `json:"units"`
	RequiredUnits []string `json:"required_units,omitempty"`
	Exit          bool     `json:"exit"`
}

// LayoutResponse раскладка с производными значениями
type LayoutResponse struct {
	Layout      *layout.Layout `json:"layout"`
	Slug        string         `json:"slug"`
	ShareCode   string         `json:"share_code"`
	Fingerprint string         `json:"fingerprint"`
	Cached      bool           `json:"cached"`
}

// FailureResponse данные о неудачной генерации
type FailureResponse struct {
	Sublevel string                       `json:"sublevel"`
	Seed     uint32                       `json:"seed"`
	Attempts int                          `json:"attempts"`
	Reason   layout.FailureReason         `json:"reason"`
	Reasons  map[layout.FailureReason]int `json:"reasons"`
}

// ShareResponse расшифрованный код
type ShareResponse struct {
	Slug     string          `json:"slug"`
	Sublevel string          `json:"sublevel"`
	Seed     uint32          `json:"seed"`
	Verified bool            `json:"verified"` // слаг совпал с повторной генерацией
	Layout   *LayoutResponse `json:"layout,omitempty"`
}

func summarize(spec *sublevel.Spec) SublevelSummary {
	return SublevelSummary{
		Name:          spec.Name,
		MaxUnits:      spec.MaxUnits,
		Units:         len(spec.Units),
		RequiredUnits: spec.RequiredUnits,
		Exit:          spec.Exit,
	}
}

// parseSeed принимает десятичный или 0x-шестнадцатеричный сид
func parseSeed(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("неверный сид %q", s)
	}
	return uint32(v), nil
}

func (rs *RestServer) lookupSublevel(c *gin.Context) (*sublevel.Spec, bool) {
	name := c.Param("sublevel")
	spec, ok := rs.catalog.Get(name)
	if !ok {
		respondError(c, http.StatusNotFound, fmt.Sprintf("Подуровень %s не найден", name))
		return nil, false
	}
	return spec, true
}

// handleSublevels возвращает список подуровней
func (rs *RestServer) handleSublevels(c *gin.Context) {
	names := rs.catalog.Names()
	list := make([]SublevelSummary, 0, len(names))
	for _, name := range names {
		spec, _ := rs.catalog.Get(name)
		list = append(list, summarize(spec))
	}
	respondOK(c, http.StatusOK, "Подуровни", list)
}

// handleSublevel возвращает полное описание подуровня
func (rs *RestServer) handleSublevel(c *gin.Context) {
	spec, ok := rs.lookupSublevel(c)
	if !ok {
		return
	}
	respondOK(c, http.StatusOK, "Подуровень", spec)
}

// handleLayout отдаёт раскладку из хранилища или строит её
func (rs *RestServer) handleLayout(c *gin.Context) {
	spec, ok := rs.lookupSublevel(c)
	if !ok {
		return
	}
	seed, err := parseSeed(c.Param("seed"))
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	resp, failure, err := rs.resolveLayout(c, spec, seed)
	switch {
	case failure != nil:
		rs.metrics.genFailure.Add(1)
		c.JSON(http.StatusUnprocessableEntity, GenericResponse{
			Success: false,
			Message: failure.Error(),
			Data: FailureResponse{
				Sublevel: failure.Sublevel,
				Seed:     failure.Seed,
				Attempts: failure.Attempts,
				Reason:   failure.Reason,
				Reasons:  failure.Reasons,
			},
		})
	case err != nil:
		rs.logger.Error("❌ Раскладка %s/%d: %v", spec.Name, seed, err)
		_ = c.Error(err)
		respondError(c, http.StatusInternalServerError, "Внутренняя ошибка сервера")
	default:
		respondOK(c, http.StatusOK, "Раскладка", resp)
	}
}

// resolveLayout сначала смотрит в хранилище, затем генерирует и сохраняет
func (rs *RestServer) resolveLayout(c *gin.Context, spec *sublevel.Spec, seed uint32) (*LayoutResponse, *layout.GenerationFailure, error) {
	ctx := c.Request.Context()

	rec, found, err := rs.repo.Load(ctx, spec.Name, seed)
	if err != nil {
		rs.logger.Warn("⚠️ Хранилище недоступно, генерирую заново: %v", err)
	}
	if found {
		l, err := rec.DecodeLayout()
		if err == nil {
			rs.metrics.cacheHits.Add(1)
			return &LayoutResponse{
				Layout:      l,
				Slug:        rec.Slug,
				ShareCode:   rec.ShareCode,
				Fingerprint: rec.FingerprintHex(),
				Cached:      true,
			}, nil, nil
		}
		rs.logger.Warn("⚠️ Повреждённая запись %s: %v", rec.Key(), err)
	}

	l, err := layout.Generate(seed, spec)
	if err != nil {
		var failure *layout.GenerationFailure
		if errors.As(err, &failure) {
			return nil, failure, nil
		}
		return nil, nil, err
	}
	rs.metrics.generated.Add(1)

	rec, err = storage.NewRecord(l)
	if err != nil {
		return nil, nil, err
	}
	if err := rs.repo.Save(ctx, rec); err != nil {
		rs.logger.Warn("⚠️ Не удалось сохранить %s: %v", rec.Key(), err)
	}

	return &LayoutResponse{
		Layout:      l,
		Slug:        rec.Slug,
		ShareCode:   rec.ShareCode,
		Fingerprint: rec.FingerprintHex(),
	}, nil, nil
}

// handleListLayouts перечисляет сохранённые раскладки подуровня
func (rs *RestServer) handleListLayouts(c *gin.Context) {
	spec, ok := rs.lookupSublevel(c)
	if !ok {
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit < 1 || limit > 1000 {
		respondError(c, http.StatusBadRequest, "limit должен быть в диапазоне 1..1000")
		return
	}

	recs, err := rs.repo.List(c.Request.Context(), spec.Name, limit)
	if err != nil {
		_ = c.Error(err)
		respondError(c, http.StatusInternalServerError, "Ошибка хранилища")
		return
	}

	type item struct {
		Seed        uint32 `json:"seed"`
		Slug        string `json:"slug"`
		ShareCode   string `json:"share_code"`
		Fingerprint string `json:"fingerprint"`
	}
	items := make([]item, 0, len(recs))
	for _, r := range recs {
		items = append(items, item{Seed: r.Seed, Slug: r.Slug, ShareCode: r.ShareCode, Fingerprint: r.FingerprintHex()})
	}
	respondOK(c, http.StatusOK, "Сохранённые раскладки", items)
}

// handleShare расшифровывает код и сверяет его с повторной генерацией
func (rs *RestServer) handleShare(c *gin.Context) {
	slug, err := layout.ParseShareCode(c.Param("code"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "Неверный код")
		return
	}
	name, seed, err := layout.ParseSlugHeader(slug)
	if err != nil {
		respondError(c, http.StatusBadRequest, "Неверный слаг в коде")
		return
	}

	resp := ShareResponse{Slug: slug, Sublevel: name, Seed: seed}
	if spec, ok := rs.catalog.Get(name); ok {
		lr, failure, err := rs.resolveLayout(c, spec, seed)
		if err == nil && failure == nil {
			resp.Verified = lr.Slug == slug
			resp.Layout = lr
		}
	}
	respondOK(c, http.StatusOK, "Код расшифрован", resp)
}
