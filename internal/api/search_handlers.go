package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/annel0/cavegen/internal/auth"
	"github.com/annel0/cavegen/internal/eventbus"
	"github.com/annel0/cavegen/internal/search"
	"github.com/gin-gonic/gin"
)

// handleSearchSubmit принимает задание поиска
func (rs *RestServer) handleSearchSubmit(c *gin.Context) {
	var q search.Query
	if err := c.ShouldBindJSON(&q); err != nil {
		respondError(c, http.StatusBadRequest, "Неверный формат запроса")
		return
	}

	spec, ok := rs.catalog.Get(q.Sublevel)
	if !ok {
		respondError(c, http.StatusNotFound, fmt.Sprintf("Подуровень %s не найден", q.Sublevel))
		return
	}

	claims := claimsFrom(c)
	job, err := rs.jobs.Submit(spec, q, claims.Operator)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := eventbus.Emit(c.Request.Context(), "api", eventbus.EventSearchStarted, job); err != nil {
		rs.logger.Warn("⚠️ Событие %s: %v", eventbus.EventSearchStarted, err)
	}
	rs.logger.Info("🔎 Оператор %s запустил поиск %s (%s, %d сидов)", claims.Operator, job.ID, q.Sublevel, job.Query.Count)

	respondOK(c, http.StatusAccepted, "Поиск запущен", job)
}

// handleSearchGet возвращает состояние задания
func (rs *RestServer) handleSearchGet(c *gin.Context) {
	job, err := rs.jobs.Get(c.Param("id"))
	if errors.Is(err, search.ErrJobNotFound) {
		respondError(c, http.StatusNotFound, "Задание не найдено")
		return
	}
	respondOK(c, http.StatusOK, string(job.Status), job)
}

// handleSearchCancel отменяет задание. Чужие задания: только admin.
func (rs *RestServer) handleSearchCancel(c *gin.Context) {
	id := c.Param("id")
	job, err := rs.jobs.Get(id)
	if errors.Is(err, search.ErrJobNotFound) {
		respondError(c, http.StatusNotFound, "Задание не найдено")
		return
	}

	claims := claimsFrom(c)
	if job.SubmittedBy != claims.Operator && !claims.HasScope(auth.ScopeAdmin) {
		respondError(c, http.StatusForbidden, "Недостаточно прав доступа")
		return
	}

	if err := rs.jobs.Cancel(id); err != nil {
		respondError(c, http.StatusNotFound, "Задание не найдено")
		return
	}
	respondOK(c, http.StatusOK, "Отмена запрошена", gin.H{"id": id})
}
