package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"opguide/internal/domain"
	"opguide/internal/opguide"
	"opguide/internal/session"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 100
)

type errorResponse struct {
	Error string `json:"error"`
}

type createSessionResponse struct {
	ID string `json:"id"`
}

type fetchResponse struct {
	Count int      `json:"count"`
	Types []string `json:"types"`
}

type resourcesResponse struct {
	Resources []domain.Resource `json:"resources"`
	Types     []string          `json:"types"`
	Selected  []string          `json:"selected"`
}

type selectionRequest struct {
	Types []string `json:"types"`
}

func (api *API) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (api *API) CreateSession(c *gin.Context) {
	sess := api.sessions.Create()

	c.JSON(http.StatusCreated, createSessionResponse{ID: sess.Key()})
}

func (api *API) DeleteSession(c *gin.Context) {
	if !api.sessions.Delete(c.Param("id")) {
		abort(c, http.StatusNotFound, session.ErrSessionNotFound)
		return
	}

	c.Status(http.StatusNoContent)
}

func (api *API) Fetch(c *gin.Context) {
	sess, ok := api.session(c)
	if !ok {
		return
	}

	resources, err := api.service.Fetch(c.Request.Context(), sess)
	if err != nil {
		api.log.ErrorContext(c.Request.Context(), "Failed to fetch resources",
			"error", err,
			"sessionKey", sess.Key())

		abort(c, http.StatusBadGateway, err)
		return
	}

	c.JSON(http.StatusOK, fetchResponse{
		Count: len(resources),
		Types: nonNil(opguide.DistinctTypes(resources)),
	})
}

func (api *API) Resources(c *gin.Context) {
	sess, ok := api.session(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, resourcesResponse{
		Resources: nonNil(sess.Resources()),
		Types:     nonNil(sess.Types()),
		Selected:  nonNil(sess.Selected()),
	})
}

func (api *API) Select(c *gin.Context) {
	sess, ok := api.session(c)
	if !ok {
		return
	}

	var req selectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, fmt.Errorf("bind request: %w", err))
		return
	}

	if err := sess.Select(req.Types); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (api *API) Summarize(c *gin.Context) {
	sess, ok := api.session(c)
	if !ok {
		return
	}

	summaries, err := api.service.Summarize(c.Request.Context(), sess)
	if err != nil {
		abort(c, statusOf(err), err)
		return
	}

	c.JSON(http.StatusOK, summaries)
}

func (api *API) Summaries(c *gin.Context) {
	sess, ok := api.session(c)
	if !ok {
		return
	}

	summaries := sess.Summaries()
	if len(summaries) == 0 {
		abort(c, http.StatusNotFound, opguide.ErrNotSummarized)
		return
	}

	c.JSON(http.StatusOK, summaries)
}

func (api *API) SummarizeResources(c *gin.Context) {
	sess, ok := api.session(c)
	if !ok {
		return
	}

	summaries, err := api.service.SummarizeResources(c.Request.Context(), sess)
	if err != nil {
		abort(c, statusOf(err), err)
		return
	}

	c.JSON(http.StatusOK, nonNil(summaries))
}

func (api *API) OpGuide(c *gin.Context) {
	sess, ok := api.session(c)
	if !ok {
		return
	}

	doc, err := api.service.Document(c.Request.Context(), sess)
	if err != nil {
		abort(c, statusOf(err), err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.FileName))
	c.Data(http.StatusOK, doc.ContentType, doc.Data)
}

func (api *API) Runs(c *gin.Context) {
	sess, ok := api.session(c)
	if !ok {
		return
	}

	limit := defaultRunsLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxRunsLimit {
			abort(c, http.StatusBadRequest, fmt.Errorf("limit must be between 1 and %d", maxRunsLimit))
			return
		}
		limit = n
	}

	if api.runs == nil {
		c.JSON(http.StatusOK, []domain.Run{})
		return
	}

	runs, err := api.runs.GetRecentRuns(c.Request.Context(), sess.Key(), limit)
	if err != nil {
		api.log.ErrorContext(c.Request.Context(), "Failed to get recent runs",
			"error", err,
			"sessionKey", sess.Key())

		abort(c, http.StatusInternalServerError, errors.New("failed to get runs"))
		return
	}

	c.JSON(http.StatusOK, nonNil(runs))
}

func (api *API) session(c *gin.Context) (*session.Session, bool) {
	sess, ok := api.sessions.Get(c.Param("id"))
	if !ok {
		abort(c, http.StatusNotFound, session.ErrSessionNotFound)
		return nil, false
	}

	return sess, true
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, opguide.ErrNoResources),
		errors.Is(err, opguide.ErrNoTypesSelected):
		return http.StatusBadRequest
	case errors.Is(err, opguide.ErrStaleSelection),
		errors.Is(err, opguide.ErrNotSummarized):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func abort(c *gin.Context, status int, err error) {
	c.AbortWithStatusJSON(status, errorResponse{Error: err.Error()})
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
