package http

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Spok95/iteach/internal/auth"
	"github.com/Spok95/iteach/internal/domain/exercises"
	"github.com/Spok95/iteach/internal/domain/subscriptions"
	"github.com/Spok95/iteach/internal/domain/users"
	"github.com/Spok95/iteach/internal/infra/sheets"
	"github.com/gin-gonic/gin"
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	maxImportSize   = 10 << 20
)

type handlers struct {
	log       *slog.Logger
	ledger    *subscriptions.Ledger
	profiles  Profiles
	exercises *exercises.Service
	checkout  Checkout
}

func actorOf(c *gin.Context) exercises.Actor {
	id, _ := auth.FromContext(c)
	return exercises.Actor{UserID: id.UserID, IsAdmin: id.IsAdmin}
}

func (h *handlers) plans(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"plans": subscriptions.Plans()})
}

// --- профиль и подписка ---

func (h *handlers) getProfile(c *gin.Context) {
	id, _ := auth.FromContext(c)
	p, err := h.profiles.Get(c.Request.Context(), id.UserID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

type profileRequest struct {
	FirstName string     `json:"firstName" binding:"required"`
	LastName  string     `json:"lastName" binding:"required"`
	Role      users.Role `json:"role"`
	Subject   string     `json:"subject"`
	Level     string     `json:"level"`
	Interests []string   `json:"interests"`
}

func (h *handlers) putProfile(c *gin.Context) {
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "firstName and lastName are required")
		return
	}
	id, _ := auth.FromContext(c)
	p, err := h.profiles.Upsert(c.Request.Context(), users.Profile{
		ID:        id.UserID,
		Email:     id.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      req.Role,
		Subject:   req.Subject,
		Level:     req.Level,
		Interests: req.Interests,
	})
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *handlers) usage(c *gin.Context) {
	id, _ := auth.FromContext(c)
	u, err := h.ledger.Usage(c.Request.Context(), id.UserID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *handlers) checkoutSession(c *gin.Context) {
	var req struct {
		Tier subscriptions.Tier `json:"tier" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "tier is required")
		return
	}
	id, _ := auth.FromContext(c)
	url, err := h.checkout.CheckoutURL(c.Request.Context(), id.UserID, id.Email, req.Tier)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

func (h *handlers) switchToFree(c *gin.Context) {
	id, _ := auth.FromContext(c)
	s, err := h.ledger.ApplyPlanChange(c.Request.Context(), id.UserID, subscriptions.TierFree)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// --- упражнения ---

func filterFromQuery(c *gin.Context) (exercises.Filter, exercises.Page) {
	f := exercises.Filter{
		Subject:    c.Query("subject"),
		Level:      c.Query("level"),
		Type:       exercises.Type(c.Query("type")),
		Difficulty: exercises.Difficulty(c.Query("difficulty")),
		AuthorID:   c.Query("author"),
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))
	return f, exercises.Page{Limit: limit, Offset: offset}
}

func (h *handlers) listExercises(c *gin.Context) {
	f, p := filterFromQuery(c)
	list, err := h.exercises.List(c.Request.Context(), f, p)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"exercises": list})
}

func (h *handlers) myExercises(c *gin.Context) {
	list, err := h.exercises.ListByAuthor(c.Request.Context(), actorOf(c).UserID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"exercises": list})
}

func (h *handlers) stats(c *gin.Context) {
	st, err := h.exercises.Stats(c.Request.Context(), actorOf(c).UserID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *handlers) generateExercise(c *gin.Context) {
	var f exercises.Form
	if err := c.ShouldBindJSON(&f); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	e, err := h.exercises.Generate(c.Request.Context(), actorOf(c), f)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, e)
}

type createRequest struct {
	exercises.Form
	Content string `json:"content"`
}

func (h *handlers) createExercise(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	e, err := h.exercises.Create(c.Request.Context(), actorOf(c), req.Form, req.Content)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, e)
}

func (h *handlers) getExercise(c *gin.Context) {
	e, err := h.exercises.Get(c.Request.Context(), actorOf(c), c.Param("id"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

func (h *handlers) updateExercise(c *gin.Context) {
	var p exercises.Patch
	if err := c.ShouldBindJSON(&p); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	e, err := h.exercises.Update(c.Request.Context(), actorOf(c), c.Param("id"), p)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

func (h *handlers) deleteExercise(c *gin.Context) {
	if err := h.exercises.Delete(c.Request.Context(), actorOf(c), c.Param("id")); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) toggleLike(c *gin.Context) {
	likes, err := h.exercises.ToggleLike(c.Request.Context(), actorOf(c), c.Param("id"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"likes": likes})
}

type commentRequest struct {
	Content string `json:"content" binding:"required"`
}

func (h *handlers) addComment(c *gin.Context) {
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "content is required")
		return
	}
	cm, err := h.exercises.AddComment(c.Request.Context(), actorOf(c), c.Param("id"), req.Content)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, cm)
}

func (h *handlers) editComment(c *gin.Context) {
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "content is required")
		return
	}
	cm, err := h.exercises.EditComment(c.Request.Context(), actorOf(c), c.Param("id"), c.Param("commentID"), req.Content)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, cm)
}

func (h *handlers) deleteComment(c *gin.Context) {
	if err := h.exercises.DeleteComment(c.Request.Context(), actorOf(c), c.Param("id"), c.Param("commentID")); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) report(c *gin.Context) {
	var req struct {
		Reason  exercises.ReportReason `json:"reason" binding:"required"`
		Details string                 `json:"details"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "reason is required")
		return
	}
	r, err := h.exercises.Report(c.Request.Context(), actorOf(c), c.Param("id"), req.Reason, req.Details)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

// --- админка ---

func (h *handlers) reported(c *gin.Context) {
	list, err := h.exercises.ListReported(c.Request.Context(), actorOf(c))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"exercises": list})
}

func (h *handlers) setReportStatus(c *gin.Context) {
	var req struct {
		Status exercises.ReportStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "status is required")
		return
	}
	r, err := h.exercises.SetReportStatus(c.Request.Context(), actorOf(c), c.Param("id"), c.Param("reportID"), req.Status)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *handlers) bulkDelete(c *gin.Context) {
	var req struct {
		AuthorNames []string `json:"authorNames" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "authorNames is required")
		return
	}
	n, err := h.exercises.DeleteByAuthors(c.Request.Context(), actorOf(c), req.AuthorNames)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}

func (h *handlers) listUsers(c *gin.Context) {
	list, err := h.profiles.ListWithExercises(c.Request.Context())
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": list})
}

func (h *handlers) globalStats(c *gin.Context) {
	st, err := h.exercises.GlobalStats(c.Request.Context(), actorOf(c))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *handlers) importExercises(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "file is required")
		return
	}
	if fh.Size > maxImportSize {
		badRequest(c, "file is too large")
		return
	}
	f, err := fh.Open()
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	defer f.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(f, maxImportSize)); err != nil {
		writeError(c, h.log, err)
		return
	}
	res, err := sheets.Import(buf.Bytes())
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	n := 0
	if len(res.Exercises) > 0 {
		n, err = h.exercises.Import(c.Request.Context(), actorOf(c), res.Exercises)
		if err != nil {
			writeError(c, h.log, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"imported": n, "errors": res.Errors})
}

func (h *handlers) exportExercises(c *gin.Context) {
	list, err := h.exercises.Export(c.Request.Context(), actorOf(c))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	data, err := sheets.Export(list)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	name := "exercices-" + time.Now().Format("2006-01-02") + ".xlsx"
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, xlsxContentType, data)
}
