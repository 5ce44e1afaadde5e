// Package devserver is a development backend for the blog and lead REST
// surface. It backs cmd/devbackend and the HTTP tests of the data layer,
// and can be told to fail requests to exercise error paths.
package devserver

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
)

// Operation names used by Fail and Count.
const (
	OpListBlogs  = "blog.list"
	OpGetBlog    = "blog.get"
	OpCreateBlog = "blog.create"
	OpUpdateBlog = "blog.update"
	OpDeleteBlog = "blog.delete"
	OpListLeads  = "lead.list"
	OpCreateLead = "lead.create"
	OpDeleteLead = "lead.delete"
)

type BlogRequest struct {
	Title    string `json:"title" binding:"required,min=2"`
	Excerpt  string `json:"excerpt" binding:"required,min=10"`
	Content  string `json:"content" binding:"required,min=50"`
	ImageURL string `json:"imageUrl" binding:"required"`
	Category string `json:"category" binding:"required,min=2"`
}

type LeadRequest struct {
	Name            string  `json:"name" binding:"required"`
	WhatsappNumber  string  `json:"whatsappNumber" binding:"required"`
	ElectricityBill float64 `json:"electricityBill" binding:"gte=0"`
	City            string  `json:"city" binding:"required"`
	Type            string  `json:"type" binding:"required,oneof=residential housing_society commercial"`
}

type Server struct {
	store  *Store
	engine *gin.Engine

	mu     sync.Mutex
	fail   map[string][]int
	counts map[string]int
}

func New(store *Store) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		store:  store,
		engine: gin.New(),
		fail:   make(map[string][]int),
		counts: make(map[string]int),
	}
	s.engine.Use(gin.Recovery())
	s.engine.GET("/health-check", func(c *gin.Context) {
		c.JSON(http.StatusOK, "ok")
	})

	api := s.engine.Group("/api")
	api.GET("/blogs", s.guard(OpListBlogs, s.listBlogs))
	api.GET("/blogs/:id", s.guard(OpGetBlog, s.getBlog))
	api.POST("/blogs", s.guard(OpCreateBlog, s.createBlog))
	api.PUT("/blogs/:id", s.guard(OpUpdateBlog, s.updateBlog))
	api.DELETE("/blogs/:id", s.guard(OpDeleteBlog, s.deleteBlog))
	api.GET("/leads", s.guard(OpListLeads, s.listLeads))
	api.POST("/leads", s.guard(OpCreateLead, s.createLead))
	api.DELETE("/leads/:id", s.guard(OpDeleteLead, s.deleteLead))
	return s
}

func (s *Server) Handler() http.Handler { return s.engine }

// Fail makes the next request for op answer with status. Calls queue.
func (s *Server) Fail(op string, status int) {
	s.mu.Lock()
	s.fail[op] = append(s.fail[op], status)
	s.mu.Unlock()
}

// Count returns how many requests reached op, failed ones included.
func (s *Server) Count(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[op]
}

func (s *Server) guard(op string, h gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		s.mu.Lock()
		s.counts[op]++
		var status int
		if q := s.fail[op]; len(q) > 0 {
			status, s.fail[op] = q[0], q[1:]
		}
		s.mu.Unlock()

		if status != 0 {
			c.AbortWithStatusJSON(status, gin.H{"error": "injected failure"})
			return
		}
		h(c)
	}
}

func (s *Server) listBlogs(c *gin.Context) {
	q := BlogQuery{
		Page:     queryInt(c, "page", 1),
		Limit:    queryInt(c, "limit", 10),
		Search:   c.Query("search"),
		Category: c.Query("category"),
	}
	blogs, total, err := s.store.ListBlogs(c.Request.Context(), q)
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"blogs":      blogs,
		"totalCount": total,
		"totalPages": int(math.Ceil(float64(total) / float64(q.Limit))),
	})
}

func (s *Server) getBlog(c *gin.Context) {
	b, err := s.store.GetBlog(c.Request.Context(), c.Param("id"))
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"blog": b})
}

func (s *Server) createBlog(c *gin.Context) {
	var req BlogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	b, err := s.store.CreateBlog(c.Request.Context(), req)
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

func (s *Server) updateBlog(c *gin.Context) {
	var req BlogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	b, err := s.store.UpdateBlog(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (s *Server) deleteBlog(c *gin.Context) {
	if err := s.store.DeleteBlog(c.Request.Context(), c.Param("id")); err != nil {
		storeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) listLeads(c *gin.Context) {
	leads, err := s.store.ListLeads(c.Request.Context())
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"leads": leads})
}

func (s *Server) createLead(c *gin.Context) {
	var req LeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	l, err := s.store.CreateLead(c.Request.Context(), req)
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusCreated, l)
}

func (s *Server) deleteLead(c *gin.Context) {
	if err := s.store.DeleteLead(c.Request.Context(), c.Param("id")); err != nil {
		storeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func queryInt(c *gin.Context, name string, def int) int {
	n, err := strconv.Atoi(c.Query(name))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func storeError(c *gin.Context, err error) {
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	internalError(c, err)
}

func internalError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

// Seed inserts fixtures; cmd/devbackend uses it for an empty database.
func (s *Server) Seed(ctx context.Context, blogs []BlogRequest, leads []LeadRequest) error {
	for _, b := range blogs {
		if _, err := s.store.CreateBlog(ctx, b); err != nil {
			return err
		}
	}
	for _, l := range leads {
		if _, err := s.store.CreateLead(ctx, l); err != nil {
			return err
		}
	}
	return nil
}
