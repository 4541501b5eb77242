// Package fakebackend runs an in-process stand-in for the assistant backend
// and the open product database, for tests and local demos.
package fakebackend

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
)

type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
	Language  string `json:"language"`
}

type Product struct {
	Name        string
	Brands      string
	Ingredients []string
}

// Backend holds the scripted behaviour. Fields may be changed between
// requests; reads and writes go through the mutex.
type Backend struct {
	mu sync.Mutex

	// ChatScript returns the raw body chunks for a chat request. Each chunk is
	// flushed separately. Nil means Echo.
	ChatScript func(ChatRequest) []string
	// ChatStatus, when non-zero, fails chat requests with that status.
	ChatStatus int

	Products map[string]Product
	OFF      map[string]Product

	// Analysis is written as the "analysis" field of image analysis replies.
	Analysis any
	// AnalysisFails makes image analysis answer success=false.
	AnalysisFails bool

	chats   []ChatRequest
	uploads int
}

type Server struct {
	*Backend
	srv *httptest.Server
}

// Start serves the backend under /api and the product database under /off.
func Start() *Server {
	gin.SetMode(gin.TestMode)
	b := &Backend{
		Products: map[string]Product{},
		OFF:      map[string]Product{},
	}
	r := gin.New()
	r.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	api := r.Group("/api")
	api.POST("/chat/stream", b.chatStream)
	api.GET("/product/:code", b.product)
	api.POST("/analyze/image", b.analyzeImage)

	r.GET("/off/api/v0/product/:code", b.offProduct)

	return &Server{Backend: b, srv: httptest.NewServer(r)}
}

func (s *Server) Close() { s.srv.Close() }

// APIBase is the base URL for the assistant backend clients.
func (s *Server) APIBase() string { return s.srv.URL + "/api" }

// OFFBase is the base URL for the open product database client.
func (s *Server) OFFBase() string { return s.srv.URL + "/off" }

func (b *Backend) Chats() []ChatRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]ChatRequest(nil), b.chats...)
}

func (b *Backend) Uploads() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.uploads
}

func (b *Backend) SetChatScript(fn func(ChatRequest) []string) {
	b.mu.Lock()
	b.ChatScript = fn
	b.mu.Unlock()
}

func (b *Backend) SetChatStatus(status int) {
	b.mu.Lock()
	b.ChatStatus = status
	b.mu.Unlock()
}

func (b *Backend) SetAnalysis(v any, fails bool) {
	b.mu.Lock()
	b.Analysis = v
	b.AnalysisFails = fails
	b.mu.Unlock()
}

func (b *Backend) AddProduct(code string, p Product) {
	b.mu.Lock()
	b.Products[code] = p
	b.mu.Unlock()
}

func (b *Backend) AddOFFProduct(code string, p Product) {
	b.mu.Lock()
	b.OFF[code] = p
	b.mu.Unlock()
}

// Echo streams the message back word by word, then a done marker.
func Echo(req ChatRequest) []string {
	var out []string
	for i, w := range strings.Fields(req.Message) {
		if i > 0 {
			w = " " + w
		}
		out = append(out, Delta(w))
	}
	return append(out, Done())
}

// Delta renders one narrative fragment as an event.
func Delta(text string) string {
	raw, _ := json.Marshal(map[string]any{
		"choices": []any{map[string]any{"delta": map[string]any{"content": text}}},
	})
	return "data: " + string(raw) + "\n\n"
}

// Structured renders a structured insight event.
func Structured(v any) string {
	raw, _ := json.Marshal(map[string]any{"type": "structured", "data": v})
	return "data: " + string(raw) + "\n\n"
}

func Done() string { return "data: [DONE]\n\n" }

func (b *Backend) chatStream(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "message required"})
		return
	}

	b.mu.Lock()
	b.chats = append(b.chats, req)
	status := b.ChatStatus
	script := b.ChatScript
	b.mu.Unlock()

	if status != 0 {
		c.JSON(status, gin.H{"detail": http.StatusText(status)})
		return
	}
	if script == nil {
		script = Echo
	}

	w := c.Writer
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	for _, chunk := range script(req) {
		if c.Request.Context().Err() != nil {
			return
		}
		_, _ = io.WriteString(w, chunk)
		w.Flush()
	}
}

func (b *Backend) product(c *gin.Context) {
	code := c.Param("code")
	b.mu.Lock()
	p, ok := b.Products[code]
	b.mu.Unlock()
	if !ok {
		c.JSON(http.StatusOK, gin.H{"found": false, "barcode": code})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"found":        true,
		"barcode":      code,
		"product_name": p.Name,
		"brands":       p.Brands,
		"ingredients":  p.Ingredients,
	})
}

func (b *Backend) analyzeImage(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil || fh.Size == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "file required"})
		return
	}

	b.mu.Lock()
	b.uploads++
	analysis := b.Analysis
	fails := b.AnalysisFails
	b.mu.Unlock()

	if fails {
		c.JSON(http.StatusOK, gin.H{"success": false, "analysis": nil})
		return
	}
	if analysis == nil {
		analysis = fmt.Sprintf("Received %s (%d bytes).", fh.Filename, fh.Size)
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "analysis": analysis})
}

func (b *Backend) offProduct(c *gin.Context) {
	code := strings.TrimSuffix(c.Param("code"), ".json")
	b.mu.Lock()
	p, ok := b.OFF[code]
	b.mu.Unlock()
	if !ok {
		c.JSON(http.StatusOK, gin.H{"status": 0, "status_verbose": "product not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": 1,
		"code":   code,
		"product": gin.H{
			"product_name":     p.Name,
			"brands":           p.Brands,
			"ingredients_text": strings.Join(p.Ingredients, ", "),
		},
	})
}
