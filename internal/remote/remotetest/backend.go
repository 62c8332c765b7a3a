// Package remotetest is an in-memory implementation of the contacts REST API.
// It backs the HTTP client tests and the contactsapi development server.
package remotetest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/matheus3301/phonecontact/internal/remote"
)

// Request is a recorded inbound request.
type Request struct {
	Op              string
	Method          string
	Path            string
	APIKey          string
	Accept          string
	ContentType     string
	Filename        string // upload only
	PartContentType string // upload only
}

// Backend holds contacts and uploaded images in memory.
type Backend struct {
	mu        sync.Mutex
	apiKey    string
	publicURL string
	contacts  map[string]remote.ContactDTO
	order     []string
	images    map[string][]byte
	failing   map[string]string
	delay     time.Duration
	nextID    int
	requests  []Request
}

// New returns an empty backend. When apiKey is non-empty every request must
// carry it in the ApiKey header.
func New(apiKey string) *Backend {
	return &Backend{
		apiKey:   apiKey,
		contacts: make(map[string]remote.ContactDTO),
		images:   make(map[string][]byte),
		failing:  make(map[string]string),
	}
}

// Serve starts an httptest server with the API mounted under /api. The
// returned server must be closed by the caller.
func (b *Backend) Serve() *httptest.Server {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(gin.Recovery())
	b.Register(r, "/api")

	srv := httptest.NewServer(r)
	b.SetPublicURL(srv.URL)
	return srv
}

// SetPublicURL sets the origin used to build image URLs.
func (b *Backend) SetPublicURL(u string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.publicURL = u
}

// Register mounts the API routes on r under prefix, and the uploaded images
// under /images.
func (b *Backend) Register(r gin.IRouter, prefix string) {
	api := r.Group(prefix, b.authenticate)
	api.POST("/User", b.record(remote.OpCreate), b.create)
	api.GET("/User/GetAll", b.record(remote.OpList), b.list)
	api.POST("/User/UploadImage", b.record(remote.OpUpload), b.upload)
	api.GET("/User/:id", b.record(remote.OpGet), b.get)
	api.PUT("/User/:id", b.record(remote.OpUpdate), b.update)
	api.DELETE("/User/:id", b.record(remote.OpDelete), b.delete)

	r.GET("/images/:name", b.image)
}

// Fail makes every following call of op answer with a failure envelope
// carrying message. An empty message omits the field.
func (b *Backend) Fail(op, message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failing[op] = message
}

// Recover undoes Fail for op.
func (b *Backend) Recover(op string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.failing, op)
}

// SetDelay delays every response by d.
func (b *Backend) SetDelay(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.delay = d
}

// Seed stores contacts as-is, keeping their ids.
func (b *Backend) Seed(dtos ...remote.ContactDTO) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, d := range dtos {
		id := remote.Deref(d.ID)
		if id == "" {
			id = b.newIDLocked()
			d.ID = &id
		}
		b.putLocked(id, d)
	}
}

// Contacts returns the stored contacts in insertion order.
func (b *Backend) Contacts() []remote.ContactDTO {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]remote.ContactDTO, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.contacts[id])
	}
	return out
}

// Image returns an uploaded image by file name.
func (b *Backend) Image(name string) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.images[name]
	return data, ok
}

// Requests returns every request received so far.
func (b *Backend) Requests() []Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Request(nil), b.requests...)
}

func (b *Backend) newIDLocked() string {
	b.nextID++
	return "srv-" + strconv.Itoa(b.nextID)
}

func (b *Backend) putLocked(id string, d remote.ContactDTO) {
	if _, ok := b.contacts[id]; !ok {
		b.order = append(b.order, id)
	}
	b.contacts[id] = d
}

func (b *Backend) authenticate(c *gin.Context) {
	if b.apiKey != "" && c.GetHeader("ApiKey") != b.apiKey {
		fail(c, http.StatusUnauthorized, "Invalid API key")
		c.Abort()
		return
	}
	c.Next()
}

func (b *Backend) record(op string) gin.HandlerFunc {
	return func(c *gin.Context) {
		b.mu.Lock()
		b.requests = append(b.requests, Request{
			Op:          op,
			Method:      c.Request.Method,
			Path:        c.Request.URL.Path,
			APIKey:      c.GetHeader("ApiKey"),
			Accept:      c.GetHeader("Accept"),
			ContentType: c.GetHeader("Content-Type"),
		})
		delay := b.delay
		message, failing := b.failing[op]
		b.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-c.Request.Context().Done():
				c.Abort()
				return
			}
		}
		if failing {
			c.JSON(http.StatusOK, remote.Envelope{Success: false, Message: remote.Ptr(message)})
			c.Abort()
			return
		}
		c.Next()
	}
}

func (b *Backend) create(c *gin.Context) {
	var dto remote.ContactDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		fail(c, http.StatusBadRequest, "Invalid contact")
		return
	}
	if dto.FirstName == "" || dto.PhoneNumber == "" {
		fail(c, http.StatusBadRequest, "firstName and phoneNumber are required")
		return
	}

	b.mu.Lock()
	id := b.newIDLocked()
	dto.ID = &id
	if dto.CreatedAt == nil {
		dto.CreatedAt = remote.Ptr(strconv.FormatInt(time.Now().UnixMilli(), 10))
	}
	b.putLocked(id, dto)
	b.mu.Unlock()

	ok(c, dto)
}

func (b *Backend) list(c *gin.Context) {
	ok(c, b.Contacts())
}

func (b *Backend) get(c *gin.Context) {
	b.mu.Lock()
	dto, found := b.contacts[c.Param("id")]
	b.mu.Unlock()
	if !found {
		fail(c, http.StatusNotFound, "Contact not found")
		return
	}
	ok(c, dto)
}

func (b *Backend) update(c *gin.Context) {
	var dto remote.ContactDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		fail(c, http.StatusBadRequest, "Invalid contact")
		return
	}
	id := c.Param("id")

	b.mu.Lock()
	existing, found := b.contacts[id]
	if found {
		dto.ID = &id
		dto.CreatedAt = existing.CreatedAt
		b.putLocked(id, dto)
	}
	b.mu.Unlock()

	if !found {
		fail(c, http.StatusNotFound, "Contact not found")
		return
	}
	ok(c, dto)
}

func (b *Backend) delete(c *gin.Context) {
	id := c.Param("id")

	b.mu.Lock()
	_, found := b.contacts[id]
	if found {
		delete(b.contacts, id)
		for i, v := range b.order {
			if v == id {
				b.order = append(b.order[:i], b.order[i+1:]...)
				break
			}
		}
	}
	b.mu.Unlock()

	if !found {
		fail(c, http.StatusNotFound, "Contact not found")
		return
	}
	c.JSON(http.StatusOK, remote.Envelope{Success: true, Message: remote.Ptr("Contact deleted")})
}

func (b *Backend) upload(c *gin.Context) {
	fh, err := c.FormFile(remote.ImageField)
	if err != nil {
		fail(c, http.StatusBadRequest, "Missing image")
		return
	}
	f, err := fh.Open()
	if err != nil {
		fail(c, http.StatusBadRequest, "Unreadable image")
		return
	}
	defer func() { _ = f.Close() }()
	data, err := io.ReadAll(f)
	if err != nil {
		fail(c, http.StatusBadRequest, "Unreadable image")
		return
	}

	b.mu.Lock()
	name := fmt.Sprintf("%d-%s", len(b.images)+1, fh.Filename)
	b.images[name] = data
	url := b.publicURL + "/images/" + name
	if n := len(b.requests); n > 0 {
		b.requests[n-1].Filename = fh.Filename
		b.requests[n-1].PartContentType = fh.Header.Get("Content-Type")
	}
	b.mu.Unlock()

	ok(c, remote.ImageUpload{ImageURL: url})
}

func (b *Backend) image(c *gin.Context) {
	data, found := b.Image(c.Param("name"))
	if !found {
		c.Status(http.StatusNotFound)
		return
	}
	c.Data(http.StatusOK, http.DetectContentType(data), data)
}

func ok(c *gin.Context, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, remote.Envelope{Success: true, Data: raw})
}

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, remote.Envelope{Success: false, Message: remote.Ptr(message), Status: &status})
}
