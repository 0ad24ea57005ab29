package docx

import (
	"encoding/json"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

type RouterDoc struct {
	BasePath  string      `json:"basePath"`
	Endpoints []*Endpoint `json:"endpoints"`
}

func NewRouterDoc(basePath string) *RouterDoc {
	return &RouterDoc{
		BasePath:  basePath,
		Endpoints: []*Endpoint{},
	}
}

func (r *RouterDoc) AddEndpoint(endpoint *Endpoint) *RouterDoc {
	r.Endpoints = append(r.Endpoints, endpoint)
	return r
}

// RegisterWithFiber serves the documentation on a Fiber app
func (r *RouterDoc) RegisterWithFiber(app fiber.Router, path string) {
	app.Get(path, func(c *fiber.Ctx) error {
		return c.JSON(r)
	})
}

// ServeHTTP serves the documentation as JSON
func (r *RouterDoc) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(r)
}
