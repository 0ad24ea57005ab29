package docx

type HTTPMethod string

const (
	GET    HTTPMethod = "GET"
	POST   HTTPMethod = "POST"
	PUT    HTTPMethod = "PUT"
	DELETE HTTPMethod = "DELETE"
)

type Authentication string

const (
	None   Authentication = "none"
	Bearer Authentication = "bearer"
)

// Param documents a query parameter
type Param struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required"`
	Example     string `json:"example,omitempty"`
}

// Endpoint documents one route
type Endpoint struct {
	Path        string         `json:"path"`
	Method      HTTPMethod     `json:"method"`
	Summary     string         `json:"summary"`
	Description string         `json:"description,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
	Auth        Authentication `json:"auth"`
	Scope       string         `json:"scope,omitempty"`
	QueryParams []Param        `json:"queryParams,omitempty"`

	ResponseExample any `json:"responseExample,omitempty"`
}

func NewEndpoint(path string, method HTTPMethod) *Endpoint {
	return &Endpoint{
		Path:   path,
		Method: method,
		Auth:   None,
	}
}

func (e *Endpoint) WithSummary(summary string) *Endpoint {
	e.Summary = summary
	return e
}

func (e *Endpoint) WithDescription(desc string) *Endpoint {
	e.Description = desc
	return e
}

func (e *Endpoint) WithTags(tags ...string) *Endpoint {
	e.Tags = append(e.Tags, tags...)
	return e
}

// WithBearer marks the endpoint as protected by a bearer token granting scope.
func (e *Endpoint) WithBearer(scope string) *Endpoint {
	e.Auth = Bearer
	e.Scope = scope
	return e
}

func (e *Endpoint) WithQueryParam(name, description string, required bool, example string) *Endpoint {
	e.QueryParams = append(e.QueryParams, Param{
		Name:        name,
		Description: description,
		Required:    required,
		Example:     example,
	})
	return e
}

func (e *Endpoint) WithResponseExample(example any) *Endpoint {
	e.ResponseExample = example
	return e
}
